package currency

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ThiagoRGoveia/vacancy-stats/pkg/checksum"
)

// DefaultCommon is the currency every salary is normalized to.
const DefaultCommon = "RUR"

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrNoRateForPeriod = errors.New("no exchange rate for period")
)

// Period is a year-month key such as "2022-07".
type Period string

// RateSource resolves the multiplier that converts one unit of a currency
// into the common currency for a period.
type RateSource interface {
	Rate(code string, period Period) (float64, error)
	Currencies() []string
	Fingerprint() string
}

// Rate is one cell of a period table.
type Rate struct {
	Period     Period
	Currency   string
	Multiplier float64
}

// DefaultStaticRates is the fixed rate table used when no time series is
// configured.
var DefaultStaticRates = map[string]float64{
	"AZN": 35.68,
	"BYR": 23.91,
	"EUR": 59.90,
	"GEL": 21.74,
	"KGS": 0.76,
	"KZT": 0.13,
	"RUR": 1,
	"UAH": 1.64,
	"USD": 60.66,
	"UZS": 0.0055,
}

// StaticTable ignores the period. It can only fail with ErrUnknownCurrency.
type StaticTable struct {
	rates map[string]float64
}

func NewStaticTable(rates map[string]float64) *StaticTable {
	copied := make(map[string]float64, len(rates))
	for code, multiplier := range rates {
		copied[code] = multiplier
	}
	return &StaticTable{rates: copied}
}

func DefaultStaticTable() *StaticTable {
	return NewStaticTable(DefaultStaticRates)
}

func (t *StaticTable) Rate(code string, _ Period) (float64, error) {
	multiplier, ok := t.rates[code]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return multiplier, nil
}

func (t *StaticTable) Currencies() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (t *StaticTable) Fingerprint() string {
	parts := []string{"static"}
	for _, code := range t.Currencies() {
		parts = append(parts, code, strconv.FormatFloat(t.rates[code], 'g', -1, 64))
	}
	return checksum.Key(parts...)
}

// PeriodTable holds month-indexed rates for a known set of currencies.
type PeriodTable struct {
	rates map[Period]map[string]float64
	known map[string]bool
}

// NewPeriodTable builds a table from its cells. Extra currencies are known
// even when no period carries a rate for them.
func NewPeriodTable(rates []Rate, currencies ...string) *PeriodTable {
	t := &PeriodTable{
		rates: make(map[Period]map[string]float64),
		known: make(map[string]bool),
	}
	for _, code := range currencies {
		t.known[code] = true
	}
	for _, r := range rates {
		t.known[r.Currency] = true
		byCode, ok := t.rates[r.Period]
		if !ok {
			byCode = make(map[string]float64)
			t.rates[r.Period] = byCode
		}
		byCode[r.Currency] = r.Multiplier
	}
	return t
}

func (t *PeriodTable) Rate(code string, period Period) (float64, error) {
	if !t.known[code] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	multiplier, ok := t.rates[period][code]
	if !ok {
		return 0, fmt.Errorf("%w: %s %s", ErrNoRateForPeriod, code, period)
	}
	return multiplier, nil
}

func (t *PeriodTable) Currencies() []string {
	codes := make([]string, 0, len(t.known))
	for code := range t.known {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (t *PeriodTable) Periods() []Period {
	periods := make([]Period, 0, len(t.rates))
	for period := range t.rates {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	return periods
}

// Rates lists every cell ordered by period, then currency.
func (t *PeriodTable) Rates() []Rate {
	var out []Rate
	for _, period := range t.Periods() {
		codes := make([]string, 0, len(t.rates[period]))
		for code := range t.rates[period] {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			out = append(out, Rate{Period: period, Currency: code, Multiplier: t.rates[period][code]})
		}
	}
	return out
}

func (t *PeriodTable) Fingerprint() string {
	parts := []string{"period"}
	for _, code := range t.Currencies() {
		parts = append(parts, code)
	}
	for _, r := range t.Rates() {
		parts = append(parts, string(r.Period), r.Currency, strconv.FormatFloat(r.Multiplier, 'g', -1, 64))
	}
	return checksum.Key(parts...)
}

// Converter applies the common currency fast path in front of a RateSource.
type Converter struct {
	common string
	rates  RateSource
}

func NewConverter(common string, rates RateSource) *Converter {
	if common == "" {
		common = DefaultCommon
	}
	return &Converter{common: common, rates: rates}
}

func (c *Converter) Common() string {
	return c.common
}

func (c *Converter) Fingerprint() string {
	return c.common + ":" + c.rates.Fingerprint()
}

// Multiplier returns 1 for the common currency without consulting the table.
func (c *Converter) Multiplier(code string, period Period) (float64, error) {
	if code == c.common {
		return 1, nil
	}
	return c.rates.Rate(code, period)
}
