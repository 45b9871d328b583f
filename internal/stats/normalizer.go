package stats

import (
	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
)

type MultiplierSource interface {
	Multiplier(code string, period currency.Period) (float64, error)
}

// Normalizer converts the salary range of a vacancy into the common currency.
type Normalizer struct {
	rates MultiplierSource
}

func NewNormalizer(rates MultiplierSource) *Normalizer {
	return &Normalizer{rates: rates}
}

// Normalize returns the mean of the salary bounds times the multiplier for
// the vacancy's period. It reports false when a bound or the currency is
// absent, or when the currency cannot be converted for that period.
// The value is not floored.
func (n *Normalizer) Normalize(v *models.Vacancy) (float64, bool) {
	if !v.HasSalary() {
		return 0, false
	}

	multiplier, err := n.rates.Multiplier(v.SalaryCurrency, currency.Period(v.Period()))
	if err != nil {
		return 0, false
	}

	return (*v.SalaryFrom + *v.SalaryTo) / 2 * multiplier, true
}
