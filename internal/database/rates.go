package database

import (
	"errors"
	"fmt"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
)

var ErrNoDBManager = errors.New("rates source requires a database connection")

// LoadRateSource builds the rate table named by RATES_SOURCE. dbManager is
// only used for the postgres source and may be nil otherwise.
func LoadRateSource(cfg *config.Config, dbManager DBManager) (currency.RateSource, error) {
	var (
		table *currency.PeriodTable
		err   error
	)

	switch cfg.RatesSource {
	case config.RatesSourceStatic:
		return currency.DefaultStaticTable(), nil
	case config.RatesSourceYAML:
		static, err := currency.LoadYAMLFile(cfg.RatesPath)
		if err != nil {
			return nil, err
		}
		return static, nil
	case config.RatesSourceCSV:
		table, err = currency.LoadCSVFile(cfg.RatesPath)
	case config.RatesSourceSQLite:
		table, err = LoadSQLiteRates(cfg.RatesPath)
	case config.RatesSourcePostgres:
		if dbManager == nil {
			return nil, ErrNoDBManager
		}
		table, err = dbManager.GetExchangeRates()
	default:
		return nil, fmt.Errorf("unknown rates source %q", cfg.RatesSource)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load %s exchange rates: %w", cfg.RatesSource, err)
	}
	return table, nil
}
