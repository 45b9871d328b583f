package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
)

const (
	RatesSourceStatic   = "static"
	RatesSourceCSV      = "csv"
	RatesSourceYAML     = "yaml"
	RatesSourceSQLite   = "sqlite"
	RatesSourcePostgres = "postgres"
)

type Config struct {
	DatabaseURL      string
	NumParserWorkers int
	ChannelSize      int
	TopCities        int
	CommonCurrency   string
	RatesSource      string
	RatesPath        string
	CSVDelimiter     rune
	AllowEmptySalary bool
	LogLevel         string
	APIPort          string
}

// New reads the configuration from the environment. An empty DATABASE_URL
// disables persistence unless the rates come from postgres.
func New() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		NumParserWorkers: runtime.NumCPU(),
		ChannelSize:      100,
		TopCities:        10,
		CommonCurrency:   currency.DefaultCommon,
		RatesSource:      RatesSourceStatic,
		RatesPath:        os.Getenv("RATES_PATH"),
		CSVDelimiter:     ',',
		LogLevel:         "info",
		APIPort:          "8080",
	}

	var err error
	cfg.NumParserWorkers, err = getEnvAsInt("NUM_PARSER_WORKERS", cfg.NumParserWorkers)
	if err != nil {
		return nil, err
	}
	if cfg.NumParserWorkers < 1 {
		return nil, fmt.Errorf("NUM_PARSER_WORKERS must be at least 1, got %d", cfg.NumParserWorkers)
	}

	cfg.ChannelSize, err = getEnvAsInt("CHANNEL_SIZE", cfg.ChannelSize)
	if err != nil {
		return nil, err
	}

	cfg.TopCities, err = getEnvAsInt("TOP_CITIES", cfg.TopCities)
	if err != nil {
		return nil, err
	}

	cfg.AllowEmptySalary, err = getEnvAsBool("ALLOW_EMPTY_SALARY", cfg.AllowEmptySalary)
	if err != nil {
		return nil, err
	}

	if value := os.Getenv("COMMON_CURRENCY"); value != "" {
		cfg.CommonCurrency = strings.ToUpper(value)
	}
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := os.Getenv("API_PORT"); value != "" {
		cfg.APIPort = value
	}

	if value := os.Getenv("CSV_DELIMITER"); value != "" {
		if utf8.RuneCountInString(value) != 1 {
			return nil, fmt.Errorf("invalid value for CSV_DELIMITER: expected a single character, got '%s'", value)
		}
		cfg.CSVDelimiter, _ = utf8.DecodeRuneInString(value)
	}

	if value := os.Getenv("RATES_SOURCE"); value != "" {
		cfg.RatesSource = strings.ToLower(value)
	}
	switch cfg.RatesSource {
	case RatesSourceStatic:
	case RatesSourceCSV, RatesSourceYAML, RatesSourceSQLite:
		if cfg.RatesPath == "" {
			return nil, fmt.Errorf("RATES_PATH must be set when RATES_SOURCE is %s", cfg.RatesSource)
		}
	case RatesSourcePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when RATES_SOURCE is postgres")
		}
	default:
		return nil, fmt.Errorf("invalid value for RATES_SOURCE: '%s'", cfg.RatesSource)
	}

	return cfg, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}
