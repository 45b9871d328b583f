package currency

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCSV reads the wide exchange_data.csv layout: a "date" column holding
// the period followed by one column per currency. Empty cells are skipped.
func LoadCSV(r io.Reader) (*PeriodTable, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("exchange rate file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange rate header: %w", err)
	}
	if len(header) < 2 || strings.TrimPrefix(strings.TrimSpace(header[0]), "\ufeff") != "date" {
		return nil, fmt.Errorf("exchange rate header must start with a date column, got %v", header)
	}

	codes := make([]string, 0, len(header)-1)
	for _, code := range header[1:] {
		codes = append(codes, strings.TrimSpace(code))
	}

	var rates []Rate
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read exchange rates at line %d: %w", line, err)
		}

		period := Period(strings.TrimSpace(record[0]))
		for i, code := range codes {
			cell := strings.TrimSpace(record[i+1])
			if cell == "" {
				continue
			}
			multiplier, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rate %q for %s at line %d: %w", cell, code, line, err)
			}
			rates = append(rates, Rate{Period: period, Currency: code, Multiplier: multiplier})
		}
	}

	return NewPeriodTable(rates, codes...), nil
}

func LoadCSVFile(path string) (*PeriodTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open exchange rate file %s: %w", path, err)
	}
	defer file.Close()
	return LoadCSV(file)
}

type staticFile struct {
	Rates map[string]float64 `yaml:"rates"`
}

// LoadYAML reads a static table:
//
//	rates:
//	  USD: 60.66
//	  EUR: 59.90
func LoadYAML(r io.Reader) (*StaticTable, error) {
	var file staticFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode currency table: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("currency table has no rates")
	}
	for code, multiplier := range file.Rates {
		if multiplier <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %v", code, multiplier)
		}
	}
	return NewStaticTable(file.Rates), nil
}

func LoadYAMLFile(path string) (*StaticTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open currency table %s: %w", path, err)
	}
	defer file.Close()
	return LoadYAML(file)
}
