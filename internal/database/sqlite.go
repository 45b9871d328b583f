package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	_ "modernc.org/sqlite"
)

// The SQLite layout mirrors exchange_data.csv: a "date" column with the
// period and one REAL column per currency.
const sqliteRatesTable = "exchange_data"

func LoadSQLiteRates(path string) (*currency.PeriodTable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM %q`, sqliteRatesTable))
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", sqliteRatesTable, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading %s columns: %w", sqliteRatesTable, err)
	}
	if len(columns) < 2 || !strings.EqualFold(columns[0], "date") {
		return nil, fmt.Errorf("%s must start with a date column, got %v", sqliteRatesTable, columns)
	}
	codes := columns[1:]

	var rates []currency.Rate
	for rows.Next() {
		var period string
		cells := make([]sql.NullFloat64, len(codes))
		dest := make([]any, 0, len(columns))
		dest = append(dest, &period)
		for i := range cells {
			dest = append(dest, &cells[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("error scanning %s row: %w", sqliteRatesTable, err)
		}
		for i, cell := range cells {
			if !cell.Valid {
				continue
			}
			rates = append(rates, currency.Rate{Period: currency.Period(period), Currency: codes[i], Multiplier: cell.Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over %s: %w", sqliteRatesTable, err)
	}

	return currency.NewPeriodTable(rates, codes...), nil
}

// SaveSQLiteRates replaces the exchange_data table of the database at path.
func SaveSQLiteRates(path string, table *currency.PeriodTable) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("unable to open sqlite database %s: %w", path, err)
	}
	defer db.Close()

	codes := table.Currencies()
	defs := []string{`"date" TEXT PRIMARY KEY`}
	quoted := []string{`"date"`}
	for _, code := range codes {
		defs = append(defs, fmt.Sprintf("%q REAL", code))
		quoted = append(quoted, fmt.Sprintf("%q", code))
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, sqliteRatesTable)); err != nil {
		return fmt.Errorf("error dropping %s: %w", sqliteRatesTable, err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, sqliteRatesTable, strings.Join(defs, ","))); err != nil {
		return fmt.Errorf("error creating %s: %w", sqliteRatesTable, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(quoted)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, sqliteRatesTable, strings.Join(quoted, ","), placeholders))
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, period := range table.Periods() {
		args := []any{string(period)}
		for _, code := range codes {
			multiplier, err := table.Rate(code, period)
			if err != nil {
				args = append(args, nil)
				continue
			}
			args = append(args, multiplier)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("error inserting rates for %s: %w", period, err)
		}
	}

	return tx.Commit()
}
