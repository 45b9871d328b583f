package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ratesStagingTable = "exchange_rates_staging"

func ConnectDB(connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	ctx    context.Context
}

func NewPostgresDBManager(ctx context.Context, pool *pgxpool.Pool) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool, ctx: ctx}
}

// CreateTables creates every table used by the commands.
func (m *PostgresDBManager) CreateTables() error {
	steps := []func() error{
		m.CreateExchangeRatesTable,
		m.CreateChunkRecordsTable,
		m.CreateChunkPartialsTable,
		m.CreateStatisticsRunsTable,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// CreateExchangeRatesTable stores rates in long format, one row per
// (period, currency).
func (m *PostgresDBManager) CreateExchangeRatesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS exchange_rates (
		period VARCHAR(7) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		multiplier DOUBLE PRECISION NOT NULL CHECK (multiplier > 0),
		PRIMARY KEY (period, currency)
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating exchange_rates table: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) CreateChunkRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS chunk_records (
		id SERIAL PRIMARY KEY,
		file_name VARCHAR(255) NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'CACHED', 'FAILED')),
		checksum VARCHAR(64),
		dropped_rows INTEGER NOT NULL DEFAULT 0,
		errors jsonb
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating chunk_records table: %w", err)
	}

	return nil
}

// CreateChunkPartialsTable holds one aggregated partial per cache key.
func (m *PostgresDBManager) CreateChunkPartialsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS chunk_partials (
		cache_key VARCHAR(255) PRIMARY KEY,
		checksum VARCHAR(64) NOT NULL,
		title TEXT NOT NULL,
		partial jsonb NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating chunk_partials table: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) CreateStatisticsRunsTable() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS statistics_runs (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			source_path TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			total_count INTEGER NOT NULL,
			result jsonb NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_statistics_runs_created_at ON statistics_runs (created_at DESC);`,
	}

	for _, query := range queries {
		_, err := m.dbpool.Exec(m.ctx, query)
		if err != nil {
			return fmt.Errorf("error creating statistics_runs table: %w", err)
		}
	}

	return nil
}

// InsertExchangeRates bulk loads rates through a temporary staging table and
// upserts them. It returns the number of rows written.
func (m *PostgresDBManager) InsertExchangeRates(rates []currency.Rate) (int64, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	tx, err := m.dbpool.Begin(m.ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(m.ctx)

	createStaging := fmt.Sprintf(`CREATE TEMP TABLE %s (LIKE exchange_rates INCLUDING DEFAULTS) ON COMMIT DROP;`,
		pgx.Identifier{ratesStagingTable}.Sanitize())
	if _, err := tx.Exec(m.ctx, createStaging); err != nil {
		return 0, fmt.Errorf("error creating staging table %s: %w", ratesStagingTable, err)
	}

	copySource := pgx.CopyFromSlice(len(rates), func(i int) ([]interface{}, error) {
		rate := rates[i]
		return []interface{}{string(rate.Period), rate.Currency, rate.Multiplier}, nil
	})

	log.Printf("Bulk loading %d exchange rates into staging table %s", len(rates), ratesStagingTable)
	_, err = tx.CopyFrom(m.ctx, pgx.Identifier{ratesStagingTable}, []string{"period", "currency", "multiplier"}, copySource)
	if err != nil {
		return 0, fmt.Errorf("unable to copy exchange rates to staging table: %w", err)
	}

	upsertQuery := fmt.Sprintf(`
	INSERT INTO exchange_rates (period, currency, multiplier)
	SELECT period, currency, multiplier
	FROM %s
	ON CONFLICT (period, currency) DO UPDATE SET multiplier = EXCLUDED.multiplier;
	`, pgx.Identifier{ratesStagingTable}.Sanitize())

	tag, err := tx.Exec(m.ctx, upsertQuery)
	if err != nil {
		return 0, fmt.Errorf("error upserting exchange rates: %w", err)
	}

	if err := tx.Commit(m.ctx); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (m *PostgresDBManager) GetExchangeRates() (*currency.PeriodTable, error) {
	rows, err := m.dbpool.Query(m.ctx, `SELECT period, currency, multiplier FROM exchange_rates ORDER BY period, currency;`)
	if err != nil {
		return nil, fmt.Errorf("error querying exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []currency.Rate
	for rows.Next() {
		var period, code string
		var multiplier float64
		if err := rows.Scan(&period, &code, &multiplier); err != nil {
			return nil, fmt.Errorf("error scanning exchange rate: %w", err)
		}
		rates = append(rates, currency.Rate{Period: currency.Period(period), Currency: code, Multiplier: multiplier})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over exchange rates: %w", err)
	}

	return currency.NewPeriodTable(rates), nil
}

func (m *PostgresDBManager) InsertChunkRecord(fileName string, date time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO chunk_records (file_name, processed_at, status, checksum)
	VALUES ($1, $2, $3, $4)
	RETURNING id;`

	var chunkID int
	err := m.dbpool.QueryRow(m.ctx, query, fileName, date, status, checksum).Scan(&chunkID)
	if err != nil {
		return 0, fmt.Errorf("error inserting chunk record: %w", err)
	}

	return chunkID, nil
}

func (m *PostgresDBManager) UpdateChunkStatus(chunkID int, status string, droppedRows int, errors any) error {
	query := `
	UPDATE chunk_records
	SET status = $1,
		dropped_rows = $2,
		errors = $3
	WHERE id = $4;`

	_, err := m.dbpool.Exec(m.ctx, query, status, droppedRows, errors, chunkID)
	if err != nil {
		return fmt.Errorf("error updating chunk status: %w", err)
	}

	return nil
}

// GetChunkPartial returns nil without an error when nothing is cached.
func (m *PostgresDBManager) GetChunkPartial(cacheKey string) (*stats.Partial, error) {
	var data []byte
	err := m.dbpool.QueryRow(m.ctx, `SELECT partial FROM chunk_partials WHERE cache_key = $1;`, cacheKey).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding cached partial: %w", err)
	}

	var partial stats.Partial
	if err := json.Unmarshal(data, &partial); err != nil {
		return nil, fmt.Errorf("error decoding cached partial %s: %w", cacheKey, err)
	}

	return &partial, nil
}

func (m *PostgresDBManager) SaveChunkPartial(cacheKey string, checksum string, partial *stats.Partial) error {
	data, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("error encoding partial: %w", err)
	}

	query := `
	INSERT INTO chunk_partials (cache_key, checksum, title, partial)
	VALUES ($1, $2, $3, $4::jsonb)
	ON CONFLICT (cache_key) DO UPDATE SET partial = EXCLUDED.partial, created_at = NOW();`

	_, err = m.dbpool.Exec(m.ctx, query, cacheKey, checksum, partial.Title, string(data))
	if err != nil {
		return fmt.Errorf("error saving partial: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) SaveStatisticsRun(run *StatisticsRun) error {
	data, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("error encoding statistics result: %w", err)
	}

	query := `
	INSERT INTO statistics_runs (id, title, source_path, created_at, total_count, result)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb);`

	_, err = m.dbpool.Exec(m.ctx, query, run.ID.String(), run.Title, run.SourcePath, run.CreatedAt, run.Result.TotalCount, string(data))
	if err != nil {
		return fmt.Errorf("error saving statistics run: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) GetStatisticsRun(id uuid.UUID) (*StatisticsRun, error) {
	query := `
	SELECT id::text, title, source_path, created_at, result
	FROM statistics_runs
	WHERE id = $1;`

	return m.scanRun(m.dbpool.QueryRow(m.ctx, query, id.String()))
}

// GetLatestStatisticsRun returns the newest run, restricted to title when it
// is not empty.
func (m *PostgresDBManager) GetLatestStatisticsRun(title string) (*StatisticsRun, error) {
	query := `
	SELECT id::text, title, source_path, created_at, result
	FROM statistics_runs
	WHERE $1 = '' OR title = $1
	ORDER BY created_at DESC
	LIMIT 1;`

	return m.scanRun(m.dbpool.QueryRow(m.ctx, query, title))
}

func (m *PostgresDBManager) ListStatisticsRuns(limit int) ([]StatisticsRunSummary, error) {
	query := `
	SELECT id::text, title, source_path, created_at, total_count
	FROM statistics_runs
	ORDER BY created_at DESC
	LIMIT $1;`

	rows, err := m.dbpool.Query(m.ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing statistics runs: %w", err)
	}
	defer rows.Close()

	summaries := []StatisticsRunSummary{}
	for rows.Next() {
		var summary StatisticsRunSummary
		var id string
		if err := rows.Scan(&id, &summary.Title, &summary.SourcePath, &summary.CreatedAt, &summary.TotalCount); err != nil {
			return nil, fmt.Errorf("error scanning statistics run: %w", err)
		}
		if summary.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid statistics run id %q: %w", id, err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over statistics runs: %w", err)
	}

	return summaries, nil
}

func (m *PostgresDBManager) scanRun(row pgx.Row) (*StatisticsRun, error) {
	var run StatisticsRun
	var id string
	var data []byte

	err := row.Scan(&id, &run.Title, &run.SourcePath, &run.CreatedAt, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error querying statistics run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid statistics run id %q: %w", id, err)
	}
	if err := json.Unmarshal(data, &run.Result); err != nil {
		return nil, fmt.Errorf("error decoding statistics result: %w", err)
	}

	return &run, nil
}
