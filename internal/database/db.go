package database

import (
	"errors"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/google/uuid"
)

const (
	CHUNK_STATUS_PROCESSING = "PROCESSING"
	CHUNK_STATUS_DONE       = "DONE"
	CHUNK_STATUS_CACHED     = "CACHED"
	CHUNK_STATUS_FAILED     = "FAILED"
)

var ErrRunNotFound = errors.New("statistics run not found")

// StatisticsRun is one finished batch as stored in statistics_runs.
type StatisticsRun struct {
	ID         uuid.UUID     `json:"id"`
	Title      string        `json:"title"`
	SourcePath string        `json:"source_path"`
	CreatedAt  time.Time     `json:"created_at"`
	Result     *stats.Result `json:"result,omitempty"`
}

type StatisticsRunSummary struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	SourcePath string    `json:"source_path"`
	CreatedAt  time.Time `json:"created_at"`
	TotalCount int       `json:"total_count"`
}

type DBManager interface {
	CreateExchangeRatesTable() error
	CreateChunkRecordsTable() error
	CreateChunkPartialsTable() error
	CreateStatisticsRunsTable() error
	InsertExchangeRates(rates []currency.Rate) (int64, error)
	GetExchangeRates() (*currency.PeriodTable, error)
	InsertChunkRecord(fileName string, date time.Time, status string, checksum string) (int, error)
	UpdateChunkStatus(chunkID int, status string, droppedRows int, errors any) error
	GetChunkPartial(cacheKey string) (*stats.Partial, error)
	SaveChunkPartial(cacheKey string, checksum string, partial *stats.Partial) error
	SaveStatisticsRun(run *StatisticsRun) error
	GetStatisticsRun(id uuid.UUID) (*StatisticsRun, error)
	GetLatestStatisticsRun(title string) (*StatisticsRun, error)
	ListStatisticsRuns(limit int) ([]StatisticsRunSummary, error)
}
