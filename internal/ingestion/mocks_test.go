package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const vacancyHeader = "name,salary_from,salary_to,salary_currency,area_name,published_at"

// writeChunk writes a vacancy CSV with the shared header.
func writeChunk(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := vacancyHeader + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func staticConverter() *currency.Converter {
	return currency.NewConverter(currency.DefaultCommon, currency.DefaultStaticTable())
}

// MockDBManager is a mock implementation of the DBManager interface.
type MockDBManager struct {
	mock.Mock
}

func (m *MockDBManager) CreateExchangeRatesTable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDBManager) CreateChunkRecordsTable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDBManager) CreateChunkPartialsTable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDBManager) CreateStatisticsRunsTable() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockDBManager) InsertExchangeRates(rates []currency.Rate) (int64, error) {
	args := m.Called(rates)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBManager) GetExchangeRates() (*currency.PeriodTable, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.PeriodTable), args.Error(1)
}

func (m *MockDBManager) InsertChunkRecord(fileName string, date time.Time, status string, checksum string) (int, error) {
	args := m.Called(fileName, date, status, checksum)
	return args.Int(0), args.Error(1)
}

func (m *MockDBManager) UpdateChunkStatus(chunkID int, status string, droppedRows int, errors any) error {
	args := m.Called(chunkID, status, droppedRows, errors)
	return args.Error(0)
}

func (m *MockDBManager) GetChunkPartial(cacheKey string) (*stats.Partial, error) {
	args := m.Called(cacheKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stats.Partial), args.Error(1)
}

func (m *MockDBManager) SaveChunkPartial(cacheKey string, checksum string, partial *stats.Partial) error {
	args := m.Called(cacheKey, checksum, partial)
	return args.Error(0)
}

func (m *MockDBManager) SaveStatisticsRun(run *database.StatisticsRun) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockDBManager) GetStatisticsRun(id uuid.UUID) (*database.StatisticsRun, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.StatisticsRun), args.Error(1)
}

func (m *MockDBManager) GetLatestStatisticsRun(title string) (*database.StatisticsRun, error) {
	args := m.Called(title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.StatisticsRun), args.Error(1)
}

func (m *MockDBManager) ListStatisticsRuns(limit int) ([]database.StatisticsRunSummary, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.StatisticsRunSummary), args.Error(1)
}

// MockWorker is a mock implementation of the Worker interface.
type MockWorker struct {
	mock.Mock
}

func (m *MockWorker) WithChannels(channels *ExtractionChannels) Worker {
	m.Called(channels)
	return m
}

func (m *MockWorker) WithWaitGroups(waitGroups *ExtractionWaitGroups) Worker {
	m.Called(waitGroups)
	return m
}

func (m *MockWorker) SetupJobDispatcherWorker(chunks []models.ChunkInfo, chunkMap models.ChunkMap) (Runner[func()], *sync.WaitGroup, error) {
	args := m.Called(chunks, chunkMap)
	if args.Get(0) == nil {
		return Runner[func()]{}, nil, args.Error(2)
	}
	return args.Get(0).(Runner[func()]), args.Get(1).(*sync.WaitGroup), args.Error(2)
}

func (m *MockWorker) SetupErrorWorker() (Runner[func(*models.ChunkErrorMap)], *sync.WaitGroup, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return Runner[func(*models.ChunkErrorMap)]{}, nil, args.Error(2)
	}
	return args.Get(0).(Runner[func(*models.ChunkErrorMap)]), args.Get(1).(*sync.WaitGroup), args.Error(2)
}

func (m *MockWorker) SetupCollectorWorker() (Runner[func(*PartialSet)], *sync.WaitGroup, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return Runner[func(*PartialSet)]{}, nil, args.Error(2)
	}
	return args.Get(0).(Runner[func(*PartialSet)]), args.Get(1).(*sync.WaitGroup), args.Error(2)
}

func (m *MockWorker) SetupParserWorkers(numberOfWorkers int, title string) (Runner[func()], *sync.WaitGroup, error) {
	args := m.Called(numberOfWorkers, title)
	if args.Get(0) == nil {
		return Runner[func()]{}, nil, args.Error(2)
	}
	return args.Get(0).(Runner[func()]), args.Get(1).(*sync.WaitGroup), args.Error(2)
}

// MockProcessor is a mock implementation of the Processor interface.
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) ScanForChunks(rootPath string) ([]models.ChunkInfo, error) {
	args := m.Called(rootPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChunkInfo), args.Error(1)
}

func (m *MockProcessor) UpdateChunkStatus(chunkErrorsMap *models.ChunkErrorMap, chunkMap *models.ChunkMap, partials *PartialSet) error {
	args := m.Called(chunkErrorsMap, chunkMap, partials)
	return args.Error(0)
}

// MockSetup is a mock implementation of the ISetup interface.
type MockSetup struct {
	mock.Mock
}

func (m *MockSetup) build() (SetupReturn, error) {
	args := m.Called()
	return args.Get(0).(SetupReturn), args.Error(1)
}
