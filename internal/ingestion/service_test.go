package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/parser"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testTitle = "Программист"

func partialFor(vacancies ...*models.Vacancy) *stats.Partial {
	aggregator := stats.NewAggregator(testTitle, stats.NewNormalizer(staticConverter()))
	for _, v := range vacancies {
		aggregator.Add(v)
	}
	return aggregator.Partial()
}

func rur(name, city, publishedAt string, amount float64) *models.Vacancy {
	return &models.Vacancy{
		Name:           name,
		AreaName:       city,
		PublishedAt:    publishedAt,
		SalaryFrom:     &amount,
		SalaryTo:       &amount,
		SalaryCurrency: "RUR",
	}
}

func BuildTestSetup() (string, *MockDBManager, *MockWorker, *MockProcessor, *MockSetup, SetupReturn, config.Config) {
	const path = "some/path"
	dbManager := new(MockDBManager)
	worker := new(MockWorker)
	processor := new(MockProcessor)
	setup := new(MockSetup)

	cfg := config.Config{
		NumParserWorkers: 2,
		ChannelSize:      10,
		TopCities:        10,
	}

	chunkMap := make(models.ChunkMap)
	setupReturn := SetupReturn{
		Channels: &ExtractionChannels{
			Jobs:     make(chan models.ChunkJob, 10),
			Partials: make(chan ChunkPartial, 10),
			Errors:   make(chan models.AppError, 10),
		},
		WaitGroups:     &ExtractionWaitGroups{ParserWg: &sync.WaitGroup{}, CollectorWg: &sync.WaitGroup{}, MainWg: &sync.WaitGroup{}},
		ChunkMap:       &chunkMap,
		ChunkErrorsMap: &models.ChunkErrorMap{Errors: make(map[int][]models.AppError)},
		Partials:       &PartialSet{Parts: make(map[int]ChunkPartial)},
	}
	return path, dbManager, worker, processor, setup, setupReturn, cfg
}

// expectRunners wires every runner of a batch. collect fills the partial set
// and fail fills the error map.
func expectRunners(worker *MockWorker, setupReturn SetupReturn, chunks []models.ChunkInfo, cfg config.Config, collect func(*PartialSet), fail func(*models.ChunkErrorMap)) {
	worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
	worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
	worker.On("SetupJobDispatcherWorker", chunks, *setupReturn.ChunkMap).Return(Runner[func()]{Run: func() {}}, &sync.WaitGroup{}, nil).Once()
	worker.On("SetupErrorWorker").Return(Runner[func(*models.ChunkErrorMap)]{Run: fail}, &sync.WaitGroup{}, nil).Once()
	worker.On("SetupCollectorWorker").Return(Runner[func(*PartialSet)]{Run: collect}, &sync.WaitGroup{}, nil).Once()
	worker.On("SetupParserWorkers", cfg.NumParserWorkers, testTitle).Return(Runner[func()]{Run: func() {}}, &sync.WaitGroup{}, nil).Once()
}

func TestIngestionService_Execute(t *testing.T) {
	chunks := []models.ChunkInfo{
		{ID: 1, Path: "some/path/2020.csv", Checksum: "a"},
		{ID: 2, Path: "some/path/2021.csv", Checksum: "b"},
	}
	collectBoth := func(ps *PartialSet) {
		ps.Add(ChunkPartial{ChunkID: 2, Partial: partialFor(rur("Программист", "Москва", "2021-01-01", 300))})
		ps.Add(ChunkPartial{ChunkID: 1, Partial: partialFor(rur("Программист", "Москва", "2020-01-01", 100), rur("QA", "Казань", "2020-01-01", 200))})
	}
	noErrors := func(*models.ChunkErrorMap) {}

	t.Run("Expect: Execute to merge, finalize and persist", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		runID := uuid.New()

		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		expectRunners(worker, setupReturn, chunks, cfg, collectBoth, noErrors)
		processor.On("UpdateChunkStatus", setupReturn.ChunkErrorsMap, setupReturn.ChunkMap, setupReturn.Partials).Return(nil).Once()
		dbManager.On("SaveStatisticsRun", mock.MatchedBy(func(run *database.StatisticsRun) bool {
			return run.ID == runID && run.Title == testTitle && run.SourcePath == path && run.Result.TotalCount == 3
		})).Return(nil).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		service.newID = func() uuid.UUID { return runID }
		result, err := service.Execute(context.Background(), path, testTitle)

		require.NoError(t, err)
		assert.Equal(t, testTitle, result.Title)
		assert.Equal(t, []stats.YearCount{{Year: "2020", Count: 2}, {Year: "2021", Count: 1}}, result.CountByYear)
		assert.Equal(t, []stats.YearCount{{Year: "2020", Count: 1}, {Year: "2021", Count: 1}}, result.TitleCountByYear)
		assert.Equal(t, stats.Average{Value: 150, Valid: true}, result.SalaryByYear[0].Average)

		setup.AssertExpectations(t)
		processor.AssertExpectations(t)
		worker.AssertExpectations(t)
		dbManager.AssertExpectations(t)
	})

	t.Run("Expect: nothing to be persisted without a database", func(t *testing.T) {
		path, _, worker, processor, setup, setupReturn, cfg := BuildTestSetup()

		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		expectRunners(worker, setupReturn, chunks, cfg, collectBoth, noErrors)
		processor.On("UpdateChunkStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		service := NewIngestionService(nil, setup, worker, processor, cfg, nil)
		result, err := service.Execute(context.Background(), path, testTitle)

		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalCount)
	})

	t.Run("Expect: a chunk error to fail the batch", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		chunkErr := errors.New("boom")
		fail := func(m *models.ChunkErrorMap) {
			m.Errors[2] = append(m.Errors[2], models.AppError{ChunkID: 2, Message: "Failed to aggregate chunk", Err: chunkErr})
		}

		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		expectRunners(worker, setupReturn, chunks, cfg, collectBoth, fail)
		processor.On("UpdateChunkStatus", setupReturn.ChunkErrorsMap, setupReturn.ChunkMap, setupReturn.Partials).Return(nil).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		result, err := service.Execute(context.Background(), path, testTitle)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrBatchFailed)
		assert.ErrorIs(t, err, chunkErr)
		dbManager.AssertNotCalled(t, "SaveStatisticsRun", mock.Anything)
	})

	t.Run("Expect: a save failure to be returned with the result", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()

		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		expectRunners(worker, setupReturn, chunks, cfg, collectBoth, noErrors)
		processor.On("UpdateChunkStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		dbManager.On("SaveStatisticsRun", mock.Anything).Return(errors.New("db down")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		result, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		assert.NotNil(t, result)
	})

	t.Run("Expect: Error to be returned when build() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, _, cfg := BuildTestSetup()
		setup.On("build").Return(SetupReturn{}, errors.New("build error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		setup.AssertExpectations(t)
		processor.AssertNotCalled(t, "ScanForChunks", mock.Anything)
	})

	t.Run("Expect: Error to be returned when ScanForChunks() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(nil, errors.New("scan error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		processor.AssertExpectations(t)
		worker.AssertNotCalled(t, "WithChannels", mock.Anything)
	})

	t.Run("Expect: an empty scan to be ErrNoChunks", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return([]models.ChunkInfo{}, nil).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.ErrorIs(t, err, ErrNoChunks)
	})

	t.Run("Expect: a cancelled context to stop before setup", func(t *testing.T) {
		path, dbManager, worker, processor, setup, _, cfg := BuildTestSetup()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(ctx, path, testTitle)

		assert.ErrorIs(t, err, context.Canceled)
		setup.AssertNotCalled(t, "build")
	})

	t.Run("Expect: Error to be returned when SetupJobDispatcherWorker() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
		worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
		worker.On("SetupJobDispatcherWorker", chunks, *setupReturn.ChunkMap).Return(nil, nil, errors.New("dispatcher error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		worker.AssertExpectations(t)
		worker.AssertNotCalled(t, "SetupErrorWorker")
	})

	t.Run("Expect: Error to be returned when SetupErrorWorker() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
		worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
		worker.On("SetupJobDispatcherWorker", chunks, *setupReturn.ChunkMap).Return(Runner[func()]{Run: func() {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupErrorWorker").Return(nil, nil, errors.New("error worker error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		worker.AssertExpectations(t)
		worker.AssertNotCalled(t, "SetupCollectorWorker")
	})

	t.Run("Expect: Error to be returned when SetupCollectorWorker() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
		worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
		worker.On("SetupJobDispatcherWorker", chunks, *setupReturn.ChunkMap).Return(Runner[func()]{Run: func() {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupErrorWorker").Return(Runner[func(*models.ChunkErrorMap)]{Run: func(*models.ChunkErrorMap) {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupCollectorWorker").Return(nil, nil, errors.New("collector error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		worker.AssertExpectations(t)
		worker.AssertNotCalled(t, "SetupParserWorkers", mock.Anything, mock.Anything)
	})

	t.Run("Expect: Error to be returned when SetupParserWorkers() fails", func(t *testing.T) {
		path, dbManager, worker, processor, setup, setupReturn, cfg := BuildTestSetup()
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForChunks", path).Return(chunks, nil).Once()
		worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
		worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
		worker.On("SetupJobDispatcherWorker", chunks, *setupReturn.ChunkMap).Return(Runner[func()]{Run: func() {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupErrorWorker").Return(Runner[func(*models.ChunkErrorMap)]{Run: func(*models.ChunkErrorMap) {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupCollectorWorker").Return(Runner[func(*PartialSet)]{Run: func(*PartialSet) {}}, &sync.WaitGroup{}, nil).Once()
		worker.On("SetupParserWorkers", cfg.NumParserWorkers, testTitle).Return(nil, nil, errors.New("parser error")).Once()

		service := NewIngestionService(dbManager, setup, worker, processor, cfg, nil)
		_, err := service.Execute(context.Background(), path, testTitle)

		assert.Error(t, err)
		worker.AssertExpectations(t)
		processor.AssertNotCalled(t, "UpdateChunkStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestIngestionService_Execute_EndToEnd(t *testing.T) {
	cfg := config.Config{NumParserWorkers: 3, ChannelSize: 2, TopCities: 10}

	newService := func() *IngestionService {
		worker := NewAsyncWorker(nil, staticConverter(), nil, AsyncWorkerConfig{ParserOptions: parser.Options{}})
		return NewIngestionService(nil, Setup{ChannelSize: cfg.ChannelSize}, worker, NewFileProcessor(nil, nil), cfg, nil)
	}

	t.Run("Expect: chunks of unequal size to merge by sums", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
			writeChunk(t, dir, name,
				"Программист,100,100,RUR,Москва,2020-01-01T10:00:00+0300",
				"Программист,200,200,RUR,Москва,2020-02-01T10:00:00+0300",
				"Программист,300,300,RUR,Москва,2020-03-01T10:00:00+0300",
			)
		}
		writeChunk(t, dir, "d.csv",
			"Аналитик,1000,1000,RUR,Москва,2020-04-01T10:00:00+0300",
			"Аналитик,1000,1000,RUR,Москва",
		)

		result, err := newService().Execute(context.Background(), dir, testTitle)

		require.NoError(t, err)
		require.Len(t, result.SalaryByYear, 1)
		assert.Equal(t, stats.Average{Value: 280, Valid: true}, result.SalaryByYear[0].Average)
		assert.Equal(t, stats.Average{Value: 200, Valid: true}, result.TitleSalaryByYear[0].Average)
		assert.Equal(t, 10, result.TotalCount)
		assert.Equal(t, 9, result.TitleCountByYear[0].Count)
		assert.Equal(t, 1, result.DroppedRows)
	})

	t.Run("Expect: an empty chunk to fail the batch", func(t *testing.T) {
		dir := t.TempDir()
		writeChunk(t, dir, "2020.csv", "Программист,100,100,RUR,Москва,2020-01-01T10:00:00+0300")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "2021.csv"), nil, 0o644))

		result, err := newService().Execute(context.Background(), dir, testTitle)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrBatchFailed)
		assert.ErrorIs(t, err, parser.ErrEmptyInput)
	})
}
