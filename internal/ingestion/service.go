package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/google/uuid"
)

var (
	ErrBatchFailed = errors.New("batch failed")
	ErrNoChunks    = errors.New("no chunk files found")
)

type IngestionService struct {
	dbManager     database.DBManager
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	config        config.Config
	log           *logger.Logger
	newID         func() uuid.UUID
	now           func() time.Time
}

// NewIngestionService wires a batch runner. dbManager may be nil, in which
// case results are only returned.
func NewIngestionService(dbManager database.DBManager, setupService ISetup, worker Worker, processor Processor, cfg config.Config, log *logger.Logger) *IngestionService {
	if log == nil {
		log = logger.Discard()
	}
	return &IngestionService{
		dbManager:     dbManager,
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		config:        cfg,
		log:           log,
		newID:         uuid.New,
		now:           time.Now,
	}
}

// Execute aggregates every chunk under path for the selected title. Any
// chunk failure fails the whole batch and nothing is merged or stored.
func (h *IngestionService) Execute(ctx context.Context, path string, title string) (*stats.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 0: Setup the channels, wait groups and shared maps.
	environmentConfig, err := h.setupService.build()
	if err != nil {
		return nil, err
	}
	channels, waitGroups, chunkMap, chunkErrorsMap, partials := environmentConfig.GetValues()

	// Step 1: Find the chunks and their checksums.
	chunks, err := h.fileProcessor.ScanForChunks(path)
	if err != nil {
		h.log.Error("failed to scan chunks", "error", err)
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunks, path)
	}

	// Step 2: Attach channels and wait groups. Every runner below depends on it.
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 3: Register chunks and dispatch jobs. Shares MainWg with the error worker.
	dispatcherRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(chunks, *chunkMap)
	if err != nil {
		return nil, err
	}
	dispatcherRunner.Run()

	// Step 4: Start the error worker.
	errorRunner, mainWaitGroup, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return nil, err
	}
	errorRunner.Run(chunkErrorsMap)

	// Step 5: Start the collector before any partial can be produced.
	collectorRunner, collectorWaitGroup, err := h.asyncWorker.SetupCollectorWorker()
	if err != nil {
		return nil, err
	}
	collectorRunner.Run(partials)

	// Step 6: Start the parser workers, one aggregator per chunk.
	parserRunner, parserWaitGroup, err := h.asyncWorker.SetupParserWorkers(h.config.NumParserWorkers, title)
	if err != nil {
		return nil, err
	}
	parserRunner.Run()

	// Step 7: Barrier. Parsers first, then the channels they write to.
	h.log.Debug("waiting for parser workers to finish")
	parserWaitGroup.Wait()
	close(channels.Partials)
	close(channels.Errors)

	h.log.Debug("waiting for collector and error workers to finish")
	collectorWaitGroup.Wait()
	mainWaitGroup.Wait()

	// Step 8: Record the outcome of each chunk.
	if err := h.fileProcessor.UpdateChunkStatus(chunkErrorsMap, chunkMap, partials); err != nil {
		h.log.Warn("failed to update chunk statuses", "error", err)
	}

	// Step 9: Fail the batch on any chunk error.
	if chunkErrorsMap.Len() > 0 {
		return nil, batchError(chunkErrorsMap)
	}

	// Step 10: Merge in chunk order and finalize.
	merged, err := stats.Merge(orderedPartials(partials)...)
	if err != nil {
		return nil, err
	}
	merged.Title = title
	result := stats.Finalize(merged, stats.Options{TopCities: h.config.TopCities})
	h.log.Info("batch finished",
		"chunks", len(chunks),
		"accepted", result.TotalCount,
		"dropped", result.DroppedRows,
		"unconvertible", result.Unconvertible,
	)

	// Step 11: Persist the run.
	if h.dbManager != nil {
		run := &database.StatisticsRun{
			ID:         h.newID(),
			Title:      title,
			SourcePath: path,
			CreatedAt:  h.now().UTC(),
			Result:     result,
		}
		if err := h.dbManager.SaveStatisticsRun(run); err != nil {
			return result, fmt.Errorf("failed to save statistics run: %w", err)
		}
		h.log.Info("statistics run saved", "id", run.ID)
	}

	return result, nil
}

func orderedPartials(partials *PartialSet) []*stats.Partial {
	ids := make([]int, 0, len(partials.Parts))
	for id := range partials.Parts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]*stats.Partial, 0, len(ids))
	for _, id := range ids {
		out = append(out, partials.Parts[id].Partial)
	}
	return out
}

func batchError(chunkErrorsMap *models.ChunkErrorMap) error {
	ids := make([]int, 0, len(chunkErrorsMap.Errors))
	for id := range chunkErrorsMap.Errors {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	for _, id := range ids {
		for i := range chunkErrorsMap.Errors[id] {
			errs = append(errs, &chunkErrorsMap.Errors[id][i])
		}
	}
	return fmt.Errorf("%w: %d chunk(s) failed: %w", ErrBatchFailed, len(ids), errors.Join(errs...))
}
