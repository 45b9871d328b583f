package ingestion

import (
	"strconv"
	"sync"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/parser"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/ThiagoRGoveia/vacancy-stats/pkg/checksum"
)

const (
	// maxErrorsPerChunk bounds what the error worker keeps for a single chunk.
	maxErrorsPerChunk = 100
	// UnregisteredChunkID marks errors of chunks that never got a record.
	UnregisteredChunkID = -1
)

type Runner[T any] struct {
	Run T
}

// RateConverter is the currency converter seen by the workers.
type RateConverter interface {
	stats.MultiplierSource
	Fingerprint() string
}

type AsyncWorkerConfig struct {
	CSVDelimiter  rune
	ParserOptions parser.Options
}

// Worker defines the goroutines of one batch.
type Worker interface {
	WithChannels(channels *ExtractionChannels) Worker
	WithWaitGroups(waitGroups *ExtractionWaitGroups) Worker
	SetupJobDispatcherWorker(chunks []models.ChunkInfo, chunkMap models.ChunkMap) (Runner[func()], *sync.WaitGroup, error)
	SetupErrorWorker() (Runner[func(*models.ChunkErrorMap)], *sync.WaitGroup, error)
	SetupCollectorWorker() (Runner[func(*PartialSet)], *sync.WaitGroup, error)
	SetupParserWorkers(numberOfWorkers int, title string) (Runner[func()], *sync.WaitGroup, error)
}

type AsyncWorker struct {
	config     AsyncWorkerConfig
	dbManager  database.DBManager
	converter  RateConverter
	log        *logger.Logger
	channels   *ExtractionChannels
	waitGroups *ExtractionWaitGroups
}

// NewAsyncWorker builds the worker set. dbManager may be nil, in which case
// chunks are neither recorded nor cached.
func NewAsyncWorker(dbManager database.DBManager, converter RateConverter, log *logger.Logger, cfg AsyncWorkerConfig) *AsyncWorker {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.CSVDelimiter == 0 {
		cfg.CSVDelimiter = ','
	}
	return &AsyncWorker{
		dbManager: dbManager,
		converter: converter,
		log:       log,
		config:    cfg,
	}
}

func (w *AsyncWorker) WithChannels(channels *ExtractionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *ExtractionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

// CacheKey identifies a partial: the same bytes aggregated for the same title
// with the same rates and parser options give the same partial.
func (w *AsyncWorker) CacheKey(chunk models.ChunkInfo, title string) string {
	return checksum.Key(
		chunk.Checksum,
		title,
		w.converter.Fingerprint(),
		strconv.FormatBool(w.config.ParserOptions.AllowEmptySalary),
		string(w.config.CSVDelimiter),
	)
}

// AggregateChunk runs one independent aggregator over a chunk file.
func (w *AsyncWorker) AggregateChunk(chunk models.ChunkInfo, title string) (*stats.Partial, error) {
	reader, err := parser.OpenChunk(chunk.Path, w.config.CSVDelimiter)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	aggregator := stats.NewAggregator(title, stats.NewNormalizer(w.converter))
	dropped, err := parser.ReadVacancies(reader, w.config.ParserOptions, aggregator.Add)
	if err != nil {
		return nil, err
	}
	aggregator.AddDropped(dropped)

	return aggregator.Partial(), nil
}

func (w *AsyncWorker) ParserWorker(title string) {
	defer w.waitGroups.ParserWg.Done()
	for job := range w.channels.Jobs {
		chunk := job.Chunk
		log := w.log.With("chunk", chunk.ID, "path", chunk.Path)

		cacheKey := w.CacheKey(chunk, title)
		if w.dbManager != nil {
			cached, err := w.dbManager.GetChunkPartial(cacheKey)
			if err != nil {
				log.Warn("failed to read cached partial, aggregating", "error", err)
			} else if cached != nil {
				log.Info("using cached partial")
				w.channels.Partials <- ChunkPartial{ChunkID: chunk.ID, Partial: cached, Cached: true}
				continue
			}
		}

		log.Debug("parser worker started job")
		partial, err := w.AggregateChunk(chunk, title)
		if err != nil {
			w.channels.Errors <- models.AppError{ChunkID: chunk.ID, Path: chunk.Path, Message: "Failed to aggregate chunk", Err: err}
			continue
		}
		if partial.Dropped > 0 {
			log.Warn("dropped malformed rows", "count", partial.Dropped)
		}

		if w.dbManager != nil {
			if err := w.dbManager.SaveChunkPartial(cacheKey, chunk.Checksum, partial); err != nil {
				log.Warn("failed to cache partial", "error", err)
			}
		}

		w.channels.Partials <- ChunkPartial{ChunkID: chunk.ID, Partial: partial}
		log.Info("parser worker finished job", "accepted", partial.Accepted())
	}
}

func (w *AsyncWorker) SetupParserWorkers(numberOfWorkers int, title string) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.ParserWg.Add(1)
				go w.ParserWorker(title)
			}
		},
	}, w.waitGroups.ParserWg, nil
}

func (w *AsyncWorker) CollectorWorker(partials *PartialSet) {
	defer w.waitGroups.CollectorWg.Done()
	for cp := range w.channels.Partials {
		partials.Add(cp)
	}
}

func (w *AsyncWorker) SetupCollectorWorker() (Runner[func(*PartialSet)], *sync.WaitGroup, error) {
	return Runner[func(*PartialSet)]{
		Run: func(partials *PartialSet) {
			w.waitGroups.CollectorWg.Add(1)
			go w.CollectorWorker(partials)
		},
	}, w.waitGroups.CollectorWg, nil
}

func (w *AsyncWorker) ErrorWorker(chunkErrorsMap *models.ChunkErrorMap) {
	defer w.waitGroups.MainWg.Done()
	for appErr := range w.channels.Errors {
		w.log.Error("caught chunk error", "error", appErr.Error())
		chunkErrorsMap.Mu.Lock()
		if len(chunkErrorsMap.Errors[appErr.ChunkID]) < maxErrorsPerChunk {
			chunkErrorsMap.Errors[appErr.ChunkID] = append(chunkErrorsMap.Errors[appErr.ChunkID], appErr)
		} else {
			w.log.Warn("chunk has too many errors, dropping", "chunk", appErr.ChunkID)
		}
		chunkErrorsMap.Mu.Unlock()
	}
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.ChunkErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.ChunkErrorMap)]{
		Run: func(chunkErrorsMap *models.ChunkErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(chunkErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}

// PreprocessAndDispatchJobs registers each chunk and feeds the parser
// workers. A chunk that cannot be registered is reported, never skipped.
func (w *AsyncWorker) PreprocessAndDispatchJobs(chunks []models.ChunkInfo, chunkMap models.ChunkMap) {
	defer close(w.channels.Jobs)
	defer w.waitGroups.MainWg.Done()

	for _, chunk := range chunks {
		if w.dbManager != nil {
			chunkID, err := w.dbManager.InsertChunkRecord(chunk.Path, time.Now(), database.CHUNK_STATUS_PROCESSING, chunk.Checksum)
			if err != nil {
				w.channels.Errors <- models.AppError{ChunkID: UnregisteredChunkID, Path: chunk.Path, Message: "Failed to insert chunk record", Err: err}
				continue
			}
			chunk.ID = chunkID
		}

		chunkMap[chunk.ID] = chunk

		w.log.Debug("dispatching job", "chunk", chunk.ID, "path", chunk.Path)
		w.channels.Jobs <- models.ChunkJob{Chunk: chunk}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(chunks []models.ChunkInfo, chunkMap models.ChunkMap) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			w.waitGroups.MainWg.Add(1)
			go w.PreprocessAndDispatchJobs(chunks, chunkMap)
		},
	}, w.waitGroups.MainWg, nil
}
