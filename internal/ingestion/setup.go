package ingestion

import (
	"sync"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
)

const defaultChannelSize = 100

// ChunkPartial is the output of one parser worker job.
type ChunkPartial struct {
	ChunkID int
	Partial *stats.Partial
	Cached  bool
}

// PartialSet collects partials by chunk ID. Completion order is arbitrary.
type PartialSet struct {
	Parts map[int]ChunkPartial
	Mu    sync.Mutex
}

func (s *PartialSet) Add(cp ChunkPartial) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Parts[cp.ChunkID] = cp
}

type ExtractionChannels struct {
	Jobs     chan models.ChunkJob
	Partials chan ChunkPartial
	Errors   chan models.AppError
}

type ExtractionWaitGroups struct {
	ParserWg    *sync.WaitGroup
	CollectorWg *sync.WaitGroup
	MainWg      *sync.WaitGroup
}

type SetupReturn struct {
	Channels       *ExtractionChannels
	WaitGroups     *ExtractionWaitGroups
	ChunkMap       *models.ChunkMap
	ChunkErrorsMap *models.ChunkErrorMap
	Partials       *PartialSet
}

func (s SetupReturn) GetValues() (*ExtractionChannels, *ExtractionWaitGroups, *models.ChunkMap, *models.ChunkErrorMap, *PartialSet) {
	return s.Channels, s.WaitGroups, s.ChunkMap, s.ChunkErrorsMap, s.Partials
}

type ISetup interface {
	build() (SetupReturn, error)
}

type Setup struct {
	ChannelSize int
}

// build instantiates the channels and shared maps of one batch. Kept behind
// ISetup so tests can inject their own.
func (h Setup) build() (SetupReturn, error) {
	size := h.ChannelSize
	if size <= 0 {
		size = defaultChannelSize
	}

	channels := ExtractionChannels{
		Jobs:     make(chan models.ChunkJob, size),
		Partials: make(chan ChunkPartial, size),
		Errors:   make(chan models.AppError, size),
	}

	var parserWg, collectorWg, mainWg sync.WaitGroup
	chunkMap := make(models.ChunkMap)
	return SetupReturn{
		Channels:       &channels,
		WaitGroups:     &ExtractionWaitGroups{ParserWg: &parserWg, CollectorWg: &collectorWg, MainWg: &mainWg},
		ChunkMap:       &chunkMap,
		ChunkErrorsMap: &models.ChunkErrorMap{Errors: make(map[int][]models.AppError)},
		Partials:       &PartialSet{Parts: make(map[int]ChunkPartial)},
	}, nil
}
