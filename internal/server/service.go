package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RunReader is the read side of the statistics run store.
type RunReader interface {
	GetStatisticsRun(id uuid.UUID) (*database.StatisticsRun, error)
	GetLatestStatisticsRun(title string) (*database.StatisticsRun, error)
	ListStatisticsRuns(limit int) ([]database.StatisticsRunSummary, error)
}

type StatisticsService struct {
	runs RunReader
	log  *logger.Logger
}

func NewStatisticsService(runs RunReader, log *logger.Logger) *StatisticsService {
	if log == nil {
		log = logger.Discard()
	}
	return &StatisticsService{runs: runs, log: log}
}

// ListRuns returns the newest run summaries.
// GET /api/statistics?limit=N
func (h *StatisticsService) ListRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 100"})
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListStatisticsRuns(limit)
	if err != nil {
		h.log.Error("failed to list statistics runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list statistics runs"})
		return
	}
	if runs == nil {
		runs = []database.StatisticsRunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetLatestRun returns the newest run, optionally for one title.
// GET /api/statistics/latest?title=...
func (h *StatisticsService) GetLatestRun(c *gin.Context) {
	run, err := h.runs.GetLatestStatisticsRun(c.Query("title"))
	h.respondWithRun(c, run, err)
}

// GetRun returns one run with its full result.
// GET /api/statistics/:id
func (h *StatisticsService) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.runs.GetStatisticsRun(id)
	h.respondWithRun(c, run, err)
}

func (h *StatisticsService) respondWithRun(c *gin.Context, run *database.StatisticsRun, err error) {
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("failed to retrieve statistics run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve statistics run"})
		return
	}
	c.JSON(http.StatusOK, run)
}
