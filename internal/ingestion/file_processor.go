package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/parser"
	"github.com/ThiagoRGoveia/vacancy-stats/pkg/checksum"
)

// Processor defines the interface for chunk discovery and bookkeeping.
type Processor interface {
	ScanForChunks(rootPath string) ([]models.ChunkInfo, error)
	UpdateChunkStatus(chunkErrorsMap *models.ChunkErrorMap, chunkMap *models.ChunkMap, partials *PartialSet) error
}

// FileProcessor finds chunk files and records the outcome of each one.
type FileProcessor struct {
	dbManager database.DBManager
	log       *logger.Logger
}

// NewFileProcessor creates a FileProcessor. dbManager may be nil.
func NewFileProcessor(dbManager database.DBManager, log *logger.Logger) *FileProcessor {
	if log == nil {
		log = logger.Discard()
	}
	return &FileProcessor{
		dbManager: dbManager,
		log:       log,
	}
}

// ScanForChunks lists the .csv and .xlsx files under rootPath in lexical
// order, numbering them from 1 and computing their checksums. A file path is
// a batch of one chunk.
func (fp *FileProcessor) ScanForChunks(rootPath string) ([]models.ChunkInfo, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", rootPath, err)
	}

	var paths []string
	if !info.IsDir() {
		if !parser.IsChunkFile(rootPath) {
			return nil, fmt.Errorf("%s is not a .csv or .xlsx file", rootPath)
		}
		paths = append(paths, rootPath)
	} else {
		fp.log.Info("scanning for chunks", "path", rootPath)
		err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && parser.IsChunkFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
		}
	}

	chunks := make([]models.ChunkInfo, 0, len(paths))
	for i, path := range paths {
		sum, err := checksum.ChunkChecksum(path)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, models.ChunkInfo{ID: i + 1, Path: path, Checksum: sum})
	}

	fp.log.Info("found chunks to process", "count", len(chunks))
	return chunks, nil
}

// UpdateChunkStatus stores the outcome of every registered chunk. Failures
// are logged and do not stop the others.
func (fp *FileProcessor) UpdateChunkStatus(chunkErrorsMap *models.ChunkErrorMap, chunkMap *models.ChunkMap, partials *PartialSet) error {
	if fp.dbManager == nil {
		return nil
	}

	for chunkID := range *chunkMap {
		appErrors := chunkErrorsMap.Errors[chunkID]
		status := database.CHUNK_STATUS_DONE
		dropped := 0

		if cp, ok := partials.Parts[chunkID]; ok {
			dropped = cp.Partial.Dropped
			if cp.Cached {
				status = database.CHUNK_STATUS_CACHED
			}
		}
		if len(appErrors) > 0 {
			status = database.CHUNK_STATUS_FAILED
		}

		if err := fp.dbManager.UpdateChunkStatus(chunkID, status, dropped, appErrors); err != nil {
			fp.log.Warn("failed to update chunk status", "chunk", chunkID, "error", err)
		}
	}
	return nil
}
