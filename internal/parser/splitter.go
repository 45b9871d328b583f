package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ChunkSink receives the rows of one consecutive group of the same year.
// A year can be delivered more than once when the input is not sorted.
type ChunkSink interface {
	WriteChunk(year string, header []string, rows [][]string) error
}

type SplitStats struct {
	Groups  int
	Rows    int
	Skipped int
	Years   []string
}

// SplitByYear walks the input once, buffering rows while the year key stays
// the same and flushing the buffer whenever it changes. The last group is
// flushed after the loop.
func SplitByYear(r RowReader, sink ChunkSink) (SplitStats, error) {
	var stats SplitStats

	header, err := r.Header()
	if err != nil {
		return stats, err
	}

	keyColumn := -1
	for i, name := range header {
		if name == ColumnPublishedAt {
			keyColumn = i
			break
		}
	}
	if keyColumn == -1 {
		return stats, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnPublishedAt)
	}

	seen := make(map[string]bool)
	var (
		currentYear string
		buffer      [][]string
	)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := sink.WriteChunk(currentYear, header, buffer); err != nil {
			return fmt.Errorf("failed to write chunk for %s: %w", currentYear, err)
		}
		stats.Groups++
		stats.Rows += len(buffer)
		if !seen[currentYear] {
			seen[currentYear] = true
			stats.Years = append(stats.Years, currentYear)
		}
		buffer = nil
		return nil
	}

	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrMalformed) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read row: %w", err)
		}
		if len(row) != len(header) {
			stats.Skipped++
			continue
		}

		year := prefixOf(row[keyColumn], 4)
		if len(buffer) > 0 && year != currentYear {
			if err := flush(); err != nil {
				return stats, err
			}
		}
		currentYear = year
		buffer = append(buffer, row)
	}

	if err := flush(); err != nil {
		return stats, err
	}

	sort.Strings(stats.Years)
	return stats, nil
}

func prefixOf(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// DirSink writes each year to <dir>/<year>.csv. Later groups of a year that
// was already written in this run are appended without a second header.
type DirSink struct {
	dir     string
	written map[string]bool
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &DirSink{dir: dir, written: make(map[string]bool)}, nil
}

func (s *DirSink) Path(year string) string {
	return filepath.Join(s.dir, year+".csv")
}

func (s *DirSink) WriteChunk(year string, header []string, rows [][]string) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if s.written[year] {
		flags = os.O_WRONLY | os.O_APPEND
	}

	file, err := os.OpenFile(s.Path(year), flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if !s.written[year] {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}

	s.written[year] = true
	return file.Close()
}
