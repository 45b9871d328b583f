package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// RowReader is a forward-only source of a header followed by data rows.
// Next returns io.EOF after the last row.
type RowReader interface {
	Header() ([]string, error)
	Next() ([]string, error)
	Close() error
}

// CSVReader reads rows with encoding/csv. Rows with a field count that
// differs from the header are returned as they are and rejected later by the
// RecordParser.
type CSVReader struct {
	reader *csv.Reader
	closer io.Closer
	header []string
	read   bool
}

func NewCSVReader(r io.Reader, delimiter rune) *CSVReader {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	return &CSVReader{reader: reader, closer: closer}
}

func (r *CSVReader) Header() ([]string, error) {
	if r.read {
		return r.header, nil
	}
	r.read = true

	header, err := r.reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	r.header = header
	return header, nil
}

func (r *CSVReader) Next() ([]string, error) {
	if !r.read {
		if _, err := r.Header(); err != nil {
			return nil, err
		}
	}
	row, err := r.reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, err
	}
	return row, nil
}

func (r *CSVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// XLSXReader reads the first sheet of a workbook.
type XLSXReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
	read   bool
}

func NewXLSXReader(r io.Reader) (*XLSXReader, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		_ = file.Close()
		return nil, ErrEmptyInput
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	return &XLSXReader{file: file, rows: rows}, nil
}

func (r *XLSXReader) Header() ([]string, error) {
	if r.read {
		return r.header, nil
	}
	r.read = true

	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, ErrEmptyInput
	}
	header, err := r.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) == 0 {
		return nil, ErrEmptyInput
	}
	r.header = header
	return header, nil
}

func (r *XLSXReader) Next() ([]string, error) {
	if !r.read {
		if _, err := r.Header(); err != nil {
			return nil, err
		}
	}
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	row, err := r.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// excelize drops trailing blank cells; pad so blanks are seen as empty fields.
	for len(row) < len(r.header) {
		row = append(row, "")
	}
	return row, nil
}

func (r *XLSXReader) Close() error {
	if err := r.rows.Close(); err != nil {
		_ = r.file.Close()
		return err
	}
	return r.file.Close()
}

// OpenChunk opens a chunk file and picks a reader from its extension.
func OpenChunk(path string, delimiter rune) (RowReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		reader, err := NewXLSXReader(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return reader, nil
	}

	return NewCSVReader(file, delimiter), nil
}

// IsChunkFile reports whether the path has an extension OpenChunk understands.
func IsChunkFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadVacancies streams every accepted vacancy to yield and returns the
// number of dropped rows. Only a missing header or an I/O failure is
// returned as an error.
func ReadVacancies(r RowReader, opts Options, yield func(*models.Vacancy)) (int, error) {
	header, err := r.Header()
	if err != nil {
		return 0, err
	}

	recordParser, err := NewRecordParser(header, opts)
	if err != nil {
		return 0, err
	}

	dropped := 0
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				dropped++
				continue
			}
			return dropped, fmt.Errorf("failed to read row: %w", err)
		}

		vacancy, err := recordParser.Parse(row)
		if err != nil {
			dropped++
			continue
		}
		yield(vacancy)
	}

	return dropped, nil
}
