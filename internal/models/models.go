package models

import (
	"fmt"
	"sync"
)

// Vacancy is one parsed and cleaned row of a vacancies export.
type Vacancy struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	KeySkills      []string `json:"key_skills,omitempty"`
	ExperienceID   string   `json:"experience_id,omitempty"`
	Premium        string   `json:"premium,omitempty"`
	EmployerName   string   `json:"employer_name,omitempty"`
	SalaryFrom     *float64 `json:"salary_from,omitempty"`
	SalaryTo       *float64 `json:"salary_to,omitempty"`
	SalaryCurrency string   `json:"salary_currency,omitempty"`
	AreaName       string   `json:"area_name"`
	PublishedAt    string   `json:"published_at"`
}

// Year is the grouping key: the first four characters of PublishedAt.
// The value is not validated as a calendar year.
func (v *Vacancy) Year() string {
	return prefix(v.PublishedAt, 4)
}

// Period is the year-month used for exchange rate lookups, e.g. "2022-07".
func (v *Vacancy) Period() string {
	return prefix(v.PublishedAt, 7)
}

// HasSalary reports whether both bounds and a currency are present.
func (v *Vacancy) HasSalary() bool {
	return v.SalaryFrom != nil && v.SalaryTo != nil && v.SalaryCurrency != ""
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// AppError is a failure attached to one chunk of the batch.
type AppError struct {
	ChunkID int
	Path    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ChunkID %d (%s): %s - %v", e.ChunkID, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("ChunkID %d (%s): %s", e.ChunkID, e.Path, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ChunkInfo describes one chunk file found while scanning the input path.
type ChunkInfo struct {
	ID       int
	Path     string
	Checksum string
}

type ChunkJob struct {
	Chunk ChunkInfo
}

// ChunkErrorMap collects fatal chunk errors keyed by chunk ID.
type ChunkErrorMap struct {
	Errors map[int][]AppError
	Mu     sync.Mutex
}

func (m *ChunkErrorMap) Len() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	total := 0
	for _, errs := range m.Errors {
		total += len(errs)
	}
	return total
}

type ChunkMap = map[int]ChunkInfo
