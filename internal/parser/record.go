package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
)

const (
	ColumnName           = "name"
	ColumnDescription    = "description"
	ColumnKeySkills      = "key_skills"
	ColumnExperienceID   = "experience_id"
	ColumnPremium        = "premium"
	ColumnEmployerName   = "employer_name"
	ColumnSalaryFrom     = "salary_from"
	ColumnSalaryTo       = "salary_to"
	ColumnSalaryCurrency = "salary_currency"
	ColumnAreaName       = "area_name"
	ColumnPublishedAt    = "published_at"
)

var requiredColumns = []string{ColumnName, ColumnAreaName, ColumnPublishedAt}

var salaryColumns = map[string]bool{
	ColumnSalaryFrom:     true,
	ColumnSalaryTo:       true,
	ColumnSalaryCurrency: true,
}

var (
	// ErrEmptyInput means the stream had no header row at all.
	ErrEmptyInput    = errors.New("input has no header row")
	ErrInvalidHeader = errors.New("invalid header")
	ErrMissingColumn = errors.New("required column missing from header")
	// ErrMalformed marks a row that is dropped. It never aborts a chunk.
	ErrMalformed = errors.New("malformed row")
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Clean strips markup tags, collapses whitespace runs and trims the result.
func Clean(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

type Options struct {
	// AllowEmptySalary accepts rows whose salary columns are empty. Such
	// vacancies are counted but carry no salary.
	AllowEmptySalary bool
}

// RecordParser turns raw rows into vacancies for a fixed header.
type RecordParser struct {
	header  []string
	columns map[string]int
	opts    Options
}

func NewRecordParser(header []string, opts Options) (*RecordParser, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: header is empty", ErrInvalidHeader)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidHeader, i+1)
		}
		if _, exists := columns[name]; exists {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, name)
		}
		columns[name] = i
	}

	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	return &RecordParser{header: header, columns: columns, opts: opts}, nil
}

// Parse validates a row against the header. Any returned error wraps ErrMalformed.
func (p *RecordParser) Parse(row []string) (*models.Vacancy, error) {
	if len(row) != len(p.header) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, len(p.header), len(row))
	}

	cleaned := make([]string, len(row))
	for i, field := range row {
		cleaned[i] = Clean(field)
		if cleaned[i] != "" {
			continue
		}
		if p.opts.AllowEmptySalary && salaryColumns[strings.TrimSpace(p.header[i])] {
			continue
		}
		return nil, fmt.Errorf("%w: empty field %q", ErrMalformed, p.header[i])
	}

	get := func(column string) string {
		if i, ok := p.columns[column]; ok {
			return cleaned[i]
		}
		return ""
	}

	vacancy := &models.Vacancy{
		Name:           get(ColumnName),
		Description:    get(ColumnDescription),
		ExperienceID:   get(ColumnExperienceID),
		Premium:        get(ColumnPremium),
		EmployerName:   get(ColumnEmployerName),
		SalaryFrom:     parseAmount(get(ColumnSalaryFrom)),
		SalaryTo:       parseAmount(get(ColumnSalaryTo)),
		SalaryCurrency: get(ColumnSalaryCurrency),
		AreaName:       get(ColumnAreaName),
		PublishedAt:    get(ColumnPublishedAt),
	}
	if i, ok := p.columns[ColumnKeySkills]; ok {
		vacancy.KeySkills = splitSkills(row[i])
	}

	return vacancy, nil
}

// parseAmount returns nil for empty or non-numeric values, so the vacancy
// keeps no salary instead of being rejected.
func parseAmount(s string) *float64 {
	if s == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &value
}

// key_skills holds one skill per line in the exports.
func splitSkills(raw string) []string {
	var skills []string
	for _, line := range strings.Split(raw, "\n") {
		if skill := Clean(line); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}
