package stats

import (
	"strings"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/models"
)

// Partial is the mergeable state of one or more aggregated chunks. Salaries
// stay as (sum, count) pairs until Finalize.
type Partial struct {
	Title             string                 `json:"title"`
	CountByYear       map[string]int         `json:"count_by_year"`
	SalaryByYear      map[string]Accumulator `json:"salary_by_year"`
	TitleCountByYear  map[string]int         `json:"title_count_by_year"`
	TitleSalaryByYear map[string]Accumulator `json:"title_salary_by_year"`
	CountByCity       map[string]int         `json:"count_by_city"`
	SalaryByCity      map[string]Accumulator `json:"salary_by_city"`
	Dropped           int                    `json:"dropped"`
	Unconvertible     int                    `json:"unconvertible"`
}

func NewPartial(title string) *Partial {
	return &Partial{
		Title:             title,
		CountByYear:       make(map[string]int),
		SalaryByYear:      make(map[string]Accumulator),
		TitleCountByYear:  make(map[string]int),
		TitleSalaryByYear: make(map[string]Accumulator),
		CountByCity:       make(map[string]int),
		SalaryByCity:      make(map[string]Accumulator),
	}
}

// Accepted is the number of vacancies counted.
func (p *Partial) Accepted() int {
	total := 0
	for _, count := range p.CountByYear {
		total += count
	}
	return total
}

// Aggregator accumulates the vacancies of a single chunk. It is not safe
// for concurrent use; each worker owns one.
type Aggregator struct {
	title      string
	normalizer *Normalizer
	partial    *Partial
}

func NewAggregator(title string, normalizer *Normalizer) *Aggregator {
	return &Aggregator{
		title:      title,
		normalizer: normalizer,
		partial:    NewPartial(title),
	}
}

func (a *Aggregator) Add(v *models.Vacancy) {
	p := a.partial
	year := v.Year()

	p.CountByYear[year]++
	p.CountByCity[v.AreaName]++
	if _, ok := p.TitleCountByYear[year]; !ok {
		p.TitleCountByYear[year] = 0
	}

	salary, ok := a.normalizer.Normalize(v)
	if !ok && v.HasSalary() {
		p.Unconvertible++
	}
	if ok {
		addSample(p.SalaryByYear, year, salary)
		addSample(p.SalaryByCity, v.AreaName, salary)
	}

	if strings.Contains(v.Name, a.title) {
		p.TitleCountByYear[year]++
		if ok {
			addSample(p.TitleSalaryByYear, year, salary)
		}
	}
}

// AddDropped records rows the parser rejected.
func (a *Aggregator) AddDropped(n int) {
	a.partial.Dropped += n
}

// Partial returns the accumulated state. The aggregator must not be used
// afterwards.
func (a *Aggregator) Partial() *Partial {
	return a.partial
}

func addSample(buckets map[string]Accumulator, key string, value float64) {
	acc := buckets[key]
	acc.Add(value)
	buckets[key] = acc
}
