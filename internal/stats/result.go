package stats

import (
	"math"
	"sort"
	"strconv"
)

const DefaultTopCities = 10

type Options struct {
	// TopCities limits SalaryByCity and FractionByCity. Zero or less keeps
	// every city.
	TopCities int
}

type YearSalary struct {
	Year    string  `json:"year"`
	Average Average `json:"average"`
}

type YearCount struct {
	Year  string `json:"year"`
	Count int    `json:"count"`
}

type CitySalary struct {
	City    string  `json:"city"`
	Average Average `json:"average"`
}

type CityFraction struct {
	City     string  `json:"city"`
	Fraction float64 `json:"fraction"`
}

type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// Result is the finished report. Year views are in ascending year order and
// city views in descending order of their value.
type Result struct {
	Title             string         `json:"title"`
	SalaryByYear      []YearSalary   `json:"salary_by_year"`
	CountByYear       []YearCount    `json:"count_by_year"`
	TitleSalaryByYear []YearSalary   `json:"title_salary_by_year"`
	TitleCountByYear  []YearCount    `json:"title_count_by_year"`
	SalaryByCity      []CitySalary   `json:"salary_by_city"`
	FractionByCity    []CityFraction `json:"fraction_by_city"`
	CountByCity       []CityCount    `json:"count_by_city"`
	TotalCount        int            `json:"total_count"`
	DroppedRows       int            `json:"dropped_rows"`
	Unconvertible     int            `json:"unconvertible"`
}

// Finalize turns merged state into the report. Cities below one percent of
// the total (floored) are left out of the salary and fraction views.
func Finalize(p *Partial, opts Options) *Result {
	result := &Result{
		Title:             p.Title,
		SalaryByYear:      []YearSalary{},
		CountByYear:       []YearCount{},
		TitleSalaryByYear: []YearSalary{},
		TitleCountByYear:  []YearCount{},
		SalaryByCity:      []CitySalary{},
		FractionByCity:    []CityFraction{},
		CountByCity:       []CityCount{},
		DroppedRows:       p.Dropped,
		Unconvertible:     p.Unconvertible,
	}

	for _, year := range SortYears(keys(p.CountByYear)) {
		result.CountByYear = append(result.CountByYear, YearCount{Year: year, Count: p.CountByYear[year]})
		result.SalaryByYear = append(result.SalaryByYear, YearSalary{Year: year, Average: p.SalaryByYear[year].Average()})
		result.TitleCountByYear = append(result.TitleCountByYear, YearCount{Year: year, Count: p.TitleCountByYear[year]})
		result.TitleSalaryByYear = append(result.TitleSalaryByYear, YearSalary{Year: year, Average: p.TitleSalaryByYear[year].Average()})
	}

	total := 0
	for _, count := range p.CountByCity {
		total += count
	}
	result.TotalCount = total
	if total == 0 {
		return result
	}

	onePercent := total / 100
	cities := sortCities(p.CountByCity)
	for _, city := range cities {
		count := p.CountByCity[city]
		result.CountByCity = append(result.CountByCity, CityCount{City: city, Count: count})
		if count < onePercent {
			continue
		}
		result.FractionByCity = append(result.FractionByCity, CityFraction{
			City:     city,
			Fraction: math.Round(float64(count)/float64(total)*10000) / 10000,
		})
		if acc := p.SalaryByCity[city]; acc.Count > 0 {
			result.SalaryByCity = append(result.SalaryByCity, CitySalary{City: city, Average: acc.Average()})
		}
	}

	sort.SliceStable(result.SalaryByCity, func(i, j int) bool {
		a, b := result.SalaryByCity[i], result.SalaryByCity[j]
		if a.Average.Value != b.Average.Value {
			return a.Average.Value > b.Average.Value
		}
		return a.City < b.City
	})

	if opts.TopCities > 0 {
		if len(result.SalaryByCity) > opts.TopCities {
			result.SalaryByCity = result.SalaryByCity[:opts.TopCities]
		}
		if len(result.FractionByCity) > opts.TopCities {
			result.FractionByCity = result.FractionByCity[:opts.TopCities]
		}
	}

	return result
}

// SortYears orders numeric years ascending, followed by any non-numeric
// keys in lexical order.
func SortYears(years []string) []string {
	sort.Slice(years, func(i, j int) bool {
		a, errA := strconv.Atoi(years[i])
		b, errB := strconv.Atoi(years[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return years[i] < years[j]
		}
	})
	return years
}

// sortCities orders by count descending, then name.
func sortCities(counts map[string]int) []string {
	cities := keys(counts)
	sort.Slice(cities, func(i, j int) bool {
		if counts[cities[i]] != counts[cities[j]] {
			return counts[cities[i]] > counts[cities[j]]
		}
		return cities[i] < cities[j]
	})
	return cities
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}
