package stats

import (
	"errors"
	"fmt"
)

var ErrTitleMismatch = errors.New("partials were aggregated for different titles")

// Merge combines partials into a new one. Inputs are not modified and the
// result does not depend on their order.
func Merge(parts ...*Partial) (*Partial, error) {
	var merged *Partial
	for _, part := range parts {
		if part == nil {
			continue
		}
		if merged == nil {
			merged = NewPartial(part.Title)
		}
		if part.Title != merged.Title {
			return nil, fmt.Errorf("%w: %q and %q", ErrTitleMismatch, merged.Title, part.Title)
		}

		mergeCounts(merged.CountByYear, part.CountByYear)
		mergeCounts(merged.TitleCountByYear, part.TitleCountByYear)
		mergeCounts(merged.CountByCity, part.CountByCity)
		mergeAccumulators(merged.SalaryByYear, part.SalaryByYear)
		mergeAccumulators(merged.TitleSalaryByYear, part.TitleSalaryByYear)
		mergeAccumulators(merged.SalaryByCity, part.SalaryByCity)
		merged.Dropped += part.Dropped
		merged.Unconvertible += part.Unconvertible
	}

	if merged == nil {
		return NewPartial(""), nil
	}
	return merged, nil
}

func mergeCounts(dst, src map[string]int) {
	for key, count := range src {
		dst[key] += count
	}
}

func mergeAccumulators(dst, src map[string]Accumulator) {
	for key, acc := range src {
		dst[key] = dst[key].Merge(acc)
	}
}
