package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/mattn/go-runewidth"
)

// noData is printed for an average without samples.
const noData = "-"

// WriteText prints the result as plain text tables: one row per year, then
// the city views.
func WriteText(w io.Writer, result *stats.Result) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Vacancy statistics for %q\n", result.Title)
	fmt.Fprintf(&sb, "Accepted: %d, dropped rows: %d, unconvertible salaries: %d\n\n",
		result.TotalCount, result.DroppedRows, result.Unconvertible)

	years := [][]string{{"Year", "Avg salary", "Vacancies", "Avg salary (title)", "Vacancies (title)"}}
	for i, yc := range result.CountByYear {
		row := []string{yc.Year, noData, strconv.Itoa(yc.Count), noData, "0"}
		if i < len(result.SalaryByYear) {
			row[1] = formatAverage(result.SalaryByYear[i].Average)
		}
		if i < len(result.TitleSalaryByYear) {
			row[3] = formatAverage(result.TitleSalaryByYear[i].Average)
		}
		if i < len(result.TitleCountByYear) {
			row[4] = strconv.Itoa(result.TitleCountByYear[i].Count)
		}
		years = append(years, row)
	}
	writeTable(&sb, "By year", years, 1, 2, 3, 4)

	salaries := [][]string{{"City", "Avg salary"}}
	for _, cs := range result.SalaryByCity {
		salaries = append(salaries, []string{cs.City, formatAverage(cs.Average)})
	}
	writeTable(&sb, "Salary by city", salaries, 1)

	fractions := [][]string{{"City", "Share"}}
	for _, cf := range result.FractionByCity {
		fractions = append(fractions, []string{cf.City, strconv.FormatFloat(cf.Fraction, 'f', 4, 64)})
	}
	writeTable(&sb, "Share of vacancies by city", fractions, 1)

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatAverage(a stats.Average) string {
	if !a.Valid {
		return noData
	}
	return strconv.FormatInt(a.Value, 10)
}

// writeTable pads every column to its display width. Columns listed in
// rightAligned are padded on the left.
func writeTable(sb *strings.Builder, caption string, rows [][]string, rightAligned ...int) {
	sb.WriteString(caption)
	sb.WriteString("\n")
	if len(rows) == 1 {
		sb.WriteString("  (no data)\n\n")
		return
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	right := make(map[int]bool, len(rightAligned))
	for _, i := range rightAligned {
		right[i] = true
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if right[i] {
				cells[i] = runewidth.FillLeft(cell, widths[i])
			} else {
				cells[i] = runewidth.FillRight(cell, widths[i])
			}
		}
		sb.WriteString("  ")
		sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		sb.WriteString("\n")

		if r == 0 {
			dashes := make([]string, len(widths))
			for i, w := range widths {
				dashes[i] = strings.Repeat("-", w)
			}
			sb.WriteString("  ")
			sb.WriteString(strings.Join(dashes, "  "))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}
