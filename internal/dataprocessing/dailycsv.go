package dataprocessing

import (
	"fmt"
	"strings"
)

// DailyUpdate is one day's worth of column updates for a product table.
// Only the columns present in the source appear in Columns, so a sparse
// import never clobbers metrics it did not carry.
type DailyUpdate struct {
	Date    string
	Columns map[string]float64
}

// ParseDailyCSV parses a column-header CSV (the manual-upload template
// format): the first line holds metric labels including "Date", each
// following line one daily record. Labels are matched case-insensitively
// against the storage vocabulary; unknown labels and rows without a date are
// dropped silently.
func ParseDailyCSV(csvText string) ([]DailyUpdate, error) {
	lines := splitLines(csvText)
	if len(lines) < 2 {
		return nil, fmt.Errorf("daily CSV needs a header row and at least one data row")
	}

	headers := ParseLine(lines[0])

	var updates []DailyUpdate
	for _, line := range lines[1:] {
		cells := ParseLine(line)
		update := DailyUpdate{Columns: make(map[string]float64)}

		for i, header := range headers {
			if i >= len(cells) || cells[i] == "" {
				continue
			}
			if isDateHeader(header) {
				update.Date = cells[i]
				continue
			}
			col, ok := ColumnForMetric(header)
			if !ok {
				continue
			}
			if v, ok := parseCell(cells[i]); ok {
				update.Columns[col] = v
			}
		}

		if update.Date != "" {
			updates = append(updates, update)
		}
	}

	return updates, nil
}

func isDateHeader(header string) bool {
	return strings.EqualFold(strings.TrimSpace(header), "date")
}

// UpdatesFromResult reshapes an extraction result into per-date column
// updates, the shape the persistence collaborator upserts keyed on date.
// Metric names outside the storage vocabulary are dropped silently.
func UpdatesFromResult(result ExtractResult) []DailyUpdate {
	updates := make([]DailyUpdate, 0, len(result.Dates))

	for i, date := range result.Dates {
		update := DailyUpdate{
			Date:    date.Format("2006-01-02"),
			Columns: make(map[string]float64),
		}
		for _, metric := range result.Dataset.Metrics {
			if i >= len(metric.Values) {
				continue
			}
			col, ok := ColumnForMetric(metric.Name)
			if !ok {
				continue
			}
			update.Columns[col] = metric.Values[i].Value
		}
		updates = append(updates, update)
	}

	return updates
}
