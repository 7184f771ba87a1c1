package analysis

import (
	"time"

	"sellerpulse/pkg/contracts/domain"
)

// WeekBucket is one aggregated chunk of up to seven consecutive daily
// entries. Week numbering starts at 1; the source dates are kept for
// tooltip display.
type WeekBucket struct {
	Week  int         `json:"week"`
	Value float64     `json:"value"`
	Dates []time.Time `json:"dates"`
}

// AggregateByWeek groups a daily series into chunks of seven consecutive
// entries (not calendar-week aligned), summing or averaging per chunk. A
// trailing partial chunk is kept.
func AggregateByWeek(values []domain.DatedValue, useAverage bool) []WeekBucket {
	var weeks []WeekBucket

	for i := 0; i < len(values); i += 7 {
		end := i + 7
		if end > len(values) {
			end = len(values)
		}
		chunk := values[i:end]

		total := 0.0
		dates := make([]time.Time, len(chunk))
		for j, v := range chunk {
			total += v.Value
			dates[j] = v.Date
		}

		value := total
		if useAverage {
			value = total / float64(len(chunk))
		}

		weeks = append(weeks, WeekBucket{
			Week:  i/7 + 1,
			Value: value,
			Dates: dates,
		})
	}

	return weeks
}
