package dataprocessing

import (
	"regexp"
	"strconv"
	"time"
)

// dateTokenPattern matches header cells like "19-Jan" or "2-Dec".
var dateTokenPattern = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})$`)

// SeasonPolicy resolves the year for a day-month date token. Seller exports
// carry no year, so the mapping is tied to the catalog's launch window and
// supplied as configuration rather than hard-coded.
type SeasonPolicy struct {
	// YearByMonth overrides the year for specific months.
	YearByMonth map[time.Month]int
	// DefaultYear applies to every month without an override.
	DefaultYear int
}

// DefaultSeasonPolicy maps December to 2025 and every other month to 2026.
func DefaultSeasonPolicy() SeasonPolicy {
	return SeasonPolicy{
		YearByMonth: map[time.Month]int{time.December: 2025},
		DefaultYear: 2026,
	}
}

// Year returns the calendar year this policy assigns to month.
func (p SeasonPolicy) Year(month time.Month) int {
	if y, ok := p.YearByMonth[month]; ok {
		return y
	}
	return p.DefaultYear
}

// ParseDayMonth parses a "D-Mon" token into a calendar date under this
// policy. The second return is false when the token does not match the
// pattern or names an unknown month.
func (p SeasonPolicy) ParseDayMonth(token string) (time.Time, bool) {
	m := dateTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	parsed, err := time.Parse("Jan", m[2])
	if err != nil {
		return time.Time{}, false
	}
	month := parsed.Month()

	return time.Date(p.Year(month), month, day, 0, 0, 0, 0, time.UTC), true
}
