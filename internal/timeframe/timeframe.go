package timeframe

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Window is the [Start, End) range of acquisitions a timeframe covers.
type Window struct {
	Name  string
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("%s [%s, %s)", w.Name, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

type resolver func(now time.Time) (time.Time, time.Time)

var resolvers = map[string]resolver{
	"two_weeks": func(now time.Time) (time.Time, time.Time) {
		return now.AddDate(0, 0, -14), now
	},
	"one_year": func(now time.Time) (time.Time, time.Time) {
		return withYearMonth(now, now.Year()-1, now.Month()), now
	},
	"nov_2016": func(now time.Time) (time.Time, time.Time) {
		return withYearMonth(now, 2016, time.November), withYearMonth(now, now.Year(), time.November)
	},
	"july_2016": func(now time.Time) (time.Time, time.Time) {
		return withYearMonth(now, 2016, time.July), withYearMonth(now, now.Year(), time.July)
	},
}

// Names lists the known timeframes in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(resolvers))
	for name := range resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve computes the window of a named timeframe relative to now (converted to UTC).
func Resolve(name string, now time.Time) (Window, error) {
	r, ok := resolvers[name]
	if !ok {
		return Window{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownTimeframe, name, Names())
	}
	now = now.UTC()
	start, end := r(now)
	return Window{Name: name, Start: start, End: end}, nil
}

// withYearMonth keeps the day and clock of t but moves it to year/month. The day is
// clamped to the length of the target month, so Mar 31 moved to November is Nov 30.
func withYearMonth(t time.Time, year int, month time.Month) time.Time {
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
