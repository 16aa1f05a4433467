package state

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the state file and by observations.
const DateLayout = "2006-01-02"

var (
	// ErrCorruptState is returned when the persisted state fails structural validation.
	ErrCorruptState = errors.New("corrupt state")
	// ErrInvalidObservation is returned when an observation carries a missing or unparseable date.
	ErrInvalidObservation = errors.New("invalid observation")
)

// Decision tells the caller whether a report has to be generated.
type Decision int

const (
	// SkipNoNewData means the observation brings nothing newer than the last report.
	SkipNoNewData Decision = iota
	// Proceed means the store was updated and a new report must be generated.
	Proceed
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case SkipNoNewData:
		return "skip_no_new_data"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// TimeframeRecord is what the last generated report of a timeframe was built from.
type TimeframeRecord struct {
	LatestImage          string  `json:"latest_image"`
	FirstImage           string  `json:"first_image"`
	VegetationAreaChange float64 `json:"vegetation_area_change"`
}

// Observation is a freshly computed result of the imagery analysis.
type Observation struct {
	LatestImageDate      string
	FirstImageDate       string
	VegetationAreaChange float64
}

// Record converts the observation into the record stored for its timeframe.
func (o Observation) Record() TimeframeRecord {
	return TimeframeRecord{
		LatestImage:          o.LatestImageDate,
		FirstImage:           o.FirstImageDate,
		VegetationAreaChange: o.VegetationAreaChange,
	}
}

// Store maps timeframe names to the record of their last report.
type Store map[string]TimeframeRecord

// Clone returns a copy of the store that can be modified independently.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Validate checks that every record holds parseable dates. A nil store is empty.
func (s Store) Validate() error {
	for name, rec := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty timeframe key", ErrCorruptState)
		}
		if _, err := ParseDate(rec.LatestImage); err != nil {
			return fmt.Errorf("%w: %s.latest_image: %v", ErrCorruptState, name, err)
		}
		if _, err := ParseDate(rec.FirstImage); err != nil {
			return fmt.Errorf("%w: %s.first_image: %v", ErrCorruptState, name, err)
		}
	}
	return nil
}

// ParseDate parses a calendar date. Only the date is compared, never the time of day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("missing date")
	}
	return time.Parse(DateLayout, value)
}

// EvaluateAndUpdate decides whether the observation is new information for the timeframe.
//
// The input store is never modified. On Proceed the returned store is a copy holding the
// observation as the timeframe's record; on SkipNoNewData the input store is returned as is.
// Persisting the returned store is the caller's job and has to happen before any report work.
func EvaluateAndUpdate(store Store, timeframe string, obs Observation) (Decision, Store, error) {
	if strings.TrimSpace(timeframe) == "" {
		return SkipNoNewData, store, fmt.Errorf("%w: empty timeframe", ErrInvalidObservation)
	}
	latest, err := ParseDate(obs.LatestImageDate)
	if err != nil {
		return SkipNoNewData, store, fmt.Errorf("%w: latest image date %q: %v", ErrInvalidObservation, obs.LatestImageDate, err)
	}
	if _, err := ParseDate(obs.FirstImageDate); err != nil {
		return SkipNoNewData, store, fmt.Errorf("%w: first image date %q: %v", ErrInvalidObservation, obs.FirstImageDate, err)
	}
	if math.IsNaN(obs.VegetationAreaChange) || math.IsInf(obs.VegetationAreaChange, 0) {
		return SkipNoNewData, store, fmt.Errorf("%w: vegetation area change is %v", ErrInvalidObservation, obs.VegetationAreaChange)
	}
	if err := store.Validate(); err != nil {
		return SkipNoNewData, store, err
	}

	current, ok := store[timeframe]
	if ok {
		recorded, _ := ParseDate(current.LatestImage)
		if !latest.After(recorded) {
			return SkipNoNewData, store, nil
		}
	}

	next := store.Clone()
	next[timeframe] = obs.Record()
	return Proceed, next, nil
}
