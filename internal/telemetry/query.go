// Package telemetry fetches and renders records from the remote telemetry tables.
package telemetry

import (
	"fmt"
	"strings"
)

// Dataset names a logical table.
type Dataset string

const (
	DatasetDaily  Dataset = "daily"
	DatasetHourly Dataset = "hourly"
)

// Mode selects how records are picked.
type Mode string

const (
	ModeLast   Mode = "last"
	ModeLatest Mode = "latest"
	ModeFilter Mode = "filter"
)

// Filterable fields.
const (
	FieldDate        = "date"
	FieldBPM         = "bpm_avg"
	FieldTemperature = "temperature"
)

// MaxLimit caps the record count of a latest-N request.
const MaxLimit = 1000

// Query describes one request. It is shared by interactive requests and stored timers.
type Query struct {
	Dataset     Dataset `json:"dataset"`
	Mode        Mode    `json:"mode"`
	Limit       int     `json:"limit,omitempty"`
	FilterField string  `json:"filter_field,omitempty"`
	FilterValue string  `json:"filter_value,omitempty"`
}

// Validate checks the mode-specific requirements.
func (q Query) Validate() error {
	if q.Dataset == "" {
		return fmt.Errorf("%w: dataset is required", ErrInvalidQuery)
	}
	switch q.Mode {
	case ModeLast:
	case ModeLatest:
		if q.Limit <= 0 || q.Limit > MaxLimit {
			return fmt.Errorf("%w: latest needs a limit in 1..%d", ErrInvalidQuery, MaxLimit)
		}
	case ModeFilter:
		if q.FilterField == "" {
			return fmt.Errorf("%w: filter field is required", ErrInvalidQuery)
		}
		if _, err := NormalizeFilterValue(q.FilterField, q.FilterValue); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	return nil
}

// FieldKind classifies how a filter value is interpreted.
type FieldKind int

const (
	KindExact FieldKind = iota
	KindRange
	KindDate
)

// KindOf returns the kind of the given filter field.
func KindOf(field string) FieldKind {
	switch field {
	case FieldBPM, FieldTemperature:
		return KindRange
	case FieldDate:
		return KindDate
	default:
		return KindExact
	}
}

// FieldLabel is the human name of a filter field.
func FieldLabel(field string) string {
	switch field {
	case FieldBPM:
		return "BPM avg"
	case FieldTemperature:
		return "temperature"
	default:
		return strings.ReplaceAll(field, "_", " ")
	}
}

// Action is one entry of a dataset's action menu.
type Action struct {
	Value string
	Label string
	Mode  Mode
	Field string
}

const filterPrefix = "filter:"

func filterAction(field, label string) Action {
	return Action{Value: filterPrefix + field, Label: label, Mode: ModeFilter, Field: field}
}

var (
	actionLast   = Action{Value: string(ModeLast), Label: "View last record", Mode: ModeLast}
	actionLatest = Action{Value: string(ModeLatest), Label: "View latest records", Mode: ModeLatest}
)

// Actions lists what a dataset offers. Daily gets the last record and metric
// ranges; hourly also offers the latest N records and a date filter.
func Actions(ds Dataset) []Action {
	switch ds {
	case DatasetDaily:
		return []Action{
			actionLast,
			filterAction(FieldBPM, "Filter by BPM avg"),
			filterAction(FieldTemperature, "Filter by temperature"),
		}
	case DatasetHourly:
		return []Action{
			actionLast,
			actionLatest,
			filterAction(FieldDate, "Filter by date"),
			filterAction(FieldBPM, "Filter by BPM avg"),
			filterAction(FieldTemperature, "Filter by temperature"),
		}
	default:
		return nil
	}
}

// LookupAction finds the action with the given value among those offered for ds.
func LookupAction(ds Dataset, value string) (Action, bool) {
	for _, a := range Actions(ds) {
		if a.Value == value {
			return a, true
		}
	}
	return Action{}, false
}

// Datasets lists the datasets offered to users, in menu order.
func Datasets() []Dataset {
	return []Dataset{DatasetDaily, DatasetHourly}
}

// DatasetLabel is the menu label of a dataset.
func DatasetLabel(ds Dataset) string {
	switch ds {
	case DatasetDaily:
		return "Daily test"
	case DatasetHourly:
		return "Hourly follow"
	default:
		return string(ds)
	}
}

// ParseDataset accepts a menu value.
func ParseDataset(value string) (Dataset, bool) {
	for _, ds := range Datasets() {
		if string(ds) == value {
			return ds, true
		}
	}
	return "", false
}
