package telemetry

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRangeFormat = errors.New("range must look like low-high")
	ErrRangeOrder  = errors.New("range low is greater than high")
	ErrDateFormat  = errors.New("date must look like YYYY-MM-DD")
)

const dateLayout = "2006-01-02"

// Range is an inclusive numeric interval.
type Range struct {
	Low  float64
	High float64
}

func (r Range) String() string {
	return formatNumber(r.Low) + "-" + formatNumber(r.High)
}

// ParseRange parses "low-high" and requires low <= high.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Range{}, ErrRangeFormat
	}
	low, ok := parseBound(parts[0])
	if !ok {
		return Range{}, ErrRangeFormat
	}
	high, ok := parseBound(parts[1])
	if !ok {
		return Range{}, ErrRangeFormat
	}
	if low > high {
		return Range{}, ErrRangeOrder
	}
	return Range{Low: low, High: high}, nil
}

// parseBound reads one finite end of a range. NaN and Inf are rejected.
func parseBound(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseDate parses a calendar day in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrDateFormat
	}
	return d, nil
}

// DayBounds returns the first and last second of day in UTC.
func DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	return start, end
}

// NormalizeFilterValue validates raw input for field and returns its canonical form.
func NormalizeFilterValue(field, raw string) (string, error) {
	switch KindOf(field) {
	case KindRange:
		r, err := ParseRange(raw)
		if err != nil {
			return "", err
		}
		return r.String(), nil
	case KindDate:
		d, err := ParseDate(raw)
		if err != nil {
			return "", err
		}
		return d.Format(dateLayout), nil
	default:
		return strings.TrimSpace(raw), nil
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
