package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Record is one row as returned by a RecordStore.
type Record map[string]any

// RecordSeparator sits between records in a composed reply. Long replies
// are split on it so no record straddles two messages.
const RecordSeparator = "\n---\n"

const (
	timeLayout   = "2006-01-02 15:04:05"
	missingValue = "N/A"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	dateLayout,
}

// LoadLocation resolves tz, falling back to UTC when it is unknown.
func LoadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatRecord renders one record of ds in loc.
func FormatRecord(ds Dataset, r Record, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	switch ds {
	case DatasetDaily:
		return fmt.Sprintf("Date: %s\nBPM: %s\nTemperature: %s°C",
			formatTimestamp(r["date"], dateLayout, loc),
			formatValue(r["bpm_avg"]),
			formatValue(r["temperature"]),
		)
	case DatasetHourly:
		return fmt.Sprintf("Time: %s\nBPM: %s\nTemperature: %s°C",
			formatTimestamp(r["time"], timeLayout, loc),
			formatValue(r["bpm_avg"]),
			formatValue(r["temperature"]),
		)
	default:
		return "Unknown table format."
	}
}

// FormatRecords renders each record of ds.
func FormatRecords(ds Dataset, records []Record, loc *time.Location) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, FormatRecord(ds, r, loc))
	}
	return out
}

// Compose builds the reply for a finished query. Timer deliveries set triggered;
// the empty-result notice is the same for both.
func Compose(q Query, records []string, triggered bool) string {
	if len(records) == 0 {
		if q.Mode == ModeFilter {
			return fmt.Sprintf("No records found in %s for the given filter.", q.Dataset)
		}
		return fmt.Sprintf("No records found in %s.", q.Dataset)
	}

	var b strings.Builder
	if triggered {
		b.WriteString("Timer triggered! ")
	}

	switch q.Mode {
	case ModeLast:
		fmt.Fprintf(&b, "Last record from %s:\n%s", q.Dataset, records[0])
		return b.String()
	case ModeLatest:
		fmt.Fprintf(&b, "Latest %d records from %s:\n\n", len(records), q.Dataset)
	case ModeFilter:
		fmt.Fprintf(&b, "Records from %s filtered by %s '%s':\n\n", q.Dataset, FieldLabel(q.FilterField), q.FilterValue)
	default:
		fmt.Fprintf(&b, "Records from %s:\n\n", q.Dataset)
	}
	b.WriteString(strings.Join(records, RecordSeparator))
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return missingValue
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		if val == "" {
			return missingValue
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

// formatTimestamp converts v into loc. Calendar days (midnight UTC or a bare
// YYYY-MM-DD) are shown as stored. Unparsable strings are returned raw.
func formatTimestamp(v any, layout string, loc *time.Location) string {
	var t time.Time
	switch val := v.(type) {
	case nil:
		return missingValue
	case time.Time:
		t = val
	case []byte:
		return formatTimestamp(string(val), layout, loc)
	case string:
		raw := strings.TrimSpace(val)
		parsed, ok := parseTimestamp(raw)
		if !ok {
			return val
		}
		if len(raw) == len(dateLayout) {
			return parsed.Format(layout)
		}
		t = parsed
	default:
		return fmt.Sprint(val)
	}

	if layout == dateLayout && isMidnightUTC(t) {
		return t.UTC().Format(layout)
	}
	return t.In(loc).Format(layout)
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isMidnightUTC(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}
