package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRecord(t *testing.T) {
	hcm := LoadLocation("Asia/Ho_Chi_Minh")

	t.Run("daily", func(t *testing.T) {
		r := Record{"date": time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), "bpm_avg": 72.5, "temperature": 36.6}
		assert.Equal(t, "Date: 2023-01-15\nBPM: 72.5\nTemperature: 36.6°C", FormatRecord(DatasetDaily, r, hcm))
	})

	t.Run("hourly converts into profile timezone", func(t *testing.T) {
		r := Record{"time": "2023-01-15T10:00:00Z", "bpm_avg": int64(80), "temperature": []byte("37")}
		assert.Equal(t, "Time: 2023-01-15 17:00:00\nBPM: 80\nTemperature: 37°C", FormatRecord(DatasetHourly, r, hcm))
	})

	t.Run("unparsable timestamp shown raw", func(t *testing.T) {
		r := Record{"time": "yesterday", "bpm_avg": nil, "temperature": 36.9}
		assert.Equal(t, "Time: yesterday\nBPM: N/A\nTemperature: 36.9°C", FormatRecord(DatasetHourly, r, hcm))
	})

	t.Run("unknown dataset", func(t *testing.T) {
		assert.Equal(t, "Unknown table format.", FormatRecord("weekly", Record{}, hcm))
	})
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus_Mons"))
	assert.Equal(t, time.UTC, LoadLocation(""))
}

func TestCompose(t *testing.T) {
	recs := []string{"A", "B"}

	assert.Equal(t, "Last record from daily:\nA",
		Compose(Query{Dataset: DatasetDaily, Mode: ModeLast}, recs[:1], false))
	assert.Equal(t, "Latest 2 records from hourly:\n\nA\n---\nB",
		Compose(Query{Dataset: DatasetHourly, Mode: ModeLatest, Limit: 5}, recs, false))
	assert.Equal(t, "Records from hourly filtered by BPM avg '60-90':\n\nA\n---\nB",
		Compose(Query{Dataset: DatasetHourly, Mode: ModeFilter, FilterField: FieldBPM, FilterValue: "60-90"}, recs, false))
	assert.Equal(t, "No records found in daily.",
		Compose(Query{Dataset: DatasetDaily, Mode: ModeLast}, nil, false))
	assert.Equal(t, "No records found in hourly for the given filter.",
		Compose(Query{Dataset: DatasetHourly, Mode: ModeFilter, FilterField: FieldDate, FilterValue: "2023-01-15"}, nil, false))
	assert.Equal(t, "Timer triggered! Last record from daily:\nA",
		Compose(Query{Dataset: DatasetDaily, Mode: ModeLast}, recs[:1], true))
}

func TestComposeTriggeredEmptyHasNoPrefix(t *testing.T) {
	assert.Equal(t, "No records found in hourly.",
		Compose(Query{Dataset: DatasetHourly, Mode: ModeLatest, Limit: 3}, nil, true))
}
