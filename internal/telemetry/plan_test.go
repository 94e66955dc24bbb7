package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanModes(t *testing.T) {
	tables := DefaultTables()

	tests := []struct {
		name string
		q    Query
		want Selection
	}{
		{
			name: "daily last",
			q:    Query{Dataset: DatasetDaily, Mode: ModeLast},
			want: Selection{Table: "onetest", OrderBy: "date", Desc: true, Limit: 1},
		},
		{
			name: "hourly latest",
			q:    Query{Dataset: DatasetHourly, Mode: ModeLatest, Limit: 5},
			want: Selection{Table: "followhour", OrderBy: "time", Desc: true, Limit: 5},
		},
		{
			name: "metric range is inclusive",
			q:    Query{Dataset: DatasetDaily, Mode: ModeFilter, FilterField: FieldBPM, FilterValue: "60-90"},
			want: Selection{Table: "onetest", OrderBy: "date", Desc: true, Where: []Predicate{
				{Column: FieldBPM, Op: OpGte, Value: 60.0},
				{Column: FieldBPM, Op: OpLte, Value: 90.0},
			}},
		},
		{
			name: "other fields match exactly",
			q:    Query{Dataset: DatasetHourly, Mode: ModeFilter, FilterField: "device", FilterValue: "band-1"},
			want: Selection{Table: "followhour", OrderBy: "time", Desc: true, Where: []Predicate{
				{Column: "device", Op: OpEq, Value: "band-1"},
			}},
		},
		{
			name: "unknown dataset orders by created_at",
			q:    Query{Dataset: "weekly", Mode: ModeLast},
			want: Selection{Table: "weekly", OrderBy: "created_at", Desc: true, Limit: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tables.Plan(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanDateCoversWholeUTCDay(t *testing.T) {
	sel, err := DefaultTables().Plan(Query{
		Dataset:     DatasetHourly,
		Mode:        ModeFilter,
		FilterField: FieldDate,
		FilterValue: "2023-01-15",
	})
	require.NoError(t, err)
	require.Len(t, sel.Where, 2)
	assert.Zero(t, sel.Limit)

	assert.Equal(t, Predicate{Column: "time", Op: OpGte, Value: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)}, sel.Where[0])
	assert.Equal(t, Predicate{Column: "time", Op: OpLte, Value: time.Date(2023, 1, 15, 23, 59, 59, 0, time.UTC)}, sel.Where[1])
	assert.Equal(t, "2023-01-15T00:00:00Z", sel.Where[0].Value.(time.Time).Format(time.RFC3339))
	assert.Equal(t, "2023-01-15T23:59:59Z", sel.Where[1].Value.(time.Time).Format(time.RFC3339))
}

func TestPlanRejectsInvalidQueries(t *testing.T) {
	tables := DefaultTables()
	bad := []Query{
		{Mode: ModeLast},
		{Dataset: DatasetHourly, Mode: ModeLatest},
		{Dataset: DatasetHourly, Mode: ModeLatest, Limit: MaxLimit + 1},
		{Dataset: DatasetHourly, Mode: ModeFilter, FilterField: FieldBPM, FilterValue: "90-60"},
		{Dataset: DatasetHourly, Mode: ModeFilter, FilterField: FieldDate, FilterValue: "15/01/2023"},
		{Dataset: DatasetHourly, Mode: "everything"},
	}
	for _, q := range bad {
		_, err := tables.Plan(q)
		assert.ErrorIs(t, err, ErrInvalidQuery, "query %+v", q)
	}
}

func TestActionsPerDataset(t *testing.T) {
	values := func(ds Dataset) []string {
		var out []string
		for _, a := range Actions(ds) {
			out = append(out, a.Value)
		}
		return out
	}
	assert.Equal(t, []string{"last", "filter:bpm_avg", "filter:temperature"}, values(DatasetDaily))
	assert.Equal(t, []string{"last", "latest", "filter:date", "filter:bpm_avg", "filter:temperature"}, values(DatasetHourly))

	_, ok := LookupAction(DatasetDaily, "latest")
	assert.False(t, ok, "daily does not offer latest")
	a, ok := LookupAction(DatasetHourly, "filter:date")
	require.True(t, ok)
	assert.Equal(t, ModeFilter, a.Mode)
	assert.Equal(t, FieldDate, a.Field)
}
