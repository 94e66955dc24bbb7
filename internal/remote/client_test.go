package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

func TestBuildSelect(t *testing.T) {
	day := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		sel      telemetry.Selection
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "last record",
			sel:      telemetry.Selection{Table: "onetest", OrderBy: "date", Desc: true, Limit: 1},
			wantSQL:  `SELECT * FROM "onetest" ORDER BY "date" DESC LIMIT 1`,
			wantArgs: []any{},
		},
		{
			name: "range filter",
			sel: telemetry.Selection{Table: "followhour", OrderBy: "time", Desc: true, Where: []telemetry.Predicate{
				{Column: "bpm_avg", Op: telemetry.OpGte, Value: 60.0},
				{Column: "bpm_avg", Op: telemetry.OpLte, Value: 90.0},
			}},
			wantSQL:  `SELECT * FROM "followhour" WHERE "bpm_avg" >= ? AND "bpm_avg" <= ? ORDER BY "time" DESC`,
			wantArgs: []any{60.0, 90.0},
		},
		{
			name: "equality without ordering",
			sel: telemetry.Selection{Table: "notes", Where: []telemetry.Predicate{
				{Column: "day", Op: telemetry.OpEq, Value: day},
			}},
			wantSQL:  `SELECT * FROM "notes" WHERE "day" = ?`,
			wantArgs: []any{day},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := BuildSelect(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelectQuotesIdentifiers(t *testing.T) {
	sql, _, err := BuildSelect(telemetry.Selection{Table: `x"; DROP TABLE users; --`})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "x""; DROP TABLE users; --"`, sql)
}

func TestBuildSelectRejectsBadInput(t *testing.T) {
	_, _, err := BuildSelect(telemetry.Selection{})
	assert.Error(t, err)

	_, _, err = BuildSelect(telemetry.Selection{Table: "t", Where: []telemetry.Predicate{{Column: "c", Op: "like", Value: "%"}}})
	assert.Error(t, err)
}
