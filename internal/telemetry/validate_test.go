package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr error
	}{
		{in: "60-90", want: Range{Low: 60, High: 90}},
		{in: " 36.5 - 37.2 ", want: Range{Low: 36.5, High: 37.2}},
		{in: "70-70", want: Range{Low: 70, High: 70}},
		{in: "90-60", wantErr: ErrRangeOrder},
		{in: "abc", wantErr: ErrRangeFormat},
		{in: "60-", wantErr: ErrRangeFormat},
		{in: "1-2-3", wantErr: ErrRangeFormat},
		{in: "", wantErr: ErrRangeFormat},
		{in: "NaN-NaN", wantErr: ErrRangeFormat},
		{in: "Inf-Inf", wantErr: ErrRangeFormat},
		{in: "60-Infinity", wantErr: ErrRangeFormat},
		{in: "1e400-2", wantErr: ErrRangeFormat},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFilterValue(t *testing.T) {
	got, err := NormalizeFilterValue(FieldBPM, "60.0-90")
	require.NoError(t, err)
	assert.Equal(t, "60-90", got)

	got, err = NormalizeFilterValue(FieldDate, " 2023-01-15 ")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-15", got)

	_, err = NormalizeFilterValue(FieldDate, "2023-13-01")
	assert.ErrorIs(t, err, ErrDateFormat)

	got, err = NormalizeFilterValue("note", "  free text ")
	require.NoError(t, err)
	assert.Equal(t, "free text", got)
}
