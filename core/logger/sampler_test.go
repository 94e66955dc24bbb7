package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 5)
	passed := 0
	for i := 0; i < 50; i++ {
		if s.Allow() {
			passed++
		}
	}
	assert.Equal(t, 20, passed)

	s.Set(0, 0)
	for i := 0; i < 5; i++ {
		assert.True(t, s.Allow())
	}

	s.Set(9, 3)
	for i := 0; i < 5; i++ {
		assert.True(t, s.Allow(), "numerator is capped at denominator")
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"":      {0, 0},
		"1/50":  {1, 50},
		" 3/7 ": {3, 7},
		"50":    {1, 50},
		"2%":    {2, 100},
		"250%":  {100, 100},
		"x/2":   {0, 0},
		"-4":    {0, 0},
		"often": {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		assert.Equal(t, want, [2]int{num, den}, spec)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOutInOrder(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, &b}, 16)

	for _, line := range []string{"one\n", "two\n", "three\n"} {
		require.NoError(t, w.Write([]byte(line)))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	assert.Equal(t, "one\ntwo\nthree\n", a.String())
	assert.Equal(t, a.String(), b.String())
	assert.ErrorIs(t, w.Write([]byte("late\n")), errWriterClosed)
}

func TestAsyncWriterReportsSinkErrors(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 1)
	require.NoError(t, w.Write([]byte("a line longer than the buffer\n")))
	assert.Error(t, w.Close())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "fail", Outcome(errors.New("x")))
	assert.Equal(t, "cancelled", Outcome(context.Canceled))
}
