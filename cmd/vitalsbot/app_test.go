package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/vitalsbot/internal/config"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
	"github.com/m3rciful/vitalsbot/internal/telemetry/telemetrytest"
)

func TestTimerFetcherSharesBudgetByDefault(t *testing.T) {
	interactive := telemetry.NewFetcher(telemetrytest.New(), telemetry.Options{RatePerSecond: 20})

	shared := timerFetcher(config.TelemetryConfig{RatePerSecond: 20}, interactive)
	assert.Same(t, interactive.Limiter(), shared.Limiter())

	own := timerFetcher(config.TelemetryConfig{RatePerSecond: 20, TimerRatePerSecond: 2}, interactive)
	assert.NotSame(t, interactive.Limiter(), own.Limiter())
	assert.InDelta(t, 2.0, float64(own.Limiter().Limit()), 1e-9)
}
