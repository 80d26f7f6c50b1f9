package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiscalYearAtOctoberStart(t *testing.T) {
	fy := FiscalYearAt(time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC), time.October)
	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), fy.Start)
	assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), fy.End)
	assert.Equal(t, "FY2025/26", fy.Label())
}

func TestFiscalYearAtBoundaries(t *testing.T) {
	// The first instant of October opens a new year.
	fy := FiscalYearAt(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), time.October)
	assert.Equal(t, 2025, fy.Start.Year())

	// The last instant of September still belongs to the prior year.
	fy = FiscalYearAt(time.Date(2025, time.September, 30, 23, 59, 59, 0, time.UTC), time.October)
	assert.Equal(t, 2024, fy.Start.Year())
}

func TestFiscalYearContains(t *testing.T) {
	fy := FiscalYearStarting(2025, time.October)
	assert.True(t, fy.Contains(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, fy.Contains(time.Date(2026, time.September, 30, 23, 0, 0, 0, time.UTC)))
	assert.False(t, fy.Contains(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, fy.Contains(time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)))
}

func TestWeekStartOf(t *testing.T) {
	// Wednesday maps back to Monday.
	assert.Equal(t,
		time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		WeekStartOf(time.Date(2026, time.January, 14, 18, 30, 0, 0, time.UTC)))

	// Sunday belongs to the week that started the previous Monday.
	assert.Equal(t,
		time.Date(2026, time.January, 12, 0, 0, 0, 0, time.UTC),
		WeekStartOf(time.Date(2026, time.January, 18, 9, 0, 0, 0, time.UTC)))

	// Monday is its own week start.
	assert.Equal(t,
		time.Date(2026, time.January, 19, 0, 0, 0, 0, time.UTC),
		WeekStartOf(time.Date(2026, time.January, 19, 0, 0, 0, 0, time.UTC)))
}
