package service

import (
	"time"

	"github.com/brightpath/agency-api/internal/models"
)

// FiscalYearAt returns the fiscal year containing the given instant. The year
// runs twelve months from the first day of startMonth. Pure: callers supply
// the clock value, business logic never reads time.Now itself.
func FiscalYearAt(at time.Time, startMonth time.Month) models.FiscalYear {
	year := at.Year()
	if at.Month() < startMonth {
		year--
	}
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return models.FiscalYear{Start: start, End: start.AddDate(1, 0, 0)}
}

// FiscalYearStarting returns the fiscal year beginning in the given calendar year.
func FiscalYearStarting(year int, startMonth time.Month) models.FiscalYear {
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return models.FiscalYear{Start: start, End: start.AddDate(1, 0, 0)}
}

// WeekStartOf returns the Monday of the ISO calendar week containing date,
// truncated to midnight UTC.
func WeekStartOf(date time.Time) time.Time {
	date = date.UTC()
	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := date.AddDate(0, 0, 1-weekday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
