package exogenous

import (
	"context"
	"time"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// HolidayProvider returns holiday rows inside [start, end]. Only dates that
// are holidays appear; the table is sparse by design.
type HolidayProvider interface {
	Holidays(ctx context.Context, start, end time.Time, country string) (*dataset.Table, error)
}

// CalendarHolidays resolves holidays from a fixed month-day calendar.
// The default calendar covers common US observances.
type CalendarHolidays struct {
	// Calendar maps "MM-DD" to holiday name. Nil uses USHolidays.
	Calendar map[string]string
}

// USHolidays is the default holiday calendar.
var USHolidays = map[string]string{
	"01-01": "New Year's Day",
	"01-15": "Martin Luther King Jr. Day",
	"02-14": "Valentine's Day",
	"02-19": "Presidents' Day",
	"05-27": "Memorial Day",
	"07-04": "Independence Day",
	"09-02": "Labor Day",
	"10-14": "Columbus Day",
	"10-31": "Halloween",
	"11-11": "Veterans Day",
	"11-28": "Thanksgiving",
	"12-25": "Christmas Day",
	"12-31": "New Year's Eve",
}

// Holidays returns one row per holiday date in [start, end] with
// holiday_name, is_holiday and country columns.
func (c *CalendarHolidays) Holidays(_ context.Context, start, end time.Time, country string) (*dataset.Table, error) {
	calendar := c.Calendar
	if calendar == nil {
		calendar = USHolidays
	}

	var dates []time.Time
	var names []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if name, ok := calendar[d.Format("01-02")]; ok {
			dates = append(dates, d)
			names = append(names, name)
		}
	}

	table := dataset.NewTable(dates)
	if len(dates) == 0 {
		return table, nil
	}

	flags := make([]float64, len(dates))
	countries := make([]string, len(dates))
	for i := range dates {
		flags[i] = 1
		countries[i] = country
	}

	if err := table.SetText("holiday_name", names); err != nil {
		return nil, err
	}
	if err := table.SetNumeric("is_holiday", flags); err != nil {
		return nil, err
	}
	if err := table.SetText("country", countries); err != nil {
		return nil, err
	}
	return table, nil
}
