package enums

import (
	"fmt"
	"time"
)

// EarningsPeriod selects the lookback window of a vendor earnings summary.
type EarningsPeriod string

const (
	EarningsPeriodDay   EarningsPeriod = "day"
	EarningsPeriodWeek  EarningsPeriod = "week"
	EarningsPeriodMonth EarningsPeriod = "month"
	EarningsPeriodYear  EarningsPeriod = "year"
)

var validEarningsPeriods = []EarningsPeriod{
	EarningsPeriodDay,
	EarningsPeriodWeek,
	EarningsPeriodMonth,
	EarningsPeriodYear,
}

func (p EarningsPeriod) String() string {
	return string(p)
}

func (p EarningsPeriod) IsValid() bool {
	for _, candidate := range validEarningsPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Since returns the start of the calendar period containing now, in now's
// location. Weeks start on Sunday.
func (p EarningsPeriod) Since(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case EarningsPeriodDay:
		return day
	case EarningsPeriodWeek:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case EarningsPeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}

// ParseEarningsPeriod converts raw input into an EarningsPeriod. Empty input
// selects the monthly window.
func ParseEarningsPeriod(value string) (EarningsPeriod, error) {
	if value == "" {
		return EarningsPeriodMonth, nil
	}
	for _, candidate := range validEarningsPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid earnings period %q", value)
}
