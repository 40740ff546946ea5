package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates and builds a Date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, NewError(ErrCodeInvalid, fmt.Sprintf("invalid date %04d-%02d-%02d", year, month, day))
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate reads a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, WrapError(ErrCodeInvalid, "invalid date "+s, err)
	}
	return DateOf(t), nil
}

// Ordinal encodes the date as YYYYMMDD, which orders like the date itself.
func (d Date) Ordinal() int {
	return d.Year*10000 + int(d.Month)*100 + d.Day
}

// Compare returns -1, 0 or 1.
func (d Date) Compare(other Date) int {
	a, b := d.Ordinal(), other.Ordinal()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ContributionKey identifies a contribution: one amount per day, collaborator and task.
type ContributionKey struct {
	Date          Date  `json:"date"`
	ContributorID int64 `json:"contributor_id"`
	TaskID        int64 `json:"task_id"`
}

// Contribution is time logged by a collaborator on a leaf task.
// DurationID is both the duration catalog key and the logged amount.
type Contribution struct {
	ContributionKey
	DurationID int64 `json:"duration_id"`
}

// Duration is a catalog entry; its ID is the amount in hundredths.
type Duration struct {
	ID     int64 `json:"id"`
	Active bool  `json:"active"`
}
