package domain

import "time"

type Apartment struct {
	ID          int64
	Number      string
	Description string
	BedsMax     int
	CategoryID  *int64
	PropertyID  int64
}

type Reservation struct {
	ID        int64
	Apartment Apartment
	Start     time.Time // check-in, billed
	End       time.Time // checkout, not billed
	Persons   int
	OriginID  *int64
	StatusID  int64
	Prices    []PriceRule // prices attached while the reservation was created
	Remark    string
}

// Stay returns the billable period of the reservation.
func (r Reservation) Stay() Stay { return NewStay(r.Start, r.End) }

// Stay is the half-open day range [Start, End).
type Stay struct {
	Start time.Time
	End   time.Time
}

// NewStay truncates both ends to calendar days in UTC.
func NewStay(start, end time.Time) Stay {
	return Stay{Start: Day(start), End: Day(end)}
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights is the number of billable days; negative ranges count as zero.
func (s Stay) Nights() int {
	return DaysBetween(s.Start, s.End)
}

// DaysBetween counts calendar days from a to b, clamped at zero.
func DaysBetween(a, b time.Time) int {
	n := int(Day(b).Sub(Day(a)).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// ReservationUpdate carries the editable fields of a stored reservation.
type ReservationUpdate struct {
	ID          int64
	ApartmentID int64
	Start       time.Time
	End         time.Time
	Persons     int
	StatusID    int64
}
