package pricing

import (
	"time"

	"guesthouse/internal/domain"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share a day.
// A checkout on the other stay's check-in day is not an overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return domain.Day(aStart).Before(domain.Day(bEnd)) && domain.Day(bStart).Before(domain.Day(aEnd))
}

// FindOverlaps returns the reservations of the apartment that would be double
// booked by a stay in [start, end). The reservation with excludeID is skipped
// so a stored reservation can be checked against its own new dates.
func FindOverlaps(apartmentID int64, start, end time.Time, existing []domain.Reservation, excludeID int64) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range existing {
		if r.Apartment.ID != apartmentID {
			continue
		}
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if Overlaps(start, end, r.Start, r.End) {
			out = append(out, r)
		}
	}
	return out
}
