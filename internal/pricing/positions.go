package pricing

import (
	"time"

	"guesthouse/internal/domain"
)

// BuildApartmentPositions merges consecutive days with the same rule into one
// position each. The loop runs one index past the last billable day: the
// checkout day is never resolved, it inherits the previous rule and only
// closes the open run. Days without a rule produce no position.
func BuildApartmentPositions(res domain.Reservation, days []domain.DayAssignment) []domain.ApartmentPosition {
	n := len(days)
	if n == 0 {
		return nil
	}
	start := domain.Day(res.Start)
	runStart := start
	var prev *domain.PriceRule
	var out []domain.ApartmentPosition

	for i := 0; i <= n; i++ {
		cur := prev
		if i < n {
			cur = days[i].Rule
		}
		date := start.AddDate(0, 0, i)
		if i > 0 && (i == n || !sameRule(prev, cur)) {
			if prev != nil {
				out = append(out, apartmentPosition(res, runStart, date, *prev))
			}
			runStart = date
		}
		prev = cur
	}
	return out
}

func sameRule(a, b *domain.PriceRule) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func apartmentPosition(res domain.Reservation, start, end time.Time, r domain.PriceRule) domain.ApartmentPosition {
	return domain.ApartmentPosition{
		Description: res.Apartment.Description,
		Number:      res.Apartment.Number,
		Start:       start,
		End:         end,
		Persons:     res.Persons,
		Beds:        res.Apartment.BedsMax,
		Price:       r.Amount,
		VAT:         r.VAT,
		IncludesVAT: r.VATIncluded,
		Flat:        r.Flat,
	}
}

// MiscInput is one reservation with its per-day matches.
type MiscInput struct {
	Reservation domain.Reservation
	Days        []domain.DayMatches
}

type miscAcc struct {
	rule          domain.PriceRule
	amount        int
	reservationID int64
}

// BuildMiscPositions aggregates miscellaneous rules across days and
// reservations into one position per rule. Non-flat rules add the occupant
// count per matching day; a flat rule adds 1 and is counted at most once per
// reservation. Positions come out in the order rules were first seen.
func BuildMiscPositions(inputs []MiscInput) []domain.MiscPosition {
	acc := map[int64]*miscAcc{}
	var order []int64

	for _, in := range inputs {
		resID := in.Reservation.ID
		for _, day := range in.Days {
			for _, r := range day.Rules {
				qty := in.Reservation.Persons
				if r.Flat {
					qty = 1
				}
				a, ok := acc[r.ID]
				if !ok {
					acc[r.ID] = &miscAcc{rule: r, amount: qty, reservationID: resID}
					order = append(order, r.ID)
					continue
				}
				if r.Flat && a.reservationID == resID {
					continue
				}
				a.amount += qty
				a.reservationID = resID
			}
		}
	}

	out := make([]domain.MiscPosition, 0, len(order))
	for _, id := range order {
		a := acc[id]
		out = append(out, domain.MiscPosition{
			Description: a.rule.Description,
			Amount:      a.amount,
			Price:       a.rule.Amount,
			VAT:         a.rule.VAT,
			IncludesVAT: a.rule.VATIncluded,
			Flat:        a.rule.Flat,
		})
	}
	return out
}
