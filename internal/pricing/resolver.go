// Package pricing resolves price rules per day, folds them into invoice
// positions, totals them per VAT rate and validates rules and stays before
// they are stored. Everything here works on values already in memory.
package pricing

import (
	"sort"
	"time"

	"guesthouse/internal/domain"
)

// SortByPriority orders rules by ascending Priority, then ascending ID.
func SortByPriority(rules []domain.PriceRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
}

// Applies reports whether the rule's season and weekday mask cover day. An
// empty mask counts as every day, as it does for conflicts.
func Applies(r domain.PriceRule, day time.Time) bool {
	day = domain.Day(day)
	if r.Season != nil {
		if day.Before(domain.Day(r.Season.Start)) || day.After(domain.Day(r.Season.End)) {
			return false
		}
	}
	return isAllDays(r) || r.Weekdays.Has(day)
}

// ResolveDays picks the first applicable candidate for every billable day of
// the stay. Candidates must already be in priority order.
func ResolveDays(stay domain.Stay, candidates []domain.PriceRule) []domain.DayAssignment {
	n := stay.Nights()
	out := make([]domain.DayAssignment, n)
	for i := 0; i < n; i++ {
		day := stay.Start.AddDate(0, 0, i)
		out[i].Date = day
		for k := range candidates {
			if Applies(candidates[k], day) {
				r := candidates[k]
				out[i].Rule = &r
				break
			}
		}
	}
	return out
}

// ResolveAllDays returns every applicable candidate per billable day, keeping
// candidate order. Used for miscellaneous prices where surcharges stack.
func ResolveAllDays(stay domain.Stay, candidates []domain.PriceRule) []domain.DayMatches {
	n := stay.Nights()
	out := make([]domain.DayMatches, n)
	for i := 0; i < n; i++ {
		day := stay.Start.AddDate(0, 0, i)
		out[i].Date = day
		for _, c := range candidates {
			if Applies(c, day) {
				out[i].Rules = append(out[i].Rules, c)
			}
		}
	}
	return out
}

// StayEligible applies the person based thresholds of an apartment rule to a
// reservation. Unset thresholds accept anything; other kinds are always eligible.
func StayEligible(r domain.PriceRule, res domain.Reservation, nights int) bool {
	if r.Kind != domain.KindPersonBased {
		return true
	}
	if r.Beds != nil && *r.Beds != res.Apartment.BedsMax {
		return false
	}
	if r.Persons != nil && *r.Persons != res.Persons {
		return false
	}
	if r.MinStay != nil && nights < *r.MinStay {
		return false
	}
	return true
}
