package pricing

import (
	"guesthouse/internal/domain"
)

// FindConflicts returns the rules in existing whose applicability overlaps
// the candidate. An inactive candidate never conflicts; neither do inactive
// rules, rules of another kind or the candidate's own stored version.
func FindConflicts(candidate domain.PriceRule, existing []domain.PriceRule) []domain.PriceRule {
	if !candidate.Active {
		return nil
	}
	var out []domain.PriceRule
	for _, other := range existing {
		if candidate.ID != 0 && other.ID == candidate.ID {
			continue
		}
		if Conflicts(candidate, other) {
			out = append(out, other)
		}
	}
	return out
}

// Conflicts is symmetric: Conflicts(a, b) == Conflicts(b, a).
func Conflicts(a, b domain.PriceRule) bool {
	if !a.Active || !b.Active || a.Kind != b.Kind {
		return false
	}
	return weekdaysIntersect(a, b) &&
		setsIntersect(a.Origins, b.Origins) &&
		setsIntersect(a.Categories, b.Categories) &&
		seasonsOverlap(a.Season, b.Season)
}

func weekdaysIntersect(a, b domain.PriceRule) bool {
	if isAllDays(a) || isAllDays(b) {
		return true
	}
	for i := range a.Weekdays {
		if a.Weekdays[i] && b.Weekdays[i] {
			return true
		}
	}
	return false
}

func isAllDays(r domain.PriceRule) bool { return r.AllDays || !r.Weekdays.Any() }

// setsIntersect treats an empty set as unrestricted.
func setsIntersect(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	seen := make(map[int64]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			return true
		}
	}
	return false
}

// Unbounded rules only clash with unbounded rules; bounded ones are compared
// as closed intervals.
func seasonsOverlap(a, b *domain.Season) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return !domain.Day(a.Start).After(domain.Day(b.End)) && !domain.Day(a.End).Before(domain.Day(b.Start))
}
