package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"guesthouse/internal/domain"
)

/********** alias registries (single source of truth) **********/

var priceAliases = map[string][]string{
	"description": {"description", "name", "title", "label"},
	"amount":      {"amount", "price", "price.amount", "value"},
	"vat":         {"vat", "vat_rate", "tax", "tax.rate"},
	"kind":        {"kind", "type", "price_type"},
	"season_from": {"season.start", "season.from", "valid_from", "from"},
	"season_to":   {"season.end", "season.to", "valid_to", "to"},
	"weekdays":    {"weekdays", "days", "valid_days"},
	"origins":     {"origins", "channels", "origin_ids"},
	"categories":  {"categories", "room_categories", "category_ids"},
}

var reservationAliases = map[string][]string{
	"ref":       {"id", "booking_id", "reference", "booking.reference"},
	"apartment": {"apartment_id", "room_id", "unit.id", "apartment.id"},
	"start":     {"arrival", "check_in", "checkin", "start", "dates.from"},
	"end":       {"departure", "check_out", "checkout", "end", "dates.to"},
	"persons":   {"persons", "guests", "occupancy.adults", "pax"},
	"origin":    {"origin_id", "channel_id", "source.id"},
	"status":    {"status_id", "status.id"},
	"remark":    {"remark", "comment", "notes", "guest_message"},
}

var weekdayNames = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstAlias: first non-empty string for a named alias set.
func firstAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// firstDecimal: money or rate from several paths (number or string like "8,50").
func firstDecimal(m map[string]any, paths ...string) (decimal.Decimal, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case int:
			return decimal.NewFromInt(int64(v)), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if d, err := decimal.NewFromString(s); err == nil {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// firstInt64: int64 from several paths (float64/int/string).
func firstInt64(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstInt64s: accept []any of numbers, numeric strings or {id}.
func firstInt64s(m map[string]any, paths ...string) []int64 {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]int64, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case map[string]any:
				if id := firstInt64(t, "id"); id != nil {
					out = append(out, *id)
				}
			default:
				if id := firstInt64(map[string]any{"v": t}, "v"); id != nil {
					out = append(out, *id)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstBool(m map[string]any, paths ...string) bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v
		case float64:
			return v != 0
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	}
	return false
}

// firstDate parses YYYY-MM-DD or RFC 3339 values.
func firstDate(m map[string]any, paths ...string) (time.Time, bool) {
	for _, k := range paths {
		s := strings.TrimSpace(lookupStr(m, k))
		if s == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return domain.Day(t), true
			}
		}
	}
	return time.Time{}, false
}

func parseKind(s string) domain.PriceKind {
	switch strings.ToLower(s) {
	case "1", "misc", "miscellaneous", "extra":
		return domain.KindMiscellaneous
	case "2", "apartment", "room":
		return domain.KindApartment
	case "3", "person", "person_based":
		return domain.KindPersonBased
	}
	return 0
}

func parseWeekdays(m map[string]any, paths ...string) domain.Weekdays {
	var w domain.Weekdays
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if i, ok := weekdayNames[strings.ToLower(t[:min(3, len(t))])]; ok {
					w[i] = true
				}
			case float64:
				// ISO numbering, 1 = Monday
				if t >= 1 && t <= 7 {
					w[int(t)-1] = true
				}
			}
		}
		if w.Any() {
			return w
		}
	}
	return w
}

/********** price mapper **********/

func mapPriceRule(p map[string]any) (string, domain.PriceRule) {
	ref := ""
	if id := firstInt64(p, "id", "price_id"); id != nil {
		ref = strconv.FormatInt(*id, 10)
	}
	r := domain.PriceRule{
		Description: firstAlias(p, priceAliases, "description"),
		Kind:        parseKind(firstAlias(p, priceAliases, "kind")),
		VATIncluded: firstBool(p, "vat_included", "includes_vat", "gross"),
		Flat:        firstBool(p, "flat", "per_stay"),
		Active:      !lookupIsFalse(p, "active"),
		AllDays:     firstBool(p, "all_days"),
		Weekdays:    parseWeekdays(p, priceAliases["weekdays"]...),
		Origins:     firstInt64s(p, priceAliases["origins"]...),
		Categories:  firstInt64s(p, priceAliases["categories"]...),
	}
	if k := firstInt64(p, "kind", "type"); k != nil && r.Kind == 0 {
		r.Kind = domain.PriceKind(*k)
	}
	r.Amount, _ = firstDecimal(p, priceAliases["amount"]...)
	r.VAT, _ = firstDecimal(p, priceAliases["vat"]...)
	if pr := firstInt64(p, "priority", "rank"); pr != nil {
		r.Priority = int(*pr)
	}
	from, okFrom := firstDate(p, priceAliases["season_from"]...)
	to, okTo := firstDate(p, priceAliases["season_to"]...)
	if okFrom && okTo {
		r.Season = &domain.Season{Start: from, End: to}
	}
	if r.Kind == domain.KindPersonBased {
		r.Beds = optInt(firstInt64(p, "beds", "thresholds.beds"))
		r.Persons = optInt(firstInt64(p, "persons", "thresholds.persons"))
		r.MinStay = optInt(firstInt64(p, "min_stay", "thresholds.min_stay"))
	}
	return ref, r
}

func lookupIsFalse(m map[string]any, path string) bool {
	v, ok := lookupAny(m, path).(bool)
	return ok && !v
}

func optInt(p *int64) *int {
	if p == nil {
		return nil
	}
	x := int(*p)
	return &x
}

/********** reservation mapper **********/

// mapReservation returns false when a field needed for billing is missing.
func mapReservation(p map[string]any) (string, domain.Reservation, bool) {
	ref := firstAlias(p, reservationAliases, "ref")
	if ref == "" {
		if id := firstInt64(p, reservationAliases["ref"]...); id != nil {
			ref = strconv.FormatInt(*id, 10)
		}
	}
	apt := firstInt64(p, reservationAliases["apartment"]...)
	start, okStart := firstDate(p, reservationAliases["start"]...)
	end, okEnd := firstDate(p, reservationAliases["end"]...)
	if ref == "" || apt == nil || !okStart || !okEnd {
		return ref, domain.Reservation{}, false
	}

	r := domain.Reservation{
		Apartment: domain.Apartment{ID: *apt},
		Start:     start,
		End:       end,
		Persons:   1,
		OriginID:  firstInt64(p, reservationAliases["origin"]...),
		Remark:    firstAlias(p, reservationAliases, "remark"),
	}
	if n := firstInt64(p, reservationAliases["persons"]...); n != nil && *n > 0 {
		r.Persons = int(*n)
	}
	if st := firstInt64(p, reservationAliases["status"]...); st != nil {
		r.StatusID = *st
	}
	return ref, r, true
}

func describeRef(kind, ref string) string { return fmt.Sprintf("%s:%s", kind, ref) }
