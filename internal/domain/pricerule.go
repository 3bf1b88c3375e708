package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceKind int

const (
	KindMiscellaneous PriceKind = 1
	KindApartment     PriceKind = 2
	KindPersonBased   PriceKind = 3 // apartment price restricted by beds/persons/min stay
)

func (k PriceKind) String() string {
	switch k {
	case KindMiscellaneous:
		return "misc"
	case KindApartment:
		return "apartment"
	case KindPersonBased:
		return "person"
	}
	return "unknown"
}

// BillsApartment reports whether rules of this kind price the stay itself.
func (k PriceKind) BillsApartment() bool {
	return k == KindApartment || k == KindPersonBased
}

// Season is a closed date interval; both ends are billable.
type Season struct {
	Start time.Time
	End   time.Time
}

// Weekdays is indexed Mon=0..Sun=6.
type Weekdays [7]bool

func AllWeekdays() Weekdays { return Weekdays{true, true, true, true, true, true, true} }

func (w Weekdays) Any() bool {
	for _, d := range w {
		if d {
			return true
		}
	}
	return false
}

// Has reports whether the mask includes the weekday of t.
func (w Weekdays) Has(t time.Time) bool {
	return w[ISOWeekday(t)-1]
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

type PriceRule struct {
	ID          int64
	Description string
	Amount      decimal.Decimal
	VAT         decimal.Decimal
	VATIncluded bool
	Flat        bool
	Kind        PriceKind

	Season   *Season // nil = any date
	Weekdays Weekdays
	AllDays  bool

	Origins    []int64 // reservation origins; empty = unrestricted
	Categories []int64 // room categories; empty = unrestricted
	Active     bool
	Priority   int // lower wins; ties fall back to ascending ID

	// PersonBased only.
	Beds    *int
	Persons *int
	MinStay *int
}

// Normalize applies the form rules: an empty weekday selection means every day,
// all-days sets every weekday, and thresholds only exist on person based rules.
func (p *PriceRule) Normalize() {
	if p.AllDays || !p.Weekdays.Any() {
		p.AllDays = true
		p.Weekdays = AllWeekdays()
	}
	if p.Kind != KindPersonBased {
		p.Beds, p.Persons, p.MinStay = nil, nil, nil
	}
}

func (p PriceRule) HasSeason() bool { return p.Season != nil }

// RuleQuery is the catalog lookup used by the billing pipeline.
type RuleQuery struct {
	Kinds      []PriceKind
	OriginID   *int64
	CategoryID *int64
}
