package pricing_test

import (
	"time"

	"github.com/shopspring/decimal"

	"guesthouse/internal/domain"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rule(id int64, kind domain.PriceKind, amount string) domain.PriceRule {
	return domain.PriceRule{
		ID:          id,
		Description: "rule",
		Amount:      dec(amount),
		VAT:         dec("19"),
		Kind:        kind,
		AllDays:     true,
		Weekdays:    domain.AllWeekdays(),
		Active:      true,
	}
}

func season(from, to string) *domain.Season {
	return &domain.Season{Start: date(from), End: date(to)}
}

func reservation(id int64, from, to string, persons int) domain.Reservation {
	return domain.Reservation{
		ID:        id,
		Apartment: domain.Apartment{ID: 7, Number: "12", Description: "Double room", BedsMax: 2},
		Start:     date(from),
		End:       date(to),
		Persons:   persons,
	}
}
