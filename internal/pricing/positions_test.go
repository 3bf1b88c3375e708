package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

func assign(from string, rules ...*domain.PriceRule) []domain.DayAssignment {
	start := date(from)
	out := make([]domain.DayAssignment, len(rules))
	for i, r := range rules {
		out[i] = domain.DayAssignment{Date: start.AddDate(0, 0, i), Rule: r}
	}
	return out
}

func TestBuildApartmentPositions(t *testing.T) {
	a := rule(1, domain.KindApartment, "80")
	b := rule(2, domain.KindApartment, "95")

	t.Run("identical days merge", func(t *testing.T) {
		res := reservation(1, "2024-01-01", "2024-01-04", 2)
		pos := pricing.BuildApartmentPositions(res, assign("2024-01-01", &a, &a, &a))
		require.Len(t, pos, 1)
		assert.Equal(t, date("2024-01-01"), pos[0].Start)
		assert.Equal(t, date("2024-01-04"), pos[0].End)
		assert.Equal(t, "12", pos[0].Number)
		assert.Equal(t, 2, pos[0].Persons)
		assert.Equal(t, 2, pos[0].Beds)
		assert.True(t, pos[0].Price.Equal(dec("80")))
	})

	t.Run("one day stay", func(t *testing.T) {
		res := reservation(1, "2024-01-01", "2024-01-02", 1)
		pos := pricing.BuildApartmentPositions(res, assign("2024-01-01", &b))
		require.Len(t, pos, 1)
		assert.Equal(t, 1, pos[0].Nights())
		assert.True(t, pos[0].Price.Equal(dec("95")))
	})

	t.Run("rule change splits", func(t *testing.T) {
		res := reservation(1, "2024-01-01", "2024-01-04", 2)
		pos := pricing.BuildApartmentPositions(res, assign("2024-01-01", &a, &a, &b))
		require.Len(t, pos, 2)
		assert.Equal(t, date("2024-01-03"), pos[0].End)
		assert.Equal(t, date("2024-01-03"), pos[1].Start)
		assert.Equal(t, date("2024-01-04"), pos[1].End)
		assert.True(t, pos[1].Price.Equal(dec("95")))
	})

	t.Run("unresolved days are skipped", func(t *testing.T) {
		res := reservation(1, "2024-01-01", "2024-01-05", 2)
		pos := pricing.BuildApartmentPositions(res, assign("2024-01-01", &a, nil, nil, &a))
		require.Len(t, pos, 2)
		assert.Equal(t, 1, pos[0].Nights())
		assert.Equal(t, date("2024-01-04"), pos[1].Start)
		assert.Equal(t, date("2024-01-05"), pos[1].End)
	})

	t.Run("empty stay", func(t *testing.T) {
		assert.Empty(t, pricing.BuildApartmentPositions(reservation(1, "2024-01-01", "2024-01-01", 2), nil))
	})

	t.Run("positions partition the stay", func(t *testing.T) {
		c := rule(3, domain.KindApartment, "70")
		c.AllDays = false
		c.Weekdays = domain.Weekdays{5: true, 6: true}
		res := reservation(1, "2024-01-01", "2024-01-20", 2)
		days := pricing.ResolveDays(res.Stay(), []domain.PriceRule{c, a})
		pos := pricing.BuildApartmentPositions(res, days)

		total := 0
		for i, p := range pos {
			total += p.Nights()
			if i > 0 {
				assert.Equal(t, pos[i-1].End, p.Start)
				assert.False(t, pos[i-1].Price.Equal(p.Price), "adjacent positions must differ")
			}
		}
		assert.Equal(t, res.Stay().Nights(), total)
	})
}

func TestBuildMiscPositions(t *testing.T) {
	cleaning := rule(10, domain.KindMiscellaneous, "40")
	cleaning.Flat = true
	tax := rule(11, domain.KindMiscellaneous, "2.50")

	matches := func(res domain.Reservation, rules ...domain.PriceRule) pricing.MiscInput {
		return pricing.MiscInput{Reservation: res, Days: pricing.ResolveAllDays(res.Stay(), rules)}
	}

	r1 := reservation(1, "2024-01-01", "2024-01-04", 3)
	r2 := reservation(2, "2024-01-02", "2024-01-04", 2)

	pos := pricing.BuildMiscPositions([]pricing.MiscInput{
		matches(r1, cleaning, tax),
		matches(r2, cleaning, tax),
	})
	require.Len(t, pos, 2)

	// flat: once per reservation regardless of persons and days
	assert.Equal(t, "rule", pos[0].Description)
	assert.Equal(t, 2, pos[0].Amount)
	assert.True(t, pos[0].Flat)
	// per person per day: 3*3 + 2*2
	assert.Equal(t, 13, pos[1].Amount)
	assert.True(t, pos[1].Price.Equal(dec("2.50")))
}

func TestBuildMiscPositions_FlatSingleReservation(t *testing.T) {
	cleaning := rule(10, domain.KindMiscellaneous, "40")
	cleaning.Flat = true
	res := reservation(1, "2024-01-01", "2024-01-08", 4)

	pos := pricing.BuildMiscPositions([]pricing.MiscInput{{Reservation: res, Days: pricing.ResolveAllDays(res.Stay(), []domain.PriceRule{cleaning})}})
	require.Len(t, pos, 1)
	assert.Equal(t, 1, pos[0].Amount)
}
