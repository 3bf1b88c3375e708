package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"guesthouse/internal/domain"
)

// ApartmentPricing selects how a non-flat apartment position is priced.
type ApartmentPricing int

const (
	// ApartmentPerRun charges the unit price once per position; run
	// boundaries already encode the stay length.
	ApartmentPerRun ApartmentPricing = iota
	// ApartmentPerNight multiplies the unit price by the nights of the run.
	ApartmentPerNight
)

func ParseApartmentPricing(s string) (ApartmentPricing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "run":
		return ApartmentPerRun, nil
	case "night":
		return ApartmentPerNight, nil
	}
	return ApartmentPerRun, fmt.Errorf("unknown apartment pricing %q", s)
}

var hundred = decimal.NewFromInt(100)

// Calculator totals invoice positions per VAT rate. Each bucket is rounded to
// two decimals on its own (half away from zero) and the invoice totals are the
// sums of the rounded buckets.
type Calculator struct {
	Apartment ApartmentPricing
}

type bucket struct {
	gross, vat decimal.Decimal
}

func (c Calculator) Calculate(apps []domain.ApartmentPosition, misc []domain.MiscPosition) domain.Sums {
	buckets := map[string]*bucket{}
	rates := map[string]decimal.Decimal{}
	var sums domain.Sums

	add := func(base, rate decimal.Decimal, includesVAT bool) {
		key := rate.String()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			rates[key] = rate
		}
		gross, vat := VATPortion(base, rate, includesVAT)
		b.gross = b.gross.Add(gross)
		b.vat = b.vat.Add(vat)
	}

	for _, a := range apps {
		base := c.apartmentBase(a)
		add(base, a.VAT, a.IncludesVAT)
		sums.ApartmentTotal = sums.ApartmentTotal.Add(base)
	}
	for _, m := range misc {
		base := m.Price
		if !m.Flat {
			base = m.Price.Mul(decimal.NewFromInt(int64(m.Amount)))
		}
		add(base, m.VAT, m.IncludesVAT)
		sums.MiscTotal = sums.MiscTotal.Add(base)
	}

	for key, b := range buckets {
		vb := domain.VATBucket{Rate: rates[key], Gross: b.gross.Round(2), VAT: b.vat.Round(2)}
		sums.Buckets = append(sums.Buckets, vb)
		sums.Gross = sums.Gross.Add(vb.Gross)
		sums.VATTotal = sums.VATTotal.Add(vb.VAT)
	}
	sort.Slice(sums.Buckets, func(i, j int) bool {
		return sums.Buckets[i].Rate.LessThan(sums.Buckets[j].Rate)
	})
	return sums
}

func (c Calculator) apartmentBase(a domain.ApartmentPosition) decimal.Decimal {
	if a.Flat || c.Apartment == ApartmentPerRun {
		return a.Price
	}
	return a.Price.Mul(decimal.NewFromInt(int64(a.Nights())))
}

// VATPortion returns the gross contribution and the VAT contained in it for a
// base amount. An inclusive base already is gross; an exclusive one gets the
// VAT added on top.
func VATPortion(base, rate decimal.Decimal, includesVAT bool) (gross, vat decimal.Decimal) {
	if includesVAT {
		vat = base.Mul(rate).Div(hundred.Add(rate))
		return base, vat
	}
	vat = base.Mul(rate).Div(hundred)
	return base.Add(vat), vat
}
