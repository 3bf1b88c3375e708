package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

var (
	apartmentKinds = []domain.PriceKind{domain.KindApartment, domain.KindPersonBased}
	miscKinds      = []domain.PriceKind{domain.KindMiscellaneous}
)

// InvoiceService runs the billing pipeline over stored reservations.
type InvoiceService struct {
	reservations domain.ReservationRepository
	catalog      catalog
	calc         pricing.Calculator
}

func NewInvoiceService(p domain.PricingRepository, r domain.ReservationRepository, c domain.Cache, ttl time.Duration, calc pricing.Calculator) *InvoiceService {
	return &InvoiceService{
		reservations: r,
		catalog:      catalog{repo: p, cache: c, cacheTTL: ttl},
		calc:         calc,
	}
}

// Calculator exposes the totals policy so drafts and renderers agree with previews.
func (s *InvoiceService) Calculator() pricing.Calculator { return s.calc }

// Preview bills the given reservations together. With reuseExisting the
// miscellaneous prices attached to each reservation are used instead of the
// current catalog.
func (s *InvoiceService) Preview(ctx context.Context, ids []int64, reuseExisting bool) (domain.InvoicePreview, error) {
	if len(ids) == 0 {
		return domain.InvoicePreview{}, fmt.Errorf("no reservations: %w", domain.ErrValidation)
	}
	ids = uniqueIDs(ids)
	observability.ObservePreview(reuseExisting)

	var out domain.InvoicePreview
	var miscIn []pricing.MiscInput
	for _, id := range ids {
		res, err := s.reservations.GetReservation(ctx, id)
		if err != nil {
			return domain.InvoicePreview{}, fmt.Errorf("reservation %d: %w", id, err)
		}
		apps, in, err := s.bill(ctx, res, reuseExisting)
		if err != nil {
			return domain.InvoicePreview{}, err
		}
		out.Apartments = append(out.Apartments, apps...)
		miscIn = append(miscIn, in)
	}
	out.Misc = pricing.BuildMiscPositions(miscIn)
	out.Sums = s.calc.Calculate(out.Apartments, out.Misc)

	log.Debug().
		Ints64("reservations", ids).
		Int("apartment_positions", len(out.Apartments)).
		Int("misc_positions", len(out.Misc)).
		Str("gross", out.Sums.Gross.StringFixed(2)).
		Msg("invoice preview")
	return out, nil
}

// uniqueIDs drops repeated ids, keeping the first occurrence; a reservation
// is billed once per invoice.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *InvoiceService) bill(ctx context.Context, res domain.Reservation, reuseExisting bool) ([]domain.ApartmentPosition, pricing.MiscInput, error) {
	stay := res.Stay()
	q := domain.RuleQuery{Kinds: apartmentKinds, OriginID: res.OriginID, CategoryID: res.Apartment.CategoryID}

	candidates, err := s.catalog.rules(ctx, q)
	if err != nil {
		return nil, pricing.MiscInput{}, err
	}
	eligible := candidates[:0:0]
	for _, r := range candidates {
		if pricing.StayEligible(r, res, stay.Nights()) {
			eligible = append(eligible, r)
		}
	}
	apps := pricing.BuildApartmentPositions(res, pricing.ResolveDays(stay, eligible))

	var misc []domain.PriceRule
	if reuseExisting {
		for _, r := range res.Prices {
			if r.Kind == domain.KindMiscellaneous {
				misc = append(misc, r)
			}
		}
		pricing.SortByPriority(misc)
	} else {
		q.Kinds = miscKinds
		if misc, err = s.catalog.rules(ctx, q); err != nil {
			return nil, pricing.MiscInput{}, err
		}
	}
	return apps, pricing.MiscInput{Reservation: res, Days: pricing.ResolveAllDays(stay, misc)}, nil
}
