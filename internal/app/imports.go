package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
)

// ImportedReservation is a channel booking mapped into the domain.
type ImportedReservation struct {
	Ref         string
	Reservation domain.Reservation
}

// ImportStats counts what an import run did.
type ImportStats struct {
	Saved   int
	Skipped int
	Failed  int
}

func (s *ImportStats) Add(o ImportStats) {
	s.Saved += o.Saved
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// ImportService pulls prices and bookings from the channel manager and runs
// them through the same validation as manual edits.
type ImportService struct {
	channel      domain.ChannelClient
	prices       *PriceService
	reservations *ReservationService
	misses       domain.ReservationRepository
}

func NewImportService(c domain.ChannelClient, p *PriceService, r *ReservationService, misses domain.ReservationRepository) *ImportService {
	return &ImportService{channel: c, prices: p, reservations: r, misses: misses}
}

// rejected reports errors that skip a single record instead of failing the run.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound)
}

// ImportPrices stores every channel price that passes validation and does not
// clash with the catalog. A missing price feed is logged and not an error.
func (s *ImportService) ImportPrices(ctx context.Context) (ImportStats, error) {
	var st ImportStats
	raw, err := s.channel.GetPriceRules(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.misses.LogMiss(ctx, "price", "*", "feed not found")
			return st, nil
		}
		return st, err
	}
	for _, m := range raw {
		ref, rule := mapPriceRule(m)
		res, err := s.prices.Save(ctx, rule)
		switch {
		case err != nil && rejected(err):
			st.Skipped++
			_ = s.misses.LogMiss(ctx, "price", ref, err.Error())
			continue
		case err != nil:
			return st, fmt.Errorf("save %s: %w", describeRef("price", ref), err)
		case !res.Saved():
			st.Skipped++
			_ = s.misses.LogMiss(ctx, "price", ref, fmt.Sprintf("conflicts with rule %d", res.Conflicts[0].ID))
			continue
		}
		st.Saved++
	}
	return st, nil
}

// FetchReservations loads bookings changed since the given time, grouped per
// apartment. Groups are independent; bookings inside a group must be written
// one after another so the overlap check sees its predecessors.
func (s *ImportService) FetchReservations(ctx context.Context, since time.Time) ([][]ImportedReservation, error) {
	raw, err := s.channel.GetReservations(ctx, since)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.misses.LogMiss(ctx, "reservation", "*", "feed not found")
			return nil, nil
		}
		return nil, err
	}

	byApt := map[int64][]ImportedReservation{}
	for _, m := range raw {
		ref, r, ok := mapReservation(m)
		if !ok {
			_ = s.misses.LogMiss(ctx, "reservation", ref, "incomplete record")
			continue
		}
		byApt[r.Apartment.ID] = append(byApt[r.Apartment.ID], ImportedReservation{Ref: ref, Reservation: r})
	}

	ids := make([]int64, 0, len(byApt))
	for id := range byApt {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([][]ImportedReservation, 0, len(ids))
	for _, id := range ids {
		g := byApt[id]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Reservation.Start.Before(g[j].Reservation.Start) })
		out = append(out, g)
	}
	return out, nil
}

// ImportGroup writes one apartment's bookings in arrival order.
func (s *ImportService) ImportGroup(ctx context.Context, group []ImportedReservation) (ImportStats, error) {
	var st ImportStats
	for _, in := range group {
		id, err := s.reservations.Import(ctx, in.Ref, in.Reservation)
		switch {
		case err == nil:
			st.Saved++
			log.Debug().Str("ref", in.Ref).Int64("id", id).Msg("reservation imported")
		case rejected(err):
			st.Skipped++
			log.Info().Str("ref", in.Ref).Err(err).Msg("reservation skipped")
		case ctx.Err() != nil:
			return st, ctx.Err()
		default:
			st.Failed++
			log.Warn().Str("ref", in.Ref).Str("error_type", observability.LabelErr(err)).Err(err).Msg("reservation import failed")
		}
	}
	return st, nil
}
