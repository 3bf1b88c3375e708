package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

type ReservationService struct {
	repo domain.ReservationRepository
}

func NewReservationService(r domain.ReservationRepository) *ReservationService {
	return &ReservationService{repo: r}
}

// UpdateResult reports what an update actually changed.
type UpdateResult struct {
	Reservation  domain.Reservation   `json:"reservation"`
	DatesApplied bool                 `json:"dates_applied"`
	Conflicts    []domain.Reservation `json:"conflicts,omitempty"`
}

func ordered(start, end time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		return end, start
	}
	return start, end
}

func (s *ReservationService) overlaps(ctx context.Context, aptID int64, start, end time.Time, excludeID int64) ([]domain.Reservation, error) {
	existing, err := s.repo.ReservationsForApartment(ctx, aptID, start, end)
	if err != nil {
		return nil, err
	}
	return pricing.FindOverlaps(aptID, start, end, existing, excludeID), nil
}

// Update applies u to the stored reservation. Reversed dates are swapped.
// Apartment, persons and status are always written; the new dates only when
// they do not double book the apartment. If the dates are refused and the
// apartment changes, the move itself must fit the old dates.
func (s *ReservationService) Update(ctx context.Context, u domain.ReservationUpdate) (UpdateResult, error) {
	if u.Persons <= 0 {
		return UpdateResult{}, fmt.Errorf("persons must be positive: %w", domain.ErrValidation)
	}
	target := u.ApartmentID
	if target == 0 {
		res, err := s.repo.GetReservation(ctx, u.ID)
		if err != nil {
			return UpdateResult{}, err
		}
		target = res.Apartment.ID
	}

	var out UpdateResult
	err := s.repo.Serialize(ctx, domain.ApartmentLockKey(target), func(ctx context.Context) error {
		var err error
		out, err = s.update(ctx, u)
		return err
	})
	return out, err
}

// update runs under the lock of the apartment the reservation ends up in.
func (s *ReservationService) update(ctx context.Context, u domain.ReservationUpdate) (UpdateResult, error) {
	res, err := s.repo.GetReservation(ctx, u.ID)
	if err != nil {
		return UpdateResult{}, err
	}
	apt := res.Apartment
	if u.ApartmentID != 0 && u.ApartmentID != apt.ID {
		if apt, err = s.repo.GetApartment(ctx, u.ApartmentID); err != nil {
			return UpdateResult{}, err
		}
	}

	start, end := ordered(domain.Day(u.Start), domain.Day(u.End))
	conflicts, err := s.overlaps(ctx, apt.ID, start, end, res.ID)
	if err != nil {
		return UpdateResult{}, err
	}
	out := UpdateResult{Conflicts: conflicts, DatesApplied: len(conflicts) == 0}
	if out.DatesApplied {
		res.Start, res.End = start, end
	} else {
		observability.ObserveStayOverlap("update")
		log.Warn().Int64("reservation", res.ID).Int64("apartment", apt.ID).Int("conflicts", len(conflicts)).Msg("date change refused")
		if apt.ID != res.Apartment.ID {
			blocked, err := s.overlaps(ctx, apt.ID, res.Start, res.End, res.ID)
			if err != nil {
				return UpdateResult{}, err
			}
			if len(blocked) > 0 {
				apt = res.Apartment
			}
		}
	}
	res.Apartment = apt
	res.Persons = u.Persons
	if u.StatusID != 0 {
		res.StatusID = u.StatusID
	}
	if _, err := s.repo.SaveReservation(ctx, res); err != nil {
		return UpdateResult{}, err
	}
	out.Reservation = res
	return out, nil
}

// AvailableApartments lists apartments that are free for [start, end), both
// in storage and among the pending reservations of a booking in progress.
func (s *ReservationService) AvailableApartments(ctx context.Context, start, end time.Time, pending []domain.Reservation) ([]domain.Apartment, error) {
	start, end = ordered(domain.Day(start), domain.Day(end))
	if !start.Before(end) {
		return nil, fmt.Errorf("empty period: %w", domain.ErrValidation)
	}
	apts, err := s.repo.ListApartments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Apartment, 0, len(apts))
	for _, a := range apts {
		if len(pricing.FindOverlaps(a.ID, start, end, pending, 0)) > 0 {
			continue
		}
		booked, err := s.overlaps(ctx, a.ID, start, end, 0)
		if err != nil {
			return nil, err
		}
		if len(booked) == 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

// Import stores a reservation coming from the channel manager. Overlapping
// stays are never written; they are logged as misses under ref.
func (s *ReservationService) Import(ctx context.Context, ref string, r domain.Reservation) (int64, error) {
	r.Start, r.End = ordered(domain.Day(r.Start), domain.Day(r.End))
	if r.Stay().Nights() == 0 {
		_ = s.repo.LogMiss(ctx, "reservation", ref, "empty stay")
		return 0, fmt.Errorf("reservation %s has no nights: %w", ref, domain.ErrValidation)
	}
	apt, err := s.repo.GetApartment(ctx, r.Apartment.ID)
	if errors.Is(err, domain.ErrNotFound) {
		_ = s.repo.LogMiss(ctx, "reservation", ref, "unknown apartment")
	}
	if err != nil {
		return 0, fmt.Errorf("reservation %s: %w", ref, err)
	}
	r.Apartment = apt

	var id int64
	err = s.repo.Serialize(ctx, domain.ApartmentLockKey(apt.ID), func(ctx context.Context) error {
		conflicts, err := s.overlaps(ctx, r.Apartment.ID, r.Start, r.End, r.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			observability.ObserveStayOverlap("import")
			_ = s.repo.LogMiss(ctx, "reservation", ref, fmt.Sprintf("overlaps reservation %d", conflicts[0].ID))
			return fmt.Errorf("reservation %s: %w", ref, domain.ErrConflict)
		}
		id, err = s.repo.SaveReservation(ctx, r)
		return err
	})
	return id, err
}
