package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guesthouse/internal/app"
	"guesthouse/internal/domain"
)

var apt14 = domain.Apartment{ID: 8, Number: "14", BedsMax: 4}

func TestUpdate_SwapsReversedDates(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12}, reservation(5, "2024-01-01", "2024-01-04", 2))
	svc := app.NewReservationService(repo)

	out, err := svc.Update(context.Background(), domain.ReservationUpdate{
		ID: 5, Start: date("2024-01-10"), End: date("2024-01-07"), Persons: 3,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	got := repo.res[5]
	if !out.DatesApplied || !got.Start.Equal(date("2024-01-07")) || !got.End.Equal(date("2024-01-10")) || got.Persons != 3 {
		t.Fatalf("unexpected reservation: %+v", got)
	}
}

func TestUpdate_OverlapKeepsDatesButAppliesRest(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12},
		reservation(5, "2024-01-01", "2024-01-04", 2),
		reservation(6, "2024-01-04", "2024-01-08", 2),
	)
	svc := app.NewReservationService(repo)

	out, err := svc.Update(context.Background(), domain.ReservationUpdate{
		ID: 5, Start: date("2024-01-01"), End: date("2024-01-05"), Persons: 1, StatusID: 3,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.DatesApplied || len(out.Conflicts) != 1 || out.Conflicts[0].ID != 6 {
		t.Fatalf("expected conflict with 6, got %+v", out)
	}
	got := repo.res[5]
	if !got.End.Equal(date("2024-01-04")) || got.Persons != 1 || got.StatusID != 3 {
		t.Fatalf("expected old dates with new persons and status, got %+v", got)
	}
}

func TestUpdate_ExcludesItself(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12}, reservation(5, "2024-01-01", "2024-01-04", 2))
	svc := app.NewReservationService(repo)

	out, err := svc.Update(context.Background(), domain.ReservationUpdate{
		ID: 5, Start: date("2024-01-02"), End: date("2024-01-06"), Persons: 2,
	})
	if err != nil || !out.DatesApplied {
		t.Fatalf("shifting a stay over its own dates must work: %+v %v", out, err)
	}
}

func TestUpdate_MoveToOtherApartment(t *testing.T) {
	other := reservation(6, "2024-01-02", "2024-01-03", 2)
	other.Apartment = apt14
	repo := newFakeReservations([]domain.Apartment{apt12, apt14}, reservation(5, "2024-01-01", "2024-01-04", 2), other)
	svc := app.NewReservationService(repo)

	out, err := svc.Update(context.Background(), domain.ReservationUpdate{
		ID: 5, ApartmentID: apt14.ID, Start: date("2024-01-01"), End: date("2024-01-04"), Persons: 2,
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.DatesApplied || repo.res[5].Apartment.ID != apt12.ID {
		t.Fatalf("move into an occupied apartment must be refused, got %+v", repo.res[5])
	}

	if _, err := svc.Update(context.Background(), domain.ReservationUpdate{ID: 5, ApartmentID: 99, Persons: 2}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown apartment, got %v", err)
	}
}

func TestAvailableApartments(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12, apt14}, reservation(5, "2024-01-01", "2024-01-04", 2))
	svc := app.NewReservationService(repo)
	ctx := context.Background()

	free, err := svc.AvailableApartments(ctx, date("2024-01-03"), date("2024-01-05"), nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(free) != 1 || free[0].ID != apt14.ID {
		t.Fatalf("expected only 14, got %+v", free)
	}

	// checkout day is free again
	free, _ = svc.AvailableApartments(ctx, date("2024-01-04"), date("2024-01-05"), nil)
	if len(free) != 2 {
		t.Fatalf("expected both apartments, got %+v", free)
	}

	pending := []domain.Reservation{{Apartment: apt14, Start: date("2024-01-04"), End: date("2024-01-06")}}
	free, _ = svc.AvailableApartments(ctx, date("2024-01-04"), date("2024-01-05"), pending)
	if len(free) != 1 || free[0].ID != apt12.ID {
		t.Fatalf("pending booking must block apartment 14, got %+v", free)
	}

	if _, err := svc.AvailableApartments(ctx, date("2024-01-04"), date("2024-01-04"), nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImport_RefusesOverlap(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12}, reservation(5, "2024-01-01", "2024-01-04", 2))
	svc := app.NewReservationService(repo)
	ctx := context.Background()

	in := reservation(0, "2024-01-03", "2024-01-05", 2)
	if _, err := svc.Import(ctx, "B-1", in); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.misses) != 1 || repo.misses[0].ref != "B-1" {
		t.Fatalf("expected a logged miss, got %+v", repo.misses)
	}

	in = reservation(0, "2024-01-04", "2024-01-05", 2)
	id, err := svc.Import(ctx, "B-2", in)
	if err != nil || id == 0 {
		t.Fatalf("import: %d %v", id, err)
	}
	if repo.res[id].Apartment.Number != "12" {
		t.Fatalf("apartment details should be loaded, got %+v", repo.res[id].Apartment)
	}
}

func TestImport_ConcurrentOverlapStoresOne(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12})
	repo.delay = 20 * time.Millisecond
	svc := app.NewReservationService(repo)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, ref := range []string{"B-1", "B-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Import(context.Background(), ref, reservation(0, "2024-01-01", "2024-01-04", 2))
		}()
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		if errors.Is(err, domain.ErrConflict) {
			conflicts++
		} else if err != nil {
			t.Fatalf("import: %v", err)
		}
	}
	if conflicts != 1 || len(repo.res) != 1 {
		t.Fatalf("expected one stored stay and one conflict, conflicts=%d stored=%d", conflicts, len(repo.res))
	}
}

func TestUpdate_ConcurrentMovesIntoSameApartment(t *testing.T) {
	repo := newFakeReservations([]domain.Apartment{apt12, apt14},
		reservation(5, "2024-01-01", "2024-01-04", 2),
		reservation(6, "2024-01-01", "2024-01-04", 2),
	)
	r6 := repo.res[6]
	r6.Apartment = apt14
	repo.res[6] = r6
	repo.delay = 20 * time.Millisecond
	svc := app.NewReservationService(repo)

	// both stays try to take apartment 14 for a fresh period
	var wg sync.WaitGroup
	for _, id := range []int64{5, 6} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Update(context.Background(), domain.ReservationUpdate{
				ID: id, ApartmentID: apt14.ID, Start: date("2024-02-01"), End: date("2024-02-05"), Persons: 2,
			})
		}()
	}
	wg.Wait()

	in14 := 0
	for _, r := range repo.res {
		if r.Apartment.ID == apt14.ID && r.Start.Equal(date("2024-02-01")) {
			in14++
		}
	}
	if in14 != 1 {
		t.Fatalf("expected one stay in apartment 14 for February, got %d", in14)
	}
}
