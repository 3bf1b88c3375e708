package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/domain"
)

const invoiceStatusOpen = 1

// DraftView is a draft together with its current totals.
type DraftView struct {
	domain.DraftInvoice
	Sums domain.Sums `json:"sums"`
}

// DraftService edits invoices before they are committed. Drafts live in the
// draft store keyed by an opaque handle.
type DraftService struct {
	invoices *InvoiceService
	store    domain.DraftStore
	repo     domain.InvoiceRepository
	now      func() time.Time
}

func NewDraftService(inv *InvoiceService, store domain.DraftStore, repo domain.InvoiceRepository) *DraftService {
	return &DraftService{invoices: inv, store: store, repo: repo, now: time.Now}
}

func (s *DraftService) view(d domain.DraftInvoice) DraftView {
	return DraftView{DraftInvoice: d, Sums: s.invoices.Calculator().Calculate(d.Apartments, d.Misc)}
}

func (s *DraftService) Create(ctx context.Context, ids []int64, reuseExisting bool) (DraftView, error) {
	p, err := s.invoices.Preview(ctx, ids, reuseExisting)
	if err != nil {
		return DraftView{}, err
	}
	d := domain.DraftInvoice{
		ID:             uuid.NewString(),
		ReservationIDs: append([]int64(nil), ids...),
		Apartments:     p.Apartments,
		Misc:           p.Misc,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Save(ctx, d); err != nil {
		return DraftView{}, err
	}
	log.Info().Str("draft", d.ID).Ints64("reservations", ids).Msg("draft created")
	return DraftView{DraftInvoice: d, Sums: p.Sums}, nil
}

func (s *DraftService) Get(ctx context.Context, id string) (DraftView, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	return s.view(d), nil
}

// AddMiscPosition appends a hand-written position, e.g. a discount or a fee
// agreed at the desk.
func (s *DraftService) AddMiscPosition(ctx context.Context, id string, p domain.MiscPosition) (DraftView, error) {
	p.Description = strings.TrimSpace(p.Description)
	switch {
	case p.Description == "":
		return DraftView{}, fmt.Errorf("description required: %w", domain.ErrValidation)
	case p.Amount <= 0 && !p.Flat:
		return DraftView{}, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	case p.VAT.IsNegative():
		return DraftView{}, fmt.Errorf("vat must not be negative: %w", domain.ErrValidation)
	}
	if p.Flat {
		p.Amount = 1
	}
	return s.edit(ctx, id, func(d *domain.DraftInvoice) error {
		d.Misc = append(d.Misc, p)
		return nil
	})
}

func (s *DraftService) RemoveApartmentPosition(ctx context.Context, id string, idx int) (DraftView, error) {
	return s.edit(ctx, id, func(d *domain.DraftInvoice) error {
		if idx < 0 || idx >= len(d.Apartments) {
			return fmt.Errorf("apartment position %d: %w", idx, domain.ErrNotFound)
		}
		d.Apartments = append(d.Apartments[:idx], d.Apartments[idx+1:]...)
		return nil
	})
}

func (s *DraftService) RemoveMiscPosition(ctx context.Context, id string, idx int) (DraftView, error) {
	return s.edit(ctx, id, func(d *domain.DraftInvoice) error {
		if idx < 0 || idx >= len(d.Misc) {
			return fmt.Errorf("misc position %d: %w", idx, domain.ErrNotFound)
		}
		d.Misc = append(d.Misc[:idx], d.Misc[idx+1:]...)
		return nil
	})
}

func (s *DraftService) edit(ctx context.Context, id string, fn func(*domain.DraftInvoice) error) (DraftView, error) {
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	if err := fn(&d); err != nil {
		return DraftView{}, err
	}
	if err := s.store.Save(ctx, d); err != nil {
		return DraftView{}, err
	}
	return s.view(d), nil
}

// Commit stores the draft as an invoice under the given number and drops the draft.
func (s *DraftService) Commit(ctx context.Context, id, number string, c domain.Customer) (int64, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, fmt.Errorf("invoice number required: %w", domain.ErrValidation)
	}
	d, err := s.store.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(d.Apartments) == 0 && len(d.Misc) == 0 {
		return 0, fmt.Errorf("draft %s has no positions: %w", id, domain.ErrValidation)
	}
	invID, err := s.repo.CreateInvoice(ctx, domain.Invoice{
		Number:         number,
		Date:           s.now().UTC(),
		Customer:       c,
		Status:         invoiceStatusOpen,
		ReservationIDs: d.ReservationIDs,
		Apartments:     d.Apartments,
		Misc:           d.Misc,
	})
	if err != nil {
		return 0, fmt.Errorf("create invoice: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("draft not removed after commit")
	}
	log.Info().Str("draft", id).Int64("invoice", invID).Str("number", number).Msg("draft committed")
	return invID, nil
}

func (s *DraftService) Discard(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
