package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

var maxVAT = decimal.NewFromInt(100)

// PriceService maintains the price catalog. Writes are refused while an
// active rule would clash with another active rule of the same kind.
type PriceService struct {
	repo    domain.PricingRepository
	catalog catalog
}

func NewPriceService(p domain.PricingRepository, c domain.Cache, ttl time.Duration) *PriceService {
	return &PriceService{repo: p, catalog: catalog{repo: p, cache: c, cacheTTL: ttl}}
}

// SaveResult carries either the stored rule or the rules blocking it.
type SaveResult struct {
	Rule      domain.PriceRule   `json:"rule"`
	Conflicts []domain.PriceRule `json:"conflicts,omitempty"`
}

func (r SaveResult) Saved() bool { return len(r.Conflicts) == 0 }

func validateRule(r domain.PriceRule) error {
	switch {
	case strings.TrimSpace(r.Description) == "":
		return fmt.Errorf("description required: %w", domain.ErrValidation)
	case r.Amount.IsNegative():
		return fmt.Errorf("amount must not be negative: %w", domain.ErrValidation)
	case r.VAT.IsNegative() || r.VAT.GreaterThan(maxVAT):
		return fmt.Errorf("vat out of range: %w", domain.ErrValidation)
	case len(r.Origins) == 0:
		return fmt.Errorf("at least one origin required: %w", domain.ErrValidation)
	case r.Kind != domain.KindMiscellaneous && !r.Kind.BillsApartment():
		return fmt.Errorf("unknown kind %d: %w", r.Kind, domain.ErrValidation)
	case r.Season != nil && domain.Day(r.Season.End).Before(domain.Day(r.Season.Start)):
		return fmt.Errorf("season ends before it starts: %w", domain.ErrValidation)
	}
	return nil
}

// Save validates, normalizes and stores r. Blocking conflicts are reported
// in the result and leave the catalog untouched.
func (s *PriceService) Save(ctx context.Context, r domain.PriceRule) (SaveResult, error) {
	r.Description = strings.TrimSpace(r.Description)
	if err := validateRule(r); err != nil {
		return SaveResult{}, err
	}
	r.Normalize()

	var out SaveResult
	err := s.repo.Serialize(ctx, domain.PriceRuleLockKey(r.Kind), func(ctx context.Context) error {
		var err error
		out, err = s.save(ctx, r)
		return err
	})
	if err != nil {
		return SaveResult{}, err
	}
	if out.Saved() {
		s.catalog.invalidate(ctx)
		log.Info().Int64("rule", out.Rule.ID).Str("kind", r.Kind.String()).Bool("active", r.Active).Msg("price rule saved")
	}
	return out, nil
}

// save checks and writes r; callers hold the lock for r's kind.
func (s *PriceService) save(ctx context.Context, r domain.PriceRule) (SaveResult, error) {
	if r.Active {
		candidates, err := s.repo.ConflictCandidates(ctx, r)
		if err != nil {
			return SaveResult{}, err
		}
		if conflicts := pricing.FindConflicts(r, candidates); len(conflicts) > 0 {
			observability.ObservePriceConflict()
			log.Warn().
				Int64("rule", r.ID).
				Str("kind", r.Kind.String()).
				Int("conflicts", len(conflicts)).
				Msg("price rule refused")
			return SaveResult{Rule: r, Conflicts: conflicts}, nil
		}
	}

	id, err := s.repo.SavePriceRule(ctx, r)
	if err != nil {
		return SaveResult{}, err
	}
	r.ID = id
	return SaveResult{Rule: r}, nil
}

func (s *PriceService) Get(ctx context.Context, id int64) (domain.PriceRule, error) {
	return s.repo.GetPriceRule(ctx, id)
}

func (s *PriceService) List(ctx context.Context) ([]domain.PriceRule, error) {
	rs, err := s.repo.ListPriceRules(ctx)
	if err != nil {
		return nil, err
	}
	pricing.SortByPriority(rs)
	return rs, nil
}

func (s *PriceService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeletePriceRule(ctx, id); err != nil {
		return err
	}
	s.catalog.invalidate(ctx)
	return nil
}

// ConflictPair is two stored rules that clash with each other.
type ConflictPair struct {
	A domain.PriceRule `json:"a"`
	B domain.PriceRule `json:"b"`
}

// Audit checks the whole stored catalog pairwise, e.g. after a bulk import
// that bypassed Save.
func (s *PriceService) Audit(ctx context.Context) ([]ConflictPair, error) {
	rs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []ConflictPair
	for i := range rs {
		for _, other := range pricing.FindConflicts(rs[i], rs[i+1:]) {
			out = append(out, ConflictPair{A: rs[i], B: other})
		}
	}
	return out, nil
}
