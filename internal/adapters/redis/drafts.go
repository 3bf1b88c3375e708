package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"guesthouse/internal/domain"
)

// DraftStore keeps invoice drafts between requests. Drafts expire after ttl
// of inactivity; every save refreshes the expiry.
type DraftStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewDraftStore(c *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{c: c, ttl: ttl}
}

func draftKey(id string) string { return "draft:" + id }

func (s *DraftStore) Load(ctx context.Context, id string) (domain.DraftInvoice, error) {
	b, err := s.c.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DraftInvoice{}, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DraftInvoice{}, err
	}
	var d domain.DraftInvoice
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.DraftInvoice{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return d, nil
}

// Save refuses drafts without an id; ids are handed out by the caller.
func (s *DraftStore) Save(ctx context.Context, d domain.DraftInvoice) error {
	if d.ID == "" {
		return fmt.Errorf("draft without id: %w", domain.ErrValidation)
	}
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, draftKey(d.ID), b, s.ttl).Err()
}

func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.c.Del(ctx, draftKey(id)).Err()
}
