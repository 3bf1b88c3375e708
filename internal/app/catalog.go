package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

const rulesVersionKey = "rules:version"

// catalog reads price rules through the cache. Keys carry a version number
// so a single bump after a write retires every cached lookup at once.
type catalog struct {
	repo     domain.PricingRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func (c catalog) version(ctx context.Context) int64 {
	if c.cache == nil {
		return 0
	}
	var v int64
	if ok, _ := c.cache.Get(ctx, rulesVersionKey, &v); ok {
		return v
	}
	return 0
}

func (c catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	// INCR keeps no ttl, so the version outlives every key built from it
	if _, err := c.cache.Incr(ctx, rulesVersionKey); err != nil {
		log.Warn().Err(err).Msg("catalog version bump failed")
	}
}

func ruleKey(v int64, q domain.RuleQuery) string {
	kinds := make([]string, 0, len(q.Kinds))
	for _, k := range q.Kinds {
		kinds = append(kinds, k.String())
	}
	return fmt.Sprintf("rules:v%d:%s:%s:%s", v, strings.Join(kinds, ","), optID(q.OriginID), optID(q.CategoryID))
}

func optID(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

// rules returns the candidates for q in priority order.
func (c catalog) rules(ctx context.Context, q domain.RuleQuery) ([]domain.PriceRule, error) {
	var key string
	if c.cache != nil {
		key = ruleKey(c.version(ctx), q)
		var cached []domain.PriceRule
		if ok, _ := c.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}
	rs, err := c.repo.PriceRules(ctx, q)
	if err != nil {
		return nil, err
	}
	pricing.SortByPriority(rs)
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, rs, int(c.cacheTTL.Seconds()))
	}
	return rs, nil
}
