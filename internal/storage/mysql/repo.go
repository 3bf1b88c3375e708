package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"guesthouse/internal/domain"
)

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return domain.Day(t)
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	x := int(n.Int64)
	return &x
}
func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	x := n.Int64
	return &x
}

// placeholders returns "?,?,?" for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// withTx runs fn in a transaction and rolls back on error.
func (r *Repo) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lockWait bounds how long Serialize queues behind another writer.
const lockWait = 10

// Serialize holds the MySQL named lock for key while fn runs. Named locks
// belong to a session, so one connection is pinned for acquire and release.
func (r *Repo) Serialize(ctx context.Context, key string, fn func(context.Context) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	name := "guesthouse:" + key
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, getLockSQL, name, lockWait).Scan(&got); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if !got.Valid {
		return fmt.Errorf("lock %s: server error", key)
	}
	if got.Int64 == 0 {
		return fmt.Errorf("lock %s busy: %w", key, domain.ErrConflict)
	}
	// release with a fresh context so a cancelled request still frees the lock
	defer conn.ExecContext(context.WithoutCancel(ctx), releaseLockSQL, name)

	return fn(ctx)
}

type scanner interface{ Scan(dest ...any) error }

/********** price rules **********/

func weekdayMask(w domain.Weekdays) uint8 {
	var m uint8
	for i, on := range w {
		if on {
			m |= 1 << i
		}
	}
	return m
}

func maskWeekdays(m uint8) domain.Weekdays {
	var w domain.Weekdays
	for i := range w {
		w[i] = m&(1<<i) != 0
	}
	return w
}

func scanRule(s scanner) (domain.PriceRule, error) {
	var (
		p                      domain.PriceRule
		kind                   int
		seasonStart, seasonEnd sql.NullTime
		weekdays               uint8
		beds, persons, minStay sql.NullInt64
	)
	if err := s.Scan(
		&p.ID, &p.Description, &p.Amount, &p.VAT, &p.VATIncluded, &p.Flat, &kind,
		&seasonStart, &seasonEnd, &weekdays, &p.AllDays, &p.Active, &p.Priority,
		&beds, &persons, &minStay,
	); err != nil {
		return domain.PriceRule{}, err
	}
	p.Kind = domain.PriceKind(kind)
	p.Weekdays = maskWeekdays(weekdays)
	if seasonStart.Valid && seasonEnd.Valid {
		p.Season = &domain.Season{Start: domain.Day(seasonStart.Time), End: domain.Day(seasonEnd.Time)}
	}
	p.Beds, p.Persons, p.MinStay = nullInt(beds), nullInt(persons), nullInt(minStay)
	return p, nil
}

func (r *Repo) queryRules(ctx context.Context, query string, args ...any) ([]domain.PriceRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceRule
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, r.loadRuleSets(ctx, out)
}

// loadRuleSets fills origins and categories for rules in place.
func (r *Repo) loadRuleSets(ctx context.Context, rules []domain.PriceRule) error {
	if len(rules) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(rules))
	args := make([]any, 0, len(rules))
	for i, p := range rules {
		idx[p.ID] = i
		args = append(args, p.ID)
	}
	load := func(query string, add func(i int, v int64)) error {
		rows, err := r.db.QueryContext(ctx, fmt.Sprintf(query, placeholders(len(args))), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ruleID, v int64
			if err := rows.Scan(&ruleID, &v); err != nil {
				return err
			}
			add(idx[ruleID], v)
		}
		return rows.Err()
	}
	if err := load(ruleOriginsSQL, func(i int, v int64) { rules[i].Origins = append(rules[i].Origins, v) }); err != nil {
		return err
	}
	return load(ruleCategoriesSQL, func(i int, v int64) { rules[i].Categories = append(rules[i].Categories, v) })
}

func (r *Repo) PriceRules(ctx context.Context, q domain.RuleQuery) ([]domain.PriceRule, error) {
	if len(q.Kinds) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(q.Kinds)+4)
	for _, k := range q.Kinds {
		args = append(args, int(k))
	}
	args = append(args, valInt64(q.OriginID), valInt64(q.CategoryID))
	return r.queryRules(ctx, fmt.Sprintf(priceRulesSQL, placeholders(len(q.Kinds))), args...)
}

func (r *Repo) ConflictCandidates(ctx context.Context, p domain.PriceRule) ([]domain.PriceRule, error) {
	return r.queryRules(ctx, conflictCandidatesSQL, int(p.Kind), p.ID)
}

func (r *Repo) ListPriceRules(ctx context.Context) ([]domain.PriceRule, error) {
	return r.queryRules(ctx, listPriceRulesSQL)
}

func (r *Repo) GetPriceRule(ctx context.Context, id int64) (domain.PriceRule, error) {
	rs, err := r.queryRules(ctx, getPriceRuleSQL, id)
	if err != nil {
		return domain.PriceRule{}, err
	}
	if len(rs) == 0 {
		return domain.PriceRule{}, fmt.Errorf("price rule %d: %w", id, domain.ErrNotFound)
	}
	return rs[0], nil
}

func ruleArgs(p domain.PriceRule) []any {
	var start, end any
	if p.Season != nil {
		start, end = valDate(p.Season.Start), valDate(p.Season.End)
	}
	return []any{
		p.Description, p.Amount, p.VAT, p.VATIncluded, p.Flat, int(p.Kind),
		start, end, weekdayMask(p.Weekdays), p.AllDays, p.Active, p.Priority,
		valInt(p.Beds), valInt(p.Persons), valInt(p.MinStay),
	}
}

// SavePriceRule inserts when ID is zero and replaces the stored rule otherwise.
func (r *Repo) SavePriceRule(ctx context.Context, p domain.PriceRule) (int64, error) {
	id := p.ID
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if id == 0 {
			res, err := tx.ExecContext(ctx, insertPriceRuleSQL, ruleArgs(p)...)
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		} else {
			var one int
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM price_rules WHERE id = ? FOR UPDATE`, id).Scan(&one); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("price rule %d: %w", id, domain.ErrNotFound)
				}
				return err
			}
			if _, err := tx.ExecContext(ctx, updatePriceRuleSQL, append(ruleArgs(p), id)...); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM price_rule_origins WHERE price_rule_id = ?`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM price_rule_categories WHERE price_rule_id = ?`, id); err != nil {
				return err
			}
		}
		for _, o := range p.Origins {
			if _, err := tx.ExecContext(ctx, `INSERT INTO price_rule_origins (price_rule_id, origin_id) VALUES (?, ?)`, id, o); err != nil {
				return err
			}
		}
		for _, c := range p.Categories {
			if _, err := tx.ExecContext(ctx, `INSERT INTO price_rule_categories (price_rule_id, category_id) VALUES (?, ?)`, id, c); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *Repo) DeletePriceRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM price_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("price rule %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

/********** misses **********/

func (r *Repo) LogMiss(ctx context.Context, source, ref, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	_, err := r.db.ExecContext(ctx, insertMissSQL, source, ref, reason)
	return err
}
