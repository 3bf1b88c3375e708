package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"guesthouse/internal/domain"
)

// ---- fakes ----

// keyedLocks serializes callers per key like the mysql named locks do.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) Serialize(ctx context.Context, key string, fn func(context.Context) error) error {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

type fakePricing struct {
	keyedLocks
	mu    sync.Mutex
	rules map[int64]domain.PriceRule
	next  int64
	calls int
	// delay widens the window between the conflict read and the write
	delay time.Duration
}

func newFakePricing(rs ...domain.PriceRule) *fakePricing {
	f := &fakePricing{rules: map[int64]domain.PriceRule{}, next: 100}
	for _, r := range rs {
		f.rules[r.ID] = r
	}
	return f
}

func (f *fakePricing) sorted() []domain.PriceRule {
	out := make([]domain.PriceRule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.PriceRule) int { return int(a.ID - b.ID) })
	return out
}

func matchesOpt(set []int64, id *int64) bool {
	return len(set) == 0 || (id != nil && slices.Contains(set, *id))
}

func (f *fakePricing) PriceRules(ctx context.Context, q domain.RuleQuery) ([]domain.PriceRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []domain.PriceRule
	for _, r := range f.sorted() {
		if r.Active && slices.Contains(q.Kinds, r.Kind) && matchesOpt(r.Origins, q.OriginID) && matchesOpt(r.Categories, q.CategoryID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePricing) ConflictCandidates(ctx context.Context, r domain.PriceRule) ([]domain.PriceRule, error) {
	f.mu.Lock()
	var out []domain.PriceRule
	for _, o := range f.sorted() {
		if o.Active && o.Kind == r.Kind {
			out = append(out, o)
		}
	}
	f.mu.Unlock()
	time.Sleep(f.delay)
	return out, nil
}

func (f *fakePricing) ListPriceRules(ctx context.Context) ([]domain.PriceRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(), nil
}

func (f *fakePricing) GetPriceRule(ctx context.Context, id int64) (domain.PriceRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return domain.PriceRule{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakePricing) SavePriceRule(ctx context.Context, r domain.PriceRule) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		f.next++
		r.ID = f.next
	}
	f.rules[r.ID] = r
	return r.ID, nil
}

func (f *fakePricing) DeletePriceRule(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

type miss struct{ source, ref, reason string }

type fakeReservations struct {
	keyedLocks
	mu         sync.Mutex
	res        map[int64]domain.Reservation
	apartments map[int64]domain.Apartment
	misses     []miss
	next       int64
	delay      time.Duration
}

func newFakeReservations(apts []domain.Apartment, rs ...domain.Reservation) *fakeReservations {
	f := &fakeReservations{res: map[int64]domain.Reservation{}, apartments: map[int64]domain.Apartment{}, next: 1000}
	for _, a := range apts {
		f.apartments[a.ID] = a
	}
	for _, r := range rs {
		f.res[r.ID] = r
	}
	return f
}

func (f *fakeReservations) ReservationsForApartment(ctx context.Context, aptID int64, start, end time.Time) ([]domain.Reservation, error) {
	defer time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.res {
		if r.Apartment.ID == aptID && r.Start.Before(end) && start.Before(r.End) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *fakeReservations) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (f *fakeReservations) SaveReservation(ctx context.Context, r domain.Reservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		f.next++
		r.ID = f.next
	}
	f.res[r.ID] = r
	return r.ID, nil
}

func (f *fakeReservations) GetApartment(ctx context.Context, id int64) (domain.Apartment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apartments[id]
	if !ok {
		return domain.Apartment{}, fmt.Errorf("apartment %d: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (f *fakeReservations) ListApartments(ctx context.Context) ([]domain.Apartment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Apartment, 0, len(f.apartments))
	for _, a := range f.apartments {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Apartment) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *fakeReservations) LogMiss(ctx context.Context, source, ref, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misses = append(f.misses, miss{source, ref, reason})
	return nil
}

type fakeInvoices struct {
	created []domain.Invoice
	byID    map[int64]domain.Invoice
}

func (f *fakeInvoices) CreateInvoice(ctx context.Context, inv domain.Invoice) (int64, error) {
	inv.ID = int64(len(f.created) + 1)
	f.created = append(f.created, inv)
	if f.byID == nil {
		f.byID = map[int64]domain.Invoice{}
	}
	f.byID[inv.ID] = inv
	return inv.ID, nil
}

func (f *fakeInvoices) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	inv, ok := f.byID[id]
	if !ok {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return inv, nil
}

func (f *fakeInvoices) DeleteInvoice(ctx context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

// fakeCache stores JSON like the redis adapter does, so cached values never alias.
type fakeCache struct {
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func (c *fakeCache) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	if _, err := c.Get(ctx, key, &n); err != nil {
		return 0, err
	}
	n++
	return n, c.Set(ctx, key, n, 0)
}

type fakeDrafts struct {
	m map[string]domain.DraftInvoice
}

func (f *fakeDrafts) Load(ctx context.Context, id string) (domain.DraftInvoice, error) {
	d, ok := f.m[id]
	if !ok {
		return domain.DraftInvoice{}, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDrafts) Save(ctx context.Context, d domain.DraftInvoice) error {
	if f.m == nil {
		f.m = map[string]domain.DraftInvoice{}
	}
	f.m[d.ID] = d
	return nil
}

func (f *fakeDrafts) Delete(ctx context.Context, id string) error {
	delete(f.m, id)
	return nil
}

type fakeChannel struct {
	prices       []map[string]any
	reservations []map[string]any
	err          error
}

func (f *fakeChannel) GetPriceRules(ctx context.Context) ([]map[string]any, error) {
	return f.prices, f.err
}

func (f *fakeChannel) GetReservations(ctx context.Context, since time.Time) ([]map[string]any, error) {
	return f.reservations, f.err
}

// ---- builders ----

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var apt12 = domain.Apartment{ID: 7, Number: "12", Description: "Seeblick", BedsMax: 2, CategoryID: ptr(int64(3))}

func rule(id int64, kind domain.PriceKind, amount string) domain.PriceRule {
	return domain.PriceRule{
		ID:          id,
		Description: fmt.Sprintf("rule %d", id),
		Amount:      dec(amount),
		VAT:         dec("19"),
		Kind:        kind,
		AllDays:     true,
		Weekdays:    domain.AllWeekdays(),
		Origins:     []int64{1},
		Active:      true,
	}
}

func reservation(id int64, from, to string, persons int) domain.Reservation {
	return domain.Reservation{
		ID:        id,
		Apartment: apt12,
		Start:     date(from),
		End:       date(to),
		Persons:   persons,
		OriginID:  ptr(int64(1)),
	}
}
