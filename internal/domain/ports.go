package domain

import (
	"context"
	"fmt"
	"time"
)

// Serializer runs fn while holding an exclusive lock on key, so a validation
// read and the write that depends on it cannot interleave with another writer
// of the same key, in this process or any other.
type Serializer interface {
	Serialize(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// PriceRuleLockKey guards writes of one kind; conflicts never cross kinds.
func PriceRuleLockKey(k PriceKind) string { return fmt.Sprintf("price_rules:%d", k) }

// ApartmentLockKey guards reservation writes into one apartment.
func ApartmentLockKey(apartmentID int64) string { return fmt.Sprintf("apartment:%d", apartmentID) }

type PricingRepository interface {
	Serializer
	// PriceRules returns active rules for the query, ordered by priority.
	PriceRules(ctx context.Context, q RuleQuery) ([]PriceRule, error)
	// ConflictCandidates returns active rules of the same kind, season/weekday logic left to the caller.
	ConflictCandidates(ctx context.Context, r PriceRule) ([]PriceRule, error)
	ListPriceRules(ctx context.Context) ([]PriceRule, error)
	GetPriceRule(ctx context.Context, id int64) (PriceRule, error)
	SavePriceRule(ctx context.Context, r PriceRule) (int64, error)
	DeletePriceRule(ctx context.Context, id int64) error
}

type ReservationRepository interface {
	Serializer
	// ReservationsForApartment returns reservations of the apartment touching [start, end).
	ReservationsForApartment(ctx context.Context, apartmentID int64, start, end time.Time) ([]Reservation, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	SaveReservation(ctx context.Context, r Reservation) (int64, error)
	GetApartment(ctx context.Context, id int64) (Apartment, error)
	ListApartments(ctx context.Context) ([]Apartment, error)
	LogMiss(ctx context.Context, source, ref, reason string) error
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	// Incr atomically adds one to an integer key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}

type DraftStore interface {
	Load(ctx context.Context, id string) (DraftInvoice, error)
	Save(ctx context.Context, d DraftInvoice) error
	Delete(ctx context.Context, id string) error
}

// ChannelClient reads bookings and prices from the external channel manager.
type ChannelClient interface {
	GetPriceRules(ctx context.Context) ([]map[string]any, error)
	GetReservations(ctx context.Context, since time.Time) ([]map[string]any, error)
}
