package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guesthouse/internal/domain"
)

func scanApartment(s scanner) (domain.Apartment, error) {
	var a domain.Apartment
	var cat sql.NullInt64
	if err := s.Scan(&a.ID, &a.Number, &a.Description, &a.BedsMax, &cat, &a.PropertyID); err != nil {
		return domain.Apartment{}, err
	}
	a.CategoryID = nullInt64(cat)
	return a, nil
}

func scanReservation(s scanner) (domain.Reservation, error) {
	var (
		res    domain.Reservation
		origin sql.NullInt64
		cat    sql.NullInt64
	)
	if err := s.Scan(
		&res.ID, &res.Start, &res.End, &res.Persons, &origin, &res.StatusID, &res.Remark,
		&res.Apartment.ID, &res.Apartment.Number, &res.Apartment.Description,
		&res.Apartment.BedsMax, &cat, &res.Apartment.PropertyID,
	); err != nil {
		return domain.Reservation{}, err
	}
	res.Start, res.End = domain.Day(res.Start), domain.Day(res.End)
	res.OriginID = nullInt64(origin)
	res.Apartment.CategoryID = nullInt64(cat)
	return res, nil
}

func (r *Repo) ReservationsForApartment(ctx context.Context, apartmentID int64, start, end time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, reservationsForApartmentSQL, apartmentID, domain.Day(end), domain.Day(start))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// GetReservation loads the reservation with the prices attached to it.
func (r *Repo) GetReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, getReservationSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	if res.Prices, err = r.queryRules(ctx, reservationPricesSQL, id); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// SaveReservation inserts when ID is zero, together with the attached
// prices. Updates leave attached prices alone.
func (r *Repo) SaveReservation(ctx context.Context, res domain.Reservation) (int64, error) {
	id := res.ID
	args := []any{
		res.Apartment.ID, valDate(res.Start), valDate(res.End), res.Persons,
		valInt64(res.OriginID), res.StatusID, res.Remark,
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if id != 0 {
			_, err := tx.ExecContext(ctx, updateReservationSQL, append(args, id)...)
			return err
		}
		out, err := tx.ExecContext(ctx, insertReservationSQL, args...)
		if err != nil {
			return err
		}
		if id, err = out.LastInsertId(); err != nil {
			return err
		}
		for _, p := range res.Prices {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reservation_prices (reservation_id, price_rule_id) VALUES (?, ?)`, id, p.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *Repo) GetApartment(ctx context.Context, id int64) (domain.Apartment, error) {
	a, err := scanApartment(r.db.QueryRowContext(ctx, getApartmentSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Apartment{}, fmt.Errorf("apartment %d: %w", id, domain.ErrNotFound)
	}
	return a, err
}

func (r *Repo) ListApartments(ctx context.Context) ([]domain.Apartment, error) {
	rows, err := r.db.QueryContext(ctx, listApartmentsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Apartment
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveApartment upserts by id. Apartments are maintained outside the API; this seeds them.
func (r *Repo) SaveApartment(ctx context.Context, a domain.Apartment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO apartments (id, number, description, beds_max, category_id, property_id)
VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  number      = VALUES(number),
  description = VALUES(description),
  beds_max    = VALUES(beds_max),
  category_id = VALUES(category_id),
  property_id = VALUES(property_id)`,
		a.ID, a.Number, a.Description, a.BedsMax, valInt64(a.CategoryID), a.PropertyID)
	if err != nil {
		return 0, err
	}
	if a.ID != 0 {
		return a.ID, nil
	}
	return res.LastInsertId()
}
