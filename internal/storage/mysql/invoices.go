package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"guesthouse/internal/domain"
)

// CreateInvoice stores the invoice with its positions in one transaction.
func (r *Repo) CreateInvoice(ctx context.Context, inv domain.Invoice) (int64, error) {
	customer, err := json.Marshal(inv.Customer)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertInvoiceSQL, inv.Number, valDate(inv.Date), string(customer), inv.Remark, inv.Status)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		for _, rid := range inv.ReservationIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO invoice_reservations (invoice_id, reservation_id) VALUES (?, ?)`, id, rid); err != nil {
				return err
			}
		}
		for i, a := range inv.Apartments {
			if _, err := tx.ExecContext(ctx, insertInvoiceApartmentSQL,
				id, i, a.Description, a.Number, valDate(a.Start), valDate(a.End), a.Persons, a.Beds,
				a.Price, a.VAT, a.IncludesVAT, a.Flat); err != nil {
				return err
			}
		}
		for i, m := range inv.Misc {
			if _, err := tx.ExecContext(ctx, insertInvoicePositionSQL,
				id, i, m.Description, m.Amount, m.Price, m.VAT, m.IncludesVAT, m.Flat); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *Repo) GetInvoice(ctx context.Context, id int64) (domain.Invoice, error) {
	var inv domain.Invoice
	var customer []byte
	err := r.db.QueryRowContext(ctx, getInvoiceSQL, id).
		Scan(&inv.ID, &inv.Number, &inv.Date, &customer, &inv.Remark, &inv.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(customer, &inv.Customer); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode customer of invoice %d: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, invoiceReservationsSQL, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return domain.Invoice{}, err
		}
		inv.ReservationIDs = append(inv.ReservationIDs, rid)
	}
	rows.Close()

	if inv.Apartments, err = r.invoiceApartments(ctx, id); err != nil {
		return domain.Invoice{}, err
	}
	if inv.Misc, err = r.invoicePositions(ctx, id); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (r *Repo) invoiceApartments(ctx context.Context, id int64) ([]domain.ApartmentPosition, error) {
	rows, err := r.db.QueryContext(ctx, invoiceApartmentsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApartmentPosition
	for rows.Next() {
		var a domain.ApartmentPosition
		if err := rows.Scan(&a.Description, &a.Number, &a.Start, &a.End, &a.Persons, &a.Beds,
			&a.Price, &a.VAT, &a.IncludesVAT, &a.Flat); err != nil {
			return nil, err
		}
		a.Start, a.End = domain.Day(a.Start), domain.Day(a.End)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) invoicePositions(ctx context.Context, id int64) ([]domain.MiscPosition, error) {
	rows, err := r.db.QueryContext(ctx, invoicePositionsSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MiscPosition
	for rows.Next() {
		var m domain.MiscPosition
		if err := rows.Scan(&m.Description, &m.Amount, &m.Price, &m.VAT, &m.IncludesVAT, &m.Flat); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteInvoice(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
