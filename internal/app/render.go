package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
)

const dateLayout = "02.01.2006"

// Renderer produces the parameters a document template is filled with.
type Renderer interface {
	RenderParams(ctx context.Context, id int64) (map[string]any, error)
}

var (
	_ Renderer = (*InvoiceRenderer)(nil)
	_ Renderer = (*ReservationRenderer)(nil)
)

type InvoiceRenderer struct {
	invoices domain.InvoiceRepository
	calc     pricing.Calculator
}

func NewInvoiceRenderer(r domain.InvoiceRepository, calc pricing.Calculator) *InvoiceRenderer {
	return &InvoiceRenderer{invoices: r, calc: calc}
}

func (r *InvoiceRenderer) RenderParams(ctx context.Context, id int64) (map[string]any, error) {
	inv, err := r.invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	sums := r.calc.Calculate(inv.Apartments, inv.Misc)
	p := sumParams(sums)
	p["number"] = inv.Number
	p["date"] = inv.Date.Format(dateLayout)
	p["customer"] = inv.Customer
	p["remark"] = inv.Remark
	p["apartments"] = inv.Apartments
	p["misc"] = inv.Misc
	p["periods"] = uniquePeriods(inv.Apartments)
	p["apartment_numbers"] = uniqueNumbers(inv.Apartments)
	p["apartment_total"] = FormatMoney(sums.ApartmentTotal)
	p["misc_total"] = FormatMoney(sums.MiscTotal)
	return p, nil
}

// ReservationRenderer bills a single reservation afresh for confirmations.
type ReservationRenderer struct {
	reservations domain.ReservationRepository
	invoices     *InvoiceService
}

func NewReservationRenderer(r domain.ReservationRepository, inv *InvoiceService) *ReservationRenderer {
	return &ReservationRenderer{reservations: r, invoices: inv}
}

func (r *ReservationRenderer) RenderParams(ctx context.Context, id int64) (map[string]any, error) {
	res, err := r.reservations.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	pv, err := r.invoices.Preview(ctx, []int64{id}, true)
	if err != nil {
		return nil, err
	}
	p := sumParams(pv.Sums)
	p["apartment"] = res.Apartment.Number
	p["start"] = res.Start.Format(dateLayout)
	p["end"] = res.End.Format(dateLayout)
	p["nights"] = res.Stay().Nights()
	p["persons"] = res.Persons
	p["remark"] = res.Remark
	p["apartments"] = pv.Apartments
	p["misc"] = pv.Misc
	return p, nil
}

func sumParams(s domain.Sums) map[string]any {
	vats := make([]map[string]string, 0, len(s.Buckets))
	for _, b := range s.Buckets {
		vats = append(vats, map[string]string{
			"rate":  FormatMoney(b.Rate),
			"gross": FormatMoney(b.Gross),
			"vat":   FormatMoney(b.VAT),
		})
	}
	return map[string]any{
		"vats":      vats,
		"gross":     FormatMoney(s.Gross),
		"vat_total": FormatMoney(s.VATTotal),
		"net":       FormatMoney(s.Net()),
	}
}

// uniquePeriods lists the distinct stay periods covered, in position order.
func uniquePeriods(apps []domain.ApartmentPosition) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range apps {
		p := a.Start.Format(dateLayout) + " - " + a.End.Format(dateLayout)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func uniqueNumbers(apps []domain.ApartmentPosition) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range apps {
		if _, ok := seen[a.Number]; ok {
			continue
		}
		seen[a.Number] = struct{}{}
		out = append(out, a.Number)
	}
	return out
}

// FormatMoney renders d with two decimals, comma as decimal separator and
// dots between thousands: 1234.5 -> "1.234,50".
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}
