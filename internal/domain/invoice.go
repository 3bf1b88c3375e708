package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayAssignment is the winning rule for one billable day; Rule is nil when nothing matched.
type DayAssignment struct {
	Date time.Time
	Rule *PriceRule
}

// DayMatches holds every matching rule for a day, in priority order.
type DayMatches struct {
	Date  time.Time
	Rules []PriceRule
}

type ApartmentPosition struct {
	Description string          `json:"description"`
	Number      string          `json:"number"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"` // exclusive
	Persons     int             `json:"persons"`
	Beds        int             `json:"beds"`
	Price       decimal.Decimal `json:"price"`
	VAT         decimal.Decimal `json:"vat"`
	IncludesVAT bool            `json:"includes_vat"`
	Flat        bool            `json:"flat"`
}

// Nights is the length of the run covered by the position.
func (p ApartmentPosition) Nights() int { return DaysBetween(p.Start, p.End) }

type MiscPosition struct {
	Description string          `json:"description"`
	Amount      int             `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	VAT         decimal.Decimal `json:"vat"`
	IncludesVAT bool            `json:"includes_vat"`
	Flat        bool            `json:"flat"`
}

type VATBucket struct {
	Rate  decimal.Decimal `json:"rate"`
	Gross decimal.Decimal `json:"gross"`
	VAT   decimal.Decimal `json:"vat"`
}

// Sums are the invoice totals. Gross and VATTotal are sums of per-bucket rounded values.
type Sums struct {
	Buckets        []VATBucket     `json:"buckets"`
	Gross          decimal.Decimal `json:"gross"`
	VATTotal       decimal.Decimal `json:"vat_total"`
	ApartmentTotal decimal.Decimal `json:"apartment_total"`
	MiscTotal      decimal.Decimal `json:"misc_total"`
}

// Net is the gross total without VAT.
func (s Sums) Net() decimal.Decimal { return s.Gross.Sub(s.VATTotal) }

type InvoicePreview struct {
	Apartments []ApartmentPosition `json:"apartments"`
	Misc       []MiscPosition      `json:"misc"`
	Sums       Sums                `json:"sums"`
}

type Customer struct {
	Salutation string `json:"salutation"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	Company    string `json:"company"`
	Address    string `json:"address"`
	Zip        string `json:"zip"`
	City       string `json:"city"`
}

// DraftInvoice is an invoice under construction; the caller owns it between requests.
type DraftInvoice struct {
	ID             string              `json:"id"`
	ReservationIDs []int64             `json:"reservation_ids"`
	Apartments     []ApartmentPosition `json:"apartments"`
	Misc           []MiscPosition      `json:"misc"`
	Customer       Customer            `json:"customer"`
	CreatedAt      time.Time           `json:"created_at"`
}

type Invoice struct {
	ID             int64
	Number         string
	Date           time.Time
	Customer       Customer
	Remark         string
	Status         int
	ReservationIDs []int64
	Apartments     []ApartmentPosition
	Misc           []MiscPosition
}
