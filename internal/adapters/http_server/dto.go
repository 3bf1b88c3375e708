package httpserver

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"guesthouse/internal/app"
	"guesthouse/internal/domain"
)

const dateLayout = "2006-01-02"

type seasonDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type priceDTO struct {
	ID          int64           `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	VAT         decimal.Decimal `json:"vat"`
	VATIncluded bool            `json:"vat_included"`
	Flat        bool            `json:"flat"`
	Kind        int             `json:"kind" validate:"oneof=1 2 3"`
	Season      *seasonDTO      `json:"season,omitempty"`
	Weekdays    []int           `json:"weekdays,omitempty" validate:"dive,min=1,max=7"` // ISO, 1 = Monday
	AllDays     bool            `json:"all_days"`
	Origins     []int64         `json:"origins"`
	Categories  []int64         `json:"categories,omitempty"`
	Active      bool            `json:"active"`
	Priority    int             `json:"priority"`
	Beds        *int            `json:"beds,omitempty"`
	Persons     *int            `json:"persons,omitempty"`
	MinStay     *int            `json:"min_stay,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, domain.ErrValidation)
	}
	return t, nil
}

func (d priceDTO) toDomain() (domain.PriceRule, error) {
	r := domain.PriceRule{
		ID:          d.ID,
		Description: d.Description,
		Amount:      d.Amount,
		VAT:         d.VAT,
		VATIncluded: d.VATIncluded,
		Flat:        d.Flat,
		Kind:        domain.PriceKind(d.Kind),
		AllDays:     d.AllDays,
		Origins:     d.Origins,
		Categories:  d.Categories,
		Active:      d.Active,
		Priority:    d.Priority,
		Beds:        d.Beds,
		Persons:     d.Persons,
		MinStay:     d.MinStay,
	}
	for _, wd := range d.Weekdays {
		if wd < 1 || wd > 7 {
			return domain.PriceRule{}, fmt.Errorf("weekday %d: %w", wd, domain.ErrValidation)
		}
		r.Weekdays[wd-1] = true
	}
	if d.Season != nil {
		start, err := parseDate(d.Season.Start)
		if err != nil {
			return domain.PriceRule{}, err
		}
		end, err := parseDate(d.Season.End)
		if err != nil {
			return domain.PriceRule{}, err
		}
		r.Season = &domain.Season{Start: start, End: end}
	}
	return r, nil
}

func toPriceDTO(r domain.PriceRule) priceDTO {
	d := priceDTO{
		ID:          r.ID,
		Description: r.Description,
		Amount:      r.Amount,
		VAT:         r.VAT,
		VATIncluded: r.VATIncluded,
		Flat:        r.Flat,
		Kind:        int(r.Kind),
		AllDays:     r.AllDays,
		Origins:     r.Origins,
		Categories:  r.Categories,
		Active:      r.Active,
		Priority:    r.Priority,
		Beds:        r.Beds,
		Persons:     r.Persons,
		MinStay:     r.MinStay,
	}
	for i, on := range r.Weekdays {
		if on {
			d.Weekdays = append(d.Weekdays, i+1)
		}
	}
	if r.Season != nil {
		d.Season = &seasonDTO{Start: r.Season.Start.Format(dateLayout), End: r.Season.End.Format(dateLayout)}
	}
	return d
}

func toPriceDTOs(rs []domain.PriceRule) []priceDTO {
	out := make([]priceDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toPriceDTO(r))
	}
	return out
}

type reservationDTO struct {
	ID          int64  `json:"id"`
	ApartmentID int64  `json:"apartment_id"`
	Apartment   string `json:"apartment"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Persons     int    `json:"persons"`
	StatusID    int64  `json:"status_id"`
}

func toReservationDTO(r domain.Reservation) reservationDTO {
	return reservationDTO{
		ID:          r.ID,
		ApartmentID: r.Apartment.ID,
		Apartment:   r.Apartment.Number,
		Start:       r.Start.Format(dateLayout),
		End:         r.End.Format(dateLayout),
		Persons:     r.Persons,
		StatusID:    r.StatusID,
	}
}

func toReservationDTOs(rs []domain.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r))
	}
	return out
}

type updateResultDTO struct {
	Reservation  reservationDTO   `json:"reservation"`
	DatesApplied bool             `json:"dates_applied"`
	Conflicts    []reservationDTO `json:"conflicts,omitempty"`
}

func toUpdateResultDTO(u app.UpdateResult) updateResultDTO {
	out := updateResultDTO{Reservation: toReservationDTO(u.Reservation), DatesApplied: u.DatesApplied}
	if len(u.Conflicts) > 0 {
		out.Conflicts = toReservationDTOs(u.Conflicts)
	}
	return out
}

type apartmentDTO struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	Description string `json:"description"`
	BedsMax     int    `json:"beds_max"`
}

// ---- request bodies ----

type previewRequest struct {
	ReservationIDs []int64 `json:"reservation_ids" validate:"required,dive,gt=0"`
	ReuseExisting  bool    `json:"reuse_existing"`
}

type commitRequest struct {
	Number   string          `json:"number" validate:"required"`
	Customer domain.Customer `json:"customer"`
}

type reservationUpdateRequest struct {
	ApartmentID int64  `json:"apartment_id"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
	Persons     int    `json:"persons" validate:"gt=0"`
	StatusID    int64  `json:"status_id"`
}

// pendingStay is a reservation still being entered; it blocks its apartment.
type pendingStay struct {
	ApartmentID int64  `json:"apartment_id" validate:"gt=0"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
}

type availabilityRequest struct {
	Start   string        `json:"start"`
	End     string        `json:"end"`
	Pending []pendingStay `json:"pending" validate:"dive"`
}
