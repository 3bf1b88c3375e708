package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/app"
	"guesthouse/internal/domain"
)

type Handlers struct {
	Invoices     *app.InvoiceService
	Drafts       *app.DraftService
	Prices       *app.PriceService
	Reservations *app.ReservationService
	// Renderers by document kind, e.g. "invoice" or "reservation".
	Renderers map[string]app.Renderer
}

type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Conflicts any    `json:"conflicts,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/previews", h.preview)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", h.createDraft)
			r.Get("/{id}", h.getDraft)
			r.Delete("/{id}", h.discardDraft)
			r.Post("/{id}/misc", h.addDraftMisc)
			r.Delete("/{id}/misc/{idx}", h.removeDraftMisc)
			r.Delete("/{id}/apartments/{idx}", h.removeDraftApartment)
			r.Post("/{id}/commit", h.commitDraft)
		})

		r.Route("/prices", func(r chi.Router) {
			r.Get("/", h.listPrices)
			r.Post("/", h.savePrice)
			r.Get("/{id}", h.getPrice)
			r.Put("/{id}", h.savePrice)
			r.Delete("/{id}", h.deletePrice)
		})

		r.Put("/reservations/{id}", h.updateReservation)
		r.Get("/availability", h.availability)
		r.Post("/availability", h.availability)
		r.Get("/documents/{kind}/{id}", h.renderDocument)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemWith(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemWith(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers with an ETag and honours If-None-Match.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and checks its validate tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("body: %v: %w", err, domain.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace()+" "+fe.Tag())
		}
		return fmt.Errorf("body: %s: %w", strings.Join(fields, ", "), domain.ErrValidation)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive number: %w", name, domain.ErrValidation)
	}
	return id, nil
}

func indexParam(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("idx must be a non-negative number: %w", domain.ErrValidation)
	}
	return idx, nil
}

// ---- previews & drafts ----

func (h *Handlers) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Invoices.Preview(r.Context(), req.ReservationIDs, req.ReuseExisting)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createDraft(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Drafts.Create(r.Context(), req.ReservationIDs, req.ReuseExisting)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/drafts/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handlers) getDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.Drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, d)
}

func (h *Handlers) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.Drafts.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) addDraftMisc(w http.ResponseWriter, r *http.Request) {
	var p domain.MiscPosition
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Drafts.AddMiscPosition(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) removeDraftMisc(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Drafts.RemoveMiscPosition(r.Context(), chi.URLParam(r, "id"), idx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) removeDraftApartment(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.Drafts.RemoveApartmentPosition(r.Context(), chi.URLParam(r, "id"), idx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) commitDraft(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.Drafts.Commit(r.Context(), chi.URLParam(r, "id"), req.Number, req.Customer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"invoice_id": id})
}

// ---- prices ----

func (h *Handlers) listPrices(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Prices.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toPriceDTOs(rs))
}

func (h *Handlers) getPrice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Prices.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, toPriceDTO(p))
}

// savePrice creates on POST and replaces on PUT. Conflicting rules come
// back as a 409 problem listing the rules in the way.
func (h *Handlers) savePrice(w http.ResponseWriter, r *http.Request) {
	var req priceDTO
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.ID = 0
	if r.Method == http.MethodPut {
		id, err := idParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.ID = id
	}
	rule, err := req.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Prices.Save(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !out.Saved() {
		writeProblemWith(w, problem{
			Type:      "about:blank",
			Title:     "Conflicting price rules",
			Status:    http.StatusConflict,
			Detail:    fmt.Sprintf("%d active rule(s) apply to the same days", len(out.Conflicts)),
			Conflicts: toPriceDTOs(out.Conflicts),
		})
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPriceDTO(out.Rule))
}

func (h *Handlers) deletePrice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Prices.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- reservations ----

// updateReservation always answers 200 when the reservation was written;
// refused dates are reported in the body next to the conflicting stays.
func (h *Handlers) updateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reservationUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Reservations.Update(r.Context(), domain.ReservationUpdate{
		ID: id, ApartmentID: req.ApartmentID, Start: start, End: end, Persons: req.Persons, StatusID: req.StatusID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpdateResultDTO(out))
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	req := availabilityRequest{Start: r.URL.Query().Get("start"), End: r.URL.Query().Get("end")}
	if r.Method == http.MethodPost {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pending := make([]domain.Reservation, 0, len(req.Pending))
	for _, p := range req.Pending {
		ps, err := parseDate(p.Start)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pe, err := parseDate(p.End)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pending = append(pending, domain.Reservation{Apartment: domain.Apartment{ID: p.ApartmentID}, Start: ps, End: pe})
	}

	apts, err := h.Reservations.AvailableApartments(r.Context(), start, end, pending)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]apartmentDTO, 0, len(apts))
	for _, a := range apts {
		out = append(out, apartmentDTO{ID: a.ID, Number: a.Number, Description: a.Description, BedsMax: a.BedsMax})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- documents ----

func (h *Handlers) renderDocument(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	rd, ok := h.Renderers[kind]
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown document kind "+strconv.Quote(kind))
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	params, err := rd.RenderParams(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, params)
}
