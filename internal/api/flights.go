package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farescout/farescout/internal/analytics"
	"github.com/farescout/farescout/internal/flight"
	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/farescout/farescout/pkg/logger"
)

// flightRequest is the JSON payload for creating or updating a flight. ID is
// honored on create and must match the path on update; a missing active flag
// means "active" on create and "unchanged" on update.
type flightRequest struct {
	ID          string    `json:"id,omitempty"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Airline     string    `json:"airline"`
	DepartureAt time.Time `json:"departure_at"`
	Equipment   string    `json:"equipment,omitempty"`
	CabinClass  string    `json:"cabin_class,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Active      *bool     `json:"active,omitempty"`
}

type observationRequest struct {
	Amount     float64    `json:"amount"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// CreateFlight registers a new flight listing.
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req flightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateFlightRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	fl := flightFromRequest(&req)
	if fl.ID == "" {
		fl.ID = uuid.NewString()
	}
	fl.CreatedAt = time.Now().UTC()
	if err := h.store.CreateFlight(ctx, fl); err != nil {
		log.Error("flight creation failed", "flight_id", fl.ID, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("flight created", "flight_id", fl.ID, "route", fl.Origin+"-"+fl.Destination)
	h.writeJSON(w, http.StatusCreated, fl)
}

// GetFlight returns one flight by ID.
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	fl, err := h.store.GetFlight(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fl)
}

// ListFlights returns all flights, restricted to active ones when the
// active=true query parameter is set.
func (h *Handler) ListFlights(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if s := r.URL.Query().Get("active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			h.writeAppError(w, apperrors.InvalidFilter("active", "must be a boolean, got %q", s))
			return
		}
		activeOnly = v
	}

	flights, err := h.store.ListFlights(r.Context(), activeOnly)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"flights": flights,
		"count":   len(flights),
	})
}

// UpdateFlight replaces a flight's descriptive fields. Identity and creation
// time are preserved; omitting the active flag keeps the current value.
func (h *Handler) UpdateFlight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")

	var req flightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID != "" && req.ID != id {
		h.writeAppError(w, apperrors.InvalidFilter("id", "must match the path, got %q", req.ID))
		return
	}
	if err := validateFlightRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	existing, err := h.store.GetFlight(ctx, id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	fl := flightFromRequest(&req)
	fl.ID = id
	fl.CreatedAt = existing.CreatedAt
	if req.Active == nil {
		fl.Active = existing.Active
	}
	if err := h.store.UpdateFlight(ctx, fl); err != nil {
		log.Error("flight update failed", "flight_id", id, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("flight updated", "flight_id", id)
	h.writeJSON(w, http.StatusOK, fl)
}

// DeleteFlight deactivates a flight. The listing and its observations stay
// in the store but drop out of every candidate set.
func (h *Handler) DeleteFlight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.store.DeactivateFlight(ctx, id); err != nil {
		h.writeAppError(w, err)
		return
	}
	logger.FromContext(ctx).Info("flight deactivated", "flight_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// CreateObservation appends a price observation to a flight.
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")

	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validateObservationRequest(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	fl, err := h.store.GetFlight(ctx, id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	obs := flight.PriceObservation{
		ID:         uuid.NewString(),
		FlightID:   fl.ID,
		Amount:     req.Amount,
		CapturedAt: time.Now().UTC(),
		Source:     "api",
	}
	if req.CapturedAt != nil {
		obs.CapturedAt = req.CapturedAt.UTC()
	}
	if req.Source != "" {
		obs.Source = req.Source
	}
	if err := h.store.AddObservation(ctx, obs); err != nil {
		log.Error("observation append failed", "flight_id", id, "error", err)
		h.writeAppError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.Track(analytics.ObservationEvent{
			Type:       analytics.EventObservation,
			FlightID:   fl.ID,
			Route:      fl.Origin + "-" + fl.Destination,
			Amount:     obs.Amount,
			Source:     obs.Source,
			CapturedAt: obs.CapturedAt,
		})
	}

	log.Info("observation recorded", "flight_id", fl.ID, "amount", obs.Amount, "source", obs.Source)
	h.writeJSON(w, http.StatusCreated, obs)
}

// ListObservations returns a flight's most recent observations, newest first.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			h.writeAppError(w, apperrors.InvalidFilter("limit", "must be a positive integer, got %q", s))
			return
		}
		limit = v
	}

	obs, err := h.store.ListObservations(ctx, id, limit)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"flight_id":    id,
		"observations": obs,
		"count":        len(obs),
	})
}

// flightFromRequest builds the domain flight, normalizing route codes to
// upper case and trimming free-form fields.
func flightFromRequest(req *flightRequest) flight.Flight {
	fl := flight.Flight{
		ID:          strings.TrimSpace(req.ID),
		Origin:      strings.ToUpper(strings.TrimSpace(req.Origin)),
		Destination: strings.ToUpper(strings.TrimSpace(req.Destination)),
		Airline:     strings.TrimSpace(req.Airline),
		DepartureAt: req.DepartureAt.UTC(),
		Equipment:   strings.TrimSpace(req.Equipment),
		CabinClass:  strings.TrimSpace(req.CabinClass),
		Notes:       strings.TrimSpace(req.Notes),
		Active:      true,
	}
	if req.Active != nil {
		fl.Active = *req.Active
	}
	return fl
}

// writeValidationError renders per-field validation failures; anything else
// falls through to the generic error mapping.
func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}
