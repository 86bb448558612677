package api

import (
	"fmt"
	"strings"
)

const (
	maxAirlineLength = 128
	maxFieldLength   = 64
	maxNotesLength   = 2048
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// validateFlightRequest checks the payload for a flight create or update and
// returns a ValidationError naming every failing field.
func validateFlightRequest(req *flightRequest) error {
	errs := make(map[string]string)

	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		errs["origin"] = "origin is required"
	} else if !isRouteCode(origin) {
		errs["origin"] = "origin must be a 3-letter airport code"
	}
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		errs["destination"] = "destination is required"
	} else if !isRouteCode(destination) {
		errs["destination"] = "destination must be a 3-letter airport code"
	}
	airline := strings.TrimSpace(req.Airline)
	if airline == "" {
		errs["airline"] = "airline is required"
	} else if len(airline) > maxAirlineLength {
		errs["airline"] = fmt.Sprintf("airline must be at most %d characters", maxAirlineLength)
	}
	if req.DepartureAt.IsZero() {
		errs["departure_at"] = "departure_at is required"
	}
	if len(req.Equipment) > maxFieldLength {
		errs["equipment"] = fmt.Sprintf("equipment must be at most %d characters", maxFieldLength)
	}
	if len(req.CabinClass) > maxFieldLength {
		errs["cabin_class"] = fmt.Sprintf("cabin_class must be at most %d characters", maxFieldLength)
	}
	if len(req.Notes) > maxNotesLength {
		errs["notes"] = fmt.Sprintf("notes must be at most %d characters", maxNotesLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// validateObservationRequest checks a price observation payload.
func validateObservationRequest(req *observationRequest) error {
	errs := make(map[string]string)

	if req.Amount <= 0 {
		errs["amount"] = "amount must be a positive number"
	}
	if len(req.Source) > maxFieldLength {
		errs["source"] = fmt.Sprintf("source must be at most %d characters", maxFieldLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// isRouteCode reports whether s is a 3-letter IATA-style airport code.
func isRouteCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
