package api

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlightRequest() flightRequest {
	return flightRequest{
		Origin:      "DXB",
		Destination: "LHR",
		Airline:     "Emirates",
		DepartureAt: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestValidateFlightRequest(t *testing.T) {
	req := validFlightRequest()
	assert.NoError(t, validateFlightRequest(&req))

	empty := flightRequest{}
	err := validateFlightRequest(&empty)
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "origin")
	assert.Contains(t, validationErr.Fields, "destination")
	assert.Contains(t, validationErr.Fields, "airline")
	assert.Contains(t, validationErr.Fields, "departure_at")

	badCode := validFlightRequest()
	badCode.Origin = "DUBAI"
	err = validateFlightRequest(&badCode)
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields["origin"], "3-letter")

	longNotes := validFlightRequest()
	longNotes.Notes = strings.Repeat("x", maxNotesLength+1)
	err = validateFlightRequest(&longNotes)
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Fields, "notes")
}

func TestValidateObservationRequest(t *testing.T) {
	ok := observationRequest{Amount: 425.0, Source: "sampler"}
	assert.NoError(t, validateObservationRequest(&ok))

	var validationErr *ValidationError
	zero := observationRequest{Amount: 0}
	require.ErrorAs(t, validateObservationRequest(&zero), &validationErr)
	assert.Contains(t, validationErr.Fields, "amount")

	negative := observationRequest{Amount: -12.5}
	require.ErrorAs(t, validateObservationRequest(&negative), &validationErr)
	assert.Contains(t, validationErr.Fields, "amount")

	longSource := observationRequest{Amount: 100, Source: strings.Repeat("s", maxFieldLength+1)}
	require.ErrorAs(t, validateObservationRequest(&longSource), &validationErr)
	assert.Contains(t, validationErr.Fields, "source")
}

func TestIsRouteCode(t *testing.T) {
	assert.True(t, isRouteCode("DXB"))
	assert.True(t, isRouteCode("lhr"))
	assert.False(t, isRouteCode("DX1"))
	assert.False(t, isRouteCode("DXBX"))
	assert.False(t, isRouteCode(""))
}
