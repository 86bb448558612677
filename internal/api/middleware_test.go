package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/farescout/farescout/internal/auth/apikey"
	"github.com/farescout/farescout/internal/auth/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(buf)
}

// authedHarness builds a fully authenticated router with one issued key.
func authedHarness(t *testing.T, rateLimit int) (*apiHarness, string) {
	t.Helper()

	validator := apikey.NewValidator(apikey.NewMemoryStore(), nil)
	rawKey, err := validator.CreateKey(t.Context(), "test-client", rateLimit, nil)
	require.NoError(t, err)

	limiter := ratelimit.NewWindowLimiter(nil, time.Minute)
	t.Cleanup(limiter.Close)

	return newHarness(t, validator, limiter), rawKey
}

func TestAuthRejectsUnauthenticatedRequests(t *testing.T) {
	h, _ := authedHarness(t, 100)

	resp, body := doRequest(t, http.MethodGet, h.srv.URL+"/api/v1/search", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "missing api key", errBody["error"])

	req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/v1/search", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "not-a-real-key")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestAuthExemptsHealthEndpoints(t *testing.T) {
	h, _ := authedHarness(t, 100)

	resp, _ := doRequest(t, http.MethodGet, h.srv.URL+"/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doRequest(t, http.MethodGet, h.srv.URL+"/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthAcceptsKeyFromAllSources(t *testing.T) {
	h, key := authedHarness(t, 100)

	tests := []struct {
		name  string
		apply func(r *http.Request)
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+key) }},
		{"x-api-key header", func(r *http.Request) { r.Header.Set("X-API-Key", key) }},
		{"query parameter", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("api_key", key)
			r.URL.RawQuery = q.Encode()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/v1/search", nil)
			require.NoError(t, err)
			tt.apply(req)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestRateLimitEnforcedPerKey(t *testing.T) {
	h, key := authedHarness(t, 2)

	get := func() *http.Response {
		req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/v1/search", nil)
		require.NoError(t, err)
		req.Header.Set("X-API-Key", key)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusOK, get().StatusCode)
	assert.Equal(t, http.StatusOK, get().StatusCode)

	limited := get()
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, "60", limited.Header.Get("Retry-After"))
}

func TestAdminKeyEndpoints(t *testing.T) {
	h, key := authedHarness(t, 100)

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/v1/admin/keys", jsonBody(t, map[string]any{
		"name":       "partner-integration",
		"rate_limit": 25,
	}))
	require.NoError(t, err)
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created["api_key"])
	assert.Equal(t, "partner-integration", created["name"])

	req, err = http.NewRequest(http.MethodGet, h.srv.URL+"/api/v1/admin/keys", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", key)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var listing struct {
		Keys  []apikey.KeyInfo `json:"keys"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&listing))
	assert.Equal(t, 2, listing.Count)
}
