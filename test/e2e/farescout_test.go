// Package e2e contains end-to-end tests that exercise a deployed FareScout
// stack: the API server and the sampler process, with real PostgreSQL,
// Redis, and Kafka behind them.
//
// Prerequisites:
//   - API server running (cmd/server)
//   - sampler running (cmd/sampler), on its own port
//   - PostgreSQL with the schema applied (farectl seed --schema-only)
//
// Run with:
//
//	go test -v -timeout=180s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	ServerURL  string
	SamplerURL string
	APIKey     string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		ServerURL:  envOrDefault("E2E_SERVER_URL", "http://localhost:8080"),
		SamplerURL: envOrDefault("E2E_SAMPLER_URL", "http://localhost:8081"),
		APIKey:     os.Getenv("E2E_API_KEY"),
	}
}

func (c e2eConfig) do(client *http.Client, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return client.Do(req)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestServicesHealth verifies both processes respond to health checks.
func TestServicesHealth(t *testing.T) {
	cfg := loadE2EConfig()

	services := []struct {
		name string
		url  string
	}{
		{"server /health/live", cfg.ServerURL + "/health/live"},
		{"server /health/ready", cfg.ServerURL + "/health/ready"},
		{"sampler /health/live", cfg.SamplerURL + "/health/live"},
		{"sampler /health/ready", cfg.SamplerURL + "/health/ready"},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestFlightSearchRoundTrip creates a flight with a unique marker word and
// verifies ranked search returns it immediately. Unlike an indexed system
// there is no propagation delay: search reads the store directly.
func TestFlightSearchRoundTrip(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.ServerURL + "/health/live"); err != nil {
		t.Skipf("server unavailable: %v", err)
	}

	uniqueWord := fmt.Sprintf("e2etest%d", time.Now().UnixNano())
	payload := fmt.Sprintf(`{
		"origin": "DXB", "destination": "LHR", "airline": "Emirates",
		"departure_at": %q, "equipment": "A380", "cabin_class": "business",
		"notes": "end-to-end marker %s"
	}`, time.Now().Add(30*24*time.Hour).UTC().Format(time.RFC3339), uniqueWord)

	resp, err := cfg.do(client, "POST", cfg.ServerURL+"/api/v1/flights", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	t.Logf("created flight: id=%s", created.ID)

	searchResp, err := cfg.do(client, "GET", cfg.ServerURL+"/api/v1/search?q="+uniqueWord, nil)
	if err != nil {
		t.Fatalf("search request failed: %v", err)
	}
	defer searchResp.Body.Close()
	var result struct {
		Items []struct {
			Flight struct {
				ID string `json:"id"`
			} `json:"flight"`
		} `json:"items"`
		Mode string `json:"mode"`
	}
	json.NewDecoder(searchResp.Body).Decode(&result)

	if len(result.Items) != 1 || result.Items[0].Flight.ID != created.ID {
		t.Errorf("expected exactly the marked flight, got %d items", len(result.Items))
	}
	if result.Mode != "hybrid" {
		t.Errorf("expected hybrid mode for free-text search, got %q", result.Mode)
	}

	// Deactivate so repeated runs do not accumulate live fixtures.
	delResp, err := cfg.do(client, "DELETE", cfg.ServerURL+"/api/v1/flights/"+created.ID, nil)
	if err == nil {
		delResp.Body.Close()
	}
}

// TestSamplerRecordsObservations verifies the sampler sweeps a freshly
// created flight. The sweep interval is deployment-specific, so a quiet
// period is logged rather than failed.
func TestSamplerRecordsObservations(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.ServerURL + "/health/live"); err != nil {
		t.Skipf("server unavailable: %v", err)
	}

	payload := fmt.Sprintf(`{
		"origin": "SIN", "destination": "NRT", "airline": "Singapore Airlines",
		"departure_at": %q
	}`, time.Now().Add(14*24*time.Hour).UTC().Format(time.RFC3339))
	resp, err := cfg.do(client, "POST", cfg.ServerURL+"/api/v1/flights", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	t.Log("waiting for the sampler to observe the flight...")
	var sampled bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(2 * time.Second)

		obsResp, err := cfg.do(client, "GET",
			fmt.Sprintf("%s/api/v1/flights/%s/observations", cfg.ServerURL, created.ID), nil)
		if err != nil {
			t.Logf("attempt %d: observation request failed: %v", attempt, err)
			continue
		}
		var listing struct {
			Count int `json:"count"`
		}
		json.NewDecoder(obsResp.Body).Decode(&listing)
		obsResp.Body.Close()

		if listing.Count > 0 {
			sampled = true
			t.Logf("observation recorded after %d seconds", (attempt+1)*2)
			break
		}
	}

	if !sampled {
		t.Log("no observation within 60s; the sampler interval may be longer or the process not running")
		// Don't fail hard: the e2e environment may not run the sampler.
	}
}

// TestSearchAnalyticsFlow verifies search traffic shows up in the stats
// endpoint when analytics is enabled.
func TestSearchAnalyticsFlow(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := cfg.do(client, "GET", cfg.ServerURL+"/api/v1/search?q=analytics+check", nil)
	if err != nil {
		t.Skipf("server unavailable: %v", err)
	}
	resp.Body.Close()

	// Give the collector a moment to drain its buffer.
	time.Sleep(2 * time.Second)

	statsResp, err := cfg.do(client, "GET", cfg.ServerURL+"/api/v1/stats", nil)
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer statsResp.Body.Close()
	if statsResp.StatusCode == http.StatusNotFound {
		t.Skip("analytics disabled on this deployment")
	}

	var stats map[string]any
	json.NewDecoder(statsResp.Body).Decode(&stats)

	totalSearches, _ := stats["total_searches"].(float64)
	t.Logf("analytics: total_searches=%v, hybrid=%v, zero_results=%v",
		stats["total_searches"], stats["hybrid_searches"], stats["zero_result_count"])

	if totalSearches < 1 {
		t.Log("expected at least 1 search recorded in analytics")
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
