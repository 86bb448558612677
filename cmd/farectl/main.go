package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/farescout/farescout/internal/analytics/aggregator"
	"github.com/farescout/farescout/internal/auth/apikey"
	"github.com/farescout/farescout/internal/flight"
	"github.com/farescout/farescout/internal/sampler"
	"github.com/farescout/farescout/internal/search"
	"github.com/farescout/farescout/internal/store"
	"github.com/farescout/farescout/pkg/config"
	"github.com/farescout/farescout/pkg/logger"
	"github.com/farescout/farescout/pkg/metrics"
	"github.com/farescout/farescout/pkg/postgres"
	"github.com/farescout/farescout/pkg/redis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// farectl bundles the operational tasks that run around the FareScout
// services: preparing a database, seeding fixture data, one-shot price
// sampling, querying a live server, purging old observations, and managing
// API keys.
//
// Usage:
//
//	farectl seed --flights 24 --observations 6
//	farectl sample
//	farectl search --query "emirates lie-flat" --origin DXB
//	farectl purge --older-than 2160h --dedupe
//	farectl keys create --name "my-app" --rate-limit 100 --expires-in 720h
func main() {
	app := &cli.App{
		Name:  "farectl",
		Usage: "Operations CLI for the FareScout ranking service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "configs/development.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "seed",
				Usage:  "Create the database schema and load fixture flights",
				Action: seedAction,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "flights",
						Usage: "Number of fixture flights to create",
						Value: 24,
					},
					&cli.IntFlag{
						Name:  "observations",
						Usage: "Price observations per flight",
						Value: 6,
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Days of observation history to spread over",
						Value: 30,
					},
					&cli.BoolFlag{
						Name:  "schema-only",
						Usage: "Create the schema without inserting fixtures",
					},
				},
			},
			{
				Name:   "sample",
				Usage:  "Run a single price-sampling sweep over all active flights",
				Action: sampleAction,
			},
			{
				Name:   "search",
				Usage:  "Query a running FareScout server and print the ranked results",
				Action: searchAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Base URL of the server",
						Value: "http://localhost:8080",
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Free-text relevance query",
					},
					&cli.StringFlag{Name: "origin", Usage: "Origin airport code"},
					&cli.StringFlag{Name: "destination", Usage: "Destination airport code"},
					&cli.StringFlag{Name: "airline", Usage: "Airline name"},
					&cli.StringFlag{Name: "price-min", Usage: "Minimum latest fare"},
					&cli.StringFlag{Name: "price-max", Usage: "Maximum latest fare"},
					&cli.StringFlag{Name: "date-start", Usage: "Earliest departure date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "date-end", Usage: "Latest departure date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "sort", Usage: "Sort strategy (relevance, price_asc, price_desc, date_asc, date_desc)"},
					&cli.StringFlag{Name: "mode", Usage: "Ranking mode (auto, hybrid, composite)"},
					&cli.StringFlag{Name: "alpha", Usage: "Hybrid fusion weight in [0,1]"},
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.IntFlag{Name: "page-size", Usage: "Results per page", Value: 20},
					&cli.StringFlag{Name: "api-key", Usage: "API key, if the server requires auth"},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete price observations older than a cutoff",
				Action: purgeAction,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Delete observations captured longer ago than this",
						Value: 2160 * time.Hour,
					},
					&cli.BoolFlag{
						Name:  "dedupe",
						Usage: "Also drop the sampler dedupe keys from Redis",
					},
				},
			},
			{
				Name:  "keys",
				Usage: "Manage API keys",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Create a new API key",
						Action: keysCreateAction,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "name",
								Usage:    "Name for the API key",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "rate-limit",
								Usage: "Requests allowed per rate window",
								Value: 100,
							},
							&cli.DurationFlag{
								Name:  "expires-in",
								Usage: "Expiry duration, e.g. 720h (omit for no expiry)",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List all active API keys",
						Action: keysListAction,
					},
					{
						Name:   "revoke",
						Usage:  "Revoke an existing API key",
						Action: keysRevokeAction,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "key",
								Usage:    "Raw API key to revoke",
								Required: true,
							},
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "farectl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by the global --config flag and installs
// the logger it configures.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// openPostgres connects to the configured database. Commands that write
// durable data refuse to run against the in-memory backend.
func openPostgres(cfg *config.Config) (*postgres.Client, error) {
	if cfg.Store.Backend != "postgres" {
		return nil, fmt.Errorf("this command requires store.backend postgres, got %q", cfg.Store.Backend)
	}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

var (
	seedRoutes = [][2]string{
		{"DXB", "LHR"}, {"LHR", "JFK"}, {"JFK", "LAX"}, {"SIN", "NRT"},
		{"SYD", "SIN"}, {"CDG", "DXB"}, {"AMS", "BCN"}, {"FRA", "ORD"},
		{"HND", "SFO"}, {"DOH", "MEL"}, {"BOM", "LHR"}, {"GRU", "MIA"},
	}
	seedAirlines = []string{
		"Emirates", "British Airways", "Singapore Airlines", "Qantas",
		"Lufthansa", "Delta", "United", "Qatar Airways", "KLM", "Air France",
	}
	seedEquipment = []string{"A380", "B777", "A350", "B787", "A321neo", "E190"}
	seedCabins    = []string{"economy", "premium economy", "business", "first"}
	seedNotes     = []string{
		"lie-flat seats with direct aisle access",
		"red-eye departure, arrives early morning",
		"popular business route, books out fast",
		"seasonal service through the summer schedule",
		"codeshare operated by a partner carrier",
		"refundable fares available on this route",
		"",
	}
)

func seedAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	st := store.NewPostgres(db)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := aggregator.NewSnapshotStore(db).EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Println("Schema ready.")
	if c.Bool("schema-only") {
		return nil
	}

	numFlights := c.Int("flights")
	obsPerFlight := c.Int("observations")
	days := c.Int("days")
	if numFlights <= 0 {
		return fmt.Errorf("--flights must be greater than 0")
	}
	if days <= 0 {
		return fmt.Errorf("--days must be greater than 0")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()
	span := time.Duration(days) * 24 * time.Hour
	created, observed := 0, 0

	for i := 0; i < numFlights; i++ {
		route := seedRoutes[i%len(seedRoutes)]
		fl := flight.Flight{
			ID:          uuid.NewString(),
			Origin:      route[0],
			Destination: route[1],
			Airline:     seedAirlines[rng.Intn(len(seedAirlines))],
			DepartureAt: now.Add(time.Duration(1+rng.Intn(90)) * 24 * time.Hour),
			Equipment:   seedEquipment[rng.Intn(len(seedEquipment))],
			CabinClass:  seedCabins[rng.Intn(len(seedCabins))],
			Notes:       seedNotes[rng.Intn(len(seedNotes))],
			Active:      true,
			CreatedAt:   now,
		}
		if err := st.CreateFlight(ctx, fl); err != nil {
			return fmt.Errorf("seeding flight %s-%s: %w", fl.Origin, fl.Destination, err)
		}
		created++

		// Fare history is a random walk from a per-flight base price,
		// oldest observation first.
		amount := 150 + rng.Float64()*1000
		for j := 0; j < obsPerFlight; j++ {
			age := span - time.Duration(float64(span)*float64(j)/float64(obsPerFlight))
			amount *= 1 + (rng.Float64()*2-1)*0.1
			if amount < 25 {
				amount = 25
			}
			obs := flight.PriceObservation{
				ID:         uuid.NewString(),
				FlightID:   fl.ID,
				Amount:     float64(int(amount*100)) / 100,
				CapturedAt: now.Add(-age),
				Source:     "seed",
			}
			if err := st.AddObservation(ctx, obs); err != nil {
				return fmt.Errorf("seeding observation for %s: %w", fl.ID, err)
			}
			observed++
		}
	}

	fmt.Printf("Seeded %d flight(s) with %d price observation(s).\n", created, observed)
	return nil
}

func sampleAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.NewPostgres(db)

	var dedupe *redis.Client
	if cfg.Redis.Enabled {
		dedupe, err = redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer dedupe.Close()
	}

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	job, err := sampler.New(st, dedupe, nil, cfg.Sampler, m)
	if err != nil {
		return err
	}
	defer job.Close()

	start := time.Now()
	if err := job.Sweep(context.Background()); err != nil {
		return fmt.Errorf("sampling sweep: %w", err)
	}
	fmt.Printf("Sampling sweep completed in %s.\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func searchAction(c *cli.Context) error {
	params := url.Values{}
	set := func(key, val string) {
		if val != "" {
			params.Set(key, val)
		}
	}
	set("q", c.String("query"))
	set("origin", c.String("origin"))
	set("destination", c.String("destination"))
	set("airline", c.String("airline"))
	set("price_min", c.String("price-min"))
	set("price_max", c.String("price-max"))
	set("date_start", c.String("date-start"))
	set("date_end", c.String("date-end"))
	set("sort", c.String("sort"))
	set("mode", c.String("mode"))
	set("alpha", c.String("alpha"))
	params.Set("page", fmt.Sprint(c.Int("page")))
	params.Set("page_size", fmt.Sprint(c.Int("page-size")))

	reqURL := strings.TrimRight(c.String("addr"), "/") + "/api/v1/search?" + params.Encode()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if key := c.String("api-key"); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("querying server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			if apiErr.Field != "" {
				return fmt.Errorf("server returned %d: %s (field %s)", resp.StatusCode, apiErr.Error, apiErr.Field)
			}
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var result search.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	printResults(&result)
	return nil
}

func printResults(resp *search.Response) {
	if len(resp.Items) == 0 {
		fmt.Println("No flights matched.")
		return
	}

	fmt.Printf("%-4s  %-10s  %-9s  %-22s  %-17s  %-9s  %s\n",
		"#", "Score", "Route", "Airline", "Departure", "Latest", "Flight ID")
	fmt.Println("----  ----------  ---------  ----------------------  -----------------  ---------  ------------------------------------")
	for i, item := range resp.Items {
		score := item.FusedScore
		if resp.Mode == "composite" {
			score = item.CompositeScore
		}
		latest := "-"
		if item.Prices.Count > 0 {
			latest = fmt.Sprintf("%.2f", item.Prices.Latest)
		}
		rank := (resp.Pagination.Page-1)*resp.Pagination.PageSize + i + 1
		fmt.Printf("%-4d  %-10.4f  %-9s  %-22s  %-17s  %-9s  %s\n",
			rank, score,
			item.Flight.Origin+"-"+item.Flight.Destination,
			item.Flight.Airline,
			item.Flight.DepartureAt.Format("2006-01-02 15:04"),
			latest,
			item.Flight.ID,
		)
	}

	fmt.Printf("\nMode: %s  Sort: %s  Page %d/%d  Total: %d result(s)",
		resp.Mode, resp.Sort,
		resp.Pagination.Page, resp.Pagination.TotalPages, resp.Pagination.TotalItems)
	if resp.Truncated {
		fmt.Print("  (candidate set truncated)")
	}
	fmt.Println()
}

func purgeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openPostgres(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.NewPostgres(db)

	olderThan := c.Duration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be a positive duration")
	}

	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-olderThan)
	purged, err := st.PurgeObservations(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d observation(s) captured before %s.\n", purged, cutoff.Format(time.RFC3339))

	if c.Bool("dedupe") {
		if !cfg.Redis.Enabled {
			return fmt.Errorf("--dedupe requires redis.enabled in the config")
		}
		rc, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		dropped, err := rc.FlushByPattern(ctx, "sample:*")
		if err != nil {
			return fmt.Errorf("flushing dedupe keys: %w", err)
		}
		fmt.Printf("Dropped %d sampler dedupe key(s).\n", dropped)
	}
	return nil
}

func openValidator(c *cli.Context) (*apikey.Validator, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := openPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	v := apikey.NewValidator(apikey.NewPostgresStore(db), nil)
	return v, func() { db.Close() }, nil
}

func keysCreateAction(c *cli.Context) error {
	v, cleanup, err := openValidator(c)
	if err != nil {
		return err
	}
	defer cleanup()

	name := c.String("name")
	rateLimit := c.Int("rate-limit")
	var expiresAt *time.Time
	if d := c.Duration("expires-in"); d > 0 {
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := v.CreateKey(context.Background(), name, rateLimit, expiresAt)
	if err != nil {
		return fmt.Errorf("creating key: %w", err)
	}

	fmt.Println("API key created successfully.")
	fmt.Println("Store this key securely. It cannot be retrieved again.")
	fmt.Println()
	fmt.Printf("  Key:        %s\n", key)
	fmt.Printf("  Name:       %s\n", name)
	fmt.Printf("  Rate Limit: %d req/window\n", rateLimit)
	if expiresAt != nil {
		fmt.Printf("  Expires:    %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("  Expires:    never")
	}
	return nil
}

func keysListAction(c *cli.Context) error {
	v, cleanup, err := openValidator(c)
	if err != nil {
		return err
	}
	defer cleanup()

	keys, err := v.ListKeys(context.Background())
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-10s  %s\n", "ID", "Name", "Rate Limit", "Expires")
	fmt.Println("------------------------------------  --------------------  ----------  -------------------------")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("%-36s  %-20s  %-10d  %s\n", k.ID, k.Name, k.RateLimit, expires)
	}
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func keysRevokeAction(c *cli.Context) error {
	v, cleanup, err := openValidator(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := v.RevokeKey(context.Background(), c.String("key")); err != nil {
		return fmt.Errorf("revoking key: %w", err)
	}
	fmt.Println("API key revoked successfully.")
	return nil
}
