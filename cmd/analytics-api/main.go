// Command analytics-api serves the flight-price analysis REST API.
//
// Usage:
//
//	analytics-api [options]
//
// Options:
//
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: fares, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: fares, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (default: fares, env: POSTGRES_PASSWORD)
//	-model-store PATH   SQLite path for forecast diagnostics (default: forecast.db)
//	-port N             HTTP port (default: 8080)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET  /api/v1/health
//	POST /api/v1/analyze
//	GET  /api/v1/airlines/{origin}/{destination}
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fare_analytics/internal/analysis"
	"fare_analytics/internal/api"
	"fare_analytics/internal/forecast"
	"fare_analytics/internal/holiday"
	"fare_analytics/internal/scores"
	"fare_analytics/internal/storage"
	"fare_analytics/internal/weather"
)

func main() {
	_ = godotenv.Load()

	// PostgreSQL connection flags.
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "fares"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "fares"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "fares"), "PostgreSQL database")

	// API server flags.
	port := flag.Int("port", 8080, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")
	modelStorePath := flag.String("model-store", "forecast.db", "SQLite path for forecast diagnostics")

	flag.Parse()

	ctx := context.Background()

	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.CreateSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	var modelStore *forecast.ModelStore
	if *modelStorePath != "" {
		modelStore, err = forecast.OpenModelStore(*modelStorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: model store unavailable: %v\n", err)
		} else {
			defer modelStore.Close()
		}
	}

	holidayClient := holiday.NewClient(os.Getenv("IAPP_API_URL"), os.Getenv("IAPP_API_KEY"))
	aggregator := scores.New(pg, periodFetcher{holidayClient}, weather.MonthlyScore)
	engine := forecast.NewEngine(pg, modelStore)
	analyzer := analysis.New(pg, aggregator, engine)

	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(analyzer, pg, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// periodFetcher adapts the holiday client to the aggregator's fetch
// fallback: it pulls whole years covering the missing periods and keeps
// the requested months.
type periodFetcher struct {
	client *holiday.Client
}

func (f periodFetcher) FetchPeriods(ctx context.Context, periods []string) (map[string]storage.HolidayStat, error) {
	years := make(map[int]bool)
	want := make(map[string]bool, len(periods))
	for _, p := range periods {
		want[p] = true
		var y, m int
		if _, err := fmt.Sscanf(p, "%d-%d", &y, &m); err == nil {
			years[y] = true
		}
	}

	out := make(map[string]storage.HolidayStat)
	first := true
	for year := range years {
		if !first {
			time.Sleep(200 * time.Millisecond)
		}
		first = false
		entries, err := f.client.FetchYear(ctx, year)
		if err != nil {
			return nil, err
		}
		byPeriod := make(map[string][]holiday.Entry)
		for _, e := range entries {
			byPeriod[e.Date.Format("2006-01")] = append(byPeriod[e.Date.Format("2006-01")], e)
		}
		for p, es := range byPeriod {
			if want[p] {
				out[p] = holiday.BuildStat(p, es)
			}
		}
	}
	return out, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
