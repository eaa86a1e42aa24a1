// Command fetch-daily-weather ingests daily weather for the Thai provinces
// with airports: archival rows up to the cutover date, short-range forecast
// rows after it. Monthly aggregates are recomputed as periods land.
//
// Usage:
//
//	fetch-daily-weather -start 2025-01-01 -end 2026-03-31 [options]
//
// Options:
//
//	-start DATE         First day of the historical window (required unless -forecast-only)
//	-end DATE           Last day of the historical window (default: cutover date)
//	-cutover DATE       Historical/forecast boundary (default: yesterday)
//	-provinces LIST     Comma-separated province names (default: all known)
//	-forecast-only      Skip the archival flow
//	-historical-only    Skip the forecast flow
//	-pg-*               PostgreSQL connection (see -h)
//
// The forecast flow needs OPENWEATHERMAP_API_KEY.
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

	"fare_analytics/internal/airports"
	"fare_analytics/internal/storage"
	"fare_analytics/internal/weather"
)

func main() {
	_ = godotenv.Load()

	startStr := flag.String("start", "", "First day of the historical window (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Last day of the historical window (YYYY-MM-DD)")
	cutoverStr := flag.String("cutover", "", "Historical/forecast boundary (YYYY-MM-DD, default: yesterday)")
	provincesStr := flag.String("provinces", "", "Comma-separated province names (default: all known)")
	forecastOnly := flag.Bool("forecast-only", false, "Skip the archival flow")
	historicalOnly := flag.Bool("historical-only", false, "Skip the forecast flow")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "fares"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "fares"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "fares"), "PostgreSQL database")

	flag.Parse()

	cutover := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	if *cutoverStr != "" {
		var err error
		cutover, err = time.Parse("2006-01-02", *cutoverStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -cutover: %v\n", err)
			os.Exit(1)
		}
	}

	provinces := airports.AllProvinces()
	if *provincesStr != "" {
		provinces = nil
		for _, name := range strings.Split(*provincesStr, ",") {
			p, ok := airports.ProvinceByName(strings.TrimSpace(name))
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown province: %s\n", name)
				os.Exit(1)
			}
			provinces = append(provinces, p)
		}
	}

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

	ingestor := weather.NewIngestor(pg, weather.NewArchiveClient(),
		weather.NewForecastClient(os.Getenv("OPENWEATHERMAP_API_KEY")), cutover)

	total := 0
	if !*forecastOnly {
		if *startStr == "" {
			fmt.Fprintln(os.Stderr, "-start is required for the historical flow")
			os.Exit(1)
		}
		start, err := time.Parse("2006-01-02", *startStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -start: %v\n", err)
			os.Exit(1)
		}
		end := cutover
		if *endStr != "" {
			if end, err = time.Parse("2006-01-02", *endStr); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid -end: %v\n", err)
				os.Exit(1)
			}
		}

		n, err := ingestor.RunHistorical(ctx, provinces, start, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Historical ingestion failed: %v\n", err)
			os.Exit(1)
		}
		total += n
	}

	if !*historicalOnly {
		n, err := ingestor.RunForecast(ctx, provinces)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Forecast ingestion failed: %v\n", err)
			os.Exit(1)
		}
		total += n
	}

	fmt.Printf("Ingested %d daily weather rows for %d provinces\n", total, len(provinces))
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
