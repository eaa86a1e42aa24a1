// Command import-daily-weather-from-csv loads daily weather rows from a
// CSV export into PostgreSQL and recomputes the touched monthly
// aggregates.
//
// Usage:
//
//	import-daily-weather-from-csv -input rows.csv [options]
//
// CSV columns: province,date,temp_max,temp_min,precipitation,humidity,source
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"fare_analytics/internal/csvio"
	"fare_analytics/internal/storage"
	"fare_analytics/internal/weather"
)

func main() {
	_ = godotenv.Load()

	input := flag.String("input", "", "Input CSV file (required)")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "fares"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "fares"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "fares"), "PostgreSQL database")

	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		os.Exit(1)
	}

	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	rows, err := csvio.ReadWeather(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse CSV: %v\n", err)
		os.Exit(1)
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

	ingestor := weather.NewIngestor(pg, nil, nil, time.Now().UTC())

	periods := make(map[[2]string]bool)
	for _, r := range rows {
		day := weather.Day{
			Date:          r.Date,
			TempMax:       r.TempMax,
			TempMin:       r.TempMin,
			Precipitation: r.Precipitation,
			Humidity:      r.Humidity,
		}
		if err := pg.UpsertDailyWeather(ctx, weather.Normalize(r.Province, day, r.Source)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to store row %s %s: %v\n", r.Province, r.Date.Format("2006-01-02"), err)
			os.Exit(1)
		}
		periods[[2]string{r.Province, r.Date.Format("2006-01")}] = true
	}

	for pp := range periods {
		if err := ingestor.RecomputeMonthly(ctx, pp[0], pp[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to recompute %s %s: %v\n", pp[0], pp[1], err)
			os.Exit(1)
		}
	}

	fmt.Printf("Imported %d rows covering %d (province, month) pairs\n", len(rows), len(periods))
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
