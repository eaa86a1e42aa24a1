// Command fetch-holidays ingests the Thai holiday calendar and refreshes
// the monthly holiday statistics.
//
// Usage:
//
//	fetch-holidays -from 2025 -to 2027 [options]
//
// Needs IAPP_API_KEY (and optionally IAPP_API_URL).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"fare_analytics/internal/holiday"
	"fare_analytics/internal/storage"
)

func main() {
	_ = godotenv.Load()

	thisYear := time.Now().Year()
	fromYear := flag.Int("from", thisYear, "First year to ingest")
	toYear := flag.Int("to", thisYear+1, "Last year to ingest")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "fares"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "fares"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "fares"), "PostgreSQL database")

	flag.Parse()

	if *toYear < *fromYear {
		fmt.Fprintln(os.Stderr, "-to must not precede -from")
		os.Exit(1)
	}

	apiKey := os.Getenv("IAPP_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "IAPP_API_KEY is not set")
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

	ingestor := holiday.NewIngestor(pg, holiday.NewClient(os.Getenv("IAPP_API_URL"), apiKey))
	if err := ingestor.Run(ctx, *fromYear, *toYear); err != nil {
		fmt.Fprintf(os.Stderr, "Holiday ingestion failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Ingested holidays for %d-%d\n", *fromYear, *toYear)
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
