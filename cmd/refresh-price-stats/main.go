// Command refresh-price-stats materializes the per-route monthly price
// percentiles from the ClickHouse observation archive into PostgreSQL.
//
// For every (origin, destination) pair in the archive it computes the
// average fare per month and ranks each month against the pair's other
// months: the percentile is the percent of months with an average less
// than or equal to its own.
//
// Usage:
//
//	refresh-price-stats [-trip-type round-trip] [options]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"

	"fare_analytics/internal/storage"
)

func main() {
	_ = godotenv.Load()

	tripTypeStr := flag.String("trip-type", string(storage.TripRoundTrip), "Trip type to materialize")

	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "fares"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "fares"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "fares"), "PostgreSQL database")

	chHost := flag.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := flag.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")
	chUser := flag.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := flag.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")
	chDB := flag.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "fares"), "ClickHouse database")

	flag.Parse()

	tripType, err := storage.ParseTripType(*tripTypeStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -trip-type: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := storage.Open(ctx, storage.Config{
		Postgres: storage.PostgresConfig{
			Host: *pgHost, Port: *pgPort, Database: *pgDB, User: *pgUser, Password: *pgPassword,
		},
		ClickHouse: storage.ClickHouseConfig{
			Host: *chHost, Port: *chPort, Database: *chDB, User: *chUser, Password: *chPassword,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening databases: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.CreateSchemas(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schemas: %v\n", err)
		os.Exit(1)
	}

	averages, err := db.CH.MonthlyAverages(ctx, tripType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error aggregating observations: %v\n", err)
		os.Exit(1)
	}

	// Group by route pair.
	type pair struct{ origin, destination string }
	byRoute := make(map[pair][]storage.PeriodAverage)
	for _, pa := range averages {
		key := pair{pa.Origin, pa.Destination}
		byRoute[key] = append(byRoute[key], pa)
	}

	written := 0
	for key, months := range byRoute {
		route, err := db.PG.GetOrCreateRoute(ctx, key.origin, key.destination)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving route %s-%s: %v\n", key.origin, key.destination, err)
			os.Exit(1)
		}

		avgs := make([]float64, 0, len(months))
		for _, m := range months {
			avgs = append(avgs, m.AvgPrice)
		}
		sort.Float64s(avgs)
		n := float64(len(avgs))

		for _, m := range months {
			le := 0
			for _, v := range avgs {
				if v <= m.AvgPrice {
					le++
				}
			}
			stat := storage.RoutePriceStat{
				RouteID:         route.ID,
				Period:          m.Period,
				PricePercentile: 100 * float64(le) / n,
				AvgPrice:        m.AvgPrice,
			}
			if err := db.PG.UpsertRoutePriceStat(ctx, stat); err != nil {
				fmt.Fprintf(os.Stderr, "Error storing stat %s %s: %v\n", key.origin, m.Period, err)
				os.Exit(1)
			}
			written++
		}
	}

	fmt.Printf("Materialized %d route price stats across %d routes\n", written, len(byRoute))
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
