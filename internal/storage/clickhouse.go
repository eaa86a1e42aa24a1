package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for the price-observation
// archive. Every fare the feed sees is appended here; the monthly
// percentile refresh aggregates over it.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS price_observations (
		origin          LowCardinality(String),
		destination     LowCardinality(String),
		airline_code    LowCardinality(String),
		departure_date  Date,
		trip_type       LowCardinality(String),
		cabin           LowCardinality(String),
		price           Float64,
		observed_at     DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(departure_date)
	ORDER BY (origin, destination, trip_type, departure_date)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create price_observations: %w", err)
	}
	return nil
}

// PriceObservation is one appended fare sighting.
type PriceObservation struct {
	Origin        string
	Destination   string
	AirlineCode   string
	DepartureDate time.Time
	TripType      TripType
	Cabin         Cabin
	Price         float64
	ObservedAt    time.Time
}

// InsertObservations appends a batch of fare sightings.
func (d *ClickHouseDB) InsertObservations(ctx context.Context, obs []PriceObservation) error {
	if len(obs) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations
		(origin, destination, airline_code, departure_date, trip_type, cabin, price, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare observation batch: %w", err)
	}
	for _, o := range obs {
		if err := batch.Append(o.Origin, o.Destination, o.AirlineCode, o.DepartureDate,
			string(o.TripType), string(o.Cabin), o.Price, o.ObservedAt); err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send observation batch: %w", err)
	}
	return nil
}

// PeriodAverage is a monthly average fare for one route direction.
type PeriodAverage struct {
	Origin      string
	Destination string
	Period      string
	AvgPrice    float64
	Count       uint64
}

// MonthlyAverages aggregates the observation archive into per-month average
// fares for every (origin, destination) pair, for the stats refresher.
func (d *ClickHouseDB) MonthlyAverages(ctx context.Context, tripType TripType) ([]PeriodAverage, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT origin, destination,
		       formatDateTime(departure_date, '%Y-%m') AS period,
		       avg(price) AS avg_price,
		       count() AS n
		FROM price_observations
		WHERE trip_type = ?
		GROUP BY origin, destination, period
		ORDER BY origin, destination, period
	`, string(tripType))
	if err != nil {
		return nil, fmt.Errorf("monthly averages: %w", err)
	}
	defer rows.Close()

	var out []PeriodAverage
	for rows.Next() {
		var pa PeriodAverage
		if err := rows.Scan(&pa.Origin, &pa.Destination, &pa.Period, &pa.AvgPrice, &pa.Count); err != nil {
			return nil, fmt.Errorf("scan monthly average: %w", err)
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}
