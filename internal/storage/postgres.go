package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for the relational store.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// withRetry runs fn up to three times with exponential backoff. Server-side
// SQL errors are permanent and returned immediately; transport-level
// failures are retried.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) || ctx.Err() != nil {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
	return err
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data: Routes
	CREATE TABLE IF NOT EXISTS routes (
		id              SERIAL PRIMARY KEY,
		origin          TEXT NOT NULL,
		destination     TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(origin, destination)
	);

	-- Reference data: Airlines
	CREATE TABLE IF NOT EXISTS airlines (
		id              SERIAL PRIMARY KEY,
		code            TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		name_th         TEXT NOT NULL DEFAULT ''
	);

	-- Fares as stored by the price-ingestion path
	CREATE TABLE IF NOT EXISTS flight_prices (
		id              BIGSERIAL PRIMARY KEY,
		route_id        INTEGER NOT NULL REFERENCES routes(id),
		airline_id      INTEGER NOT NULL REFERENCES airlines(id),
		departure_date  DATE NOT NULL,
		return_date     DATE,
		trip_type       TEXT NOT NULL,
		cabin           TEXT NOT NULL,
		price           DOUBLE PRECISION NOT NULL,
		base_price      DOUBLE PRECISION NOT NULL,
		season_label    TEXT NOT NULL DEFAULT 'normal',
		flight_number   TEXT NOT NULL DEFAULT '',
		departure_time  TEXT NOT NULL DEFAULT '',
		arrival_time    TEXT NOT NULL DEFAULT '',
		duration        TEXT NOT NULL DEFAULT '',
		airplane        TEXT NOT NULL DEFAULT '',
		carbon_grams    INTEGER NOT NULL DEFAULT 0,
		legroom         TEXT NOT NULL DEFAULT '',
		often_delayed   BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE NULLS NOT DISTINCT (route_id, airline_id, departure_date, return_date, trip_type, cabin, flight_number)
	);

	CREATE INDEX IF NOT EXISTS idx_flight_prices_route_date ON flight_prices(route_id, departure_date);

	-- Daily weather, one row per (province, date)
	CREATE TABLE IF NOT EXISTS daily_weather (
		province        TEXT NOT NULL,
		date            DATE NOT NULL,
		temp_max        DOUBLE PRECISION NOT NULL,
		temp_min        DOUBLE PRECISION NOT NULL,
		temp_avg        DOUBLE PRECISION NOT NULL,
		precipitation   DOUBLE PRECISION NOT NULL,
		humidity        DOUBLE PRECISION,
		source          TEXT NOT NULL,
		PRIMARY KEY (province, date)
	);

	-- Monthly weather aggregates
	CREATE TABLE IF NOT EXISTS monthly_weather_stats (
		province        TEXT NOT NULL,
		period          TEXT NOT NULL,
		avg_temp        DOUBLE PRECISION NOT NULL,
		rain_total      DOUBLE PRECISION NOT NULL,
		avg_humidity    DOUBLE PRECISION NOT NULL,
		weather_score   DOUBLE PRECISION NOT NULL,
		days_count      INTEGER NOT NULL,
		PRIMARY KEY (province, period)
	);

	-- Monthly holiday aggregates, nationwide
	CREATE TABLE IF NOT EXISTS holiday_stats (
		period              TEXT PRIMARY KEY,
		holidays_count      INTEGER NOT NULL,
		long_weekends_count INTEGER NOT NULL,
		holiday_score       DOUBLE PRECISION NOT NULL,
		detail              JSONB NOT NULL DEFAULT '[]'
	);

	-- Precomputed monthly price percentiles per route
	CREATE TABLE IF NOT EXISTS route_price_stats (
		route_id            INTEGER NOT NULL REFERENCES routes(id),
		period              TEXT NOT NULL,
		price_percentile    DOUBLE PRECISION NOT NULL,
		avg_price           DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (route_id, period)
	);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetOrCreateRoute looks up a route by airport pair, creating it lazily on
// first use.
func (d *PostgresDB) GetOrCreateRoute(ctx context.Context, origin, destination string) (*Route, error) {
	var r Route
	err := withRetry(ctx, func() error {
		return d.pool.QueryRow(ctx, `
			INSERT INTO routes (origin, destination)
			VALUES ($1, $2)
			ON CONFLICT (origin, destination) DO UPDATE SET origin = EXCLUDED.origin
			RETURNING id, origin, destination, created_at
		`, origin, destination).Scan(&r.ID, &r.Origin, &r.Destination, &r.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("get or create route %s-%s: %w", origin, destination, err)
	}
	return &r, nil
}

// UpsertAirline inserts or updates an airline by code and returns its id.
func (d *PostgresDB) UpsertAirline(ctx context.Context, a Airline) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO airlines (code, name, name_th)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			name_th = CASE WHEN EXCLUDED.name_th <> '' THEN EXCLUDED.name_th ELSE airlines.name_th END
		RETURNING id
	`, a.Code, a.Name, a.NameTH).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert airline %s: %w", a.Code, err)
	}
	return id, nil
}

// GetAirlineByCode retrieves an airline by IATA code, or nil when unknown.
func (d *PostgresDB) GetAirlineByCode(ctx context.Context, code string) (*Airline, error) {
	var a Airline
	err := d.pool.QueryRow(ctx, `
		SELECT id, code, name, name_th FROM airlines WHERE code = $1
	`, code).Scan(&a.ID, &a.Code, &a.Name, &a.NameTH)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AirlinesForRoute returns the airlines with stored fares on any route from
// the origin set to the destination.
func (d *PostgresDB) AirlinesForRoute(ctx context.Context, origins []string, destination string) ([]Airline, error) {
	var airlines []Airline
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, `
			SELECT DISTINCT a.id, a.code, a.name, a.name_th
			FROM airlines a
			JOIN flight_prices fp ON fp.airline_id = a.id
			JOIN routes r ON r.id = fp.route_id
			WHERE r.origin = ANY($1) AND r.destination = $2
			ORDER BY a.code
		`, origins, destination)
		if err != nil {
			return err
		}
		defer rows.Close()

		airlines = airlines[:0]
		for rows.Next() {
			var a Airline
			if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.NameTH); err != nil {
				return err
			}
			airlines = append(airlines, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("airlines for route: %w", err)
	}
	return airlines, nil
}

// UpsertFlightPrice inserts or updates a fare row. Applying the same row
// twice is a no-op.
func (d *PostgresDB) UpsertFlightPrice(ctx context.Context, p FlightPrice) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO flight_prices (
			route_id, airline_id, departure_date, return_date, trip_type, cabin,
			price, base_price, season_label, flight_number, departure_time,
			arrival_time, duration, airplane, carbon_grams, legroom, often_delayed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (route_id, airline_id, departure_date, return_date, trip_type, cabin, flight_number)
		DO UPDATE SET
			price = EXCLUDED.price,
			base_price = EXCLUDED.base_price,
			season_label = EXCLUDED.season_label,
			departure_time = EXCLUDED.departure_time,
			arrival_time = EXCLUDED.arrival_time,
			duration = EXCLUDED.duration,
			airplane = EXCLUDED.airplane,
			carbon_grams = EXCLUDED.carbon_grams,
			legroom = EXCLUDED.legroom,
			often_delayed = EXCLUDED.often_delayed
	`, p.RouteID, p.AirlineID, p.DepartureDate, p.ReturnDate, string(p.TripType), string(p.Cabin),
		p.Price, p.BasePrice, string(p.SeasonLabel), p.FlightNumber, p.DepartureTime,
		p.ArrivalTime, p.Duration, p.Airplane, p.CarbonGrams, p.Legroom, p.OftenDelayed)
	if err != nil {
		return fmt.Errorf("upsert flight price: %w", err)
	}
	return nil
}

// FlightPriceFilter narrows a fare listing.
type FlightPriceFilter struct {
	Origins     []string
	Destination string
	Start       time.Time
	End         time.Time
	TripType    TripType
	Cabin       Cabin
	AirlineIDs  []int64
}

// ListFlightPrices returns fares matching the filter, cheapest first within
// each departure date.
func (d *PostgresDB) ListFlightPrices(ctx context.Context, f FlightPriceFilter) ([]FlightPrice, error) {
	query := `
		SELECT fp.id, fp.route_id, r.origin, r.destination,
		       fp.airline_id, a.name, a.code,
		       fp.departure_date, fp.return_date, fp.trip_type, fp.cabin,
		       fp.price, fp.base_price, fp.season_label, fp.flight_number,
		       fp.departure_time, fp.arrival_time, fp.duration, fp.airplane,
		       fp.carbon_grams, fp.legroom, fp.often_delayed
		FROM flight_prices fp
		JOIN routes r ON r.id = fp.route_id
		JOIN airlines a ON a.id = fp.airline_id
		WHERE r.origin = ANY($1) AND r.destination = $2
		  AND fp.departure_date >= $3 AND fp.departure_date <= $4
		  AND fp.trip_type = $5 AND fp.cabin = $6
	`
	args := []any{f.Origins, f.Destination, f.Start, f.End, string(f.TripType), string(f.Cabin)}
	if len(f.AirlineIDs) > 0 {
		query += ` AND fp.airline_id = ANY($7)`
		args = append(args, f.AirlineIDs)
	}
	query += ` ORDER BY fp.departure_date, fp.price`

	var prices []FlightPrice
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		prices = prices[:0]
		for rows.Next() {
			var p FlightPrice
			var tripType, cabin, season string
			if err := rows.Scan(&p.ID, &p.RouteID, &p.Origin, &p.Destination,
				&p.AirlineID, &p.AirlineName, &p.AirlineCode,
				&p.DepartureDate, &p.ReturnDate, &tripType, &cabin,
				&p.Price, &p.BasePrice, &season, &p.FlightNumber,
				&p.DepartureTime, &p.ArrivalTime, &p.Duration, &p.Airplane,
				&p.CarbonGrams, &p.Legroom, &p.OftenDelayed); err != nil {
				return err
			}
			p.TripType = TripType(tripType)
			p.Cabin = Cabin(cabin)
			p.SeasonLabel = Season(season)
			prices = append(prices, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list flight prices: %w", err)
	}
	return prices, nil
}

// UpsertDailyWeather inserts or updates a daily weather row. A historical
// row displaces a forecast row for the same (province, date); a forecast
// row never displaces a historical one.
func (d *PostgresDB) UpsertDailyWeather(ctx context.Context, w DailyWeather) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO daily_weather (province, date, temp_max, temp_min, temp_avg, precipitation, humidity, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (province, date) DO UPDATE SET
			temp_max = EXCLUDED.temp_max,
			temp_min = EXCLUDED.temp_min,
			temp_avg = EXCLUDED.temp_avg,
			precipitation = EXCLUDED.precipitation,
			humidity = EXCLUDED.humidity,
			source = EXCLUDED.source
		WHERE NOT (daily_weather.source = 'historical' AND EXCLUDED.source = 'forecast')
	`, w.Province, w.Date, w.TempMax, w.TempMin, w.TempAvg, w.Precipitation, w.Humidity, string(w.Source))
	if err != nil {
		return fmt.Errorf("upsert daily weather %s %s: %w", w.Province, w.Date.Format("2006-01-02"), err)
	}
	return nil
}

// HasDailyWeather reports whether a row exists for (province, date).
func (d *PostgresDB) HasDailyWeather(ctx context.Context, province string, date time.Time) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM daily_weather WHERE province = $1 AND date = $2)
	`, province, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("daily weather exists: %w", err)
	}
	return exists, nil
}

// DailyWeatherRange returns all rows for a province within [start, end].
func (d *PostgresDB) DailyWeatherRange(ctx context.Context, province string, start, end time.Time) ([]DailyWeather, error) {
	var out []DailyWeather
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, `
			SELECT province, date, temp_max, temp_min, temp_avg, precipitation, humidity, source
			FROM daily_weather
			WHERE province = $1 AND date >= $2 AND date <= $3
			ORDER BY date
		`, province, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var w DailyWeather
			var source string
			if err := rows.Scan(&w.Province, &w.Date, &w.TempMax, &w.TempMin, &w.TempAvg,
				&w.Precipitation, &w.Humidity, &source); err != nil {
				return err
			}
			w.Source = WeatherSource(source)
			out = append(out, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("daily weather range: %w", err)
	}
	return out, nil
}

// MonthlyWeatherAggregate computes the monthly aggregate directly from
// daily rows for one (province, period).
func (d *PostgresDB) MonthlyWeatherAggregate(ctx context.Context, province, period string) (avgTemp, rainTotal, avgHumidity float64, days int, err error) {
	err = d.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(temp_avg), 0), COALESCE(SUM(precipitation), 0),
		       COALESCE(AVG(humidity), 0), COUNT(*)
		FROM daily_weather
		WHERE province = $1 AND to_char(date, 'YYYY-MM') = $2
	`, province, period).Scan(&avgTemp, &rainTotal, &avgHumidity, &days)
	if err != nil {
		err = fmt.Errorf("monthly weather aggregate %s %s: %w", province, period, err)
	}
	return
}

// UpsertMonthlyWeatherStat inserts or updates a monthly weather aggregate.
func (d *PostgresDB) UpsertMonthlyWeatherStat(ctx context.Context, s MonthlyWeatherStat) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO monthly_weather_stats (province, period, avg_temp, rain_total, avg_humidity, weather_score, days_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (province, period) DO UPDATE SET
			avg_temp = EXCLUDED.avg_temp,
			rain_total = EXCLUDED.rain_total,
			avg_humidity = EXCLUDED.avg_humidity,
			weather_score = EXCLUDED.weather_score,
			days_count = EXCLUDED.days_count
	`, s.Province, s.Period, s.AvgTemp, s.RainTotal, s.AvgHumidity, s.WeatherScore, s.DaysCount)
	if err != nil {
		return fmt.Errorf("upsert monthly weather stat %s %s: %w", s.Province, s.Period, err)
	}
	return nil
}

// MonthlyWeatherStats returns the monthly aggregates for a province keyed
// by period, restricted to the requested periods.
func (d *PostgresDB) MonthlyWeatherStats(ctx context.Context, province string, periods []string) (map[string]MonthlyWeatherStat, error) {
	out := make(map[string]MonthlyWeatherStat)
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, `
			SELECT province, period, avg_temp, rain_total, avg_humidity, weather_score, days_count
			FROM monthly_weather_stats
			WHERE province = $1 AND period = ANY($2)
		`, province, periods)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(out)
		for rows.Next() {
			var s MonthlyWeatherStat
			if err := rows.Scan(&s.Province, &s.Period, &s.AvgTemp, &s.RainTotal,
				&s.AvgHumidity, &s.WeatherScore, &s.DaysCount); err != nil {
				return err
			}
			out[s.Period] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("monthly weather stats: %w", err)
	}
	return out, nil
}

// ProvincePeriod identifies one month of daily rows for one province.
type ProvincePeriod struct {
	Province string
	Period   string
}

// DistinctWeatherPeriods lists every (province, period) pair that has daily
// rows, for the statistics refresh.
func (d *PostgresDB) DistinctWeatherPeriods(ctx context.Context) ([]ProvincePeriod, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT DISTINCT province, to_char(date, 'YYYY-MM') AS period
		FROM daily_weather
		ORDER BY province, period
	`)
	if err != nil {
		return nil, fmt.Errorf("distinct weather periods: %w", err)
	}
	defer rows.Close()

	var out []ProvincePeriod
	for rows.Next() {
		var pp ProvincePeriod
		if err := rows.Scan(&pp.Province, &pp.Period); err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// UpsertHolidayStat inserts or updates a monthly holiday aggregate.
func (d *PostgresDB) UpsertHolidayStat(ctx context.Context, s HolidayStat) error {
	detail, err := json.Marshal(s.Detail)
	if err != nil {
		return fmt.Errorf("marshal holiday detail: %w", err)
	}
	_, err = d.pool.Exec(ctx, `
		INSERT INTO holiday_stats (period, holidays_count, long_weekends_count, holiday_score, detail)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (period) DO UPDATE SET
			holidays_count = EXCLUDED.holidays_count,
			long_weekends_count = EXCLUDED.long_weekends_count,
			holiday_score = EXCLUDED.holiday_score,
			detail = EXCLUDED.detail
	`, s.Period, s.HolidaysCount, s.LongWeekendsCount, s.HolidayScore, detail)
	if err != nil {
		return fmt.Errorf("upsert holiday stat %s: %w", s.Period, err)
	}
	return nil
}

// HolidayStats returns holiday aggregates keyed by period.
func (d *PostgresDB) HolidayStats(ctx context.Context, periods []string) (map[string]HolidayStat, error) {
	out := make(map[string]HolidayStat)
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, `
			SELECT period, holidays_count, long_weekends_count, holiday_score, detail
			FROM holiday_stats
			WHERE period = ANY($1)
		`, periods)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(out)
		for rows.Next() {
			var s HolidayStat
			var detail []byte
			if err := rows.Scan(&s.Period, &s.HolidaysCount, &s.LongWeekendsCount,
				&s.HolidayScore, &detail); err != nil {
				return err
			}
			if len(detail) > 0 {
				if err := json.Unmarshal(detail, &s.Detail); err != nil {
					return fmt.Errorf("unmarshal holiday detail %s: %w", s.Period, err)
				}
			}
			out[s.Period] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("holiday stats: %w", err)
	}
	return out, nil
}

// UpsertRoutePriceStat inserts or updates a precomputed monthly percentile.
func (d *PostgresDB) UpsertRoutePriceStat(ctx context.Context, s RoutePriceStat) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO route_price_stats (route_id, period, price_percentile, avg_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (route_id, period) DO UPDATE SET
			price_percentile = EXCLUDED.price_percentile,
			avg_price = EXCLUDED.avg_price
	`, s.RouteID, s.Period, s.PricePercentile, s.AvgPrice)
	if err != nil {
		return fmt.Errorf("upsert route price stat %d %s: %w", s.RouteID, s.Period, err)
	}
	return nil
}

// RoutePriceStats returns precomputed percentiles for a route keyed by
// period, restricted to the requested periods.
func (d *PostgresDB) RoutePriceStats(ctx context.Context, routeID int64, periods []string) (map[string]RoutePriceStat, error) {
	out := make(map[string]RoutePriceStat)
	err := withRetry(ctx, func() error {
		rows, err := d.pool.Query(ctx, `
			SELECT route_id, period, price_percentile, avg_price
			FROM route_price_stats
			WHERE route_id = $1 AND period = ANY($2)
		`, routeID, periods)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(out)
		for rows.Next() {
			var s RoutePriceStat
			if err := rows.Scan(&s.RouteID, &s.Period, &s.PricePercentile, &s.AvgPrice); err != nil {
				return err
			}
			out[s.Period] = s
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("route price stats: %w", err)
	}
	return out, nil
}
