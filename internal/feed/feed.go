// Package feed consumes fare rows published by the price-ingestion scraper
// over NATS and lands them in the stores: upserted into PostgreSQL and
// appended to the ClickHouse observation archive.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"fare_analytics/internal/storage"
)

// DefaultSubject is the NATS subject the scraper publishes to.
const DefaultSubject = "fares.observations"

// archiveBatchSize buffers ClickHouse appends.
const archiveBatchSize = 200

// Message is one fare as published on the wire. Enumerations are validated
// at ingress; unknown values reject the message.
type Message struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	AirlineCode   string  `json:"airline_code"`
	AirlineName   string  `json:"airline_name"`
	AirlineNameTH string  `json:"airline_name_th"`
	DepartureDate string  `json:"departure_date"`
	ReturnDate    string  `json:"return_date"`
	TripType      string  `json:"trip_type"`
	Cabin         string  `json:"cabin"`
	Price         float64 `json:"price"`
	BasePrice     float64 `json:"base_price"`
	SeasonLabel   string  `json:"season_label"`
	FlightNumber  string  `json:"flight_number"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	Duration      string  `json:"duration"`
	Airplane      string  `json:"airplane"`
	CarbonGrams   int     `json:"carbon_grams"`
	Legroom       string  `json:"legroom"`
	OftenDelayed  bool    `json:"often_delayed"`
}

// Consumer subscribes to the fare subject and lands messages.
type Consumer struct {
	nc *nats.Conn
	pg *storage.PostgresDB
	ch *storage.ClickHouseDB

	mu      sync.Mutex
	pending []storage.PriceObservation

	Now func() time.Time
}

// NewConsumer wires a consumer. The ClickHouse handle may be nil to skip
// archiving.
func NewConsumer(nc *nats.Conn, pg *storage.PostgresDB, ch *storage.ClickHouseDB) *Consumer {
	return &Consumer{nc: nc, pg: pg, ch: ch, Now: time.Now}
}

// Run subscribes on the subject (queue-grouped so replicas share the load)
// and processes messages until the context ends. The final archive batch is
// flushed on shutdown.
func (c *Consumer) Run(ctx context.Context, subject, queue string) error {
	sub, err := c.nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if err := c.handle(ctx, msg.Data); err != nil {
			log.Printf("feed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	log.Printf("feed: consuming %s (queue %s)", subject, queue)
	<-ctx.Done()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Flush(flushCtx); err != nil {
		log.Printf("feed: final flush: %v", err)
	}
	return nil
}

// handle validates and lands one message.
func (c *Consumer) handle(ctx context.Context, data []byte) error {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	row, obs, err := c.convert(m)
	if err != nil {
		return fmt.Errorf("reject %s-%s: %w", m.Origin, m.Destination, err)
	}

	route, err := c.pg.GetOrCreateRoute(ctx, m.Origin, m.Destination)
	if err != nil {
		return err
	}
	row.RouteID = route.ID

	airlineID, err := c.pg.UpsertAirline(ctx, storage.Airline{
		Code:   m.AirlineCode,
		Name:   m.AirlineName,
		NameTH: m.AirlineNameTH,
	})
	if err != nil {
		return err
	}
	row.AirlineID = airlineID

	if err := c.pg.UpsertFlightPrice(ctx, *row); err != nil {
		return err
	}

	if c.ch != nil {
		c.mu.Lock()
		c.pending = append(c.pending, obs)
		full := len(c.pending) >= archiveBatchSize
		c.mu.Unlock()
		if full {
			if err := c.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// convert validates the wire message into a fare row and an observation.
func (c *Consumer) convert(m Message) (*storage.FlightPrice, storage.PriceObservation, error) {
	tripType, err := storage.ParseTripType(m.TripType)
	if err != nil {
		return nil, storage.PriceObservation{}, err
	}
	cabin, err := storage.ParseCabin(m.Cabin)
	if err != nil {
		return nil, storage.PriceObservation{}, err
	}
	seasonLabel := storage.SeasonNormal
	if m.SeasonLabel != "" {
		if seasonLabel, err = storage.ParseSeason(m.SeasonLabel); err != nil {
			return nil, storage.PriceObservation{}, err
		}
	}
	departure, err := time.Parse("2006-01-02", m.DepartureDate)
	if err != nil {
		return nil, storage.PriceObservation{}, fmt.Errorf("bad departure date %q", m.DepartureDate)
	}
	var returnDate *time.Time
	if m.ReturnDate != "" {
		rd, err := time.Parse("2006-01-02", m.ReturnDate)
		if err != nil {
			return nil, storage.PriceObservation{}, fmt.Errorf("bad return date %q", m.ReturnDate)
		}
		returnDate = &rd
	}
	if m.Price <= 0 {
		return nil, storage.PriceObservation{}, fmt.Errorf("non-positive price %v", m.Price)
	}

	row := &storage.FlightPrice{
		DepartureDate: departure,
		ReturnDate:    returnDate,
		TripType:      tripType,
		Cabin:         cabin,
		Price:         m.Price,
		BasePrice:     m.BasePrice,
		SeasonLabel:   seasonLabel,
		FlightNumber:  m.FlightNumber,
		DepartureTime: m.DepartureTime,
		ArrivalTime:   m.ArrivalTime,
		Duration:      m.Duration,
		Airplane:      m.Airplane,
		CarbonGrams:   m.CarbonGrams,
		Legroom:       m.Legroom,
		OftenDelayed:  m.OftenDelayed,
	}

	obs := storage.PriceObservation{
		Origin:        m.Origin,
		Destination:   m.Destination,
		AirlineCode:   m.AirlineCode,
		DepartureDate: departure,
		TripType:      tripType,
		Cabin:         cabin,
		Price:         m.Price,
		ObservedAt:    c.Now().UTC(),
	}
	return row, obs, nil
}

// Flush sends the buffered observation batch to ClickHouse.
func (c *Consumer) Flush(ctx context.Context) error {
	if c.ch == nil {
		return nil
	}
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.ch.InsertObservations(ctx, batch); err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}
	return nil
}
