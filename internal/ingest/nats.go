// Package ingest consumes raw load texts from NATS and feeds them
// through the parser into storage.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"load_parser/internal/extractor"
	"load_parser/internal/storage"
)

// Config holds NATS consumer settings.
type Config struct {
	URL     string
	Subject string
	Queue   string
}

// DefaultConfig returns the default NATS consumer configuration.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "loads.raw",
		Queue:   "load-parser",
	}
}

// envelope is the optional JSON message format. Plain text messages
// are accepted as-is.
type envelope struct {
	Text         string `json:"text"`
	DispatcherID *int64 `json:"dispatcher_id"`
}

// Consumer subscribes to a NATS subject and parses each message.
// Both stores are optional; with a nil PostgresDB parses are only
// logged (and audited when ClickHouse is configured).
type Consumer struct {
	cfg Config
	pg  *storage.PostgresDB
	ch  *storage.ClickHouseDB
}

// NewConsumer creates a NATS load consumer.
func NewConsumer(cfg Config, pg *storage.PostgresDB, ch *storage.ClickHouseDB) *Consumer {
	return &Consumer{cfg: cfg, pg: pg, ch: ch}
}

// Run connects to NATS and consumes load texts until the context is
// cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.URL,
		nats.Name("load-parser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return err
	}

	log.Printf("Consuming load texts from %q (queue %q) at %s", c.cfg.Subject, c.cfg.Queue, c.cfg.URL)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		log.Printf("Failed to drain subscription: %v", err)
	}
	return ctx.Err()
}

// handle parses one message. Messages starting with '{' are decoded as
// JSON envelopes, anything else is treated as raw load text.
func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	text := string(msg.Data)
	var opts []extractor.Option

	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("Failed to decode message envelope: %v", err)
			return
		}
		text = env.Text
		if env.DispatcherID != nil {
			opts = append(opts, extractor.WithDispatcher(*env.DispatcherID))
		}
	}

	start := time.Now()
	parsed, err := extractor.Parse(text, opts...)
	if err != nil {
		log.Printf("Failed to parse load text: %v", err)
		return
	}
	duration := time.Since(start)

	if c.pg != nil {
		id, err := c.pg.InsertLoad(ctx, parsed)
		if err != nil {
			log.Printf("Failed to store load %s: %v", parsed.Trip.TripID, err)
		} else {
			log.Printf("Stored load %s as id %d (%d legs)", parsed.Trip.TripID, id, len(parsed.Legs))
		}
	} else {
		log.Printf("Parsed load %s (%d legs)", parsed.Trip.TripID, len(parsed.Legs))
	}

	if c.ch != nil {
		err := c.ch.InsertParseEvent(ctx, storage.ParseEvent{
			TripID:        parsed.Trip.TripID,
			Source:        "nats",
			LegCount:      uint8(len(parsed.Legs)),
			MissingFields: parsed.MissingFields(),
			RawText:       text,
			ParsedData:    parsed,
			Duration:      duration,
		})
		if err != nil {
			log.Printf("Failed to record parse event: %v", err)
		}
	}
}
