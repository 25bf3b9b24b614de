package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Subjects and streams used by the export pipeline.
const (
	ExportStream         = "TRAIL_EXPORTS"
	ExportSubjectPrefix  = "trailexport.exports."
	ExportSubjectWild    = ExportSubjectPrefix + ">"
	DefaultLocationTopic = "trailexport.location.request"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return NewPublisherFromConn(conn)
}

// NewPublisherFromConn reuses an existing connection and ensures the export
// stream exists.
func NewPublisherFromConn(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      ExportStream,
		Subjects:  []string{ExportSubjectWild},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// stream may already exist; try an update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishExportCompleted publishes the event on trailexport.exports.<format>.
// The event id doubles as the JetStream dedup id.
func (p *Publisher) PublishExportCompleted(ctx context.Context, event *domain.ExportEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ExportSubjectPrefix+string(event.Format), data,
		nats.Context(ctx),
		nats.MsgId(event.ID),
	)
	return err
}

// Conn exposes the underlying connection for request-reply adapters.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("trailexport"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
