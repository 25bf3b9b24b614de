package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// PositionLookup returns the last position a session reported. ok is false
// when this process does not know the session.
type PositionLookup func(ctx context.Context, session string) (loc domain.UserLocation, ok bool, err error)

// Subscriber consumes export events and answers location requests.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeExportEvents delivers completed exports to handler through a
// durable consumer. Failed messages are redelivered up to three times.
func (s *Subscriber) SubscribeExportEvents(ctx context.Context, durable string, handler func(ctx context.Context, event *domain.ExportEvent) error) error {
	sub, err := s.js.Subscribe(ExportSubjectWild, func(msg *nats.Msg) {
		var event domain.ExportEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// ServeLocations answers requests on <subject>.<session> for sessions
// known to lookup. Unknown sessions are left to other replicas.
func (s *Subscriber) ServeLocations(ctx context.Context, subject string, lookup PositionLookup) error {
	if subject == "" {
		subject = DefaultLocationTopic
	}
	prefix := subject + "."
	sub, err := s.conn.Subscribe(prefix+"*", func(msg *nats.Msg) {
		session := strings.TrimPrefix(msg.Subject, prefix)
		loc, ok, err := lookup(ctx, session)
		if !ok && err == nil {
			return
		}

		var reply PositionReply
		if err != nil {
			reply.Error = CodeForError(err)
			reply.Message = err.Error()
		} else {
			reply.Location = &loc
		}
		data, merr := json.Marshal(reply)
		if merr != nil {
			slog.Error("encode position reply", "error", merr)
			return
		}
		if err := msg.Respond(data); err != nil && !errors.Is(err, nats.ErrMsgNoReply) {
			slog.Warn("respond to position request", "session", session, "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes every subscription. The connection is owned by the caller.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
