package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	natsadapter "github.com/samirrijal/trailexport/internal/adapters/nats"
	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/metrics"
)

// ErrNoPromptClient is returned when a session has no connected client.
var ErrNoPromptClient = errors.New("no prompt client connected")

// DefaultLocateTimeout bounds how long a connected client may take to
// answer a locate request.
const DefaultLocateTimeout = 10 * time.Second

// Messages sent to the client.
type promptMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	domain.PromptRequest
}

type linkMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type locateMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// clientMessage is sent from the client. Type is one of answer, location
// or location_error; ID echoes the request being answered.
type clientMessage struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Confirm   bool    `json:"confirm"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Code      string  `json:"code"`
}

type reportedPosition struct {
	loc domain.UserLocation
	err error
	at  time.Time
}

type hubClient struct {
	write func(v any) error
	done  chan struct{}

	mu      sync.Mutex
	pending map[string]chan clientMessage
}

func (c *hubClient) resolve(m clientMessage) bool {
	c.mu.Lock()
	ch, ok := c.pending[m.ID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- m:
	default:
	}
	return true
}

// PromptHub connects client sessions over WebSocket. A session's client
// answers yes/no prompts, receives links to open and reports its position.
type PromptHub struct {
	log           *slog.Logger
	locateTimeout time.Duration

	now           func() time.Time

	mu       sync.Mutex
	clients  map[string]*hubClient
	reported map[string]reportedPosition
	released []func(session string)
}

func NewPromptHub(logger *slog.Logger) *PromptHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptHub{
		log:           logger,
		locateTimeout: DefaultLocateTimeout,
		now:           time.Now,
		clients:       make(map[string]*hubClient),
		reported:      make(map[string]reportedPosition),
	}
}

func (h *PromptHub) client(session string) *hubClient {
	if h == nil || session == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[session]
}

// Connected reports whether session has a live client.
func (h *PromptHub) Connected(session string) bool {
	return h.client(session) != nil
}

// attach registers c for session. A previous connection of the same session
// is superseded and its pending requests fail.
func (h *PromptHub) attach(session string, c *hubClient) {
	h.mu.Lock()
	prev := h.clients[session]
	h.clients[session] = c
	h.mu.Unlock()
	if prev != nil {
		close(prev.done)
	}
}

func (h *PromptHub) detach(session string, c *hubClient) {
	h.mu.Lock()
	current := h.clients[session] == c
	if current {
		delete(h.clients, session)
		close(c.done)
	}
	h.mu.Unlock()
	if current {
		h.Release(session)
	}
}

// WithClock replaces the time source. Used by tests.
func (h *PromptHub) WithClock(now func() time.Time) *PromptHub {
	h.now = now
	return h
}

// OnRelease registers fn to run whenever a session is released.
func (h *PromptHub) OnRelease(fn func(session string)) {
	h.mu.Lock()
	h.released = append(h.released, fn)
	h.mu.Unlock()
}

// Release drops the reported position of session and notifies OnRelease
// hooks. It runs when the session's prompt client disconnects and when
// Prune finds the session idle.
func (h *PromptHub) Release(session string) {
	h.mu.Lock()
	delete(h.reported, session)
	hooks := slices.Clone(h.released)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn(session)
	}
}

// Prune releases sessions without a connected client whose last report is
// older than maxAge, and returns how many were released.
func (h *PromptHub) Prune(maxAge time.Duration) int {
	cutoff := h.now().Add(-maxAge)
	var stale []string
	h.mu.Lock()
	for session, r := range h.reported {
		if _, live := h.clients[session]; !live && r.at.Before(cutoff) {
			stale = append(stale, session)
		}
	}
	h.mu.Unlock()
	for _, session := range stale {
		h.Release(session)
	}
	return len(stale)
}

// request sends msg and waits for the reply carrying id.
func (h *PromptHub) request(ctx context.Context, session, id string, msg any) (clientMessage, error) {
	c := h.client(session)
	if c == nil {
		return clientMessage{}, ErrNoPromptClient
	}
	ch := make(chan clientMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return clientMessage{}, fmt.Errorf("send to session %s: %w", session, err)
	}
	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		return clientMessage{}, ctx.Err()
	case <-c.done:
		return clientMessage{}, ErrNoPromptClient
	}
}

// Prompter returns the prompt collaborator of session, or nil when no
// client is connected.
func (h *PromptHub) Prompter(session string) ports.Prompter {
	if !h.Connected(session) {
		return nil
	}
	return sessionPrompter{hub: h, session: session}
}

// Opener returns the link collaborator of session, or nil when no client
// is connected.
func (h *PromptHub) Opener(session string) ports.LinkOpener {
	if !h.Connected(session) {
		return nil
	}
	return sessionOpener{hub: h, session: session}
}

type sessionPrompter struct {
	hub     *PromptHub
	session string
}

func (p sessionPrompter) Prompt(ctx context.Context, req domain.PromptRequest) (bool, error) {
	id := uuid.NewString()
	m, err := p.hub.request(ctx, p.session, id, promptMessage{Type: "prompt", ID: id, PromptRequest: req})
	if err != nil {
		return false, err
	}
	return m.Confirm, nil
}

type sessionOpener struct {
	hub     *PromptHub
	session string
}

func (o sessionOpener) Open(_ context.Context, url string) error {
	c := o.hub.client(o.session)
	if c == nil {
		return ErrNoPromptClient
	}
	return c.write(linkMessage{Type: "open_link", URL: url})
}

// ReportPosition stores a position reported outside of a locate request.
func (h *PromptHub) ReportPosition(session string, loc domain.UserLocation) {
	h.mu.Lock()
	h.reported[session] = reportedPosition{loc: loc, at: h.now()}
	h.mu.Unlock()
}

// ReportPositionError stores a failed position lookup of session.
func (h *PromptHub) ReportPositionError(session string, err error) {
	h.mu.Lock()
	h.reported[session] = reportedPosition{err: err, at: h.now()}
	h.mu.Unlock()
}

// Position answers location requests for session. A connected client is
// asked for a fresh fix; otherwise the last reported position is used.
// It satisfies natsadapter.PositionLookup.
func (h *PromptHub) Position(ctx context.Context, session string) (domain.UserLocation, bool, error) {
	if h.Connected(session) {
		ctx, cancel := context.WithTimeout(ctx, h.locateTimeout)
		defer cancel()
		id := uuid.NewString()
		m, err := h.request(ctx, session, id, locateMessage{Type: "locate", ID: id})
		switch {
		case err == nil && m.Type == "location_error":
			return domain.UserLocation{}, true, natsadapter.ErrorForCode(m.Code)
		case err == nil:
			loc := domain.UserLocation{Latitude: m.Latitude, Longitude: m.Longitude, Accuracy: m.Accuracy}
			h.ReportPosition(session, loc)
			return loc, true, nil
		case errors.Is(err, context.DeadlineExceeded):
			return domain.UserLocation{}, true, domain.ErrLocationTimeout
		}
		h.log.Debug("locate via client failed", "session", session, "error", err)
	}

	h.mu.Lock()
	r, ok := h.reported[session]
	h.mu.Unlock()
	if !ok {
		return domain.UserLocation{}, false, nil
	}
	return r.loc, true, r.err
}

// Handler serves /ws/prompts?session=<id>.
func (h *PromptHub) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()

		session := conn.Query("session")
		if session == "" {
			_ = conn.WriteJSON(map[string]string{"error": "session query parameter is required"})
			return
		}
		log := h.log.With("session", session, "remote", conn.RemoteAddr().String())

		var wmu sync.Mutex
		write := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			wmu.Lock()
			defer wmu.Unlock()
			return conn.WriteMessage(websocket.TextMessage, data)
		}

		c := &hubClient{write: write, done: make(chan struct{}), pending: make(map[string]chan clientMessage)}
		h.attach(session, c)
		metrics.ActiveWebSockets.Inc()
		log.Info("prompt client connected")

		stop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					wmu.Lock()
					err := conn.WriteMessage(websocket.PingMessage, nil)
					wmu.Unlock()
					if err != nil {
						return
					}
				case <-stop:
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var m clientMessage
			if err := json.Unmarshal(data, &m); err != nil {
				_ = write(map[string]string{"error": "invalid JSON"})
				continue
			}
			h.dispatch(session, c, m, write)
		}

		close(stop)
		h.detach(session, c)
		metrics.ActiveWebSockets.Dec()
		log.Info("prompt client disconnected")
	}
}

func (h *PromptHub) dispatch(session string, c *hubClient, m clientMessage, write func(any) error) {
	switch m.Type {
	case "answer":
		if !c.resolve(m) {
			_ = write(map[string]string{"error": "unknown prompt id: " + m.ID})
		}
	case "location":
		if m.ID != "" && c.resolve(m) {
			return
		}
		loc := domain.UserLocation{Latitude: m.Latitude, Longitude: m.Longitude, Accuracy: m.Accuracy}
		if !loc.Valid() {
			_ = write(map[string]string{"error": "invalid location"})
			return
		}
		h.ReportPosition(session, loc)
	case "location_error":
		if m.ID != "" && c.resolve(m) {
			return
		}
		h.ReportPositionError(session, natsadapter.ErrorForCode(m.Code))
	default:
		_ = write(map[string]string{"error": "unknown message type: " + m.Type})
	}
}
