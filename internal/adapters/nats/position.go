package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
)

// Location error codes carried in a PositionReply.
const (
	CodePermissionDenied = "permission_denied"
	CodeUnavailable      = "position_unavailable"
	CodeTimeout          = "timeout"
	CodeUnsupported      = "unsupported"
)

// PositionQuery is the request body sent to the location service.
type PositionQuery struct {
	Session      string `json:"session"`
	TimeoutMs    int64  `json:"timeout_ms"`
	MaximumAgeMs int64  `json:"maximum_age_ms"`
	HighAccuracy bool   `json:"high_accuracy"`
}

// PositionReply is the answer of the location service.
type PositionReply struct {
	Location *domain.UserLocation `json:"location,omitempty"`
	Error    string               `json:"error,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// PositionSource implements ports.PositionSource as a NATS request to
// <subject>.<session>.
type PositionSource struct {
	conn    *nats.Conn
	subject string
	session string
}

// NewPositionSource returns the source for one client session.
func NewPositionSource(conn *nats.Conn, subject, session string) *PositionSource {
	if subject == "" {
		subject = DefaultLocationTopic
	}
	return &PositionSource{conn: conn, subject: subject, session: session}
}

var _ ports.PositionSource = (*PositionSource)(nil)

func (s *PositionSource) CurrentPosition(ctx context.Context, req ports.PositionRequest) (domain.UserLocation, error) {
	if s.conn == nil {
		return domain.UserLocation{}, domain.ErrLocationUnsupported
	}
	body, err := json.Marshal(PositionQuery{
		Session:      s.session,
		TimeoutMs:    req.Timeout.Milliseconds(),
		MaximumAgeMs: req.MaximumAge.Milliseconds(),
		HighAccuracy: req.HighAccuracy,
	})
	if err != nil {
		return domain.UserLocation{}, err
	}

	msg, err := s.conn.RequestWithContext(ctx, s.subject+"."+s.session, body)
	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return domain.UserLocation{}, fmt.Errorf("%w: no location service for session", domain.ErrLocationUnsupported)
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.UserLocation{}, fmt.Errorf("%w: %w", domain.ErrLocationTimeout, err)
	case err != nil:
		return domain.UserLocation{}, fmt.Errorf("%w: %w", domain.ErrLocationUnknown, err)
	}

	var reply PositionReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return domain.UserLocation{}, fmt.Errorf("%w: decode reply: %w", domain.ErrLocationUnknown, err)
	}
	if reply.Error != "" {
		return domain.UserLocation{}, fmt.Errorf("%w: %s", ErrorForCode(reply.Error), reply.Message)
	}
	if reply.Location == nil {
		return domain.UserLocation{}, domain.ErrLocationUnavailable
	}
	return *reply.Location, nil
}

// ErrorForCode maps a reply code to the location error taxonomy.
func ErrorForCode(code string) error {
	switch code {
	case CodePermissionDenied:
		return domain.ErrLocationPermissionDenied
	case CodeUnavailable:
		return domain.ErrLocationUnavailable
	case CodeTimeout:
		return domain.ErrLocationTimeout
	case CodeUnsupported:
		return domain.ErrLocationUnsupported
	default:
		return domain.ErrLocationUnknown
	}
}

// CodeForError is the inverse of ErrorForCode.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrLocationPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, domain.ErrLocationUnavailable):
		return CodeUnavailable
	case errors.Is(err, domain.ErrLocationTimeout):
		return CodeTimeout
	case errors.Is(err, domain.ErrLocationUnsupported):
		return CodeUnsupported
	default:
		return "unknown"
	}
}
