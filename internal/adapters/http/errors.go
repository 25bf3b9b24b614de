package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	natsadapter "github.com/samirrijal/trailexport/internal/adapters/nats"
	"github.com/samirrijal/trailexport/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errUnavailable(c *fiber.Ctx, code, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, code, msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFrom maps pipeline errors onto responses.
func errFrom(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyGeometry):
		return newError(c, fiber.StatusBadRequest, "empty_geometry", err.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return newError(c, fiber.StatusBadRequest, "unsupported_format", err.Error())
	case errors.Is(err, domain.ErrTrailNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrMissingCollaborator):
		return errUnavailable(c, "missing_collaborator", err.Error())
	case domain.IsLocationError(err):
		return errUnavailable(c, "location_"+natsadapter.CodeForError(err), err.Error())
	case errors.Is(err, domain.ErrSnapshotExportFailed):
		return newError(c, fiber.StatusInternalServerError, "snapshot_failed", domain.ErrSnapshotExportFailed.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
}
