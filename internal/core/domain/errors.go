package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyGeometry            = errors.New("empty geometry")
	ErrUnsupportedFormat        = errors.New("unsupported format")
	ErrLocationPermissionDenied = errors.New("location permission denied")
	ErrLocationUnavailable      = errors.New("location unavailable")
	ErrLocationTimeout          = errors.New("location request timed out")
	ErrLocationUnsupported      = errors.New("location not supported")
	ErrLocationUnknown          = errors.New("location error")
	ErrMissingCollaborator      = errors.New("missing collaborator")
	ErrSnapshotExportFailed     = errors.New("snapshot export failed")
	ErrTrailNotFound            = errors.New("trail not found")
)

// UnsupportedFormatError wraps ErrUnsupportedFormat with the rejected name.
func UnsupportedFormatError(format string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// MissingCollaboratorError wraps ErrMissingCollaborator with the absent collaborator.
func MissingCollaboratorError(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingCollaborator, name)
}

// IsLocationError reports whether err belongs to the location taxonomy.
func IsLocationError(err error) bool {
	return errors.Is(err, ErrLocationPermissionDenied) ||
		errors.Is(err, ErrLocationUnavailable) ||
		errors.Is(err, ErrLocationTimeout) ||
		errors.Is(err, ErrLocationUnsupported) ||
		errors.Is(err, ErrLocationUnknown)
}
