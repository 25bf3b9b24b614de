package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Trail is a catalog entry: a named polyline with display metadata.
type Trail struct {
	ID             string          `json:"id"`
	Slug           string          `json:"slug"`
	Name           string          `json:"name"`
	Classification string          `json:"classification,omitempty"`
	Color          string          `json:"color"`
	LengthKm       float64         `json:"length_km"`
	Geometry       json.RawMessage `json:"geometry"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExportFormat is an artifact kind the pipeline can produce.
type ExportFormat string

const (
	FormatKML ExportFormat = "kml"
	FormatGPX ExportFormat = "gpx"
	FormatPNG ExportFormat = "png"
)

// ParseExportFormat maps a user supplied format name to an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatKML, FormatGPX, FormatPNG:
		return f, nil
	default:
		return "", UnsupportedFormatError(s)
	}
}

// Extension returns the file extension including the dot.
func (f ExportFormat) Extension() string {
	return "." + string(f)
}

// MIMEType returns the media type used when delivering an artifact.
func (f ExportFormat) MIMEType() string {
	switch f {
	case FormatKML:
		return "application/vnd.google-earth.kml+xml"
	case FormatGPX:
		return "application/gpx+xml"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Defaults applied to zero-valued ExportSettings fields.
const (
	DefaultLineColor        = "#FF0000"
	DefaultLineWidth        = 3.0
	DefaultTrackName        = "Trail Route"
	DefaultTrackDescription = "Exported trail route"
)

// ExportSettings are the value options of an export call. Zero values fall
// back to the package defaults.
type ExportSettings struct {
	IncludeUserLocation bool    `json:"include_user_location"`
	LineColor           string  `json:"line_color,omitempty"`
	LineWidth           float64 `json:"line_width,omitempty"`
	TrackName           string  `json:"track_name,omitempty"`
	TrackDescription    string  `json:"track_description,omitempty"`
	TrackColor          string  `json:"track_color,omitempty"`
	LengthKm            float64 `json:"length_km,omitempty"`
	SelectedRouteOnly   bool    `json:"selected_route_only,omitempty"`
}

// WithDefaults returns a copy with every empty field filled in.
func (s ExportSettings) WithDefaults(d ExportSettings) ExportSettings {
	if s.LineColor == "" {
		s.LineColor = firstNonEmpty(d.LineColor, DefaultLineColor)
	}
	if s.LineWidth <= 0 {
		s.LineWidth = d.LineWidth
		if s.LineWidth <= 0 {
			s.LineWidth = DefaultLineWidth
		}
	}
	if s.TrackName == "" {
		s.TrackName = firstNonEmpty(d.TrackName, DefaultTrackName)
	}
	if s.TrackDescription == "" {
		s.TrackDescription = firstNonEmpty(d.TrackDescription, DefaultTrackDescription)
	}
	if s.TrackColor == "" {
		s.TrackColor = firstNonEmpty(d.TrackColor, s.LineColor)
	}
	return s
}

// ExportResult is returned by a successful export.
type ExportResult struct {
	Success  bool         `json:"success"`
	Format   ExportFormat `json:"format"`
	Filename string       `json:"filename"`
}

// Artifact is a produced file handed to the delivery collaborator.
type Artifact struct {
	Filename string
	MIMEType string
	Content  []byte
}

// PromptRequest is a yes/no question shown by the UI collaborator.
// An empty CancelText means the prompt only offers confirmation.
type PromptRequest struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirm_text"`
	CancelText  string `json:"cancel_text,omitempty"`
}

// Camera is the map view transform.
type Camera struct {
	Center  Coordinate `json:"center"`
	Zoom    float64    `json:"zoom"`
	Pitch   float64    `json:"pitch"`
	Bearing float64    `json:"bearing"`
}

// Visibility values of a map layer.
type Visibility string

const (
	Visible Visibility = "visible"
	Hidden  Visibility = "none"
)

// RenderSnapshotState is the map configuration recorded before a snapshot
// mutates the surface. It lives for one snapshot call only.
type RenderSnapshotState struct {
	Camera       Camera
	PaintWidths  map[string]any
	Visibility   map[string]Visibility
	SourceData   []byte
	SourceSaved  bool
	CameraSaved  bool
	HiddenLayers []string
}

// LabelCard is the overlay composited onto an exported snapshot.
type LabelCard struct {
	Title    string
	LengthKm float64
	Color    string
}

// ExportVariant distinguishes documents produced for the same format.
type ExportVariant string

const (
	VariantSimple     ExportVariant = "simple"
	VariantWithOrigin ExportVariant = "with_origin"
	VariantTwoStage   ExportVariant = "two_stage"
	VariantSnapshot   ExportVariant = "snapshot"
)

// ExportEvent is published after an artifact was delivered.
type ExportEvent struct {
	ID        string        `json:"id"`
	TrailName string        `json:"trail_name"`
	Format    ExportFormat  `json:"format"`
	Variant   ExportVariant `json:"variant"`
	Filename  string        `json:"filename"`
	Bytes     int           `json:"bytes"`
	At        time.Time     `json:"at"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
