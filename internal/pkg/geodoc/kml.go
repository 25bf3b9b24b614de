package geodoc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/twpayne/go-kml/v3"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/pkg/geospatial"
)

const (
	trailStyleID       = "trailStyle"
	startStyleID       = "startStyle"
	destinationStyleID = "destinationStyle"
	driveStyleID       = "driveStyle"

	documentDescription = "Trail route exported from the interactive trail map"
	trackDescription    = "Main hiking route"
	originName          = "Start point (your location)"
	originDescription   = "User location"
	trailheadName       = "Trailhead"
)

var (
	startColor       = color.NRGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0xff}
	destinationColor = color.NRGBA{R: 0xd9, G: 0x30, B: 0x25, A: 0xff}
	driveColor       = color.NRGBA{R: 0x00, G: 0x66, B: 0xff, A: 0xff}
)

// kmlWriter is satisfied by the root element built with kml.KML.
type kmlWriter interface {
	WriteIndent(w io.Writer, prefix, indent string) error
}

// coordinates renders a KML <coordinates> element with every tuple as
// lon,lat,0 separated by single spaces.
type coordinates []domain.Coordinate

func (c coordinates) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	buf := make([]byte, 0, len(c)*24)
	for i, p := range c {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendFloat(buf, p.Lon, 'f', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p.Lat, 'f', -1, 64)
		buf = append(buf, ",0"...)
	}
	return e.EncodeElement(string(buf), xml.StartElement{Name: xml.Name{Local: "coordinates"}})
}

// TrackKML renders the plain track document. With VariantWithOrigin and a
// valid origin, a point placemark for the origin precedes the track.
func TrackKML(coords []domain.Coordinate, name string, opts domain.ExportSettings, variant domain.ExportVariant, origin *domain.UserLocation) ([]byte, error) {
	if len(coords) == 0 {
		return nil, domain.ErrEmptyGeometry
	}
	opts = opts.WithDefaults(domain.ExportSettings{})
	lineColor, err := ParseHexColor(opts.LineColor)
	if err != nil {
		lineColor = color.NRGBA{R: 0xff, A: 0xff}
	}

	children := []kml.Element{
		kml.Name(name),
		kml.Description(documentDescription),
		kml.SharedStyle(trailStyleID,
			kml.LineStyle(
				kml.Color(lineColor),
				kml.Width(opts.LineWidth),
			),
		),
	}

	if variant == domain.VariantWithOrigin && domain.IsValidLocation(origin) {
		children = append(children, kml.Placemark(
			kml.Name(originName),
			kml.Description(originDescription),
			kml.Point(coordinates{origin.Coordinate()}),
		))
	}

	children = append(children, kml.Placemark(
		kml.Name(name),
		kml.Description(trackDescription),
		kml.StyleURL("#"+trailStyleID),
		kml.LineString(
			kml.Tessellate(true),
			coordinates(coords),
		),
	))

	return writeKML(kml.KML(kml.Document(children...)))
}

// TwoStageKML renders the drive-to-trailhead document: the origin, the
// trailhead (first track coordinate) and a straight line between them. The
// trail polyline itself is not included.
func TwoStageKML(coords []domain.Coordinate, name string, origin *domain.UserLocation) ([]byte, error) {
	if len(coords) == 0 {
		return nil, domain.ErrEmptyGeometry
	}
	if !domain.IsValidLocation(origin) {
		return nil, fmt.Errorf("two-stage document: %w", domain.ErrLocationUnavailable)
	}

	start := origin.Coordinate()
	trailhead := coords[0]
	distance := geospatial.DistanceKm(start, trailhead)

	doc := kml.KML(kml.Document(
		kml.Name(name+" - drive to trailhead"),
		kml.Description(fmt.Sprintf("Straight-line drive from your location to the start of %s (%.2f km). Not a routed path.", name, distance)),
		kml.SharedStyle(startStyleID,
			kml.IconStyle(
				kml.Color(startColor),
				kml.Scale(1.2),
			),
		),
		kml.SharedStyle(destinationStyleID,
			kml.IconStyle(
				kml.Color(destinationColor),
				kml.Scale(1.2),
			),
		),
		kml.SharedStyle(driveStyleID,
			kml.LineStyle(
				kml.Color(driveColor),
				kml.Width(4),
			),
		),
		kml.Placemark(
			kml.Name(originName),
			kml.Description(originDescription),
			kml.StyleURL("#"+startStyleID),
			kml.Point(coordinates{start}),
		),
		kml.Placemark(
			kml.Name(trailheadName+": "+name),
			kml.Description("Start of the walking route"),
			kml.StyleURL("#"+destinationStyleID),
			kml.Point(coordinates{trailhead}),
		),
		kml.Placemark(
			kml.Name("Drive to "+name),
			kml.Description(fmt.Sprintf("%.2f km in a straight line", distance)),
			kml.StyleURL("#"+driveStyleID),
			kml.LineString(
				kml.Tessellate(true),
				coordinates{start, trailhead},
			),
		),
	))

	return writeKML(doc)
}

func writeKML(doc kmlWriter) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("write kml: %w", err)
	}
	return buf.Bytes(), nil
}
