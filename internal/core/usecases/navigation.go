package usecases

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// DefaultMapsBaseURL is the directions endpoint links are built against.
const DefaultMapsBaseURL = "https://www.google.com/maps/dir/"

// NavigationLinker builds deep links into an external directions service.
type NavigationLinker struct {
	base string
}

// NewNavigationLinker returns a linker for baseURL. An empty baseURL selects
// DefaultMapsBaseURL.
func NewNavigationLinker(baseURL string) *NavigationLinker {
	if baseURL == "" {
		baseURL = DefaultMapsBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &NavigationLinker{base: baseURL}
}

// BuildLink returns a directions link for the track. A valid origin yields
// origin -> first -> last as path segments; otherwise a walking link from
// the first to the last coordinate is returned.
func (l *NavigationLinker) BuildLink(coords []domain.Coordinate, origin *domain.UserLocation) (string, error) {
	if len(coords) == 0 {
		return "", domain.ErrEmptyGeometry
	}
	first, last := coords[0], coords[len(coords)-1]

	if domain.IsValidLocation(origin) {
		var b strings.Builder
		b.WriteString(l.base)
		for _, p := range []string{
			latLng(origin.Latitude, origin.Longitude),
			latLng(first.Lat, first.Lon),
			latLng(last.Lat, last.Lon),
		} {
			b.WriteString(url.PathEscape(p))
			b.WriteByte('/')
		}
		return b.String(), nil
	}

	return fmt.Sprintf("%s?api=1&origin=%s&destination=%s&travelmode=walking",
		l.base,
		url.QueryEscape(latLng(first.Lat, first.Lon)),
		url.QueryEscape(latLng(last.Lat, last.Lon)),
	), nil
}

func latLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// Prompts shown around opening a link.
var (
	offerMapsPrompt = domain.PromptRequest{
		Title:       "Open in Google Maps?",
		Message:     "The file has been downloaded. Do you also want to open this route in Google Maps?",
		ConfirmText: "Open in Google Maps",
		CancelText:  "No, thanks",
	}
	driveChoicePrompt = domain.PromptRequest{
		Title:       "Drive to the trailhead?",
		Message:     "Your location is available. Export a driving leg from your location to the start of the trail instead of the walking track?",
		ConfirmText: "Drive to the trailhead",
		CancelText:  "Walking track only",
	}
)

// routeOpenedPrompt is the informational follow-up after a link was opened.
func routeOpenedPrompt(name string, withOrigin bool) domain.PromptRequest {
	msg := fmt.Sprintf("Opened the walking route %q in Google Maps.", name)
	if withOrigin {
		msg = fmt.Sprintf("Google Maps shows the route with 3 points:\n"+
			"Start: your location\n"+
			"Parking: start of the trail %q\n"+
			"Finish: end of the trail\n\n"+
			"Google suggests the best transport for each leg.", name)
	}
	return domain.PromptRequest{
		Title:       "Route opened in Google Maps",
		Message:     msg,
		ConfirmText: "OK",
	}
}
