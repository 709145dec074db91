// Package mapview projects issues onto the map widget's input: one colored
// marker per locatable issue plus the bounds to fit.
package mapview

import (
	"math"
	"strings"
	"time"

	"github.com/golang/geo/s2"

	"github.com/pih12/Pravah/models"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var DefaultCenter = LatLng{Lat: 20.5937, Lng: 78.9629}

const DefaultZoom = 5

const popupTitleLen = 30

type Popup struct {
	Title      string    `json:"title"`
	ImageURL   string    `json:"imageUrl"`
	Status     string    `json:"status"`
	ReportedOn time.Time `json:"reportedOn"`
}

type Marker struct {
	ID       string `json:"id"`
	IssueID  string `json:"issueId"`
	Position LatLng `json:"position"`
	Color    string `json:"color"`
	Popup    Popup  `json:"popup"`
}

type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// View is everything the map widget needs for one snapshot. Bounds is nil
// when there is nothing to fit, in which case the default center applies.
type View struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	Markers []Marker `json:"markers"`
	Bounds  *Bounds  `json:"bounds,omitempty"`
}

func StatusColor(status models.IssueStatus) string {
	switch strings.ToLower(string(status)) {
	case "completed":
		return "#10B981"
	case "work started":
		return "#3B82F6"
	case "under construction":
		return "#F59E0B"
	case "rejected", "not started":
		return "#EF4444"
	case "received by authority":
		return "#4B5563"
	default:
		return "#6B7280"
	}
}

// Locatable reports whether gps holds usable coordinates. A zero pair is what
// an issue without a location decodes to, so it is treated as absent.
func Locatable(gps models.GPS) bool {
	if math.IsNaN(gps.Lat) || math.IsNaN(gps.Lng) || math.IsInf(gps.Lat, 0) || math.IsInf(gps.Lng, 0) {
		return false
	}
	if gps.Lat == 0 && gps.Lng == 0 {
		return false
	}
	return gps.Lat >= -90 && gps.Lat <= 90 && gps.Lng >= -180 && gps.Lng <= 180
}

func Markers(issues []models.Issue) []Marker {
	markers := make([]Marker, 0, len(issues))
	for _, issue := range issues {
		if !Locatable(issue.GPS) {
			continue
		}
		markers = append(markers, Marker{
			ID:       issue.ID.Hex(),
			IssueID:  issue.IssueID,
			Position: LatLng{Lat: issue.GPS.Lat, Lng: issue.GPS.Lng},
			Color:    StatusColor(issue.Status),
			Popup: Popup{
				Title:      popupTitle(issue.Description),
				ImageURL:   issue.ImageURL,
				Status:     string(issue.Status),
				ReportedOn: issue.Timestamps.Created,
			},
		})
	}
	return markers
}

func popupTitle(description string) string {
	r := []rune(description)
	if len(r) > popupTitleLen {
		r = r[:popupTitleLen]
	}
	return string(r) + "..."
}

// FitBounds returns the smallest rectangle containing every marker, or nil
// when there are none.
func FitBounds(markers []Marker) *Bounds {
	if len(markers) == 0 {
		return nil
	}
	rect := s2.EmptyRect()
	for _, m := range markers {
		rect = rect.AddPoint(s2.LatLngFromDegrees(m.Position.Lat, m.Position.Lng))
	}
	lo, hi := rect.Lo(), rect.Hi()
	return &Bounds{
		South: lo.Lat.Degrees(),
		West:  lo.Lng.Degrees(),
		North: hi.Lat.Degrees(),
		East:  hi.Lng.Degrees(),
	}
}

func Project(issues []models.Issue) View {
	markers := Markers(issues)
	view := View{
		Center:  DefaultCenter,
		Zoom:    DefaultZoom,
		Markers: markers,
		Bounds:  FitBounds(markers),
	}
	if view.Bounds != nil {
		c := s2.RectFromLatLng(s2.LatLngFromDegrees(view.Bounds.South, view.Bounds.West)).
			AddPoint(s2.LatLngFromDegrees(view.Bounds.North, view.Bounds.East)).Center()
		view.Center = LatLng{Lat: c.Lat.Degrees(), Lng: c.Lng.Degrees()}
	}
	return view
}
