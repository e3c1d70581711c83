// Package webmap turns filtered dataset rows into everything the Leaflet
// page needs: marker positions, popup HTML, the view center and the
// basemap catalog. It is deliberately free of HTTP concerns so the same
// view can back the HTML page and future exports.
package webmap

import (
	"fmt"
	"html"
	"strconv"

	"population-map/pkg/dataset"
)

// Fallback view used when the filtered table has no usable coordinates.
const (
	FallbackLat  = -6.5
	FallbackLon  = 107.0
	DefaultZoom  = 8
	ClusterLayer = "Cluster Lokasi"
)

// Marker is one point on the map, JSON-embedded into the page.
type Marker struct {
	Name  string  `json:"name"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// View is the complete map state for one request.
type View struct {
	CenterLat float64  `json:"centerLat"`
	CenterLon float64  `json:"centerLon"`
	Zoom      int      `json:"zoom"`
	Markers   []Marker `json:"markers"`
	// Count is the number of markers actually placed, which the page
	// shows as the result badge. Rows without coordinates never reach
	// the map, so they do not count.
	Count int `json:"count"`
}

// Build assembles the view for the given (already filtered) rows.
// popLabel is the translated "Populasi" label used inside popups.
func Build(rows []dataset.Location, popLabel string, fallbackLat, fallbackLon float64, zoom int) View {
	view := View{
		CenterLat: fallbackLat,
		CenterLon: fallbackLon,
		Zoom:      zoom,
		Markers:   make([]Marker, 0, len(rows)),
	}

	// The center averages each coordinate column independently: a row
	// missing only its longitude still pulls the latitude mean. Only
	// when either column is entirely empty does the fallback apply.
	var latSum, lonSum float64
	var latN, lonN int

	for _, l := range rows {
		if lat := l.Lat; lat == lat { // NaN check without importing math
			latSum += lat
			latN++
		}
		if lon := l.Lon; lon == lon {
			lonSum += lon
			lonN++
		}
		if !l.HasCoords() {
			continue
		}
		view.Markers = append(view.Markers, Marker{
			Name:  l.Name,
			Lat:   l.Lat,
			Lon:   l.Lon,
			Popup: popupHTML(l, popLabel),
		})
	}

	view.Count = len(view.Markers)
	if latN > 0 && lonN > 0 {
		view.CenterLat = latSum / float64(latN)
		view.CenterLon = lonSum / float64(lonN)
	}
	return view
}

// popupHTML renders the marker popup. Names come straight from the CSV,
// so they are escaped before being interpolated into popup markup.
func popupHTML(l dataset.Location, popLabel string) string {
	name := html.EscapeString(l.Name)
	if !l.HasPopulation() {
		return name
	}
	return fmt.Sprintf("%s<br>%s: %s", name, popLabel, FormatPopulation(l.Population))
}

// FormatPopulation renders a population count with thousands separators,
// truncating any fractional part the CSV coercion let through.
func FormatPopulation(v float64) string {
	s := strconv.FormatInt(int64(v), 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
