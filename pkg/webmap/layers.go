package webmap

// TileLayer describes one selectable basemap. The front end instantiates
// these verbatim, so attribution strings must stay exactly as the tile
// providers require them.
type TileLayer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Subdomains  string `json:"subdomains,omitempty"`
	MaxZoom     int    `json:"maxZoom"`
}

// DefaultLayerName is the basemap shown before the user touches the
// layer control.
const DefaultLayerName = "OpenStreetMap"

const (
	cartoAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`
	topoAttribution  = `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, <a href="http://viewfinderpanoramas.org">SRTM</a> | Style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a>`
	esriAttribution  = `Tiles &copy; Esri`
)

// BaseLayers returns the basemap catalog in layer-control order.
// Stamen is deliberately absent: its tiles moved hosts and the old
// attribution requirements now produce errors.
func BaseLayers() []TileLayer {
	return []TileLayer{
		{
			Name:        "OpenStreetMap",
			URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
			Subdomains:  "abc",
			MaxZoom:     19,
		},
		{
			Name:        "CartoDB Positron",
			URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
			Attribution: cartoAttribution,
			Subdomains:  "abcd",
			MaxZoom:     20,
		},
		{
			Name:        "CartoDB Dark",
			URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
			Attribution: cartoAttribution,
			Subdomains:  "abcd",
			MaxZoom:     20,
		},
		{
			Name:        "OpenTopoMap",
			URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
			Attribution: topoAttribution,
			Subdomains:  "abc",
			MaxZoom:     17,
		},
		{
			Name:        "ESRI World Imagery",
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
			Attribution: esriAttribution,
			MaxZoom:     19,
		},
		{
			Name:        "ESRI World Topo",
			URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Topo_Map/MapServer/tile/{z}/{y}/{x}",
			Attribution: esriAttribution,
			MaxZoom:     19,
		},
	}
}

// HasLayer reports whether name exists in the catalog, so a bad
// -default-layer flag can fall back instead of rendering a blank map.
func HasLayer(name string) bool {
	for _, l := range BaseLayers() {
		if l.Name == name {
			return true
		}
	}
	return false
}
