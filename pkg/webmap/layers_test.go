package webmap

import (
	"strings"
	"testing"
)

// TestBaseLayersCatalog pins the basemap lineup: six layers, OSM first,
// and the exact names the layer control shows. Tile providers revoke
// access over missing attribution, so every entry must carry one.
func TestBaseLayersCatalog(t *testing.T) {
	t.Parallel()

	layers := BaseLayers()
	wantNames := []string{
		"OpenStreetMap",
		"CartoDB Positron",
		"CartoDB Dark",
		"OpenTopoMap",
		"ESRI World Imagery",
		"ESRI World Topo",
	}
	if len(layers) != len(wantNames) {
		t.Fatalf("BaseLayers() has %d layers, want %d", len(layers), len(wantNames))
	}
	for i, l := range layers {
		if l.Name != wantNames[i] {
			t.Errorf("layer[%d].Name = %q, want %q", i, l.Name, wantNames[i])
		}
		if l.Attribution == "" {
			t.Errorf("layer %q has no attribution", l.Name)
		}
		if !strings.HasPrefix(l.URL, "https://") {
			t.Errorf("layer %q URL %q is not https", l.Name, l.URL)
		}
		if l.MaxZoom <= 0 {
			t.Errorf("layer %q has no max zoom", l.Name)
		}
	}
}

func TestLayerZoomLimits(t *testing.T) {
	t.Parallel()

	zooms := map[string]int{
		"CartoDB Positron":   20,
		"CartoDB Dark":       20,
		"OpenTopoMap":        17,
		"ESRI World Imagery": 19,
		"ESRI World Topo":    19,
	}
	for _, l := range BaseLayers() {
		if want, ok := zooms[l.Name]; ok && l.MaxZoom != want {
			t.Errorf("layer %q MaxZoom = %d, want %d", l.Name, l.MaxZoom, want)
		}
	}
}

func TestHasLayer(t *testing.T) {
	t.Parallel()

	if !HasLayer(DefaultLayerName) {
		t.Fatalf("default layer %q missing from catalog", DefaultLayerName)
	}
	if HasLayer("Stamen Toner") {
		t.Fatal("Stamen layers should not be offered")
	}
}
