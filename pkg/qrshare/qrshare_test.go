package qrshare

import (
	"bytes"
	"image/png"
	"testing"
)

func TestEncodePNGProducesDecodableImage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := EncodePNG(&buf, "https://example.org/?min_pop=100000&keyword=ban", Options{TargetPx: 256})
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if got := img.Bounds().Dx(); got != 256 {
		t.Errorf("image width = %d, want 256", got)
	}
}

func TestEncodePNGRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := EncodePNG(&buf, "", Options{}); err == nil {
		t.Fatal("EncodePNG accepted an empty url")
	}
	if buf.Len() != 0 {
		t.Errorf("EncodePNG wrote %d bytes despite the error", buf.Len())
	}
}

func TestEncodePNGDefaultSize(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := EncodePNG(&buf, "https://example.org/", Options{}); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := img.Bounds().Dx(); got != 1024 {
		t.Errorf("default image width = %d, want 1024", got)
	}
}
