// Package qrshare renders share-link QR codes as PNG using
// github.com/skip2/go-qrcode with a marker-blue dot in the middle.
// ECC level H tolerates the overlay; all drawing is in-memory, no
// concurrency needed.
package qrshare

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

// markerBlue matches the default Leaflet marker (#2a81cb), so the code
// visually belongs to the map it links back to.
var markerBlue = color.RGBA{R: 42, G: 129, B: 203, A: 255}

// Options tunes the rendered PNG. Zero values get sane defaults.
type Options struct {
	// TargetPx is the output edge length; default 1024.
	TargetPx int
	// DotFrac is the center-dot diameter as a fraction of the edge
	// length, clamped to 0.08..0.25 so the code stays decodable.
	DotFrac float64
}

// EncodePNG writes the QR for url to w.
func EncodePNG(w io.Writer, url string, opt Options) error {
	if url == "" {
		return fmt.Errorf("empty share url")
	}
	if opt.TargetPx <= 0 {
		opt.TargetPx = 1024
	}
	if opt.DotFrac < 0.08 || opt.DotFrac > 0.25 {
		opt.DotFrac = 0.14
	}

	q, err := qrcode.New(url, qrcode.High)
	if err != nil {
		return fmt.Errorf("qr encode: %w", err)
	}

	src := q.Image(opt.TargetPx)
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	edge := dst.Bounds().Dx()
	fillCircle(dst, edge/2, edge/2, int(float64(edge)*opt.DotFrac/2), markerBlue)

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, dst); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return nil
}

func fillCircle(img *image.RGBA, cx, cy, r int, col color.Color) {
	if r <= 0 {
		return
	}
	b := img.Bounds()
	for y := maxInt(cy-r, b.Min.Y); y <= minInt(cy+r, b.Max.Y-1); y++ {
		dy := y - cy
		for x := maxInt(cx-r, b.Min.X); x <= minInt(cx+r, b.Max.X-1); x++ {
			dx := x - cx
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, col)
			}
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
