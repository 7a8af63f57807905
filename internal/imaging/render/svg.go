// Package render produces exact-size RGBA frames from a preprocessed
// source and composites them toward a packable container artifact.
package render

import (
	"bytes"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// RasterizeSVG renders svgBytes into an RGBA image of exactly w×h pixels,
// stretching the SVG's own viewBox to fill that frame. Callers are
// responsible for choosing w/h that preserve the source's aspect ratio
// when that matters.
func RasterizeSVG(svgBytes []byte, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid target dimensions %dx%d", w, h)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgBytes))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	return rgba, nil
}
