package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// ComputeRenderDims returns (w,h) such that the larger dimension equals
// targetPx and the source's intrinsic aspect ratio is preserved.
func ComputeRenderDims(intrinsicW, intrinsicH float64, targetPx int) (int, int) {
	if intrinsicW <= 0 || intrinsicH <= 0 {
		return targetPx, targetPx
	}
	if intrinsicW >= intrinsicH {
		return targetPx, int(math.Round(float64(targetPx) * intrinsicH / intrinsicW))
	}
	return int(math.Round(float64(targetPx) * intrinsicW / intrinsicH)), targetPx
}

// CoverCropSquare resizes+crops img to a side×side square using cover-fit
// with a centered anchor, the PNG-source preprocessing step.
func CoverCropSquare(img image.Image, side int) *image.NRGBA {
	return imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)
}

// ResizeExact resizes img to exactly w×h, ignoring aspect ratio.
func ResizeExact(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// PadToSquare composites img (renderW×renderH) onto a transparent side×side
// canvas at the given leading offsets.
func PadToSquare(img image.Image, side, padLeadX, padLeadY int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	offset := image.Pt(padLeadX, padLeadY)
	draw.Draw(canvas, img.Bounds().Add(offset), img, image.Point{}, draw.Src)
	return canvas
}

// ExtendToSquare places img, assumed renderW×renderH with
// max(renderW,renderH) already equal to side, onto a transparent side×side
// canvas, centering the smaller dimension.
func ExtendToSquare(img image.Image, side int) *image.RGBA {
	b := img.Bounds()
	padX := (side - b.Dx()) / 2
	padY := (side - b.Dy()) / 2
	return PadToSquare(img, side, padX, padY)
}

// CenterExtract extracts a side×side region from the center of canvas,
// clamping the offset to stay within bounds.
func CenterExtract(canvas image.Image, side int) *image.RGBA {
	b := canvas.Bounds()
	offsetX := maxInt(0, (b.Dx()-side)/2)
	offsetY := maxInt(0, (b.Dy()-side)/2)
	extractW := minInt(side, b.Dx()-offsetX)
	extractH := minInt(side, b.Dy()-offsetY)

	out := image.NewRGBA(image.Rect(0, 0, side, side))
	src := image.Rect(b.Min.X+offsetX, b.Min.Y+offsetY, b.Min.X+offsetX+extractW, b.Min.Y+offsetY+extractH)
	draw.Draw(out, image.Rect(0, 0, extractW, extractH), canvas, src.Min, draw.Src)
	return out
}

// ApplyCornerRadius masks rgba (side×side) with a rounded-rectangle alpha
// mask of the given pixel radius, compositing via destination-in semantics.
func ApplyCornerRadius(rgba *image.RGBA, side int, radiusPx float64) *image.RGBA {
	if radiusPx <= 0 {
		return rgba
	}
	mask := roundedRectMask(side, radiusPx)
	out := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.DrawMask(out, out.Bounds(), rgba, image.Point{}, mask, image.Point{}, draw.Over)
	return out
}

// roundedRectMask builds a side×side alpha mask of a rounded rectangle with
// corner radius r, each pixel fully opaque or transparent (no antialiasing,
// matching a hard destination-in composite).
func roundedRectMask(side int, r float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, side, side))
	if r > float64(side)/2 {
		r = float64(side) / 2
	}

	corners := []struct{ cx, cy float64 }{
		{r, r},
		{float64(side) - r, r},
		{r, float64(side) - r},
		{float64(side) - r, float64(side) - r},
	}

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			fx, fy := float64(x)+0.5, float64(y)+0.5
			inside := true
			for i, c := range corners {
				inCornerBoxX := (i%2 == 0 && fx < c.cx) || (i%2 == 1 && fx > c.cx)
				inCornerBoxY := (i < 2 && fy < c.cy) || (i >= 2 && fy > c.cy)
				if inCornerBoxX && inCornerBoxY {
					dx, dy := fx-c.cx, fy-c.cy
					if dx*dx+dy*dy > r*r {
						inside = false
					}
				}
			}
			if inside {
				mask.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}
	return mask
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
