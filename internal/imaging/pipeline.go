package imaging

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/icon-forge/iconforge/internal/imaging/pack"
	"github.com/icon-forge/iconforge/internal/imaging/render"
	"github.com/icon-forge/iconforge/internal/imaging/source"
)

// renderSource abstracts over an SVG (non-square, aspect-preserving) or a
// pre-squared PNG source so the scale/pad/crop algorithm in Convert can be
// written once for both.
type renderSource interface {
	// aspectDims returns (w,h) with max(w,h) == target, preserving aspect.
	aspectDims(target int) (int, int)
	// renderAt rasterizes/resizes the source to exactly w×h.
	renderAt(w, h int) (*image.RGBA, error)
	// bound is the intrinsic pixel bound used for no-upscale filtering (0 for SVG).
	bound() int
}

type svgSource struct {
	bytes []byte
	dims  source.Dims
}

func (s *svgSource) aspectDims(target int) (int, int) {
	return render.ComputeRenderDims(s.dims.Width, s.dims.Height, target)
}

func (s *svgSource) renderAt(w, h int) (*image.RGBA, error) {
	return render.RasterizeSVG(s.bytes, w, h)
}

func (s *svgSource) bound() int { return 0 }

type pngSource struct {
	squareBase image.Image
	side       int
}

func (p *pngSource) aspectDims(target int) (int, int) { return target, target }

func (p *pngSource) renderAt(w, h int) (*image.RGBA, error) {
	resized := render.ResizeExact(p.squareBase, w, h)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return out, nil
}

func (p *pngSource) bound() int { return p.side }

// Convert runs the C2 pipeline end to end, producing one or more artifacts
// per job.Format.
func Convert(job Job) ([]Artifact, error) {
	rs, sourceBytesForEcho, err := prepareSource(job)
	if err != nil {
		return nil, err
	}

	sizes := filterBySourceBound(targetSizes(job.Format, job.PNGOptions, rs.bound()), rs.bound())
	if len(sizes) == 0 {
		return nil, newError(KindSourceTooSmall, fmt.Sprintf("source is %dpx; format %q requires a larger source", rs.bound(), job.Format))
	}

	switch job.Format {
	case FormatICO, FormatFavicon:
		return renderICOLike(job, rs, sizes)
	case FormatICNS:
		return renderICNS(job, rs)
	case FormatPNG:
		return renderSinglePNG(job, rs)
	case FormatAll:
		return renderAll(job, rs, sourceBytesForEcho)
	default:
		return nil, newError(KindRenderFailed, fmt.Sprintf("unsupported format %q", job.Format))
	}
}

func prepareSource(job Job) (renderSource, []byte, error) {
	switch job.SourceType {
	case SourceSVG:
		dims, err := source.ParseDims(job.SourceBytes)
		if err != nil {
			return nil, nil, wrapError(KindInvalidSVG, "failed to parse SVG", err)
		}
		preprocessed, _, err := source.NeutralizeBackground(job.SourceBytes, string(job.BGMode), job.BGColor, dims)
		if err != nil {
			return nil, nil, wrapError(KindInvalidSVG, "background removal failed", err)
		}
		return &svgSource{bytes: preprocessed, dims: dims}, preprocessed, nil

	case SourcePNG:
		img, w, h, err := source.DecodePNG(job.SourceBytes)
		if err != nil {
			return nil, nil, wrapError(KindInvalidPNG, "failed to decode PNG", err)
		}
		side := minInt(w, h)
		square := render.CoverCropSquare(img, side)
		return &pngSource{squareBase: square, side: side}, job.SourceBytes, nil

	default:
		return nil, nil, newError(KindInvalidSVG, fmt.Sprintf("unsupported source type %q", job.SourceType))
	}
}

// renderFrame executes algorithm steps 3-4 for one target size s, optionally
// applying the ICNS macOS inset to the scale before rendering.
func renderFrame(rs renderSource, s int, scalePercent, cornerRadiusPercent float64, icnsInset bool) (*image.RGBA, error) {
	scale := scalePercent
	if icnsInset {
		scale *= icnsMacInsetFactor
	}

	var canvas *image.RGBA
	if scale <= 100 {
		iconSize := int(math.Round(float64(s) * scale / 100))
		renderW, renderH := rs.aspectDims(iconSize)
		rendered, err := rs.renderAt(renderW, renderH)
		if err != nil {
			return nil, wrapError(KindRenderFailed, "render failed", err)
		}
		padLeadX := int(math.Round(float64(s-renderW) / 2))
		padLeadY := int(math.Round(float64(s-renderH) / 2))
		canvas = render.PadToSquare(rendered, s, padLeadX, padLeadY)
	} else {
		renderSize := int(math.Round(float64(s) * scale / 100))
		if b := rs.bound(); b > 0 {
			renderSize = minInt(renderSize, b)
		}
		renderW, renderH := rs.aspectDims(renderSize)
		rendered, err := rs.renderAt(renderW, renderH)
		if err != nil {
			return nil, wrapError(KindRenderFailed, "render failed", err)
		}
		squareSide := maxInt(renderW, renderH)
		extended := render.ExtendToSquare(rendered, squareSide)
		canvas = render.CenterExtract(extended, s)
	}

	if cornerRadiusPercent > 0 {
		canvas = render.ApplyCornerRadius(canvas, s, (cornerRadiusPercent/100)*float64(s))
	}

	if canvas.Bounds().Dx() != s || canvas.Bounds().Dy() != s {
		return nil, newError(KindRenderFailed, fmt.Sprintf("rendered frame is %dx%d, expected %dx%d", canvas.Bounds().Dx(), canvas.Bounds().Dy(), s, s))
	}

	return canvas, nil
}

func renderICOLike(job Job, rs renderSource, sizes []int) ([]Artifact, error) {
	var frames []pack.SizedPNG
	for _, s := range sizes {
		canvas, err := renderFrame(rs, s, job.ScalePercent, job.CornerRadiusPct, false)
		if err != nil {
			return nil, err
		}
		pngBytes, err := pack.PNG(canvas, pack.PNGOptions{Colorspace: pack.ColorspaceSRGB, ColorDepth: 32, DPI: 0})
		if err != nil {
			return nil, wrapError(KindEncodeFailed, "png encode failed", err)
		}
		frames = append(frames, pack.SizedPNG{Size: s, Bytes: pngBytes})
	}

	icoBytes, err := pack.ICO(frames)
	if err != nil {
		return nil, wrapError(KindEncodeFailed, "ico pack failed", err)
	}

	return []Artifact{{
		Bytes:    icoBytes,
		Filename: baseName(job.OriginalFilename) + ".ico",
		MimeType: "image/x-icon",
	}}, nil
}

func renderICNS(job Job, rs renderSource) ([]Artifact, error) {
	var frames []pack.ICNSFrame
	for _, entry := range icnsTable {
		if b := rs.bound(); b > 0 && entry.Size > b {
			continue
		}
		canvas, err := renderFrame(rs, entry.Size, job.ScalePercent, job.CornerRadiusPct, true)
		if err != nil {
			return nil, err
		}
		pngBytes, err := pack.PNG(canvas, pack.PNGOptions{Colorspace: pack.ColorspaceSRGB, ColorDepth: 32, DPI: 0})
		if err != nil {
			return nil, wrapError(KindEncodeFailed, "png encode failed", err)
		}
		frames = append(frames, pack.ICNSFrame{OSType: entry.OSType, Bytes: pngBytes})
	}

	if len(frames) == 0 {
		return nil, newError(KindSourceTooSmall, "source is too small for any ICNS entry")
	}

	icnsBytes, err := pack.ICNS(frames)
	if err != nil {
		return nil, wrapError(KindEncodeFailed, "icns pack failed", err)
	}

	return []Artifact{{
		Bytes:    icnsBytes,
		Filename: baseName(job.OriginalFilename) + ".icns",
		MimeType: "image/icns",
	}}, nil
}

func renderSinglePNG(job Job, rs renderSource) ([]Artifact, error) {
	s := job.PNGOptions.Size
	canvas, err := renderFrame(rs, s, job.ScalePercent, job.CornerRadiusPct, false)
	if err != nil {
		return nil, err
	}

	pngBytes, err := pack.PNG(canvas, pack.PNGOptions{
		Colorspace: pack.PNGColorspace(job.PNGOptions.Colorspace),
		ColorDepth: job.PNGOptions.ColorDepth,
		DPI:        job.PNGOptions.DPI,
	})
	if err != nil {
		return nil, wrapError(KindEncodeFailed, "png encode failed", err)
	}

	return []Artifact{{
		Bytes:    pngBytes,
		Filename: baseName(job.OriginalFilename) + ".png",
		MimeType: "image/png",
	}}, nil
}

func renderAll(job Job, rs renderSource, originalBytes []byte) ([]Artifact, error) {
	icoArtifacts, err := renderICOLike(Job{
		OriginalFilename: job.OriginalFilename,
		Format:           FormatICO,
		ScalePercent:     job.ScalePercent,
		CornerRadiusPct:  job.CornerRadiusPct,
	}, rs, filterBySourceBound(icoSizes, rs.bound()))
	if err != nil {
		return nil, err
	}

	icnsArtifacts, err := renderICNS(Job{
		OriginalFilename: job.OriginalFilename,
		Format:           FormatICNS,
		ScalePercent:     job.ScalePercent,
		CornerRadiusPct:  job.CornerRadiusPct,
	}, rs)
	if err != nil {
		return nil, err
	}

	faviconSizesFiltered := filterBySourceBound(faviconSizes, rs.bound())
	if len(faviconSizesFiltered) == 0 {
		return nil, newError(KindSourceTooSmall, "source is too small for favicon sizes")
	}
	faviconFrames, err := renderICOLike(Job{
		OriginalFilename: job.OriginalFilename + "-favicon",
		Format:           FormatFavicon,
		ScalePercent:     job.ScalePercent,
		CornerRadiusPct:  job.CornerRadiusPct,
	}, rs, faviconSizesFiltered)
	if err != nil {
		return nil, err
	}

	maxPNGSize := 1024
	if b := rs.bound(); b > 0 && b < maxPNGSize {
		maxPNGSize = b
	}
	pngArtifacts, err := renderSinglePNG(Job{
		OriginalFilename: job.OriginalFilename,
		ScalePercent:     job.ScalePercent,
		CornerRadiusPct:  job.CornerRadiusPct,
		PNGOptions: PNGOptions{
			Size:       maxPNGSize,
			DPI:        72,
			Colorspace: ColorspaceSRGB,
			ColorDepth: 32,
		},
	}, rs)
	if err != nil {
		return nil, err
	}

	files := []pack.NamedFile{
		{Name: baseName(job.OriginalFilename) + ".ico", Bytes: icoArtifacts[0].Bytes},
		{Name: baseName(job.OriginalFilename) + ".icns", Bytes: icnsArtifacts[0].Bytes},
		{Name: baseName(job.OriginalFilename) + "-favicon.ico", Bytes: faviconFrames[0].Bytes},
		{Name: baseName(job.OriginalFilename) + ".png", Bytes: pngArtifacts[0].Bytes},
		{Name: "original-" + baseName(job.OriginalFilename) + "." + string(job.SourceType), Bytes: originalBytes},
	}

	zipBytes, err := pack.Zip(files)
	if err != nil {
		return nil, wrapError(KindEncodeFailed, "zip pack failed", err)
	}

	return []Artifact{{
		Bytes:    zipBytes,
		Filename: baseName(job.OriginalFilename) + "-all.zip",
		MimeType: "application/zip",
	}}, nil
}

func baseName(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
	}
	if filename == "" {
		return "icon"
	}
	return filename
}
