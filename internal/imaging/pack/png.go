package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/png"
)

// PNGColorspace identifies the PNG colorspace transform to apply before
// encoding.
type PNGColorspace string

const (
	ColorspaceSRGB PNGColorspace = "srgb"
	ColorspaceP3   PNGColorspace = "p3"
	ColorspaceCMYK PNGColorspace = "cmyk"
)

// PNGOptions configures PNG encoding.
type PNGOptions struct {
	Colorspace PNGColorspace
	ColorDepth int // 8, 24, or 32
	DPI        int
}

// PNG encodes rgba per opts: colorspace transform, color-depth reduction,
// and a stamped pHYs DPI chunk.
func PNG(rgba *image.RGBA, opts PNGOptions) ([]byte, error) {
	transformed := applyColorspace(rgba, opts.Colorspace)
	final := applyColorDepth(transformed, opts.ColorDepth)

	var buf bytes.Buffer
	if err := png.Encode(&buf, final); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return stampPHYs(buf.Bytes(), opts.DPI)
}

// applyColorspace applies a best-effort channel transform approximating the
// target colorspace; srgb is a no-op passthrough.
func applyColorspace(src *image.RGBA, cs PNGColorspace) image.Image {
	switch cs {
	case ColorspaceP3:
		return mapChannels(src, func(r, g, b uint8) (uint8, uint8, uint8) {
			return scaleChannel(r, 1.04), scaleChannel(g, 0.98), scaleChannel(b, 0.97)
		})
	case ColorspaceCMYK:
		return mapChannels(src, cmykRoundTrip)
	default:
		return src
	}
}

// cmykRoundTrip converts a pixel to CMYK, applies a flat 8% dot-gain to the
// ink channels to approximate how a naive CMYK proof darkens relative to its
// RGB source, then flattens back to RGB. This intentionally does not
// round-trip to the original values; it's the same lossy approximation a
// print-preview would show.
func cmykRoundTrip(r, g, b uint8) (uint8, uint8, uint8) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255

	k := 1 - maxF(rf, maxF(gf, bf))
	if k >= 1 {
		return 0, 0, 0
	}

	c := (1 - rf - k) / (1 - k)
	m := (1 - gf - k) / (1 - k)
	y := (1 - bf - k) / (1 - k)

	const dotGain = 1.08
	c = clamp01(c * dotGain)
	m = clamp01(m * dotGain)
	y = clamp01(y * dotGain)

	return floatToU8((1 - c) * (1 - k)), floatToU8((1 - m) * (1 - k)), floatToU8((1 - y) * (1 - k))
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func floatToU8(v float64) uint8 {
	return scaleChannel(255, v)
}

func scaleChannel(v uint8, factor float64) uint8 {
	scaled := float64(v) * factor
	if scaled > 255 {
		return 255
	}
	if scaled < 0 {
		return 0
	}
	return uint8(scaled)
}

func mapChannels(src *image.RGBA, f func(r, g, b uint8) (uint8, uint8, uint8)) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBAAt(x, y)
			r, g, bl := f(c.R, c.G, c.B)
			out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: bl, A: c.A})
		}
	}
	return out
}

// applyColorDepth reduces src to an 8-bit palette, flattens to opaque
// 24-bit RGB, or leaves 32-bit RGBA unchanged.
func applyColorDepth(src image.Image, depth int) image.Image {
	switch depth {
	case 8:
		paletted := image.NewPaletted(src.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, src.Bounds(), src, image.Point{})
		return paletted
	case 24:
		b := src.Bounds()
		flat := image.NewRGBA(b)
		draw.Draw(flat, b, image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(flat, b, src, b.Min, draw.Over)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := flat.RGBAAt(x, y)
				flat.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
		return flat
	default:
		return src
	}
}

// stampPHYs inserts a pHYs chunk recording dpi (converted per spec to
// pixels-per-meter, unit=1) immediately after the IHDR chunk.
func stampPHYs(pngBytes []byte, dpi int) ([]byte, error) {
	if dpi <= 0 {
		return pngBytes, nil
	}

	const sigLen = 8
	if len(pngBytes) < sigLen+8 {
		return nil, fmt.Errorf("png too short to stamp pHYs")
	}

	ihdrLen := binary.BigEndian.Uint32(pngBytes[sigLen : sigLen+4])
	ihdrEnd := sigLen + 8 + int(ihdrLen) + 4 // length+type+data+crc

	ppm := uint32(float64(dpi) * 0.0254)

	var chunkData bytes.Buffer
	_ = binary.Write(&chunkData, binary.BigEndian, ppm) // x pixels per unit
	_ = binary.Write(&chunkData, binary.BigEndian, ppm) // y pixels per unit
	chunkData.WriteByte(1)                              // unit: meter

	phys := buildChunk("pHYs", chunkData.Bytes())

	out := append([]byte(nil), pngBytes[:ihdrEnd]...)
	out = append(out, phys...)
	out = append(out, pngBytes[ihdrEnd:]...)
	return out, nil
}

func buildChunk(chunkType string, data []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
	buf.WriteString(chunkType)
	buf.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(chunkType))
	crc.Write(data)
	_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())

	return buf.Bytes()
}
