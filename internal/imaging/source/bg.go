package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const tolerance = 0.01

var shapeTagPattern = regexp.MustCompile(`(?s)<(rect|circle|ellipse)\b([^>]*?)/?>`)

var fillAttrPattern = regexp.MustCompile(`\bfill\s*=\s*"([^"]*)"`)
var fillStylePattern = regexp.MustCompile(`fill\s*:\s*[^;"]+`)

// NeutralizeBackground applies the job's background-removal mode to raw SVG
// bytes, returning the possibly-rewritten bytes and whether anything changed.
func NeutralizeBackground(svgBytes []byte, mode string, colorHex string, dims Dims) ([]byte, bool, error) {
	switch mode {
	case "", "none":
		return svgBytes, false, nil
	case "color":
		normalized, err := NormalizeColor(colorHex)
		if err != nil {
			return nil, false, fmt.Errorf("normalize background color: %w", err)
		}
		return neutralizeMatchingFill(svgBytes, normalized)
	case "smart":
		return neutralizeDetectedBackground(svgBytes, dims)
	default:
		return nil, false, fmt.Errorf("unknown background removal mode %q", mode)
	}
}

// neutralizeMatchingFill replaces any fill attribute or fill: style
// declaration equal to target with "none".
func neutralizeMatchingFill(svgBytes []byte, target string) ([]byte, bool, error) {
	s := string(svgBytes)
	changed := false

	s = fillAttrPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := fillAttrPattern.FindStringSubmatch(m)
		norm, err := NormalizeColor(sub[1])
		if err == nil && norm == target {
			changed = true
			return `fill="none"`
		}
		return m
	})

	s = fillStylePattern.ReplaceAllStringFunc(s, func(m string) string {
		val := strings.TrimSpace(strings.SplitN(m, ":", 2)[1])
		norm, err := NormalizeColor(val)
		if err == nil && norm == target {
			changed = true
			return "fill:none"
		}
		return m
	})

	return []byte(s), changed, nil
}

// neutralizeDetectedBackground examines the first rect/circle/ellipse element
// in the document and, if it covers the viewBox (within tolerance) with a
// non-transparent fill, neutralizes its fill to "none". Only that first shape
// is examined, at whatever nesting depth it appears; when it does not qualify,
// later shapes are not tried. Circle and ellipse centres are not checked, only
// their radii.
func neutralizeDetectedBackground(svgBytes []byte, dims Dims) ([]byte, bool, error) {
	loc := shapeTagPattern.FindIndex(svgBytes)
	if loc == nil {
		return svgBytes, false, nil
	}

	tag := shapeTagPattern.FindSubmatch(svgBytes)
	kind := string(tag[1])
	attrs := string(tag[2])

	if !coversViewBox(kind, attrs, dims) {
		return svgBytes, false, nil
	}

	fillMatch := fillAttrPattern.FindStringSubmatch(attrs)
	if fillMatch == nil {
		return svgBytes, false, nil
	}
	norm, err := NormalizeColor(fillMatch[1])
	if err != nil || norm == "#00000000" {
		return svgBytes, false, nil
	}

	element := string(svgBytes[loc[0]:loc[1]])
	replaced := fillAttrPattern.ReplaceAllString(element, `fill="none"`)

	out := append([]byte(nil), svgBytes[:loc[0]]...)
	out = append(out, []byte(replaced)...)
	out = append(out, svgBytes[loc[1]:]...)
	return out, true, nil
}

func coversViewBox(kind, attrs string, dims Dims) bool {
	attr := func(name string) (float64, bool) {
		re := regexp.MustCompile(`\b` + name + `\s*=\s*"([^"]*)"`)
		m := re.FindStringSubmatch(attrs)
		if m == nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	minDim := dims.Width
	if dims.Height < minDim {
		minDim = dims.Height
	}

	switch kind {
	case "rect":
		x, _ := attr("x")
		y, _ := attr("y")
		w, wok := attr("width")
		h, hok := attr("height")
		if !wok || !hok {
			return false
		}
		return x <= dims.Width*tolerance && y <= dims.Height*tolerance &&
			w >= dims.Width*(1-tolerance) && h >= dims.Height*(1-tolerance)
	case "circle":
		r, ok := attr("r")
		if !ok {
			return false
		}
		return r >= 0.95*minDim/2
	case "ellipse":
		rx, rxok := attr("rx")
		ry, ryok := attr("ry")
		if !rxok || !ryok {
			return false
		}
		return rx >= 0.95*dims.Width/2 && ry >= 0.95*dims.Height/2
	default:
		return false
	}
}
