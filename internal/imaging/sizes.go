package imaging

// icoSizes is the standard Windows ICO size set.
var icoSizes = []int{16, 32, 48, 64, 128, 256}

// faviconSizes is the browser favicon size set.
var faviconSizes = []int{16, 32, 48}

// icnsEntry ties an Apple osType chunk tag to its rendered pixel size.
type icnsEntry struct {
	OSType string
	Size   int
}

// icnsTable is the normative 11-entry Apple icon table; several entries
// share a pixel size with a different osType (the @2x slots), and per
// SPEC_FULL.md's Open Question resolution each is packed from its own
// rendered frame rather than deduplicated.
var icnsTable = []icnsEntry{
	{"icp4", 16},
	{"icp5", 32},
	{"icp6", 64},
	{"ic07", 128},
	{"ic08", 256},
	{"ic09", 512},
	{"ic10", 1024},
	{"ic11", 32},
	{"ic12", 64},
	{"ic13", 256},
	{"ic14", 512},
}

// icnsMacInsetFactor is the macOS visual-inset scale override applied before
// rendering ICNS sizes so produced icons match system visual weight.
const icnsMacInsetFactor = 832.0 / 1024.0

func icnsUniqueSizes() []int {
	seen := make(map[int]bool)
	var sizes []int
	for _, e := range icnsTable {
		if !seen[e.Size] {
			seen[e.Size] = true
			sizes = append(sizes, e.Size)
		}
	}
	return sizes
}

// targetSizes returns the set of pixel sizes to render for format, before
// any PNG-source no-upscale filtering is applied.
func targetSizes(format Format, pngOpts PNGOptions, sourceBoundPx int) []int {
	switch format {
	case FormatICO:
		return append([]int(nil), icoSizes...)
	case FormatICNS:
		return icnsUniqueSizes()
	case FormatFavicon:
		return append([]int(nil), faviconSizes...)
	case FormatPNG:
		return []int{pngOpts.Size}
	case FormatAll:
		set := make(map[int]bool)
		var sizes []int
		add := func(s int) {
			if !set[s] {
				set[s] = true
				sizes = append(sizes, s)
			}
		}
		for _, s := range icoSizes {
			add(s)
		}
		for _, s := range icnsUniqueSizes() {
			add(s)
		}
		for _, s := range faviconSizes {
			add(s)
		}
		maxPNG := 1024
		if sourceBoundPx > 0 && sourceBoundPx < maxPNG {
			maxPNG = sourceBoundPx
		}
		add(maxPNG)
		return sizes
	default:
		return nil
	}
}

// filterBySourceBound drops any target size above a PNG source's intrinsic
// bound, per the no-upscale invariant.
func filterBySourceBound(sizes []int, bound int) []int {
	if bound <= 0 {
		return sizes
	}
	var out []int
	for _, s := range sizes {
		if s <= bound {
			out = append(out, s)
		}
	}
	return out
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
