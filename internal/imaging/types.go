// Package imaging implements the conversion pipeline (C2): rendering a
// vector or raster source into exact-size PNGs and packing them into
// platform icon containers.
package imaging

import "fmt"

// SourceType identifies the kind of uploaded source image.
type SourceType string

const (
	SourceSVG SourceType = "svg"
	SourcePNG SourceType = "png"
)

// Format identifies the requested output container.
type Format string

const (
	FormatICO     Format = "ico"
	FormatICNS    Format = "icns"
	FormatFavicon Format = "favicon"
	FormatPNG     Format = "png"
	FormatAll     Format = "all"
)

// ParseFormat normalizes a format token, treating the source's historical
// "both" alias as a synonym of "all".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "ico":
		return FormatICO, nil
	case "icns":
		return FormatICNS, nil
	case "favicon":
		return FormatFavicon, nil
	case "png":
		return FormatPNG, nil
	case "all", "both":
		return FormatAll, nil
	default:
		return "", fmt.Errorf("unrecognized format %q", s)
	}
}

// BGMode identifies a background-removal strategy.
type BGMode string

const (
	BGNone  BGMode = "none"
	BGColor BGMode = "color"
	BGSmart BGMode = "smart"
)

// Colorspace identifies the PNG colorspace transform to apply.
type Colorspace string

const (
	ColorspaceSRGB Colorspace = "srgb"
	ColorspaceP3   Colorspace = "p3"
	ColorspaceCMYK Colorspace = "cmyk"
)

// PNGOptions configures a single-PNG output artifact.
type PNGOptions struct {
	Size       int
	DPI        int
	Colorspace Colorspace
	ColorDepth int // 8, 24, or 32
}

// SourceDimensions carries the client-declared intrinsic size of a PNG
// source, used to enforce the no-upscale invariant.
type SourceDimensions struct {
	Width  int
	Height int
}

// Job is the immutable snapshot of conversion inputs a worker consumes.
type Job struct {
	ID                string
	SourceType        SourceType
	SourceBytes       []byte
	OriginalFilename  string
	Format            Format
	ScalePercent      float64
	CornerRadiusPct   float64
	BGMode            BGMode
	BGColor           string
	PNGOptions        PNGOptions
	SourceDimensions  SourceDimensions
}

// Artifact is one produced output file.
type Artifact struct {
	Bytes    []byte
	Filename string
	MimeType string
}

// Kind classifies a C2 failure into the stable error vocabulary spec.md
// names for this component.
type Kind string

const (
	KindInvalidSVG     Kind = "InvalidSvg"
	KindInvalidPNG     Kind = "InvalidPng"
	KindSourceTooSmall Kind = "SourceTooSmall"
	KindRenderFailed   Kind = "RenderFailed"
	KindEncodeFailed   Kind = "EncodeFailed"
	KindTooComplex     Kind = "TooComplex"
)

// Error is a C2 pipeline error carrying a stable Kind and a user-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}
