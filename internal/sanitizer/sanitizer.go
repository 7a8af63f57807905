// Package sanitizer implements the security pre-filter for uploaded
// conversion sources: SVG markup is parsed and stripped of active content,
// PNG sources are checked against their signature bytes.
package sanitizer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// SourceType identifies the kind of source image being sanitized.
type SourceType string

const (
	SourceSVG SourceType = "svg"
	SourcePNG SourceType = "png"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Result is the outcome of a successful sanitize call.
type Result struct {
	SafeBytes []byte
	Modified  bool
	Notes     []string
}

// RejectedError is returned when a source is rejected for security reasons.
// Its Reason is safe to log; it is never shown to the client verbatim.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("security rejected: %s", e.Reason)
}

// quickSafe patterns reject obviously malicious byte sequences before any
// XML parsing is attempted. This is intentionally coarser than the
// structural checks that follow it.
var quickUnsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)data:text/html`),
}

// QuickSafe runs the fast byte-pattern prefilter. It never parses XML and
// is meant to reject obviously hostile payloads cheaply, before Sanitize
// does the structural work.
func QuickSafe(sourceBytes []byte) bool {
	for _, pat := range quickUnsafePatterns {
		if pat.Match(sourceBytes) {
			return false
		}
	}
	return true
}

// Sanitize validates and, for SVG sources, strips dangerous constructs from
// sourceBytes. PNG sources are only checked against the signature bytes.
//
// Sanitize is idempotent: Sanitize(Sanitize(x).SafeBytes) yields the same
// SafeBytes with Modified=false on the second pass.
func Sanitize(sourceBytes []byte, sourceType SourceType) (Result, error) {
	switch sourceType {
	case SourcePNG:
		return sanitizePNG(sourceBytes)
	case SourceSVG:
		return sanitizeSVG(sourceBytes)
	default:
		return Result{}, &RejectedError{Reason: fmt.Sprintf("unknown source type %q", sourceType)}
	}
}

func sanitizePNG(sourceBytes []byte) (Result, error) {
	if len(sourceBytes) < len(pngSignature) || !bytes.Equal(sourceBytes[:len(pngSignature)], pngSignature) {
		return Result{}, &RejectedError{Reason: "PNG signature mismatch"}
	}
	return Result{SafeBytes: sourceBytes, Modified: false}, nil
}

func sanitizeSVG(sourceBytes []byte) (Result, error) {
	if !QuickSafe(sourceBytes) {
		return Result{}, &RejectedError{Reason: "quick-safe prefilter rejected payload"}
	}

	doc, err := parseSVG(sourceBytes)
	if err != nil {
		return Result{}, &RejectedError{Reason: fmt.Sprintf("svg parse failed: %v", err)}
	}

	var notes []string
	if err := rejectDangerousElements(doc, &notes); err != nil {
		return Result{}, err
	}
	stripDangerousAttributes(doc, &notes)

	out, err := renderSVG(doc)
	if err != nil {
		return Result{}, &RejectedError{Reason: fmt.Sprintf("svg re-serialize failed: %v", err)}
	}

	// Only removed constructs count as a modification; encoder formatting
	// (e.g. <rect/> written as <rect></rect>) does not.
	modified := len(notes) > 0
	return Result{SafeBytes: out, Modified: modified, Notes: notes}, nil
}

var dangerousTags = map[string]bool{
	"script":       true,
	"foreignobject": true,
	"iframe":       true,
	"object":       true,
	"embed":        true,
}

func rejectDangerousElements(doc *svgNode, notes *[]string) error {
	var walk func(n *svgNode) error
	walk = func(n *svgNode) error {
		for _, child := range n.Children {
			tag := strings.ToLower(localName(child.Name))
			if dangerousTags[tag] {
				return &RejectedError{Reason: fmt.Sprintf("disallowed element <%s>", tag)}
			}
			if isXInclude(child) {
				return &RejectedError{Reason: "XInclude is not permitted"}
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(doc)
}

func isXInclude(n *svgNode) bool {
	localTag := strings.ToLower(localName(n.Name))
	// The decoder resolves a declared prefix to its namespace URL, so an
	// xi:include element arrives with the XInclude namespace, not "xi".
	space := strings.ToLower(n.Name.Space)
	if (strings.HasPrefix(space, "xi") || strings.Contains(space, "xinclude")) && localTag == "include" {
		return true
	}
	for _, attr := range n.Attrs {
		if strings.EqualFold(localName(attr.Name), "include") && strings.Contains(strings.ToLower(attr.Name.Space), "xi") {
			return true
		}
		if strings.HasPrefix(strings.ToLower(attr.Name.Local), "xmlns:xi") {
			return true
		}
	}
	return false
}

var unsafeAttrValue = regexp.MustCompile(`(?i)(javascript:|vbscript:|data:text/html)`)

func stripDangerousAttributes(doc *svgNode, notes *[]string) {
	var walk func(n *svgNode)
	walk = func(n *svgNode) {
		kept := n.Attrs[:0]
		for _, attr := range n.Attrs {
			local := strings.ToLower(localName(attr.Name))
			if strings.HasPrefix(local, "on") {
				*notes = append(*notes, fmt.Sprintf("removed event handler attribute %q", attr.Name.Local))
				continue
			}
			if unsafeAttrValue.MatchString(attr.Value) {
				*notes = append(*notes, fmt.Sprintf("removed unsafe value on attribute %q", attr.Name.Local))
				continue
			}
			kept = append(kept, attr)
		}
		n.Attrs = kept
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(doc)
}

func localName(name nameLike) string {
	return name.Local
}
