// Package helpers provides test fixtures and factory functions.
package helpers

import (
	"time"

	"github.com/google/uuid"
)

// TestJobID returns a consistent job UUID for testing.
func TestJobID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}

// TestSVGSource returns a small, well-formed SVG source document.
func TestSVGSource() string {
	return `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64"><circle cx="32" cy="32" r="30"/></svg>`
}

// TestSourceFilename returns a consistent upload filename for testing.
func TestSourceFilename() string {
	return "icon.svg"
}

// TestCreatedAt returns a fixed timestamp for deterministic fixture comparisons.
func TestCreatedAt() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

// RandomUUID generates a random UUID for tests.
func RandomUUID() uuid.UUID {
	return uuid.New()
}
