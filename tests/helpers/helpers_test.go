package helpers_test

import (
	"testing"

	"github.com/icon-forge/iconforge/tests/helpers"
)

// TestHelperFunctions verifies that test helper utilities work correctly.
func TestHelperFunctions(t *testing.T) {
	t.Parallel()

	t.Run("TestJobID returns consistent UUID", func(t *testing.T) {
		t.Parallel()

		id1 := helpers.TestJobID()
		id2 := helpers.TestJobID()

		helpers.AssertEqual(t, id1, id2, "TestJobID should return consistent UUID")
		helpers.AssertEqual(t, "00000000-0000-0000-0000-000000000001", id1.String())
	})

	t.Run("TestSVGSource returns well-formed SVG", func(t *testing.T) {
		t.Parallel()

		svg := helpers.TestSVGSource()
		helpers.AssertTrue(t, len(svg) > 0)
	})

	t.Run("TestSourceFilename returns consistent filename", func(t *testing.T) {
		t.Parallel()

		filename := helpers.TestSourceFilename()
		helpers.AssertEqual(t, "icon.svg", filename)
	})

	t.Run("RandomUUID generates unique UUIDs", func(t *testing.T) {
		t.Parallel()

		id1 := helpers.RandomUUID()
		id2 := helpers.RandomUUID()

		helpers.AssertNotNil(t, id1)
		helpers.AssertNotNil(t, id2)
		helpers.AssertFalse(t, id1 == id2, "Random UUIDs should be different")
	})
}

// TestAssertHelpers verifies assertion helper functions.
func TestAssertHelpers(t *testing.T) {
	t.Parallel()

	t.Run("AssertTrue passes on true condition", func(t *testing.T) {
		t.Parallel()
		helpers.AssertTrue(t, true)
	})

	t.Run("AssertFalse passes on false condition", func(t *testing.T) {
		t.Parallel()
		helpers.AssertFalse(t, false)
	})

	t.Run("AssertEqual compares values", func(t *testing.T) {
		t.Parallel()
		helpers.AssertEqual(t, 42, 42)
		helpers.AssertEqual(t, "test", "test")
	})

	t.Run("AssertNil checks nil values", func(t *testing.T) {
		t.Parallel()
		var nilValue *string
		helpers.AssertNil(t, nilValue)
	})

	t.Run("AssertNotNil checks non-nil values", func(t *testing.T) {
		t.Parallel()
		value := "not nil"
		helpers.AssertNotNil(t, &value)
	})
}

// TestRequireHelpers verifies require helper functions.
func TestRequireHelpers(t *testing.T) {
	t.Parallel()

	t.Run("RequireNoError passes on nil error", func(t *testing.T) {
		t.Parallel()
		helpers.RequireNoError(t, nil)
	})

	t.Run("RequireError passes on non-nil error", func(t *testing.T) {
		t.Parallel()
		err := &testError{msg: "test error"}
		helpers.RequireError(t, err)
	})
}

// testError is a simple error type for testing.
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
