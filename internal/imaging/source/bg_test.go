package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/imaging/source"
)

func TestNeutralizeBackground_ColorMode_ReplacesMatchingFill(t *testing.T) {
	svg := []byte(`<svg><rect width="100" height="100" fill="#ffffff"/></svg>`)

	out, changed, err := source.NeutralizeBackground(svg, "color", "#ffffff", source.Dims{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, string(out), `fill="none"`)
}

func TestNeutralizeBackground_SmartMode_LeavesAlreadyTransparentBackgroundAlone(t *testing.T) {
	svg := []byte(`<svg><rect width="100" height="100" fill="transparent"/></svg>`)

	out, changed, err := source.NeutralizeBackground(svg, "smart", "", source.Dims{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.False(t, changed, "an already-transparent background rect must not be reported as neutralized")
	assert.Equal(t, svg, out)
}

func TestNeutralizeBackground_SmartMode_NeutralizesOpaqueCoveringRect(t *testing.T) {
	svg := []byte(`<svg><rect width="100" height="100" fill="#abcdef"/></svg>`)

	out, changed, err := source.NeutralizeBackground(svg, "smart", "", source.Dims{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, string(out), `fill="none"`)
}

func TestNeutralizeBackground_NoneMode_NoOp(t *testing.T) {
	svg := []byte(`<svg><rect width="100" height="100" fill="#ffffff"/></svg>`)

	out, changed, err := source.NeutralizeBackground(svg, "none", "", source.Dims{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, svg, out)
}
