package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/imaging/source"
)

func TestNormalizeColor_NamedAndHexFormsAgree(t *testing.T) {
	white, err := source.NormalizeColor("white")
	require.NoError(t, err)
	hexWhite, err := source.NormalizeColor("#FFF")
	require.NoError(t, err)
	assert.Equal(t, white, hexWhite)
}

func TestNormalizeColor_TransparentKeepsAlphaChannel(t *testing.T) {
	norm, err := source.NormalizeColor("transparent")
	require.NoError(t, err)
	assert.Equal(t, "#00000000", norm)
}

func TestNormalizeColor_TransparentHexFormPreservesAlpha(t *testing.T) {
	norm, err := source.NormalizeColor("#00000000")
	require.NoError(t, err)
	assert.Equal(t, "#00000000", norm, "a fully transparent #rrggbbaa input must not be truncated to its opaque RGB prefix")
}

func TestNormalizeColor_RejectsInvalidColor(t *testing.T) {
	_, err := source.NormalizeColor("not-a-color")
	assert.Error(t, err)
}

func TestParseDims_FallsBackToDefault(t *testing.T) {
	dims, err := source.ParseDims([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	require.NoError(t, err)
	assert.Equal(t, 100.0, dims.Width)
	assert.Equal(t, 100.0, dims.Height)
}

func TestParseDims_ReadsViewBox(t *testing.T) {
	dims, err := source.ParseDims([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 32"></svg>`))
	require.NoError(t, err)
	assert.Equal(t, 64.0, dims.Width)
	assert.Equal(t, 32.0, dims.Height)
}
