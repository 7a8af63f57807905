package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
)

// DecodePNG decodes raw PNG bytes and returns the image along with its
// intrinsic pixel bounds.
func DecodePNG(pngBytes []byte) (image.Image, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode png: %w", err)
	}
	b := img.Bounds()
	return img, b.Dx(), b.Dy(), nil
}
