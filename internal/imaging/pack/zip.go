package pack

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// NamedFile is one member of a ZIP bundle.
type NamedFile struct {
	Name  string
	Bytes []byte
}

// Zip bundles files into a ZIP archive, used for format=all responses.
func Zip(files []NamedFile) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, f := range files {
		entry, err := w.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create entry %s: %w", f.Name, err)
		}
		if _, err := entry.Write(f.Bytes); err != nil {
			return nil, fmt.Errorf("zip: write entry %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}

	return buf.Bytes(), nil
}
