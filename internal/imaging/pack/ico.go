// Package pack assembles rendered PNG frames into the platform-specific
// container formats: ICO, ICNS, favicon (an ICO subset), a single PNG, and
// a ZIP bundle of everything.
package pack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// SizedPNG is one rendered frame ready to be embedded in a container.
type SizedPNG struct {
	Size  int
	Bytes []byte
}

// ICO assembles the classic ICO container: a directory of entries ordered
// ascending by size, each embedding a PNG payload rather than a BMP. The
// 256px entry encodes its width/height byte as 0x00 per the ICO format.
func ICO(frames []SizedPNG) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("ico: no frames to pack")
	}

	ordered := append([]SizedPNG(nil), frames...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Size < ordered[j].Size })

	var buf bytes.Buffer

	// ICONDIR header.
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // type: icon
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(ordered)))

	headerSize := 6 + 16*len(ordered)
	offset := uint32(headerSize)

	for _, f := range ordered {
		dim := byte(f.Size)
		if f.Size >= 256 {
			dim = 0
		}
		buf.WriteByte(dim)              // width
		buf.WriteByte(dim)              // height
		buf.WriteByte(0)                // color count
		buf.WriteByte(0)                // reserved
		_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
		_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bit count
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(f.Bytes)))
		_ = binary.Write(&buf, binary.LittleEndian, offset)
		offset += uint32(len(f.Bytes))
	}

	for _, f := range ordered {
		buf.Write(f.Bytes)
	}

	return buf.Bytes(), nil
}
