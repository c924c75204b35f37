package squashfs

import (
	"encoding/binary"
	"fmt"
)

// maxMetadataBlockSize is the maximum payload size of a single metadata
// block (the low 15 bits of its 2-byte header).
const maxMetadataBlockSize = 8192

// readMetaBlock reads the 2-byte header at offt in src, then its payload,
// decompressing it unless the header's "stored uncompressed" bit (0x8000)
// is set. It returns the payload and the offset immediately following the
// block, so callers can chain calls to walk a block chain.
func readMetaBlock(src byteSource, comp Compression, offt int64) (payload []byte, next int64, err error) {
	hdr := make([]byte, 2)
	if _, err := src.ReadAt(hdr, offt); err != nil {
		return nil, 0, fmt.Errorf("%w: reading metadata block header at %d: %s", ErrCorruptImage, offt, err)
	}

	raw := binary.LittleEndian.Uint16(hdr)
	size := int(raw &^ 0x8000)
	stored := raw&0x8000 != 0

	if size > maxMetadataBlockSize {
		return nil, 0, fmt.Errorf("%w: metadata block at %d declares size %d > %d", ErrCorruptImage, offt, size, maxMetadataBlockSize)
	}

	buf := make([]byte, size)
	if size > 0 {
		if _, err := src.ReadAt(buf, offt+2); err != nil {
			return nil, 0, fmt.Errorf("%w: reading metadata block payload at %d: %s", ErrCorruptImage, offt+2, err)
		}
	}

	if !stored {
		buf, err = comp.decompress(buf)
		if err != nil {
			return nil, 0, err
		}
	}

	return buf, offt + 2 + int64(size), nil
}

// byteSource is the random-access read primitive the reader is built on
// (C1). A memory-mapped *os.File satisfies it directly; io.ReaderAt is
// deliberately the whole interface so any backing store works.
type byteSource interface {
	ReadAt(p []byte, off int64) (int, error)
}
