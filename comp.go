package squashfs

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Compression identifies the compressor used for every metadata block, data
// block and fragment in an image. It is read once from the superblock and
// applies uniformly to the whole image.
type Compression uint16

const (
	GZip Compression = 1
	LZMA Compression = 2
	LZO  Compression = 3
	XZ   Compression = 4
	LZ4  Compression = 5
	ZSTD Compression = 6
)

func (c Compression) String() string {
	switch c {
	case GZip:
		return "GZip"
	case LZMA:
		return "LZMA"
	case LZO:
		return "LZO"
	case XZ:
		return "XZ"
	case LZ4:
		return "LZ4"
	case ZSTD:
		return "ZSTD"
	}
	return fmt.Sprintf("Compression(%d)", c)
}

// Decompressor turns a compressed block's bytes into its decompressed
// payload. Implementations are registered per Compression id so that
// optional codecs (xz, lz4, zstd) can be built in via build tags without
// forcing every consumer of this package to vendor every codec.
type Decompressor func([]byte) ([]byte, error)

var decompressors = map[Compression]Decompressor{
	GZip: zlibDecompress,
}

// RegisterDecompressor installs d as the handler for compression id c. Build
// tag gated files (comp_xz.go, comp_lz4.go, comp_zstd.go) call this from an
// init() to opt in to optional codecs.
func RegisterDecompressor(c Compression, d Decompressor) {
	decompressors[c] = d
}

// decompress dispatches to the registered Decompressor for c, failing with
// ErrUnsupportedImage if none is registered (this build was not compiled
// with the matching codec's build tag, or the id is unknown to SquashFS).
func (c Compression) decompress(buf []byte) ([]byte, error) {
	d, ok := decompressors[c]
	if !ok {
		return nil, fmt.Errorf("%w: unregistered compressor %s", ErrUnsupportedImage, c)
	}
	out, err := d(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s decompress failed: %s", ErrCorruptImage, c, err)
	}
	return out, nil
}

func zlibDecompress(buf []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// MakeDecompressor adapts an io.Reader-based decompressor constructor (the
// shape most third-party compression packages expose) into a Decompressor.
func MakeDecompressor(newReader func(io.Reader) (io.ReadCloser, error)) Decompressor {
	return func(buf []byte) ([]byte, error) {
		r, err := newReader(bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
}
