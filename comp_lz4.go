//go:build lz4

package squashfs

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

func init() {
	RegisterDecompressor(LZ4, lz4Decompress)
}

func lz4Decompress(buf []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(buf))
	return io.ReadAll(r)
}
