//go:build zstd

package squashfs

import (
	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterDecompressor(ZSTD, zstdDecompress)
}

func zstdDecompress(buf []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(buf, nil)
}
