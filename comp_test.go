package squashfs

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGzipRoundTrip(t *testing.T) {
	data := []byte("round trip through the registered GZip decompressor")
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := GZip.decompress(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecompressUnregistered(t *testing.T) {
	_, err := Compression(0xbeef).decompress(nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestRegisterDecompressor(t *testing.T) {
	const testID = Compression(0x7777)
	RegisterDecompressor(testID, func(buf []byte) ([]byte, error) {
		return bytes.ToUpper(buf), nil
	})
	defer delete(decompressors, testID)

	got, err := testID.decompress([]byte("shout"))
	require.NoError(t, err)
	assert.Equal(t, []byte("SHOUT"), got)
}

func TestMakeDecompressor(t *testing.T) {
	d := MakeDecompressor(func(r io.Reader) (io.ReadCloser, error) {
		return zlib.NewReader(r)
	})

	data := []byte("adapted from an io.Reader constructor")
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := d(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecompressWrapsFailure(t *testing.T) {
	_, err := GZip.decompress([]byte("not valid zlib data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptImage))
}

func TestCompressionStringUnknown(t *testing.T) {
	assert.Equal(t, "Compression(12345)", Compression(12345).String())
}
