package squashfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFragmentTableSkippedWhenFlagged(t *testing.T) {
	sb := &superblock{Flags: NO_FRAGMENTS}
	got, err := loadFragmentTable(bytes.NewReader(nil), GZip, sb)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadFragmentTableAndRead(t *testing.T) {
	fragData := []byte("shared fragment tail bytes for two small files")

	var buf bytes.Buffer
	buf.WriteString("\x00\x00\x00\x00\x00\x00\x00\x00") // pad so fragStart isn't 0
	fragStart := int64(buf.Len())
	buf.Write(fragData)

	entryPayload := make([]byte, 16)
	putLE64(entryPayload[0:], uint64(fragStart))
	putLE32(entryPayload[8:], uint32(len(fragData))|blockUncompressedFlag)
	// bytes 12:16 unused

	indexStart := int64(buf.Len())
	ptrTarget := indexStart + 8
	buf.Write(le64ForTest(uint64(ptrTarget)))
	buf.Write(metaBlockBytes(entryPayload, true))

	sb := &superblock{Flags: 0, FragTableStart: uint64(indexStart), FragCount: 1}
	entries, err := loadFragmentTable(bytes.NewReader(buf.Bytes()), GZip, sb)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(fragStart), entries[0].Start)
	assert.Equal(t, uint32(len(fragData)), entries[0].Size)
	assert.False(t, entries[0].Compressed)

	got, err := entries[0].read(bytes.NewReader(buf.Bytes()), GZip)
	require.NoError(t, err)
	assert.Equal(t, fragData, got)
}

func TestLoadFragmentTableOversize(t *testing.T) {
	entryPayload := make([]byte, 16)
	putLE64(entryPayload[0:], 0)
	putLE32(entryPayload[8:], maxFragmentSize+1)

	var buf bytes.Buffer
	ptrTarget := int64(8)
	buf.Write(le64ForTest(uint64(ptrTarget)))
	buf.Write(metaBlockBytes(entryPayload, true))

	sb := &superblock{FragTableStart: 0, FragCount: 1}
	_, err := loadFragmentTable(bytes.NewReader(buf.Bytes()), GZip, sb)
	assert.ErrorIs(t, err, ErrCorruptImage)
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putLE32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
