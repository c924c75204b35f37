package squashfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXattrNamespace(t *testing.T) {
	cases := map[uint16]string{
		0:      "user.",
		1:      "trusted.",
		2:      "security.",
		0x0100: "user.", // out-of-line bit doesn't affect the namespace bits
	}
	for typ, want := range cases {
		got, err := xattrNamespace(typ)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := xattrNamespace(3)
	assert.ErrorIs(t, err, ErrCorruptImage)
}

func TestLoadXattrTableSkippedWhenFlagged(t *testing.T) {
	sb := &superblock{Flags: NO_XATTRS, XattrIDTableStart: noXattrTableStart}
	got, err := loadXattrTable(bytes.NewReader(nil), GZip, sb)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestXattrTableGetInlineAndOutOfLine(t *testing.T) {
	// Attribute table contents: one inline record, one out-of-line record.
	var attrBuf bytes.Buffer

	// inline: type=user(0), name="inline", value="v1"
	attrBuf.Write(le16ForTest(0))
	attrBuf.Write(le16ForTest(uint16(len("inline"))))
	attrBuf.WriteString("inline")
	attrBuf.Write(le32ForXattrTest(uint32(len("v1"))))
	attrBuf.WriteString("v1")

	// out-of-line: type=trusted(1)|0x0100, name="big", ref points elsewhere
	outOfLineOfft := attrBuf.Len()
	attrBuf.Write(le16ForTest(1 | 0x0100))
	attrBuf.Write(le16ForTest(uint16(len("big"))))
	attrBuf.WriteString("big")
	attrBuf.Write(le32ForXattrTest(999)) // stored value_size ignored for out-of-line
	valueRef := newRef(0, uint16(outOfLineOfft+100))
	attrBuf.Write(le64ForTest(uint64(valueRef)))

	// place the actual out-of-line value further in the same block
	for attrBuf.Len() < outOfLineOfft+100 {
		attrBuf.WriteByte(0)
	}
	attrBuf.Write(le32ForXattrTest(uint32(len("a-big-value"))))
	attrBuf.WriteString("a-big-value")

	attrsTableBytes := metaBlockBytes(attrBuf.Bytes(), true)

	lookupPayload := make([]byte, 16)
	lookupRef := newRef(0, 0)
	putLE64(lookupPayload[0:], uint64(lookupRef))
	putLE32(lookupPayload[8:], 2) // count
	putLE32(lookupPayload[12:], uint32(attrBuf.Len()))

	var buf bytes.Buffer
	xattrTableStart := int64(0)
	buf.Write(attrsTableBytes)
	preambleOfft := int64(buf.Len())
	xattrIDTableStart := preambleOfft

	var preamble bytes.Buffer
	preamble.Write(le64ForTest(uint64(xattrTableStart)))
	preamble.Write(le32ForXattrTest(1)) // xattr_ids count
	preamble.Write(le32ForXattrTest(0)) // unused
	buf.Write(preamble.Bytes())

	lookupIndexStart := int64(buf.Len())
	lookupBlockOfft := lookupIndexStart + 8
	buf.Write(le64ForTest(uint64(lookupBlockOfft)))
	buf.Write(metaBlockBytes(lookupPayload, true))

	sb := &superblock{XattrIDTableStart: uint64(xattrIDTableStart)}
	xt, err := loadXattrTable(bytes.NewReader(buf.Bytes()), GZip, sb)
	require.NoError(t, err)
	require.NotNil(t, xt)

	pairs, err := xt.Get(0)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "user.inline", pairs[0].Name)
	assert.Equal(t, "v1", string(pairs[0].Value))
	assert.Equal(t, "trusted.big", pairs[1].Name)
	assert.Equal(t, "a-big-value", string(pairs[1].Value))
}

func TestXattrTableGetAbsent(t *testing.T) {
	xt := &xattrTable{}
	pairs, err := xt.Get(noXattrIdx)
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func le32ForXattrTest(v uint32) []byte {
	b := make([]byte, 4)
	putLE32(b, v)
	return b
}
