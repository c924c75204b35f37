package squashfs

import "fmt"

// table is a materialised logical table (C3): the concatenation of a chain
// of metadata blocks, plus an index from each block's offset (relative to
// the table's own start) to that block's offset inside the concatenated
// buffer. Inode and directory references carry the former; table.at
// resolves them to a cursor over the latter.
type table struct {
	buf   []byte
	index map[uint32]int
}

// loadTable walks the metadata-block chain starting at start until the
// cursor reaches end, concatenating decompressed payloads into buf and
// recording, for each block, the offset (relative to start) at which it
// began.
func loadTable(src byteSource, comp Compression, start, end int64) (*table, error) {
	t := &table{index: make(map[uint32]int)}

	offt := start
	for offt < end {
		t.index[uint32(offt-start)] = len(t.buf)

		payload, next, err := readMetaBlock(src, comp, offt)
		if err != nil {
			return nil, err
		}
		t.buf = append(t.buf, payload...)

		if next <= offt {
			return nil, fmt.Errorf("%w: metadata block chain did not advance at %d", ErrCorruptImage, offt)
		}
		offt = next
	}

	return t, nil
}

// at resolves a (blockRel, byteOfft) two-part reference into a cursor over
// the table's materialised buffer.
func (t *table) at(blockRel uint32, byteOfft int) (*cursor, error) {
	base, ok := t.index[blockRel]
	if !ok {
		return nil, fmt.Errorf("%w: no metadata block at relative offset 0x%x", ErrCorruptImage, blockRel)
	}
	pos := base + byteOfft
	if pos < 0 || pos > len(t.buf) {
		return nil, fmt.Errorf("%w: offset %d out of range for table of length %d", ErrCorruptImage, pos, len(t.buf))
	}
	return &cursor{buf: t.buf, pos: pos}, nil
}

// loadIndirectTable loads a table addressed through the id/fragment/xattr-lookup
// indirection scheme (§4.3): an array of absolute u64 metadata-block offsets
// of length ceil(entryCount/entriesPerBlock), stored at indexStart, each
// pointing at one metadata block; those blocks concatenate into the table.
func loadIndirectTable(src byteSource, comp Compression, indexStart int64, entryCount, entriesPerBlock int) ([]byte, error) {
	if entryCount == 0 {
		return nil, nil
	}

	blockCount := (entryCount + entriesPerBlock - 1) / entriesPerBlock
	ptrBytes := make([]byte, 8*blockCount)
	if _, err := src.ReadAt(ptrBytes, indexStart); err != nil {
		return nil, fmt.Errorf("%w: reading indirect pointer array at %d: %s", ErrCorruptImage, indexStart, err)
	}

	c := newCursor(ptrBytes)
	var buf []byte
	for i := 0; i < blockCount; i++ {
		blockOfft, err := c.u64()
		if err != nil {
			return nil, err
		}
		payload, _, err := readMetaBlock(src, comp, int64(blockOfft))
		if err != nil {
			return nil, err
		}
		buf = append(buf, payload...)
	}
	return buf, nil
}
