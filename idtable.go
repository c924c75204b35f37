package squashfs

import "fmt"

// idsPerBlock is how many 4-byte id entries pack into one decompressed 8 KiB
// metadata block.
const idsPerBlock = 2048

// loadIDTable loads the UID/GID table (C6) via the indirect block-pointer
// scheme (§4.3/§4.5): ids[i] is the numeric id stored at index i.
func loadIDTable(src byteSource, comp Compression, sb *superblock) ([]uint32, error) {
	buf, err := loadIndirectTable(src, comp, int64(sb.IDTableStart), int(sb.IDCount), idsPerBlock)
	if err != nil {
		return nil, fmt.Errorf("loading id table: %w", err)
	}

	ids := make([]uint32, sb.IDCount)
	c := newCursor(buf)
	for i := range ids {
		v, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: id table entry %d: %s", ErrCorruptImage, i, err)
		}
		ids[i] = v
	}
	return ids, nil
}

// idAt resolves an id-table index to its numeric UID/GID, failing with
// ErrCorruptImage if idx is out of range (the §3 invariant uid_idx <
// id_count / gid_idx < id_count violated).
func idAt(ids []uint32, idx uint16) (uint32, error) {
	if int(idx) >= len(ids) {
		return 0, fmt.Errorf("%w: id index %d >= id count %d", ErrCorruptImage, idx, len(ids))
	}
	return ids[idx], nil
}
