package squashfs

import "fmt"

// xattrLookupsPerBlock is how many 16-byte lookup descriptors pack into one
// decompressed 8 KiB metadata block.
const xattrLookupsPerBlock = 512

// noXattrIdx is the sentinel xattr_idx value meaning "no extended
// attributes".
const noXattrIdx = 0xFFFFFFFF

// xattrPair is one name/value attribute. A slice of these (rather than a
// map) preserves the on-disk insertion order, matching testable property
// that xattr maps for a shared xattr_idx be equal regardless of path.
type xattrPair struct {
	Name  string
	Value []byte
}

// xattrLookup is one entry of the xattr lookup table: where in the
// attribute table this xattr id's records start, how many there are, and
// their total encoded size.
type xattrLookup struct {
	Ref   ref
	Count uint32
	Size  uint32
}

// xattrTable holds the materialised lookup table and attribute data table
// (C8), ready to resolve an inode's xattr_idx into an ordered name/value
// list.
type xattrTable struct {
	lookups []xattrLookup
	attrs   *table
}

// loadXattrTable loads the xattr id table, lookup table, and attribute data
// table (§4.9). It returns (nil, nil) when the image carries no xattrs.
func loadXattrTable(src byteSource, comp Compression, sb *superblock) (*xattrTable, error) {
	if !sb.hasXattrs() {
		return nil, nil
	}

	preamble := make([]byte, 16)
	if _, err := src.ReadAt(preamble, int64(sb.XattrIDTableStart)); err != nil {
		return nil, fmt.Errorf("%w: reading xattr id table preamble: %s", ErrCorruptImage, err)
	}
	pc := newCursor(preamble)
	xattrTableStart, err := pc.u64()
	if err != nil {
		return nil, err
	}
	xattrIDs, err := pc.u32()
	if err != nil {
		return nil, err
	}
	// unused u32

	lookupBuf, err := loadIndirectTable(src, comp, int64(sb.XattrIDTableStart)+16, int(xattrIDs), xattrLookupsPerBlock)
	if err != nil {
		return nil, fmt.Errorf("loading xattr lookup table: %w", err)
	}

	attrs, err := loadTable(src, comp, int64(xattrTableStart), int64(sb.XattrIDTableStart))
	if err != nil {
		return nil, fmt.Errorf("loading xattr attribute table: %w", err)
	}

	lookups := make([]xattrLookup, xattrIDs)
	lc := newCursor(lookupBuf)
	for i := range lookups {
		rawRef, err := lc.u64()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr lookup entry %d: %s", ErrCorruptImage, i, err)
		}
		count, err := lc.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr lookup entry %d: %s", ErrCorruptImage, i, err)
		}
		size, err := lc.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr lookup entry %d: %s", ErrCorruptImage, i, err)
		}
		lookups[i] = xattrLookup{Ref: ref(rawRef), Count: count, Size: size}
	}

	return &xattrTable{lookups: lookups, attrs: attrs}, nil
}

// xattrNamespace prefixes name according to the low byte of an xattr type
// word (§4.9 step 5).
func xattrNamespace(typ uint16) (string, error) {
	switch typ & 0x00FF {
	case 0:
		return "user.", nil
	case 1:
		return "trusted.", nil
	case 2:
		return "security.", nil
	default:
		return "", fmt.Errorf("%w: unknown xattr namespace %d", ErrCorruptImage, typ&0x00FF)
	}
}

// Get resolves xattr_idx into its ordered name/value list. It returns nil
// if idx is the absent sentinel.
func (xt *xattrTable) Get(idx uint32) ([]xattrPair, error) {
	if idx == noXattrIdx {
		return nil, nil
	}
	if int(idx) >= len(xt.lookups) {
		return nil, fmt.Errorf("%w: xattr index %d >= %d", ErrCorruptImage, idx, len(xt.lookups))
	}
	lookup := xt.lookups[idx]

	c, err := xt.attrs.at(lookup.Ref.block(), int(lookup.Ref.offset()))
	if err != nil {
		return nil, fmt.Errorf("resolving xattr ref for index %d: %w", idx, err)
	}

	pairs := make([]xattrPair, 0, lookup.Count)
	for i := uint32(0); i < lookup.Count; i++ {
		typ, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr record %d: %s", ErrCorruptImage, i, err)
		}
		nameSize, err := c.u16()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr record %d: %s", ErrCorruptImage, i, err)
		}
		rawName, err := c.bytes(int(nameSize))
		if err != nil {
			return nil, fmt.Errorf("%w: xattr record %d: %s", ErrCorruptImage, i, err)
		}
		prefix, err := xattrNamespace(typ)
		if err != nil {
			return nil, err
		}

		valueSize, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: xattr record %d: %s", ErrCorruptImage, i, err)
		}

		var value []byte
		if typ&0x0100 != 0 {
			outOfLine, err := c.u64()
			if err != nil {
				return nil, fmt.Errorf("%w: xattr record %d: %s", ErrCorruptImage, i, err)
			}
			valRef := ref(outOfLine)
			vc, err := xt.attrs.at(valRef.block(), int(valRef.offset()))
			if err != nil {
				return nil, fmt.Errorf("resolving out-of-line xattr value: %w", err)
			}
			actualSize, err := vc.u32()
			if err != nil {
				return nil, fmt.Errorf("%w: xattr record %d out-of-line size: %s", ErrCorruptImage, i, err)
			}
			value, err = vc.bytes(int(actualSize))
			if err != nil {
				return nil, fmt.Errorf("%w: xattr record %d out-of-line value: %s", ErrCorruptImage, i, err)
			}
		} else {
			value, err = c.bytes(int(valueSize))
			if err != nil {
				return nil, fmt.Errorf("%w: xattr record %d value: %s", ErrCorruptImage, i, err)
			}
		}

		pairs = append(pairs, xattrPair{Name: prefix + string(rawName), Value: append([]byte(nil), value...)})
	}

	return pairs, nil
}
