package squashfs

import "fmt"

// maxDirGroupCount is the exclusive upper bound on a directory group
// header's count field (§4.7); groups claiming 256 or more entries are
// rejected as corrupt.
const maxDirGroupCount = 256

// dirRegionOverhead is the SquashFS convention that a directory inode's
// stored file_size overcounts the actual entry region by exactly 3 bytes.
const dirRegionOverhead = 3

// dirEntry is one decoded directory entry (C10): its name, the type of the
// inode it references, a two-part cursor locating that inode, and its
// absolute inode number.
type dirEntry struct {
	Name        string
	Type        Type
	ChildRef    ref
	InodeNumber uint32
}

// readDirEntries reads the full entry region of the directory positioned
// at (blkIdx, blkOffset) in the directory table, spanning fileSize-3 bytes
// (§4.7).
func readDirEntries(dirs *table, blkIdx uint32, blkOffset uint16, fileSize uint32) ([]dirEntry, error) {
	if fileSize < dirRegionOverhead {
		return nil, fmt.Errorf("%w: directory file_size %d smaller than overhead", ErrCorruptImage, fileSize)
	}
	regionSize := int(fileSize) - dirRegionOverhead
	if regionSize == 0 {
		return nil, nil
	}

	c, err := dirs.at(blkIdx, int(blkOffset))
	if err != nil {
		return nil, fmt.Errorf("resolving directory region: %w", err)
	}

	start := c.pos
	var entries []dirEntry

	for c.pos-start < regionSize {
		count, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: directory group header: %s", ErrCorruptImage, err)
		}
		if count >= maxDirGroupCount {
			return nil, fmt.Errorf("%w: directory group count %d >= %d", ErrCorruptImage, count, maxDirGroupCount)
		}
		baseBlk, err := c.u32()
		if err != nil {
			return nil, err
		}
		baseIno, err := c.u32()
		if err != nil {
			return nil, err
		}

		for n := uint32(0); n <= count; n++ {
			offset, err := c.u16()
			if err != nil {
				return nil, fmt.Errorf("%w: directory entry: %s", ErrCorruptImage, err)
			}
			inoDelta, err := c.i16()
			if err != nil {
				return nil, err
			}
			typ, err := c.u16()
			if err != nil {
				return nil, err
			}
			nameSize, err := c.u16()
			if err != nil {
				return nil, err
			}
			name, err := c.bytes(int(nameSize) + 1)
			if err != nil {
				return nil, err
			}

			entries = append(entries, dirEntry{
				Name:        string(name),
				Type:        Type(typ),
				ChildRef:    newRef(baseBlk, offset),
				InodeNumber: uint32(int64(baseIno) + int64(inoDelta)),
			})
		}
	}

	return entries, nil
}
