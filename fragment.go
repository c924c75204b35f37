package squashfs

import "fmt"

// fragmentsPerBlock is how many 16-byte fragment descriptors pack into one
// decompressed 8 KiB metadata block.
const fragmentsPerBlock = 512

// maxFragmentSize is the hard cap on a fragment block's compressed or
// stored size (§4.8).
const maxFragmentSize = 1 << 20

// fragmentEntry describes one shared tail block packing the sub-block
// residues of several small files.
type fragmentEntry struct {
	Start      uint64
	Size       uint32
	Compressed bool
}

// loadFragmentTable loads the fragment table (C7) via the indirect
// block-pointer scheme. It is skipped entirely (returns nil, nil) when the
// superblock's NO_FRAGMENTS flag is set, per §4.8.
func loadFragmentTable(src byteSource, comp Compression, sb *superblock) ([]fragmentEntry, error) {
	if !sb.hasFragments() {
		return nil, nil
	}

	buf, err := loadIndirectTable(src, comp, int64(sb.FragTableStart), int(sb.FragCount), fragmentsPerBlock)
	if err != nil {
		return nil, fmt.Errorf("loading fragment table: %w", err)
	}

	entries := make([]fragmentEntry, sb.FragCount)
	c := newCursor(buf)
	for i := range entries {
		start, err := c.u64()
		if err != nil {
			return nil, fmt.Errorf("%w: fragment entry %d: %s", ErrCorruptImage, i, err)
		}
		rawSize, err := c.u32()
		if err != nil {
			return nil, fmt.Errorf("%w: fragment entry %d: %s", ErrCorruptImage, i, err)
		}
		// unused u32 (reserved for future use)
		if err := c.skip(4); err != nil {
			return nil, fmt.Errorf("%w: fragment entry %d: %s", ErrCorruptImage, i, err)
		}

		uncompressedFlag := rawSize&(1<<24) != 0
		size := rawSize &^ (1 << 24)
		if size > maxFragmentSize {
			return nil, fmt.Errorf("%w: fragment entry %d size %d exceeds %d", ErrCorruptImage, i, size, maxFragmentSize)
		}

		entries[i] = fragmentEntry{Start: start, Size: size, Compressed: !uncompressedFlag}
	}
	return entries, nil
}

// read fetches and, if necessary, decompresses the fragment block f
// describes.
func (f fragmentEntry) read(src byteSource, comp Compression) ([]byte, error) {
	buf := make([]byte, f.Size)
	if _, err := src.ReadAt(buf, int64(f.Start)); err != nil {
		return nil, fmt.Errorf("%w: reading fragment at %d: %s", ErrCorruptImage, f.Start, err)
	}
	if !f.Compressed {
		return buf, nil
	}
	return comp.decompress(buf)
}
