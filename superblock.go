package squashfs

import (
	"fmt"
)

// magic is the little-endian "hsqs" signature every SquashFS 4 image starts
// with.
const magic = 0x73717368

// superblockSize is the size in bytes of the fixed SquashFS header.
const superblockSize = 96

// noXattrTableStart is the sentinel value of xattrIDTableStart that marks an
// image with no xattr table.
const noXattrTableStart = 0xFFFF_FFFF_FFFF_FFFF

// superblock is the parsed, immutable fixed header of a SquashFS image (C5).
type superblock struct {
	Magic             uint32
	InodeCount        uint32
	ModTime           int32
	BlockSize         uint32
	FragCount         uint32
	Comp              Compression
	BlockLog          uint16
	Flags             Flags
	IDCount           uint16
	VMajor            uint16
	VMinor            uint16
	RootInodeRef      uint64
	BytesUsed         uint64
	IDTableStart      uint64
	XattrIDTableStart uint64
	InodeTableStart   uint64
	DirTableStart     uint64
	FragTableStart    uint64
	ExportTableStart  uint64
}

// parseSuperblock decodes and validates the 96-byte fixed header. It fails
// with ErrCorruptImage for a bad magic or an inconsistent block size/log
// pair, and ErrUnsupportedImage for anything other than version 4.0.
func parseSuperblock(buf []byte) (*superblock, error) {
	if len(buf) < superblockSize {
		return nil, fmt.Errorf("%w: superblock is %d bytes, need %d", ErrCorruptImage, len(buf), superblockSize)
	}

	c := newCursor(buf)
	sb := &superblock{}

	magicVal, _ := c.u32()
	if magicVal != magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptImage, magicVal)
	}
	sb.Magic = magicVal

	var err error
	if sb.InodeCount, err = c.u32(); err != nil {
		return nil, err
	}
	modTime, err := c.u32()
	if err != nil {
		return nil, err
	}
	sb.ModTime = int32(modTime)
	if sb.BlockSize, err = c.u32(); err != nil {
		return nil, err
	}
	if sb.FragCount, err = c.u32(); err != nil {
		return nil, err
	}
	compID, err := c.u16()
	if err != nil {
		return nil, err
	}
	sb.Comp = Compression(compID)
	if sb.BlockLog, err = c.u16(); err != nil {
		return nil, err
	}
	if uint32(1)<<sb.BlockLog != sb.BlockSize {
		return nil, fmt.Errorf("%w: block_size %d and block_log %d disagree", ErrCorruptImage, sb.BlockSize, sb.BlockLog)
	}
	flagsVal, err := c.u16()
	if err != nil {
		return nil, err
	}
	sb.Flags = Flags(flagsVal)
	if sb.IDCount, err = c.u16(); err != nil {
		return nil, err
	}
	if sb.VMajor, err = c.u16(); err != nil {
		return nil, err
	}
	if sb.VMinor, err = c.u16(); err != nil {
		return nil, err
	}
	if sb.VMajor != 4 || sb.VMinor != 0 {
		return nil, fmt.Errorf("%w: squashfs version %d.%d, only 4.0 is supported", ErrUnsupportedImage, sb.VMajor, sb.VMinor)
	}
	if sb.RootInodeRef, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.BytesUsed, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.IDTableStart, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.XattrIDTableStart, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.InodeTableStart, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.DirTableStart, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.FragTableStart, err = c.u64(); err != nil {
		return nil, err
	}
	if sb.ExportTableStart, err = c.u64(); err != nil {
		return nil, err
	}

	return sb, nil
}

// hasFragments reports whether the image carries a fragment table.
func (sb *superblock) hasFragments() bool {
	return !sb.Flags.NoFragments()
}

// hasXattrs reports whether the image carries an xattr table.
func (sb *superblock) hasXattrs() bool {
	return !sb.Flags.NoXattrs() && sb.XattrIDTableStart != noXattrTableStart
}
