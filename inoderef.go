package squashfs

import "fmt"

// ref is the two-part cursor used throughout SquashFS to address a record
// inside a metadata table: a metadata block's offset (relative to its
// table's start) in bits 16..47, and a byte offset into that block's
// decompressed payload in bits 0..15. It locates inodes (via the inode
// table), directory entries' child inodes, and xattr/xattr-value records.
type ref uint64

func newRef(blockRel uint32, byteOfft uint16) ref {
	return ref(uint64(blockRel)<<16 | uint64(byteOfft))
}

func (r ref) block() uint32 {
	return uint32(uint64(r) >> 16)
}

func (r ref) offset() uint16 {
	return uint16(uint64(r) & 0xffff)
}

func (r ref) String() string {
	return fmt.Sprintf("ref(block=0x%x,offset=0x%x)", r.block(), r.offset())
}
