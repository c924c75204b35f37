package squashfs_test

import (
	"bytes"
	"encoding/binary"
)

// Hand-built, minimal SquashFS 4.0 images for exercising the reader without
// a real mksquashfs binary. Every metadata block and data block is marked
// "stored uncompressed" so the fixtures need no compression codec.

const (
	fxBlockSize     = 131072
	fxBlockLog      = 17
	fxNoFragIdx     = 0xFFFFFFFF
	fxNoXattrTable  = 0xFFFFFFFFFFFFFFFF
	fxFlagNoFrag    = 1 << 4
	fxFlagNoXattr   = 1 << 9
	fxTypeDir       = 1
	fxTypeFile      = 2
	fxTypeSymlink   = 3
	fxUncompressed  = 1 << 24
	fxMetaStoredBit = 0x8000
)

func le16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func le64(v uint64) []byte { b := make([]byte, 8); binary.LittleEndian.PutUint64(b, v); return b }

// metaBlock wraps payload in a stored-uncompressed metadata block header.
func metaBlock(payload []byte) []byte {
	var out bytes.Buffer
	out.Write(le16(uint16(len(payload)) | fxMetaStoredBit))
	out.Write(payload)
	return out.Bytes()
}

// dirEntryRecord encodes one directory entry, relative to a group's
// base_blk/base_ino.
type dirEntryRecord struct {
	offset   uint16
	inoDelta int16
	typ      uint16
	name     string
}

func encodeDirGroup(baseBlk, baseIno uint32, entries []dirEntryRecord) []byte {
	var out bytes.Buffer
	out.Write(le32(uint32(len(entries) - 1)))
	out.Write(le32(baseBlk))
	out.Write(le32(baseIno))
	for _, e := range entries {
		out.Write(le16(e.offset))
		out.Write(le16(uint16(int16(e.inoDelta))))
		out.Write(le16(e.typ))
		out.Write(le16(uint16(len(e.name) - 1)))
		out.WriteString(e.name)
	}
	return out.Bytes()
}

// buildBasicImage lays out a tiny tree:
//
//	/hello.txt   (inode 2, "hello, world")
//	/sub/        (inode 3)
//	/sub/nested.txt (inode 4, "nested data!")
//	/link.txt    (inode 5, symlink -> hello.txt)
//
// and returns the complete on-disk image bytes.
func buildBasicImage() []byte {
	helloContent := []byte("hello, world")
	nestedContent := []byte("nested data!")

	// --- inode table payload ---
	// Offsets of each inode within the (single) inode metadata block are
	// recorded as we append, since directory entries reference them.
	var inodeBuf bytes.Buffer
	writeInode := func(b []byte) uint16 {
		off := uint16(inodeBuf.Len())
		inodeBuf.Write(b)
		return off
	}

	// Placeholders: directory inodes need the directory table offsets,
	// which in turn need the inode offsets of their children. Children
	// (file/symlink inodes) don't depend on anything but data offsets, so
	// encode those first.

	dataStart := int64(96) // right after the fixed superblock
	helloBlocksStart := dataStart
	nestedBlocksStart := dataStart + int64(len(helloContent))

	fileInode := func(ino uint32, blocksStart int64, content []byte) []byte {
		var b bytes.Buffer
		b.Write(le16(fxTypeFile))
		b.Write(le16(0o644))
		b.Write(le16(0))
		b.Write(le16(0))
		b.Write(le32(0))
		b.Write(le32(ino))
		b.Write(le32(uint32(blocksStart)))
		b.Write(le32(fxNoFragIdx))
		b.Write(le32(0))
		b.Write(le32(uint32(len(content))))
		b.Write(le32(uint32(len(content)) | fxUncompressed))
		return b.Bytes()
	}

	symlinkInode := func(ino uint32, target string) []byte {
		var b bytes.Buffer
		b.Write(le16(fxTypeSymlink))
		b.Write(le16(0o777))
		b.Write(le16(0))
		b.Write(le16(0))
		b.Write(le32(0))
		b.Write(le32(ino))
		b.Write(le32(1)) // hard_links
		b.Write(le32(uint32(len(target))))
		b.WriteString(target)
		return b.Bytes()
	}

	helloOff := writeInode(fileInode(2, helloBlocksStart, helloContent))
	nestedOff := writeInode(fileInode(4, nestedBlocksStart, nestedContent))
	linkOff := writeInode(symlinkInode(5, "hello.txt"))

	// sub/ directory table region: one entry, nested.txt -> inode 4.
	subDirPayload := encodeDirGroup(0, 4, []dirEntryRecord{
		{offset: nestedOff, inoDelta: 0, typ: fxTypeFile, name: "nested.txt"},
	})
	subDirSize := uint32(len(subDirPayload)) + 3

	dirInode := func(ino uint32, dirBlock uint32, dirOffset uint16, dirSize uint32, parent uint32) []byte {
		var b bytes.Buffer
		b.Write(le16(fxTypeDir))
		b.Write(le16(0o755))
		b.Write(le16(0))
		b.Write(le16(0))
		b.Write(le32(0))
		b.Write(le32(ino))
		b.Write(le32(dirBlock))
		b.Write(le32(2)) // hard_links
		b.Write(le16(uint16(dirSize)))
		b.Write(le16(dirOffset))
		b.Write(le32(parent))
		return b.Bytes()
	}

	// sub/ directory region starts right after root's region in the same
	// directory metadata block; root's region size is computed below, so
	// reserve the offset now and fill subDirOffset once known.
	rootDirEntries := []dirEntryRecord{
		{offset: helloOff, inoDelta: 0, typ: fxTypeFile, name: "hello.txt"},
		{offset: 0 /* filled below */, inoDelta: 1, typ: fxTypeDir, name: "sub"},
		{offset: linkOff, inoDelta: 3, typ: fxTypeSymlink, name: "link.txt"},
	}
	subInodeOff := writeInode(dirInode(3, 0, 0 /* dirOffset patched below */, subDirSize, 1))
	rootDirEntries[1].offset = subInodeOff

	rootDirPayload := encodeDirGroup(0, 2, rootDirEntries)
	rootDirSize := uint32(len(rootDirPayload)) + 3

	rootInodeOff := writeInode(dirInode(1, 0, 0, rootDirSize, 1))

	// Patch the sub inode's dir_block/dir_offset: both directory regions
	// live in the same (first, blockRel=0) directory metadata block, with
	// root's region first and sub's immediately after.
	subDirOffset := uint16(len(rootDirPayload))
	patchDirInodeOffset(inodeBuf.Bytes(), subInodeOff, subDirOffset)

	inodeTableBytes := metaBlock(inodeBuf.Bytes())
	inodeTableStart := int64(nestedBlocksStart) + int64(len(nestedContent))

	// --- directory table ---
	var dirBuf bytes.Buffer
	dirBuf.Write(rootDirPayload)
	dirBuf.Write(subDirPayload)
	dirTableBytes := metaBlock(dirBuf.Bytes())
	dirTableStart := inodeTableStart + int64(len(inodeTableBytes))
	fragTableStart := dirTableStart + int64(len(dirTableBytes))

	// --- id table: single id, 0 ---
	idMetaBytes := metaBlock(le32(0))
	idMetaOffset := fragTableStart
	idPtrArray := le64(uint64(idMetaOffset))
	idTableStart := idMetaOffset + int64(len(idMetaBytes))

	bytesUsed := idTableStart + int64(len(idPtrArray))

	var img bytes.Buffer
	img.Grow(int(bytesUsed))

	// superblock, patched in after we know every offset.
	sb := make([]byte, 96)
	binary.LittleEndian.PutUint32(sb[0:], 0x73717368)
	binary.LittleEndian.PutUint32(sb[4:], 5) // inode_count
	binary.LittleEndian.PutUint32(sb[8:], 0) // mod_time
	binary.LittleEndian.PutUint32(sb[12:], fxBlockSize)
	binary.LittleEndian.PutUint32(sb[16:], 0) // frag_count
	binary.LittleEndian.PutUint16(sb[20:], 1) // compression = GZip
	binary.LittleEndian.PutUint16(sb[22:], fxBlockLog)
	binary.LittleEndian.PutUint16(sb[24:], fxFlagNoFrag|fxFlagNoXattr)
	binary.LittleEndian.PutUint16(sb[26:], 1) // id_count
	binary.LittleEndian.PutUint16(sb[28:], 4) // vmajor
	binary.LittleEndian.PutUint16(sb[30:], 0) // vminor
	binary.LittleEndian.PutUint64(sb[32:], uint64(rootInodeOff))
	binary.LittleEndian.PutUint64(sb[40:], uint64(bytesUsed))
	binary.LittleEndian.PutUint64(sb[48:], uint64(idTableStart))
	binary.LittleEndian.PutUint64(sb[56:], fxNoXattrTable)
	binary.LittleEndian.PutUint64(sb[64:], uint64(inodeTableStart))
	binary.LittleEndian.PutUint64(sb[72:], uint64(dirTableStart))
	binary.LittleEndian.PutUint64(sb[80:], uint64(fragTableStart))
	binary.LittleEndian.PutUint64(sb[88:], 0) // export_table_start, unused

	img.Write(sb)
	img.Write(helloContent)
	img.Write(nestedContent)
	img.Write(inodeTableBytes)
	img.Write(dirTableBytes)
	img.Write(idMetaBytes)
	img.Write(idPtrArray)

	return img.Bytes()
}

// patchDirInodeOffset overwrites the block_offset field (the u16 that
// follows dir_block, hard_links and file_size in a basic directory inode's
// body, after its 16-byte common header) of the inode at byte offset inoOff
// within buf. Used because the sub directory's
// region offset inside the shared directory metadata block is only known
// once the root region has been serialised.
func patchDirInodeOffset(buf []byte, inoOff uint16, dirOffset uint16) {
	// body starts at +16 (common header); dir_block u32, hard_links u32,
	// file_size u16, block_offset u16.
	pos := int(inoOff) + 16 + 4 + 4 + 2
	binary.LittleEndian.PutUint16(buf[pos:], dirOffset)
}
