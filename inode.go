package squashfs

import (
	"fmt"
	"io/fs"
)

// noFragIdx marks a file inode with no fragment tail block.
const noFragIdx = 0xFFFFFFFF

// blockUncompressedFlag is bit 24 of a block_sizes/fragment-size entry.
const blockUncompressedFlag = 1 << 24

// blockEntry is one entry of a file inode's block-size array (§4.6): a data
// block's size and whether it is stored compressed. A zero size denotes a
// sparse hole of exactly one block_size of zero bytes.
type blockEntry struct {
	Size       uint32
	Compressed bool
}

func (b blockEntry) sparse() bool { return b.Size == 0 }

// dirIndexRecord is an extended directory's index-acceleration entry. It is
// parsed so the inode decoder can skip past it, but is never consulted for
// lookup (§9: a non-goal).
type dirIndexRecord struct {
	Index uint32
	Start uint32
	Name  string
}

// Inode is the decoded, tagged-union form of one SquashFS inode record
// (C9): a 16-byte common header plus variant-specific fields for whichever
// of the 14 tags it carries.
type Inode struct {
	Number  uint32
	Type    Type
	Perm    uint16
	UidIdx  uint16
	GidIdx  uint16
	ModTime int32

	// directory (basic + extended)
	DirBlock   uint32
	DirOffset  uint16
	DirSize    uint32
	ParentIno  uint32
	HardLinks  uint32
	DirIndexes []dirIndexRecord

	// regular file (basic + extended)
	BlocksStart uint64
	FileSize    uint64
	Sparse      uint64
	FragIdx     uint32
	FragOffset  uint32
	Blocks      []blockEntry

	// symlink
	Target []byte

	// device nodes
	Device uint32

	// present on every extended variant; 0xFFFFFFFF means "none" on basic
	// variants
	XattrIdx uint32
}

// Basic reports whether the inode's tag is a non-extended variant.
func (i *Inode) Basic() bool { return !i.Type.Extended() }

func (i *Inode) IsDir() bool       { return i.Type.IsDir() }
func (i *Inode) IsFile() bool      { return i.Type.IsFile() }
func (i *Inode) IsSymlink() bool   { return i.Type.IsSymlink() }
func (i *Inode) IsBlockDev() bool  { return i.Type.IsBlockDev() }
func (i *Inode) IsCharDev() bool   { return i.Type.IsCharDev() }
func (i *Inode) IsFifo() bool      { return i.Type.IsFifo() }
func (i *Inode) IsSocket() bool    { return i.Type.IsSocket() }

// Major and Minor split a block/char device inode's packed Device field
// into its major/minor numbers, using the same encoding as Linux's
// new_decode_dev (also what squashfs-tools packs on creation).
func (i *Inode) Major() uint32 {
	return (i.Device & 0xfff00) >> 8
}

func (i *Inode) Minor() uint32 {
	return (i.Device & 0xff) | ((i.Device >> 12) & 0xfff00)
}

// Mode returns the fs.FileMode corresponding to this inode's permission
// bits and type.
func (i *Inode) Mode() fs.FileMode {
	return UnixToMode(uint32(i.Perm)) | i.Type.Mode()
}

// numFileBlocks computes N, the length of a file inode's block_sizes array
// (§4.6): rounded up unless the file ends in a fragment, in which case it
// is rounded down (the remainder lives in the fragment).
func numFileBlocks(fileSize uint64, fragIdx uint32, blockSize uint32) int {
	if fragIdx == noFragIdx {
		return int((fileSize + uint64(blockSize) - 1) / uint64(blockSize))
	}
	return int(fileSize / uint64(blockSize))
}

// readInode decodes the inode located at ref r within the materialised
// inode table.
func readInode(inodes *table, r ref, blockSize uint32) (*Inode, error) {
	c, err := inodes.at(r.block(), int(r.offset()))
	if err != nil {
		return nil, fmt.Errorf("resolving inode ref %s: %w", r, err)
	}
	return decodeInode(c, blockSize)
}

func decodeInode(c *cursor, blockSize uint32) (*Inode, error) {
	ino := &Inode{}

	var err error
	typ, err := c.u16()
	if err != nil {
		return nil, err
	}
	ino.Type = Type(typ)
	if ino.Perm, err = c.u16(); err != nil {
		return nil, err
	}
	if ino.UidIdx, err = c.u16(); err != nil {
		return nil, err
	}
	if ino.GidIdx, err = c.u16(); err != nil {
		return nil, err
	}
	modTime, err := c.u32()
	if err != nil {
		return nil, err
	}
	ino.ModTime = int32(modTime)
	if ino.Number, err = c.u32(); err != nil {
		return nil, err
	}
	ino.XattrIdx = noXattrIdx

	switch ino.Type {
	case DirType:
		err = decodeBasicDir(c, ino)
	case FileType:
		err = decodeBasicFile(c, ino, blockSize)
	case SymlinkType:
		err = decodeSymlink(c, ino, false)
	case BlockDevType, CharDevType:
		err = decodeDev(c, ino, false)
	case FifoType, SocketType:
		err = decodeFifoSocket(c, ino, false)
	case XDirType:
		err = decodeExtDir(c, ino)
	case XFileType:
		err = decodeExtFile(c, ino, blockSize)
	case XSymlinkType:
		err = decodeSymlink(c, ino, true)
	case XBlockDevType, XCharDevType:
		err = decodeDev(c, ino, true)
	case XFifoType, XSocketType:
		err = decodeFifoSocket(c, ino, true)
	default:
		return nil, fmt.Errorf("%w: unknown inode tag %d", ErrCorruptImage, ino.Type)
	}
	if err != nil {
		return nil, err
	}
	return ino, nil
}

func decodeBasicDir(c *cursor, ino *Inode) error {
	blkIdx, err := c.u32()
	if err != nil {
		return err
	}
	ino.DirBlock = blkIdx
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	fileSize, err := c.u16()
	if err != nil {
		return err
	}
	ino.DirSize = uint32(fileSize)
	blkOfft, err := c.u16()
	if err != nil {
		return err
	}
	ino.DirOffset = blkOfft
	if ino.ParentIno, err = c.u32(); err != nil {
		return err
	}
	return nil
}

func decodeExtDir(c *cursor, ino *Inode) error {
	var err error
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	if ino.DirSize, err = c.u32(); err != nil {
		return err
	}
	if ino.DirBlock, err = c.u32(); err != nil {
		return err
	}
	if ino.ParentIno, err = c.u32(); err != nil {
		return err
	}
	indexCount, err := c.u16()
	if err != nil {
		return err
	}
	if ino.DirOffset, err = c.u16(); err != nil {
		return err
	}
	if ino.XattrIdx, err = c.u32(); err != nil {
		return err
	}

	ino.DirIndexes = make([]dirIndexRecord, indexCount)
	for i := range ino.DirIndexes {
		index, err := c.u32()
		if err != nil {
			return err
		}
		start, err := c.u32()
		if err != nil {
			return err
		}
		nameSize, err := c.u32()
		if err != nil {
			return err
		}
		name, err := c.bytes(int(nameSize) + 1)
		if err != nil {
			return err
		}
		ino.DirIndexes[i] = dirIndexRecord{Index: index, Start: start, Name: string(name)}
	}
	return nil
}

func decodeBlockSizes(c *cursor, n int) ([]blockEntry, error) {
	blocks := make([]blockEntry, n)
	for i := range blocks {
		raw, err := c.u32()
		if err != nil {
			return nil, err
		}
		blocks[i] = blockEntry{
			Size:       raw &^ blockUncompressedFlag,
			Compressed: raw&blockUncompressedFlag == 0,
		}
	}
	return blocks, nil
}

func decodeBasicFile(c *cursor, ino *Inode, blockSize uint32) error {
	blkStart, err := c.u32()
	if err != nil {
		return err
	}
	ino.BlocksStart = uint64(blkStart)
	if ino.FragIdx, err = c.u32(); err != nil {
		return err
	}
	if ino.FragOffset, err = c.u32(); err != nil {
		return err
	}
	fileSize, err := c.u32()
	if err != nil {
		return err
	}
	ino.FileSize = uint64(fileSize)

	n := numFileBlocks(ino.FileSize, ino.FragIdx, blockSize)
	blocks, err := decodeBlockSizes(c, n)
	if err != nil {
		return err
	}
	ino.Blocks = blocks
	return nil
}

func decodeExtFile(c *cursor, ino *Inode, blockSize uint32) error {
	var err error
	if ino.BlocksStart, err = c.u64(); err != nil {
		return err
	}
	if ino.FileSize, err = c.u64(); err != nil {
		return err
	}
	if ino.Sparse, err = c.u64(); err != nil {
		return err
	}
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	if ino.FragIdx, err = c.u32(); err != nil {
		return err
	}
	if ino.FragOffset, err = c.u32(); err != nil {
		return err
	}
	if ino.XattrIdx, err = c.u32(); err != nil {
		return err
	}

	n := numFileBlocks(ino.FileSize, ino.FragIdx, blockSize)
	blocks, err := decodeBlockSizes(c, n)
	if err != nil {
		return err
	}
	ino.Blocks = blocks
	return nil
}

const maxSymlinkTarget = 4096

func decodeSymlink(c *cursor, ino *Inode, extended bool) error {
	var err error
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	targetSize, err := c.u32()
	if err != nil {
		return err
	}
	if targetSize > maxSymlinkTarget {
		return fmt.Errorf("%w: symlink target size %d exceeds %d", ErrCorruptImage, targetSize, maxSymlinkTarget)
	}
	target, err := c.bytes(int(targetSize))
	if err != nil {
		return err
	}
	ino.Target = append([]byte(nil), target...)

	if extended {
		if ino.XattrIdx, err = c.u32(); err != nil {
			return err
		}
	}
	return nil
}

func decodeDev(c *cursor, ino *Inode, extended bool) error {
	var err error
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	if ino.Device, err = c.u32(); err != nil {
		return err
	}
	if extended {
		if ino.XattrIdx, err = c.u32(); err != nil {
			return err
		}
	}
	return nil
}

func decodeFifoSocket(c *cursor, ino *Inode, extended bool) error {
	var err error
	if ino.HardLinks, err = c.u32(); err != nil {
		return err
	}
	if extended {
		if ino.XattrIdx, err = c.u32(); err != nil {
			return err
		}
	}
	return nil
}
