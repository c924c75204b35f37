//go:build fuse

package squashfs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseNode pairs an Inode with the Image it was read from so the FUSE
// binding can resolve directory entries, ids and xattrs without the core
// Inode type carrying a back-reference to its image (C12, mount
// collaborator — not a core module, built only behind the fuse tag).
type fuseNode struct {
	img *Image
	ino *Inode
}

// rootNode returns the fuseNode for the image's root inode.
func (img *Image) rootNode() *fuseNode {
	return &fuseNode{img: img, ino: img.root}
}

// Lookup resolves a single path component against n's directory entries.
// Symlinks are never followed automatically, matching the rest of the
// package's read API.
func (n *fuseNode) Lookup(ctx context.Context, name string) (*fuseNode, error) {
	if !n.ino.IsDir() {
		return nil, os.ErrInvalid
	}
	entries, err := readDirEntries(n.img.dirs, n.ino.DirBlock, n.ino.DirOffset, n.ino.DirSize)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		child, err := readInode(n.img.inodes, e.ChildRef, n.img.sb.BlockSize)
		if err != nil {
			return nil, err
		}
		return &fuseNode{img: n.img, ino: child}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPathNotFound, name)
}

func (n *fuseNode) Open(flags uint32) (uint32, error) {
	// squashfs images are read-only and never change underfoot.
	return fuse.FOPEN_KEEP_CACHE, nil
}

func (n *fuseNode) OpenDir() (uint32, error) {
	if n.ino.IsDir() {
		return fuse.FOPEN_KEEP_CACHE, nil
	}
	return 0, os.ErrInvalid
}

// publicInodeNum maps the on-disk inode number to one usable in a mount:
// FUSE requires the root to be inode 1, so the root's raw number and
// raw inode 1 (if distinct) are swapped.
func (n *fuseNode) publicInodeNum() uint64 {
	root := n.img.root
	switch n.ino.Number {
	case root.Number:
		return 1
	case 1:
		return uint64(root.Number)
	default:
		return uint64(n.ino.Number)
	}
}

func (n *fuseNode) fillEntry(entry *fuse.EntryOut) {
	entry.NodeId = n.publicInodeNum()
	entry.Attr.Ino = entry.NodeId
	n.fillAttr(&entry.Attr)
	entry.SetEntryTimeout(time.Second)
	entry.SetAttrTimeout(time.Second)
}

func (n *fuseNode) ReadDir(input *fuse.ReadIn, out *fuse.DirEntryList, plus bool) error {
	if !n.ino.IsDir() {
		return os.ErrInvalid
	}
	entries, err := readDirEntries(n.img.dirs, n.ino.DirBlock, n.ino.DirOffset, n.ino.DirSize)
	if err != nil {
		return err
	}

	pos := input.Offset + 1
	cur := uint64(0)

	add := func(cur uint64, name string, ino *Inode) bool {
		if cur < pos {
			return true
		}
		child := &fuseNode{img: n.img, ino: ino}
		if !plus {
			return out.Add(0, name, child.publicInodeNum(), uint32(ino.Perm))
		}
		entry := out.AddDirLookupEntry(fuse.DirEntry{Mode: uint32(ino.Perm), Name: name, Ino: child.publicInodeNum()})
		if entry == nil {
			return false
		}
		child.fillEntry(entry)
		return true
	}

	cur++
	if !add(cur, ".", n.ino) {
		return nil
	}
	cur++
	if !add(cur, "..", n.ino) {
		return nil
	}

	for _, e := range entries {
		cur++
		if cur < pos {
			continue
		}
		child, err := readInode(n.img.inodes, e.ChildRef, n.img.sb.BlockSize)
		if err != nil {
			return err
		}
		if !add(cur, e.Name, child) {
			return nil
		}
	}
	return nil
}
