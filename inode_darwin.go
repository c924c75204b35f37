//go:build darwin && fuse

package squashfs

import (
	"github.com/hanwen/go-fuse/v2/fuse"
)

func (n *fuseNode) fillAttr(attr *fuse.Attr) {
	ino := n.ino
	attr.Size = ino.FileSize
	attr.Blocks = uint64(len(ino.Blocks)) + 1
	attr.Mode = ModeToUnix(ino.Mode())
	attr.Nlink = ino.HardLinks
	if attr.Nlink == 0 {
		attr.Nlink = 1
	}
	attr.Atime = uint64(ino.ModTime)
	attr.Mtime = uint64(ino.ModTime)
	attr.Ctime = uint64(ino.ModTime)
}
