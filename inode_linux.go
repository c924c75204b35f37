//go:build linux && fuse

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
	attr.Blksize = n.img.sb.BlockSize
	attr.Atime = uint64(ino.ModTime)
	attr.Mtime = uint64(ino.ModTime)
	attr.Ctime = uint64(ino.ModTime)

	if uid, err := n.img.resolveUid(ino); err == nil {
		attr.Owner.Uid = uid
	}
	if gid, err := n.img.resolveGid(ino); err == nil {
		attr.Owner.Gid = gid
	}
}
