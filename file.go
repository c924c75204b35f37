package squashfs

import (
	"fmt"
	"io"
	"io/fs"
	"time"
)

// fileReader adapts an Image+Inode pair into an io.ReaderAt over the
// file's reconstructed logical byte stream: full data blocks (honouring
// the sparse-hole and stored-uncompressed flags) followed, if the inode
// carries a fragment, by the tail slice of a shared fragment block.
type fileReader struct {
	img *Image
	ino *Inode
}

func (fr *fileReader) ReadAt(p []byte, off int64) (int, error) {
	ino := fr.ino
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrCorruptImage)
	}
	if uint64(off) >= ino.FileSize {
		return 0, io.EOF
	}
	if uint64(off)+uint64(len(p)) > ino.FileSize {
		p = p[:ino.FileSize-uint64(off)]
	}

	blockSize := uint64(fr.img.sb.BlockSize)
	blockIdx := uint64(off) / blockSize
	blockOfft := uint64(off) % blockSize

	var cum uint64
	for i := uint64(0); i < blockIdx; i++ {
		cum += uint64(ino.Blocks[i].Size)
	}

	n := 0
	for len(p) > 0 {
		var buf []byte

		switch {
		case int(blockIdx) < len(ino.Blocks):
			be := ino.Blocks[blockIdx]
			if be.sparse() {
				remaining := ino.FileSize - blockIdx*blockSize
				l := blockSize
				if remaining < l {
					l = remaining
				}
				buf = make([]byte, l)
			} else {
				raw := make([]byte, be.Size)
				if _, err := fr.img.src.ReadAt(raw, int64(ino.BlocksStart+cum)); err != nil {
					return n, fmt.Errorf("%w: reading data block %d: %s", ErrCorruptImage, blockIdx, err)
				}
				if be.Compressed {
					var err error
					buf, err = fr.img.sb.Comp.decompress(raw)
					if err != nil {
						return n, err
					}
				} else {
					buf = raw
				}
				cum += uint64(be.Size)
			}
			blockIdx++
		case ino.FragIdx != noFragIdx:
			fbuf, err := fr.img.frags[ino.FragIdx].read(fr.img.src, fr.img.sb.Comp)
			if err != nil {
				return n, err
			}
			tailLen := ino.FileSize - uint64(len(ino.Blocks))*blockSize
			start := uint64(ino.FragOffset)
			if start+tailLen > uint64(len(fbuf)) {
				return n, fmt.Errorf("%w: fragment tail out of range", ErrCorruptImage)
			}
			buf = fbuf[start : start+tailLen]
			blockIdx++
		default:
			return n, io.EOF
		}

		if blockOfft > 0 {
			if uint64(len(buf)) <= blockOfft {
				buf = nil
			} else {
				buf = buf[blockOfft:]
			}
			blockOfft = 0
		}

		c := copy(p, buf)
		n += c
		p = p[c:]
	}
	return n, nil
}

// File is a convenience wrapper presenting a regular-file inode as an
// fs.File (and io.ReaderAt via its embedded SectionReader).
type File struct {
	*io.SectionReader
	img  *Image
	ino  *Inode
	name string
}

// FileDir presents a directory inode as an fs.ReadDirFile.
type FileDir struct {
	img     *Image
	ino     *Inode
	name    string
	entries []dirEntry
	pos     int
}

type fileinfo struct {
	img  *Image
	ino  *Inode
	name string
}

type direntry struct {
	img      *Image
	name     string
	typ      Type
	childRef ref
}

var (
	_ fs.File         = (*File)(nil)
	_ io.ReaderAt     = (*File)(nil)
	_ fs.ReadDirFile  = (*FileDir)(nil)
	_ fs.FileInfo     = (*fileinfo)(nil)
	_ fs.DirEntry     = (*direntry)(nil)
)

// openInode returns a fs.File for ino, a directory-aware FileDir if ino is
// a directory variant.
func (img *Image) openInode(ino *Inode, name string) fs.File {
	if ino.IsDir() {
		return &FileDir{img: img, ino: ino, name: name}
	}
	sec := io.NewSectionReader(&fileReader{img: img, ino: ino}, 0, int64(ino.FileSize))
	return &File{SectionReader: sec, img: img, ino: ino, name: name}
}

func (f *File) Stat() (fs.FileInfo, error) {
	return &fileinfo{img: f.img, ino: f.ino, name: baseName(f.name)}, nil
}

// Sys returns the *Inode backing this file.
func (f *File) Sys() any { return f.ino }

func (f *File) Close() error { return nil }

func (d *FileDir) Read(p []byte) (int, error) { return 0, fmt.Errorf("%w: is a directory", ErrNotAFile) }

func (d *FileDir) Stat() (fs.FileInfo, error) {
	return &fileinfo{img: d.img, ino: d.ino, name: baseName(d.name)}, nil
}

func (d *FileDir) Sys() any { return d.ino }

func (d *FileDir) Close() error { return nil }

func (d *FileDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		entries, err := readDirEntries(d.img.dirs, d.ino.DirBlock, d.ino.DirOffset, d.ino.DirSize)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		if d.entries == nil {
			d.entries = []dirEntry{}
		}
	}

	if d.pos >= len(d.entries) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}

	remaining := d.entries[d.pos:]
	if n > 0 && n < len(remaining) {
		remaining = remaining[:n]
	}
	d.pos += len(remaining)

	out := make([]fs.DirEntry, len(remaining))
	for i, e := range remaining {
		out[i] = &direntry{img: d.img, name: e.Name, typ: e.Type, childRef: e.ChildRef}
	}
	return out, nil
}

func (de *direntry) Name() string { return de.name }

func (de *direntry) IsDir() bool { return de.typ.IsDir() }

func (de *direntry) Type() fs.FileMode { return de.typ.Mode() }

func (de *direntry) Info() (fs.FileInfo, error) {
	ino, err := readInode(de.img.inodes, de.childRef, de.img.sb.BlockSize)
	if err != nil {
		return nil, err
	}
	return &fileinfo{img: de.img, ino: ino, name: de.name}, nil
}

func (fi *fileinfo) Name() string { return fi.name }

func (fi *fileinfo) Size() int64 { return int64(fi.ino.FileSize) }

func (fi *fileinfo) Mode() fs.FileMode { return fi.ino.Mode() }

// ModTime returns the inode's modification time. SquashFS stores this as
// an int32 Unix timestamp, so it stops working after 2038.
func (fi *fileinfo) ModTime() time.Time { return time.Unix(int64(fi.ino.ModTime), 0) }

func (fi *fileinfo) IsDir() bool { return fi.ino.IsDir() }

// Sys returns the *Inode backing this FileInfo.
func (fi *fileinfo) Sys() any { return fi.ino }

// Uid returns the file's numeric owner id, resolved through the id table.
func (fi *fileinfo) Uid() (uint32, error) { return fi.img.resolveUid(fi.ino) }

// Gid returns the file's numeric group id, resolved through the id table.
func (fi *fileinfo) Gid() (uint32, error) { return fi.img.resolveGid(fi.ino) }

// Xattrs returns this file's extended attributes in on-disk order, or nil
// if it has none or the image carries no xattr table.
func (fi *fileinfo) Xattrs() ([]xattrPair, error) { return fi.img.xattrsFor(fi.ino) }

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
