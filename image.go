package squashfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Image is the read-only façade (C11) over one opened SquashFS image. After
// New/Open returns, every table is fully materialised in memory and every
// subsequent call is a pure in-memory lookup, except reading file contents
// (ReadFile, or reading a File returned by Open), which decompresses the
// file's data blocks (and its fragment, if any) on demand from the byte
// source.
type Image struct {
	src    byteSource
	closer io.Closer

	sb     *superblock
	ids    []uint32
	inodes *table
	dirs   *table
	frags  []fragmentEntry
	xattrs *xattrTable
	root   *Inode

	log *logrus.Entry
}

var (
	_ fs.FS       = (*Image)(nil)
	_ fs.StatFS   = (*Image)(nil)
	_ fs.ReadDirFS = (*Image)(nil)
)

// Open opens the SquashFS image stored at path on the local filesystem.
func Open(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	img, err := New(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	img.closer = f
	return img, nil
}

// New constructs an Image over an arbitrary random-access byte source: it
// reads and validates the superblock, then materialises the id, inode,
// directory, fragment and xattr tables before parsing the root inode
// (§4.10).
func New(src io.ReaderAt, opts ...Option) (*Image, error) {
	img := &Image{src: src, log: log}
	for _, opt := range opts {
		if err := opt(img); err != nil {
			return nil, err
		}
	}

	hdr := make([]byte, superblockSize)
	if _, err := src.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("%w: reading superblock: %s", ErrCorruptImage, err)
	}
	sb, err := parseSuperblock(hdr)
	if err != nil {
		return nil, err
	}
	img.sb = sb
	img.log.WithFields(logrus.Fields{
		"compression": sb.Comp,
		"block_size":  sb.BlockSize,
		"inodes":      sb.InodeCount,
	}).Debug("parsed squashfs superblock")

	if img.ids, err = loadIDTable(src, sb.Comp, sb); err != nil {
		return nil, err
	}

	inodeTableEnd := int64(sb.DirTableStart)
	if img.inodes, err = loadTable(src, sb.Comp, int64(sb.InodeTableStart), inodeTableEnd); err != nil {
		return nil, fmt.Errorf("loading inode table: %w", err)
	}

	// §4.2: a table's end is the next table's start; directory table is
	// always immediately followed by the fragment table.
	if img.dirs, err = loadTable(src, sb.Comp, int64(sb.DirTableStart), int64(sb.FragTableStart)); err != nil {
		return nil, fmt.Errorf("loading directory table: %w", err)
	}

	if img.frags, err = loadFragmentTable(src, sb.Comp, sb); err != nil {
		return nil, err
	}

	if img.xattrs, err = loadXattrTable(src, sb.Comp, sb); err != nil {
		return nil, err
	}

	root, err := readInode(img.inodes, ref(sb.RootInodeRef), sb.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("reading root inode: %w", err)
	}
	img.root = root
	img.log.Debug("squashfs image ready")

	return img, nil
}

// Close releases the underlying byte source if Open opened it itself.
func (img *Image) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer.Close()
}

// Version returns the image's SquashFS major/minor version, always 4/0.
func (img *Image) Version() (uint16, uint16) { return img.sb.VMajor, img.sb.VMinor }

// ModTime returns the image's superblock modification time.
func (img *Image) ModTime() time.Time { return time.Unix(int64(img.sb.ModTime), 0) }

// BlockSize returns the image's data block size.
func (img *Image) BlockSize() uint32 { return img.sb.BlockSize }

// Compression returns the image's compressor id.
func (img *Image) Compression() Compression { return img.sb.Comp }

// Flags returns the image's superblock flags.
func (img *Image) Flags() Flags { return img.sb.Flags }

// BytesUsed returns the number of bytes of the backing source this image
// occupies.
func (img *Image) BytesUsed() uint64 { return img.sb.BytesUsed }

// InodeCount returns the total number of inodes in the image.
func (img *Image) InodeCount() uint32 { return img.sb.InodeCount }

// FragmentCount returns the number of entries in the fragment table.
func (img *Image) FragmentCount() uint32 { return img.sb.FragCount }

// IDCount returns the number of entries in the id table.
func (img *Image) IDCount() uint16 { return img.sb.IDCount }

// splitPath splits a slash-separated path into non-empty components. The
// whole path "." (io/fs's name for the root) yields no components.
func splitPath(path string) []string {
	if path == "." {
		return nil
	}
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetInode resolves path to its inode (§4.10 get_inode): starting from the
// root, each component is matched by a byte-exact linear scan of the
// current directory's entries. Symlinks are never followed automatically.
func (img *Image) GetInode(path string) (*Inode, error) {
	cur := img.root
	for _, name := range splitPath(path) {
		if !cur.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
		}
		entries, err := readDirEntries(img.dirs, cur.DirBlock, cur.DirOffset, cur.DirSize)
		if err != nil {
			return nil, err
		}

		var next *dirEntry
		for i := range entries {
			if entries[i].Name == name {
				next = &entries[i]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}

		child, err := readInode(img.inodes, next.ChildRef, img.sb.BlockSize)
		if err != nil {
			return nil, err
		}
		cur = child
	}
	return cur, nil
}

// ReadDirInodes returns the decoded directory entries for the directory
// inode at path, without wrapping them as fs.DirEntry.
func (img *Image) ReadDirInodes(path string) ([]dirEntry, error) {
	ino, err := img.GetInode(path)
	if err != nil {
		return nil, err
	}
	if !ino.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	return readDirEntries(img.dirs, ino.DirBlock, ino.DirOffset, ino.DirSize)
}

// xattrsFor resolves an inode's extended attributes, returning nil if the
// image carries no xattr table or the inode has none.
func (img *Image) xattrsFor(ino *Inode) ([]xattrPair, error) {
	if img.xattrs == nil {
		return nil, nil
	}
	return img.xattrs.Get(ino.XattrIdx)
}

// resolveUid/resolveGid translate an inode's id-table indices into numeric
// ids.
func (img *Image) resolveUid(ino *Inode) (uint32, error) { return idAt(img.ids, ino.UidIdx) }
func (img *Image) resolveGid(ino *Inode) (uint32, error) { return idAt(img.ids, ino.GidIdx) }

// ReadFile reads and returns the complete reconstructed contents of the
// regular file at path (§4.10 open(path)): data blocks from blks_start
// onward, with its trailing fragment appended if present. Fails with
// ErrNotAFile if path does not name a file variant.
func (img *Image) ReadFile(path string) ([]byte, error) {
	ino, err := img.GetInode(path)
	if err != nil {
		return nil, err
	}
	if !ino.IsFile() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	buf := make([]byte, ino.FileSize)
	if ino.FileSize == 0 {
		return buf, nil
	}
	fr := &fileReader{img: img, ino: ino}
	n, err := fr.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// Open implements fs.FS. The returned file additionally implements
// fs.ReadDirFile when path names a directory.
func (img *Image) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	ino, err := img.GetInode(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return img.openInode(ino, name), nil
}

// ReadDir implements fs.ReadDirFS.
func (img *Image) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	entries, err := img.ReadDirInodes(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = &direntry{img: img, name: e.Name, typ: e.Type, childRef: e.ChildRef}
	}
	return out, nil
}

// Stat implements fs.StatFS.
func (img *Image) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	ino, err := img.GetInode(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	base := name
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		base = name[idx+1:]
	}
	return &fileinfo{img: img, ino: ino, name: base}, nil
}
