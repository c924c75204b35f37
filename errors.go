package squashfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrCorruptImage is returned for any structural violation of the
	// on-disk format: bad magic, a truncated read, an impossible block
	// size, a decompression failure, an unknown inode tag, a directory
	// entry count >= 256, an xattr prefix type outside {0,1,2}, or a
	// fragment size over 1 MiB.
	ErrCorruptImage = errors.New("squashfs: corrupt image")

	// ErrUnsupportedImage is returned when the image declares a version
	// other than 4.0 or a compression id this build has no decompressor
	// registered for.
	ErrUnsupportedImage = errors.New("squashfs: unsupported image")

	// ErrPathNotFound is returned when no entry exists along a path.
	ErrPathNotFound = errors.New("squashfs: path not found")

	// ErrNotADirectory is returned when a directory-only operation
	// (ReadDir) targets a non-directory inode.
	ErrNotADirectory = errors.New("squashfs: not a directory")

	// ErrNotAFile is returned when ReadFile targets an inode that isn't a
	// regular file (basic or extended), and by Read on a directory opened
	// through Open.
	ErrNotAFile = errors.New("squashfs: not a file")

	// ErrTooManySymlinks is reserved for callers that choose to implement
	// their own symlink-following path resolution on top of GetInode,
	// which never follows symlinks itself (§9: a non-goal).
	ErrTooManySymlinks = errors.New("too many levels of symbolic links")
)
