package squashfs

import "encoding/binary"

// cursor is a free-standing little-endian reader over a decompressed
// metadata buffer. SquashFS's reference Python implementation reads these
// primitives through a shared Mixin base class; here that becomes a plain
// value type with no inheritance, advanced explicitly by each read.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

// remaining returns how many bytes are left to read.
func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return ErrCorruptImage
	}
	return nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) i16() (int16, error) {
	v, err := c.u16()
	return int16(v), err
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

// bytes returns the next n bytes and advances the cursor. The returned slice
// aliases the underlying buffer; callers that retain it past the buffer's
// lifetime must copy.
func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// skip advances the cursor by n bytes without reading them.
func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}
