/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Byte cursor for binary codecs
 */

// Package bytestream implements a growable byte buffer with a read
// cursor, used by the IPP and raster codecs.
//
// All multi-byte integers are big-endian. Reads never go past the end
// of the buffer: a short read sets a sticky error, returns zero
// values and leaves the cursor at the end, so decoders may check
// Err once after a group of reads.
package bytestream

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrShortRead is reported by Err after a read past the end of data
var ErrShortRead = errors.New("unexpected end of data")

// Bytestream is a byte buffer with a read cursor.
// Writes always append to the end of the buffer.
type Bytestream struct {
	data []byte // Buffer content
	pos  int    // Read position
	err  error  // Sticky read error
}

// New creates a Bytestream that reads from data.
// The slice is not copied.
func New(data []byte) *Bytestream {
	return &Bytestream{data: data}
}

// NewWriter creates an empty Bytestream with preallocated capacity
func NewWriter(capacity int) *Bytestream {
	return &Bytestream{data: make([]byte, 0, capacity)}
}

// Bytes returns the whole buffer content, regardless of read position
func (bs *Bytestream) Bytes() []byte {
	return bs.data
}

// Len returns the total length of the buffer
func (bs *Bytestream) Len() int {
	return len(bs.data)
}

// Pos returns the current read position
func (bs *Bytestream) Pos() int {
	return bs.pos
}

// Remaining returns count of bytes not consumed yet
func (bs *Bytestream) Remaining() int {
	return len(bs.data) - bs.pos
}

// AtEnd reports whether all data has been consumed
func (bs *Bytestream) AtEnd() bool {
	return bs.pos >= len(bs.data)
}

// Err returns the first read error, if any
func (bs *Bytestream) Err() error {
	return bs.err
}

// Reset truncates the buffer and clears the read position and error
func (bs *Bytestream) Reset() {
	bs.data = bs.data[:0]
	bs.pos = 0
	bs.err = nil
}

// fail records a short read of n bytes
func (bs *Bytestream) fail(n int) {
	if bs.err == nil {
		bs.err = fmt.Errorf("%w at offset %d (need %d, have %d)",
			ErrShortRead, bs.pos, n, bs.Remaining())
	}
	bs.pos = len(bs.data)
}

// take consumes n bytes and returns them. On short read it
// returns nil.
func (bs *Bytestream) take(n int) []byte {
	if bs.err != nil {
		return nil
	}

	if n < 0 || n > bs.Remaining() {
		bs.fail(n)
		return nil
	}

	b := bs.data[bs.pos : bs.pos+n]
	bs.pos += n
	return b
}

// U8 reads one byte
func (bs *Bytestream) U8() uint8 {
	b := bs.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a big-endian uint16
func (bs *Bytestream) U16() uint16 {
	b := bs.take(2)
	if b == nil {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

// U32 reads a big-endian uint32
func (bs *Bytestream) U32() uint32 {
	b := bs.take(4)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// I32 reads a big-endian int32
func (bs *Bytestream) I32() int32 {
	return int32(bs.U32())
}

// Next reads n bytes. The returned slice aliases the buffer.
func (bs *Bytestream) Next(n int) []byte {
	return bs.take(n)
}

// String reads n bytes as a string
func (bs *Bytestream) String(n int) string {
	return string(bs.take(n))
}

// Skip advances the read position by n bytes
func (bs *Bytestream) Skip(n int) {
	bs.take(n)
}

// Peek returns up to n bytes at the read position without consuming
// them. It never fails; fewer bytes are returned near the end.
func (bs *Bytestream) Peek(n int) []byte {
	if n > bs.Remaining() {
		n = bs.Remaining()
	}
	if n <= 0 {
		return nil
	}
	return bs.data[bs.pos : bs.pos+n]
}

// PeekU8 returns the next byte without consuming it.
// ok is false at the end of data.
func (bs *Bytestream) PeekU8() (b uint8, ok bool) {
	if bs.err != nil || bs.AtEnd() {
		return 0, false
	}
	return bs.data[bs.pos], true
}

// Match consumes prefix if the unread data starts with it and
// reports whether it did.
func (bs *Bytestream) Match(prefix []byte) bool {
	if bs.err == nil && bytes.HasPrefix(bs.data[bs.pos:], prefix) {
		bs.pos += len(prefix)
		return true
	}
	return false
}

// Sub consumes n bytes and returns them as a new independent
// Bytestream. On short read it returns an empty Bytestream.
func (bs *Bytestream) Sub(n int) *Bytestream {
	return New(bs.take(n))
}

// PutU8 appends one byte
func (bs *Bytestream) PutU8(v uint8) {
	bs.data = append(bs.data, v)
}

// PutU16 appends a big-endian uint16
func (bs *Bytestream) PutU16(v uint16) {
	bs.data = append(bs.data, byte(v>>8), byte(v))
}

// PutU32 appends a big-endian uint32
func (bs *Bytestream) PutU32(v uint32) {
	bs.data = append(bs.data, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// PutI32 appends a big-endian int32
func (bs *Bytestream) PutI32(v int32) {
	bs.PutU32(uint32(v))
}

// PutBytes appends raw bytes
func (bs *Bytestream) PutBytes(b []byte) {
	bs.data = append(bs.data, b...)
}

// PutString appends raw string bytes
func (bs *Bytestream) PutString(s string) {
	bs.data = append(bs.data, s...)
}

// PutLenString appends a string prefixed with its u16 length
func (bs *Bytestream) PutLenString(s string) {
	bs.PutU16(uint16(len(s)))
	bs.PutString(s)
}

// LenString reads a string prefixed with its u16 length
func (bs *Bytestream) LenString() string {
	n := bs.U16()
	return bs.String(int(n))
}

// PutPadded appends s truncated or zero-padded to exactly n bytes
func (bs *Bytestream) PutPadded(s string, n int) {
	if len(s) > n {
		s = s[:n]
	}
	bs.PutString(s)
	bs.PutZeros(n - len(s))
}

// PutZeros appends n zero bytes
func (bs *Bytestream) PutZeros(n int) {
	for ; n > 0; n-- {
		bs.data = append(bs.data, 0)
	}
}

// Padded reads an n-byte field and returns it up to the first NUL
func (bs *Bytestream) Padded(n int) string {
	b := bs.take(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Write implements io.Writer
func (bs *Bytestream) Write(p []byte) (int, error) {
	bs.PutBytes(p)
	return len(p), nil
}
