/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Byte cursor tests
 */

package bytestream

import (
	"bytes"
	"errors"
	"testing"
)

// TestReadWrite checks that written integers read back unchanged
func TestReadWrite(t *testing.T) {
	bs := NewWriter(0)
	bs.PutU8(0x12)
	bs.PutU16(0x3456)
	bs.PutU32(0x789abcde)
	bs.PutI32(-2)
	bs.PutLenString("hello")
	bs.PutPadded("abc", 6)
	bs.PutPadded("truncated", 4)

	expected := []byte{
		0x12,
		0x34, 0x56,
		0x78, 0x9a, 0xbc, 0xde,
		0xff, 0xff, 0xff, 0xfe,
		0x00, 0x05, 'h', 'e', 'l', 'l', 'o',
		'a', 'b', 'c', 0, 0, 0,
		't', 'r', 'u', 'n',
	}

	if !bytes.Equal(bs.Bytes(), expected) {
		t.Fatalf("encoded:\nexpected: %x\npresent:  %x", expected, bs.Bytes())
	}

	in := New(bs.Bytes())
	if v := in.U8(); v != 0x12 {
		t.Errorf("U8: expected 0x12, present 0x%x", v)
	}
	if v := in.U16(); v != 0x3456 {
		t.Errorf("U16: expected 0x3456, present 0x%x", v)
	}
	if v := in.U32(); v != 0x789abcde {
		t.Errorf("U32: expected 0x789abcde, present 0x%x", v)
	}
	if v := in.I32(); v != -2 {
		t.Errorf("I32: expected -2, present %d", v)
	}
	if v := in.LenString(); v != "hello" {
		t.Errorf("LenString: expected %q, present %q", "hello", v)
	}
	if v := in.Padded(6); v != "abc" {
		t.Errorf("Padded: expected %q, present %q", "abc", v)
	}
	if v := in.String(4); v != "trun" {
		t.Errorf("String: expected %q, present %q", "trun", v)
	}

	if !in.AtEnd() || in.Err() != nil {
		t.Errorf("expected clean end, present pos=%d err=%v", in.Pos(), in.Err())
	}
}

// TestShortRead checks that reads past the end are safe and sticky
func TestShortRead(t *testing.T) {
	in := New([]byte{1, 2, 3})

	if v := in.U16(); v != 0x0102 {
		t.Errorf("U16: expected 0x0102, present 0x%x", v)
	}

	if v := in.U32(); v != 0 {
		t.Errorf("U32 past end: expected 0, present 0x%x", v)
	}

	if !errors.Is(in.Err(), ErrShortRead) {
		t.Errorf("expected ErrShortRead, present %v", in.Err())
	}

	// Error is sticky, subsequent reads return zero values
	if v := in.U8(); v != 0 {
		t.Errorf("U8 after error: expected 0, present %d", v)
	}

	if b := in.Next(1); b != nil {
		t.Errorf("Next after error: expected nil, present %x", b)
	}

	if !in.AtEnd() {
		t.Errorf("cursor must be at end after a short read")
	}
}

// TestPeekMatch tests Peek, PeekU8, Match and Sub
func TestPeekMatch(t *testing.T) {
	in := New([]byte("RaS2xyz"))

	if p := in.Peek(100); string(p) != "RaS2xyz" {
		t.Errorf("Peek: present %q", p)
	}

	if in.Match([]byte("UNIRAST")) {
		t.Errorf("Match: unexpected match")
	}

	if !in.Match([]byte("RaS2")) {
		t.Errorf("Match: expected match")
	}

	if b, ok := in.PeekU8(); !ok || b != 'x' {
		t.Errorf("PeekU8: expected 'x', present %q %v", b, ok)
	}

	sub := in.Sub(2)
	if sub.String(2) != "xy" || sub.Err() != nil {
		t.Errorf("Sub: bad content")
	}

	if in.Remaining() != 1 {
		t.Errorf("Remaining: expected 1, present %d", in.Remaining())
	}

	in.Skip(1)
	if _, ok := in.PeekU8(); ok {
		t.Errorf("PeekU8 at end must fail")
	}
}
