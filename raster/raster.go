/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * PWG and URF page codec
 */

// Package raster converts uncompressed page bitmaps to and from
// PWG-Raster and URF pages.
//
// Both formats share the compression: every scanline is preceded
// by a line repeat count, and pixel groups within a line are
// encoded as runs of repeated or literal groups. The decoder is
// safe to use on untrusted input.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"

	"github.com/OpenPrinting/ipp-print/bytestream"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// MaxPageBytes limits size of the decoded page bitmap
const MaxPageBytes = 1 << 30

// initialBitmapCap is the initial capacity of the decoded bitmap
const initialBitmapCap = 1 << 20

// Longest runs
const (
	maxLineRepeat = 256
	maxGroupRun   = 128
)

// URF run code that fills the rest of line with white
const urfFillWhite = 128

// Errors
var (
	ErrTruncated    = errors.New("raster: truncated data")
	ErrBadMagic     = errors.New("raster: unknown file format")
	ErrBadHeader    = errors.New("raster: invalid page header")
	ErrLineOverflow = errors.New("raster: run exceeds page bounds")
	ErrBitmapSize   = errors.New("raster: bitmap size mismatch")
)

// EncodePage encodes one page of the emitted page sequence and
// appends header and compressed scanlines to the output. The bitmap
// layout is defined by params, page is 1-based and decides whether
// the back side transformation applies.
func EncodePage(out *bytestream.Bytestream, bitmap []byte,
	page int, params *printparams.PrintParameters) error {

	hdr, err := MakePageHeader(params, page)
	if err != nil {
		return err
	}

	if len(bitmap) != hdr.BytesPerLine*hdr.Height {
		return fmt.Errorf("%w: %d bytes, %dx%d expected",
			ErrBitmapSize, len(bitmap), hdr.BytesPerLine, hdr.Height)
	}

	hdr.Encode(out)
	encodeLines(out, bitmap, hdr)
	return nil
}

// encodeLines compresses page bitmap
func encodeLines(out *bytestream.Bytestream, bitmap []byte, hdr *PageHeader) {
	bpl := hdr.BytesPerLine
	group := hdr.groupSize()
	line := make([]byte, bpl)

	row := func(y int) []byte {
		if hdr.VFlip {
			y = hdr.Height - 1 - y
		}
		return bitmap[y*bpl : (y+1)*bpl]
	}

	for y := 0; y < hdr.Height; {
		src := row(y)

		rep := 1
		for y+rep < hdr.Height && rep < maxLineRepeat &&
			bytes.Equal(src, row(y+rep)) {
			rep++
		}

		if hdr.HFlip {
			mirror(line, src, hdr)
			src = line
		}

		out.PutU8(uint8(rep - 1))
		encodeLine(out, src, group)
		y += rep
	}
}

// encodeLine compresses one scanline
func encodeLine(out *bytestream.Bytestream, line []byte, group int) {
	n := len(line) / group
	g := func(i int) []byte {
		return line[i*group : (i+1)*group]
	}

	for i := 0; i < n; {
		// Run of repeated groups
		j := i + 1
		for j < n && j-i < maxGroupRun && bytes.Equal(g(i), g(j)) {
			j++
		}

		if j-i > 1 {
			out.PutU8(uint8(j - i - 1))
			out.PutBytes(g(i))
			i = j
			continue
		}

		// Literal groups, up to the start of the next run
		j = i + 1
		for j < n && j-i < maxGroupRun &&
			(j+1 >= n || !bytes.Equal(g(j), g(j+1))) {
			j++
		}

		if j-i == 1 {
			out.PutU8(0)
		} else {
			out.PutU8(uint8(257 - (j - i)))
		}
		out.PutBytes(line[i*group : j*group])
		i = j
	}
}

// DecodePage decodes compressed scanlines of one page, described by
// the header, and returns page bitmap with flips undone
func DecodePage(in *bytestream.Bytestream, hdr *PageHeader) ([]byte, error) {
	if err := hdr.check(); err != nil {
		return nil, err
	}

	bpl := hdr.BytesPerLine
	group := hdr.groupSize()
	white := hdr.white()

	if need := minCompressedSize(hdr); need > in.Remaining() {
		return nil, fmt.Errorf("%w: page needs at least %d bytes, %d available",
			ErrTruncated, need, in.Remaining())
	}

	// Bitmap grows as lines are decoded
	size := bpl * hdr.Height
	bitmap := make([]byte, 0, min(size, initialBitmapCap))
	line := make([]byte, bpl)

	for y := 0; y < hdr.Height; {
		rep := int(in.U8()) + 1
		if in.Err() != nil {
			return nil, fmt.Errorf("%w: line %d", ErrTruncated, y)
		}

		if y+rep > hdr.Height {
			return nil, fmt.Errorf("%w: line %d repeated %d times",
				ErrLineOverflow, y, rep)
		}

		for off := 0; off < bpl; {
			code := int(in.U8())
			if in.Err() != nil {
				return nil, fmt.Errorf("%w: line %d", ErrTruncated, y)
			}

			switch {
			case code == urfFillWhite && hdr.Format == printparams.URF:
				for ; off < bpl; off += group {
					copy(line[off:], white)
				}

			case code == urfFillWhite:
				return nil, fmt.Errorf("%w: line %d: invalid run code %d",
					ErrBadHeader, y, code)

			case code < urfFillWhite:
				cnt := (code + 1) * group
				if off+cnt > bpl {
					return nil, fmt.Errorf("%w: line %d", ErrLineOverflow, y)
				}

				pixel := in.Next(group)
				if pixel == nil {
					return nil, fmt.Errorf("%w: line %d", ErrTruncated, y)
				}

				for end := off + cnt; off < end; off += group {
					copy(line[off:], pixel)
				}

			default:
				cnt := (257 - code) * group
				if off+cnt > bpl {
					return nil, fmt.Errorf("%w: line %d", ErrLineOverflow, y)
				}

				data := in.Next(cnt)
				if data == nil {
					return nil, fmt.Errorf("%w: line %d", ErrTruncated, y)
				}

				off += copy(line[off:], data)
			}
		}

		for ; rep > 0; rep-- {
			off := len(bitmap)
			bitmap = append(bitmap, line...)
			if hdr.HFlip {
				mirror(bitmap[off:], line, hdr)
			}
			y++
		}
	}

	if hdr.VFlip {
		for i, j := 0, hdr.Height-1; i < j; i, j = i+1, j-1 {
			top := bitmap[i*bpl : (i+1)*bpl]
			bottom := bitmap[j*bpl : (j+1)*bpl]
			copy(line, top)
			copy(top, bottom)
			copy(bottom, line)
		}
	}

	return bitmap, nil
}

// minCompressedSize returns the smallest possible size of the
// compressed page data, described by the header
func minCompressedSize(hdr *PageHeader) int {
	lines := (hdr.Height + maxLineRepeat - 1) / maxLineRepeat

	perLine := 2
	if hdr.Format != printparams.URF {
		group := hdr.groupSize()
		groups := hdr.BytesPerLine / group
		perLine = 1 + (groups+maxGroupRun-1)/maxGroupRun*(1+group)
	}

	return lines * perLine
}

// mirror writes horizontally mirrored src line into dst
func mirror(dst, src []byte, hdr *PageHeader) {
	if hdr.BitsPerPixel != 1 {
		group := hdr.groupSize()
		for i, j := 0, len(src)-group; j >= 0; i, j = i+group, j-group {
			copy(dst[i:i+group], src[j:j+group])
		}
		return
	}

	if hdr.Width%8 == 0 {
		for i, j := 0, len(src)-1; j >= 0; i, j = i+1, j-1 {
			dst[i] = bits.Reverse8(src[j])
		}
		return
	}

	// Width is not byte-aligned; mirror bit by bit so the
	// padding stays at the end of line
	for i := range dst {
		dst[i] = 0
	}

	w := hdr.Width
	for x := 0; x < w; x++ {
		sx := w - 1 - x
		if src[sx/8]&(0x80>>(sx%8)) != 0 {
			dst[x/8] |= 0x80 >> (x % 8)
		}
	}
}
