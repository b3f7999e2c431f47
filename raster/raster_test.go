/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * PWG and URF codec test
 */

package raster

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/OpenPrinting/ipp-print/bytestream"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// Pixel colors of the test image
var (
	cW = []byte{0xff, 0xff, 0xff}
	cY = []byte{0xff, 0xff, 0x00}
	cG = []byte{0x00, 0xff, 0x00}
	cB = []byte{0x00, 0x00, 0xff}
	cR = []byte{0xff, 0x00, 0x00}
)

// pacman is the 8x8 test image
var pacman = [8][8][]byte{
	{cW, cY, cY, cY, cW, cW, cW, cW},
	{cY, cY, cY, cY, cY, cW, cW, cW},
	{cY, cY, cY, cW, cW, cG, cB, cR},
	{cY, cY, cW, cW, cW, cW, cW, cW},
	{cY, cY, cW, cW, cW, cW, cW, cW},
	{cY, cY, cY, cW, cW, cW, cW, cW},
	{cY, cY, cY, cY, cY, cW, cW, cW},
	{cW, cY, cY, cY, cW, cW, cW, cW},
}

// pacmanLines is the expected compressed form of pacman
var pacmanLines = bytes.Join([][]byte{
	{0x00, 0x00}, cW, {0x02}, cY, {0x03}, cW,
	{0x00, 0x04}, cY, {0x02}, cW,
	{0x00, 0x02}, cY, {0x01}, cW, {0xfe}, cG, cB, cR,
	{0x01, 0x01}, cY, {0x05}, cW,
	{0x00, 0x02}, cY, {0x04}, cW,
	{0x00, 0x04}, cY, {0x02}, cW,
	{0x00, 0x00}, cW, {0x02}, cY, {0x03}, cW,
}, nil)

// pacmanBitmap returns the test image bitmap
func pacmanBitmap() []byte {
	var bitmap []byte
	for _, row := range pacman {
		for _, px := range row {
			bitmap = append(bitmap, px...)
		}
	}
	return bitmap
}

// testParams returns parameters of the w x h pixels page
func testParams(format printparams.Format, mode printparams.ColorMode,
	w, h int) *printparams.PrintParameters {

	p := printparams.Defaults()
	p.Format = format
	p.ColorMode = mode
	p.PaperSizeUnits = printparams.Pixels
	p.PaperSizeW = float64(w)
	p.PaperSizeH = float64(h)
	return &p
}

// TestPacman tests compression of the test image against the
// known byte sequence
func TestPacman(t *testing.T) {
	for _, format := range []printparams.Format{printparams.PWG, printparams.URF} {
		params := testParams(format, printparams.SRGB24, 8, 8)
		out := bytestream.NewWriter(0)

		err := EncodePage(out, pacmanBitmap(), 1, params)
		if err != nil {
			t.Fatalf("%s: %s", format, err)
		}

		hdrSize := PWGHeaderSize
		if format == printparams.URF {
			hdrSize = URFHeaderSize
		}

		data := out.Bytes()
		if len(data) < hdrSize {
			t.Fatalf("%s: page too short: %d bytes", format, len(data))
		}

		if lines := data[hdrSize:]; !bytes.Equal(lines, pacmanLines) {
			t.Errorf("%s: compressed lines mismatch:\nexpected: % x\npresent:  % x",
				format, pacmanLines, lines)
		}

		in := bytestream.New(data)
		hdr, err := DecodePageHeader(in, format)
		if err != nil {
			t.Fatalf("%s: DecodePageHeader: %s", format, err)
		}

		bitmap, err := DecodePage(in, hdr)
		if err != nil {
			t.Fatalf("%s: DecodePage: %s", format, err)
		}

		if !bytes.Equal(bitmap, pacmanBitmap()) {
			t.Errorf("%s: decoded bitmap mismatch", format)
		}

		if !in.AtEnd() {
			t.Errorf("%s: %d bytes left after page", format, in.Remaining())
		}
	}
}

// testBitmap generates bitmap of the named pattern
func testBitmap(pattern string, size, bpl int) []byte {
	bitmap := make([]byte, size)
	rnd := rand.New(rand.NewSource(int64(size)))

	switch pattern {
	case "solid":
		for i := range bitmap {
			bitmap[i] = 0x5a
		}
	case "white":
		for i := range bitmap {
			bitmap[i] = 0xff
		}
	case "checker":
		for i := range bitmap {
			if (i/3+i/bpl)%2 == 0 {
				bitmap[i] = 0xff
			}
		}
	case "noise":
		rnd.Read(bitmap)
	case "stripes":
		// Long runs of repeated lines and groups
		for i := range bitmap {
			if (i/bpl/300)%2 == 0 {
				bitmap[i] = 0x80
			}
		}
	}

	return bitmap
}

// TestRoundTrip checks that decoding of encoded page gives the
// original bitmap, for all formats, color modes and flips
func TestRoundTrip(t *testing.T) {
	type testData struct {
		format printparams.Format
		mode   printparams.ColorMode
	}

	tests := []testData{
		{printparams.PWG, printparams.SRGB24},
		{printparams.PWG, printparams.CMYK32},
		{printparams.PWG, printparams.Gray8},
		{printparams.PWG, printparams.Black8},
		{printparams.PWG, printparams.Gray1},
		{printparams.PWG, printparams.Black1},
		{printparams.URF, printparams.SRGB24},
		{printparams.URF, printparams.CMYK32},
		{printparams.URF, printparams.Gray8},
	}

	patterns := []string{"solid", "white", "checker", "noise", "stripes"}
	xforms := []printparams.BackXform{
		printparams.Normal,
		printparams.Rotated,
		printparams.Flipped,
		printparams.ManualTumble,
	}

	for _, test := range tests {
		// Odd width checks 1-bit lines that are not byte-aligned
		params := testParams(test.format, test.mode, 301, 700)
		params.Duplex = printparams.TwoSidedShortEdge

		for _, pattern := range patterns {
			bitmap := testBitmap(pattern, params.PaperSizeInBytes(),
				params.PaperSizeWInBytes())

			if params.ColorMode.BitsPerPixel() == 1 {
				// Clear padding bits of each line
				bpl := params.PaperSizeWInBytes()
				for i := bpl - 1; i < len(bitmap); i += bpl {
					bitmap[i] &= 0xf0
				}
			}

			for _, xform := range xforms {
				params.BackXform = xform

				// Page 2 is the back side
				for page := 1; page <= 2; page++ {
					out := bytestream.NewWriter(0)
					err := EncodePage(out, bitmap, page, params)
					if err != nil {
						t.Fatalf("%s/%s: %s", test.format, test.mode, err)
					}

					in := bytestream.New(out.Bytes())
					hdr, err := DecodePageHeader(in, test.format)
					if err != nil {
						t.Fatalf("%s/%s: %s", test.format, test.mode, err)
					}

					if test.format == printparams.URF && page == 2 {
						hdr.HFlip = params.BackHFlip()
						hdr.VFlip = params.BackVFlip()
					}

					decoded, err := DecodePage(in, hdr)
					if err != nil {
						t.Fatalf("%s/%s/%s/%s page %d: %s",
							test.format, test.mode, pattern, xform, page, err)
					}

					if !bytes.Equal(decoded, bitmap) {
						t.Errorf("%s/%s/%s/%s page %d: bitmap mismatch",
							test.format, test.mode, pattern, xform, page)
					}
				}
			}
		}
	}
}

// TestFlipApplied checks that back side pages are encoded mirrored
func TestFlipApplied(t *testing.T) {
	params := testParams(printparams.PWG, printparams.SRGB24, 8, 8)
	params.Duplex = printparams.TwoSidedLongEdge
	params.BackXform = printparams.Rotated

	out := bytestream.NewWriter(0)
	if err := EncodePage(out, pacmanBitmap(), 2, params); err != nil {
		t.Fatalf("%s", err)
	}

	in := bytestream.New(out.Bytes())
	hdr, err := DecodePageHeader(in, printparams.PWG)
	if err != nil {
		t.Fatalf("%s", err)
	}

	if !hdr.HFlip || !hdr.VFlip {
		t.Fatalf("transform not recorded: h=%v v=%v", hdr.HFlip, hdr.VFlip)
	}

	// Decode without undoing flips
	hdr.HFlip, hdr.VFlip = false, false
	bitmap, err := DecodePage(in, hdr)
	if err != nil {
		t.Fatalf("%s", err)
	}

	// Rotated page: last pixel of the last line goes first
	expected := pacmanBitmap()
	for i, j := 0, len(expected)-3; i < j; i, j = i+3, j-3 {
		for k := 0; k < 3; k++ {
			expected[i+k], expected[j+k] = expected[j+k], expected[i+k]
		}
	}

	if !bytes.Equal(bitmap, expected) {
		t.Errorf("rotated bitmap mismatch")
	}
}

// TestHeaders tests page and file headers
func TestHeaders(t *testing.T) {
	params := printparams.Defaults()
	params.Format = printparams.PWG
	params.ColorMode = printparams.Black1
	params.Duplex = printparams.TwoSidedShortEdge
	params.Quality = printparams.HighQuality
	params.MediaType = "stationery"
	params.HwResW, params.HwResH = 600, 300

	hdr, err := MakePageHeader(&params, 1)
	if err != nil {
		t.Fatalf("%s", err)
	}

	out := bytestream.NewWriter(0)
	hdr.Encode(out)
	if out.Len() != PWGHeaderSize {
		t.Errorf("PWG header: expected %d bytes, present %d",
			PWGHeaderSize, out.Len())
	}

	hdr2, err := DecodePageHeader(bytestream.New(out.Bytes()), printparams.PWG)
	if err != nil {
		t.Fatalf("%s", err)
	}

	if *hdr2 != *hdr {
		t.Errorf("PWG header mismatch:\nexpected: %+v\npresent:  %+v", hdr, hdr2)
	}

	if mode, ok := hdr2.ColorMode(); !ok || mode != printparams.Black1 {
		t.Errorf("PWG color mode: %s %v", mode, ok)
	}

	params.Format = printparams.URF
	if _, err = MakePageHeader(&params, 1); !errors.Is(err, ErrBadHeader) {
		t.Errorf("URF black1: ErrBadHeader expected, present %v", err)
	}

	params.ColorMode = printparams.SRGB24
	params.HwResW, params.HwResH = 300, 300
	hdr, err = MakePageHeader(&params, 1)
	if err != nil {
		t.Fatalf("%s", err)
	}

	out = bytestream.NewWriter(0)
	hdr.Encode(out)
	data := out.Bytes()
	if len(data) != URFHeaderSize {
		t.Errorf("URF header: expected %d bytes, present %d",
			URFHeaderSize, len(data))
	}

	if data[0] != 24 || data[1] != 1 || data[2] != 2 || data[3] != 5 {
		t.Errorf("URF header: % x", data[:4])
	}

	hdr2, err = DecodePageHeader(bytestream.New(data), printparams.URF)
	if err != nil {
		t.Fatalf("%s", err)
	}

	if hdr2.Width != hdr.Width || hdr2.Height != hdr.Height ||
		hdr2.ResX != 300 || !hdr2.Duplex || !hdr2.Tumble {
		t.Errorf("URF header mismatch:\nexpected: %+v\npresent:  %+v", hdr, hdr2)
	}

	// Duplex byte: 1 simplex, 2 short edge, 3 long edge
	for _, d := range []struct {
		duplex printparams.Duplex
		code   byte
	}{
		{printparams.OneSided, 1},
		{printparams.TwoSidedShortEdge, 2},
		{printparams.TwoSidedLongEdge, 3},
	} {
		params.Duplex = d.duplex
		hdr, err = MakePageHeader(&params, 1)
		if err != nil {
			t.Fatalf("%s", err)
		}

		out = bytestream.NewWriter(0)
		hdr.Encode(out)
		if code := out.Bytes()[2]; code != d.code {
			t.Errorf("URF duplex %s: expected %d, present %d",
				d.duplex.Sides(), d.code, code)
		}
	}
	params.Duplex = printparams.TwoSidedShortEdge

	// File headers
	fh := FileHeader(&params, 3)
	if !bytes.Equal(fh, []byte("UNIRAST\x00\x00\x00\x00\x03")) {
		t.Errorf("URF file header: % x", fh)
	}

	format, pages, err := DecodeFileHeader(bytestream.New(fh))
	if err != nil || format != printparams.URF || pages != 3 {
		t.Errorf("URF file header decode: %s %d %v", format, pages, err)
	}

	params.Format = printparams.PWG
	fh = FileHeader(&params, 3)
	if !bytes.Equal(fh, []byte("RaS2")) {
		t.Errorf("PWG file header: % x", fh)
	}

	_, _, err = DecodeFileHeader(bytestream.New([]byte("RaS3")))
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("bad magic: ErrBadMagic expected, present %v", err)
	}

	_, _, err = DecodeFileHeader(bytestream.New([]byte("UNIRAST\x00\x00")))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("short URF header: ErrTruncated expected, present %v", err)
	}
}

// TestFillWhite tests the URF fill-with-white run code
func TestFillWhite(t *testing.T) {
	type testData struct {
		mode  printparams.ColorMode
		white []byte
	}

	tests := []testData{
		{printparams.SRGB24, []byte{0xff, 0xff, 0xff}},
		{printparams.CMYK32, []byte{0, 0, 0, 0}},
		{printparams.Gray8, []byte{0xff}},
	}

	for _, test := range tests {
		params := testParams(printparams.URF, test.mode, 4, 1)
		hdr, err := MakePageHeader(params, 1)
		if err != nil {
			t.Fatalf("%s", err)
		}

		group := len(test.white)
		pixel := bytes.Repeat([]byte{0x42}, group)

		// One pixel, then fill
		data := append([]byte{0x00, 0x00}, pixel...)
		data = append(data, urfFillWhite)

		bitmap, err := DecodePage(bytestream.New(data), hdr)
		if err != nil {
			t.Fatalf("%s: %s", test.mode, err)
		}

		expected := append(append([]byte(nil), pixel...),
			bytes.Repeat(test.white, 3)...)
		if !bytes.Equal(bitmap, expected) {
			t.Errorf("%s: expected % x, present % x", test.mode, expected, bitmap)
		}

		// Same code is invalid in PWG
		hdr.Format = printparams.PWG
		if _, err = DecodePage(bytestream.New(data), hdr); err == nil {
			t.Errorf("%s: PWG must reject code 128", test.mode)
		}
	}
}

// TestDecodeErrors tests decoding of damaged pages
func TestDecodeErrors(t *testing.T) {
	params := testParams(printparams.PWG, printparams.Gray8, 4, 2)
	hdr, err := MakePageHeader(params, 1)
	if err != nil {
		t.Fatalf("%s", err)
	}

	type testData struct {
		data []byte
		err  error
	}

	tests := []testData{
		{[]byte{}, ErrTruncated},
		{[]byte{0x00}, ErrTruncated},
		{[]byte{0x00, 0x03}, ErrTruncated},
		{[]byte{0x00, 0xfd, 1, 2}, ErrTruncated},
		{[]byte{0x02, 0x03, 0xff}, ErrLineOverflow},
		{[]byte{0x00, 0x04, 0xff}, ErrLineOverflow},
		{[]byte{0x00, 0x81, 0xff}, ErrLineOverflow},
		{[]byte{0x00, 0x03, 0xff}, ErrTruncated},
	}

	for i, test := range tests {
		_, err := DecodePage(bytestream.New(test.data), hdr)
		if !errors.Is(err, test.err) {
			t.Errorf("test %d: expected %v, present %v", i, test.err, err)
		}
	}

	err = EncodePage(bytestream.NewWriter(0), []byte{1, 2, 3}, 1, params)
	if !errors.Is(err, ErrBitmapSize) {
		t.Errorf("bitmap size mismatch: ErrBitmapSize expected, present %v", err)
	}
}

// TestDecodeHugePage tests that a header of a huge page, followed
// by too little data, is rejected before the bitmap is allocated
func TestDecodeHugePage(t *testing.T) {
	for _, format := range []printparams.Format{printparams.PWG, printparams.URF} {
		params := testParams(format, printparams.SRGB24, 16000, 16000)
		hdr, err := MakePageHeader(params, 1)
		if err != nil {
			t.Fatalf("%s", err)
		}

		out := bytestream.NewWriter(0)
		hdr.Encode(out)
		out.PutU8(0)

		in := bytestream.New(out.Bytes())
		hdr, err = DecodePageHeader(in, format)
		if err != nil {
			t.Fatalf("%s: %s", format, err)
		}

		bitmap, err := DecodePage(in, hdr)
		if !errors.Is(err, ErrTruncated) || bitmap != nil {
			t.Errorf("%s: ErrTruncated expected, present %v", format, err)
		}
	}
}

// TestDecodeURFFill tests the smallest possible URF page: every
// line group is a line repeat and a fill-with-white code
func TestDecodeURFFill(t *testing.T) {
	tests := []struct {
		mode  printparams.ColorMode
		white byte
	}{
		{printparams.SRGB24, 0xff},
		{printparams.Gray8, 0xff},
		{printparams.CMYK32, 0x00},
	}

	for _, test := range tests {
		params := testParams(printparams.URF, test.mode, 4, 300)
		hdr, err := MakePageHeader(params, 1)
		if err != nil {
			t.Fatalf("%s", err)
		}

		data := []byte{0xff, 0x80, 0x2b, 0x80}
		bitmap, err := DecodePage(bytestream.New(data), hdr)
		if err != nil {
			t.Fatalf("%s: %s", test.mode, err)
		}

		expected := bytes.Repeat([]byte{test.white}, hdr.BytesPerLine*300)
		if !bytes.Equal(bitmap, expected) {
			t.Errorf("%s: expected %d bytes of %02x, present % x...",
				test.mode, len(expected), test.white,
				bitmap[:min(len(bitmap), 16)])
		}

		// One byte short
		_, err = DecodePage(bytestream.New(data[:3]), hdr)
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("%s: short page: ErrTruncated expected, present %v",
				test.mode, err)
		}
	}
}

// TestReader tests reading of the multi-page file
func TestReader(t *testing.T) {
	for _, format := range []printparams.Format{printparams.PWG, printparams.URF} {
		params := testParams(format, printparams.SRGB24, 8, 8)
		params.Duplex = printparams.TwoSidedLongEdge
		params.BackXform = printparams.Flipped

		out := bytestream.NewWriter(0)
		out.PutBytes(FileHeader(params, 3))
		for page := 1; page <= 3; page++ {
			if err := EncodePage(out, pacmanBitmap(), page, params); err != nil {
				t.Fatalf("%s", err)
			}
		}

		r, err := NewReader(out.Bytes())
		if err != nil {
			t.Fatalf("%s: %s", format, err)
		}
		r.BackXform = params.BackXform

		pages := 0
		for {
			_, bitmap, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("%s: page %d: %s", format, pages+1, err)
			}

			pages++
			if !bytes.Equal(bitmap, pacmanBitmap()) {
				t.Errorf("%s: page %d: bitmap mismatch", format, pages)
			}
		}

		if pages != 3 {
			t.Errorf("%s: expected 3 pages, present %d", format, pages)
		}
	}
}
