/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Renderer tests
 */

package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/OpenPrinting/ipp-print/printparams"
	"github.com/OpenPrinting/ipp-print/raster"
)

// pixelParams returns parameters of w x h pixels page at 100 DPI
func pixelParams(mode printparams.ColorMode, w, h int) *printparams.PrintParameters {
	p := printparams.Defaults()
	p.ColorMode = mode
	p.PaperSizeUnits = printparams.Pixels
	p.PaperSizeW = float64(w)
	p.PaperSizeH = float64(h)
	p.HwResW, p.HwResH = 100, 100
	return &p
}

// graySurface returns Surface filled with gray level v
func graySurface(w, h int, v byte) *Surface {
	s := NewSurface(w, h, true)
	for i := range s.Pix {
		s.Pix[i] = v
	}
	return s
}

// countBits returns count of set bits
func countBits(b []byte) int {
	n := 0
	for _, c := range b {
		for ; c != 0; c &= c - 1 {
			n++
		}
	}
	return n
}

// TestDither tests 1-bit conversion
func TestDither(t *testing.T) {
	type testData struct {
		level    byte
		mode     printparams.ColorMode
		min, max int // Percent of set bits
	}

	tests := []testData{
		{0, printparams.Gray1, 0, 0},
		{255, printparams.Gray1, 100, 100},
		{0, printparams.Black1, 100, 100},
		{255, printparams.Black1, 0, 0},
		{128, printparams.Gray1, 45, 55},
		{64, printparams.Gray1, 20, 30},
		{192, printparams.Black1, 20, 30},
		{DitherThreshold - 1, printparams.Gray1, 45, 55},
	}

	for _, test := range tests {
		s := graySurface(64, 64, test.level)
		bitmap, err := Bitmap(s, test.mode)
		if err != nil {
			t.Fatalf("%s", err)
		}

		if len(bitmap) != 8*64 {
			t.Fatalf("%s: bitmap size %d", test.mode, len(bitmap))
		}

		pct := countBits(bitmap) * 100 / (64 * 64)
		if pct < test.min || pct > test.max {
			t.Errorf("%s level %d: %d%% bits set, expected %d..%d%%",
				test.mode, test.level, pct, test.min, test.max)
		}
	}

	// Threshold; error of the first row darkens the second
	s := graySurface(1, 2, DitherThreshold)
	s.Pix[1] = DitherThreshold - 1
	bitmap, _ := Bitmap(s, printparams.Gray1)
	if bitmap[0] != 0x80 || bitmap[1] != 0x00 {
		t.Errorf("threshold: % x", bitmap)
	}

	// Error distribution into the next row: (0,0) goes white, and
	// its error reaches columns 0, 1 and 2 of the second row
	s = NewSurface(3, 2, true)
	copy(s.Pix, []byte{128, 100, 200, 60, 128, 60})

	for _, test := range []struct {
		mode printparams.ColorMode
		out  []byte
	}{
		{printparams.Gray1, []byte{0xa0, 0x00}},
		{printparams.Black1, []byte{0x40, 0xe0}},
	} {
		bitmap, _ = Bitmap(s, test.mode)
		if !bytes.Equal(bitmap, test.out) {
			t.Errorf("%s diffusion: expected % x, present % x",
				test.mode, test.out, bitmap)
		}
	}
}

// TestBitmap tests color conversions
func TestBitmap(t *testing.T) {
	s := NewSurface(2, 1, false)
	copy(s.Pix, []byte{0xff, 0x00, 0x00, 0xff, 0xff, 0xff})

	type testData struct {
		mode printparams.ColorMode
		out  []byte
	}

	tests := []testData{
		{printparams.SRGB24, []byte{0xff, 0, 0, 0xff, 0xff, 0xff}},
		{printparams.CMYK32, []byte{0, 0xff, 0xff, 0, 0, 0, 0, 0}},
		{printparams.Gray8, []byte{76, 0xff}},
		{printparams.Black8, []byte{0xff - 76, 0}},
		{printparams.Gray1, []byte{0x40}},
		{printparams.Black1, []byte{0x80}},
	}

	for _, test := range tests {
		out, err := Bitmap(s, test.mode)
		if err != nil {
			t.Errorf("%s: %s", test.mode, err)
			continue
		}

		if !bytes.Equal(out, test.out) {
			t.Errorf("%s: expected % x, present % x", test.mode, test.out, out)
		}
	}
}

// TestSurfaceFromBitmap tests conversion of decoded bitmaps back
func TestSurfaceFromBitmap(t *testing.T) {
	modes := []printparams.ColorMode{
		printparams.SRGB24, printparams.CMYK32,
		printparams.Gray8, printparams.Black8,
		printparams.Gray1, printparams.Black1,
	}

	for _, mode := range modes {
		// Black and white stripes survive every conversion
		s := NewSurface(10, 4, mode.Colors() == 1)
		for y := 0; y < 4; y += 2 {
			row := s.Row(y)
			for i := range row {
				row[i] = 0
			}
		}

		bitmap, err := Bitmap(s, mode)
		if err != nil {
			t.Fatalf("%s: %s", mode, err)
		}

		s2, err := SurfaceFromBitmap(bitmap, 10, 4, mode)
		if err != nil {
			t.Fatalf("%s: %s", mode, err)
		}

		if !bytes.Equal(s.Pix, s2.Pix) {
			t.Errorf("%s: surface mismatch:\n% x\n% x", mode, s.Pix, s2.Pix)
		}
	}

	if _, err := SurfaceFromBitmap([]byte{1}, 10, 4, printparams.Gray8); err == nil {
		t.Errorf("size mismatch not detected")
	}
}

// TestPNM tests PNM reader and writer
func TestPNM(t *testing.T) {
	rgb := NewSurface(3, 2, false)
	copy(rgb.Pix, []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9,
		10, 11, 12, 13, 14, 15, 16, 17, 18,
	})

	gray := NewSurface(3, 2, true)
	copy(gray.Pix, []byte{0, 50, 100, 150, 200, 250})

	var buf bytes.Buffer
	EncodePNM(&buf, rgb)
	EncodePNM(&buf, gray)
	buf.WriteString("# comment\nP4 10 1\n\x55\xc0")

	src, err := DecodePNM(buf.Bytes())
	if err != nil {
		t.Fatalf("%s", err)
	}

	if src.Pages() != 3 {
		t.Fatalf("expected 3 pages, present %d", src.Pages())
	}

	s, err := src.Render(1, pixelParams(printparams.SRGB24, 3, 2))
	if err != nil {
		t.Fatalf("%s", err)
	}
	if !bytes.Equal(s.Pix, rgb.Pix) {
		t.Errorf("P6: expected % x, present % x", rgb.Pix, s.Pix)
	}

	s, err = src.Render(2, pixelParams(printparams.Gray8, 3, 2))
	if err != nil {
		t.Fatalf("%s", err)
	}
	if !bytes.Equal(s.Pix, gray.Pix) {
		t.Errorf("P5: expected % x, present % x", gray.Pix, s.Pix)
	}

	s, err = src.Render(3, pixelParams(printparams.Gray8, 10, 1))
	if err != nil {
		t.Fatalf("%s", err)
	}
	expected := []byte{0xff, 0, 0xff, 0, 0xff, 0, 0xff, 0, 0, 0}
	if !bytes.Equal(s.Pix, expected) {
		t.Errorf("P4: expected % x, present % x", expected, s.Pix)
	}

	if _, err = src.Render(4, pixelParams(printparams.Gray8, 10, 1)); !errors.Is(err, ErrNoPage) {
		t.Errorf("page 4: ErrNoPage expected, present %v", err)
	}

	bad := []string{
		"",
		"P3 1 1 255 0 0 0",
		"P6 2 2 255\n\x00\x00",
		"P5 0 1 255\n",
		"P5 1 1 0\n\x00",
		"P5 100000 100000 255\n\x00",
		"P6 2",
		"P5 99999999999 1 255\n",
	}

	for _, data := range bad {
		if _, err := DecodePNM([]byte(data)); !errors.Is(err, ErrPNM) {
			t.Errorf("%q: ErrPNM expected, present %v", data, err)
		}
	}
}

// TestImageFit tests image scaling and rotation
func TestImageFit(t *testing.T) {
	red := color.RGBA{0xff, 0, 0, 0xff}
	blue := color.RGBA{0, 0, 0xff, 0xff}

	// Landscape: left half red, right half blue
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if x < 100 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}

	src := NewImageSource(img)
	s, err := src.Render(1, pixelParams(printparams.SRGB24, 100, 200))
	if err != nil {
		t.Fatalf("%s", err)
	}

	at := func(s *Surface, x, y int) []byte {
		return s.Row(y)[3*x : 3*x+3]
	}

	if px := at(s, 50, 50); !bytes.Equal(px, []byte{0xff, 0, 0}) {
		t.Errorf("rotated top: expected red, present % x", px)
	}

	if px := at(s, 50, 150); !bytes.Equal(px, []byte{0, 0, 0xff}) {
		t.Errorf("rotated bottom: expected blue, present % x", px)
	}

	// Square image on tall paper is centered
	sq := image.NewGray(image.Rect(10, 10, 60, 60))
	src = NewImageSource(sq)
	s, err = src.Render(1, pixelParams(printparams.Gray8, 100, 200))
	if err != nil {
		t.Fatalf("%s", err)
	}

	if s.Row(20)[50] != 0xff || s.Row(180)[50] != 0xff {
		t.Errorf("margins must be white")
	}

	if s.Row(100)[50] != 0 {
		t.Errorf("center must be black, present %d", s.Row(100)[50])
	}
}

// TestRasterPages tests the page pipeline
func TestRasterPages(t *testing.T) {
	// Three pages, of gray levels 0, 100, 200
	var data bytes.Buffer
	for _, v := range []byte{0, 100, 200} {
		EncodePNM(&data, graySurface(16, 16, v))
	}

	src, err := DecodePNM(data.Bytes())
	if err != nil {
		t.Fatalf("%s", err)
	}

	for _, format := range []printparams.Format{printparams.PWG, printparams.URF} {
		params := pixelParams(printparams.Gray8, 16, 16)
		params.Format = format
		params.Copies = 2
		params.Collated = false
		params.Duplex = printparams.TwoSidedLongEdge
		params.BackXform = printparams.Rotated

		var out bytes.Buffer
		var progress []int
		err = RasterPages(&out, src, params, func(page, total int) {
			progress = append(progress, page)
			if total != 8 {
				t.Errorf("total pages: expected 8, present %d", total)
			}
		})

		if err != nil {
			t.Fatalf("%s: %s", format, err)
		}

		if len(progress) != 8 {
			t.Errorf("%s: progress called %d times", format, len(progress))
		}

		r, err := raster.NewReader(out.Bytes())
		if err != nil {
			t.Fatalf("%s: %s", format, err)
		}
		r.BackXform = params.BackXform

		// 1, 2, 1, 2, 3, blank, 3, blank
		levels := []byte{0, 100, 0, 100, 200, 0xff, 200, 0xff}
		for i, level := range levels {
			_, bitmap, err := r.Next()
			if err != nil {
				t.Fatalf("%s: page %d: %s", format, i+1, err)
			}

			if !bytes.Equal(bitmap, bytes.Repeat([]byte{level}, 16*16)) {
				t.Errorf("%s: page %d: expected level %d", format, i+1, level)
			}
		}

		if _, _, err = r.Next(); err != io.EOF {
			t.Errorf("%s: io.EOF expected, present %v", format, err)
		}
	}

	params := pixelParams(printparams.Gray8, 16, 16)
	params.Format = printparams.PDF
	if err = RasterPages(io.Discard, src, params, nil); err == nil {
		t.Errorf("PDF: error expected")
	}
}

// TestWritePDF tests conversion into PDF
func TestWritePDF(t *testing.T) {
	src := NewImageSource(image.NewGray(image.Rect(0, 0, 30, 20)),
		image.NewGray(image.Rect(0, 0, 20, 30)))

	params := printparams.Defaults()
	params.HwResW, params.HwResH = 30, 30

	var out bytes.Buffer
	pages := 0
	err := WritePDF(&out, src, &params, func(page, total int) { pages = page })
	if err != nil {
		t.Fatalf("%s", err)
	}

	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Errorf("PDF header missing")
	}

	if pages != 2 {
		t.Errorf("expected 2 pages, present %d", pages)
	}
}
