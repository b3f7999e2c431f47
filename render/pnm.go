/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Binary PNM (PBM, PGM, PPM) reader and writer
 */

package render

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/OpenPrinting/ipp-print/bytestream"
)

// ErrPNM is returned for invalid PNM data
var ErrPNM = errors.New("invalid PNM data")

// maxPNMPixels limits size of decoded PNM images
const maxPNMPixels = 1 << 28

// DecodePNM creates ImageSource from stream of binary PNM images
// (P4, P5, P6), one page per image
func DecodePNM(data []byte) (*ImageSource, error) {
	in := bytestream.New(data)
	src := &ImageSource{}

	for {
		skipSpace(in)
		if in.AtEnd() {
			break
		}

		img, err := decodePNMImage(in)
		if err != nil {
			return nil, fmt.Errorf("PNM image %d: %w", len(src.images)+1, err)
		}

		src.images = append(src.images, img)
	}

	if len(src.images) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrPNM)
	}

	return src, nil
}

// decodePNMImage decodes one image
func decodePNMImage(in *bytestream.Bytestream) (image.Image, error) {
	magic := in.String(2)
	if in.Err() != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrPNM)
	}

	maxval := 1
	switch magic {
	case "P4", "P5", "P6":
	default:
		return nil, fmt.Errorf("%w: unsupported magic %q", ErrPNM, magic)
	}

	w, err := pnmNumber(in)
	if err != nil {
		return nil, err
	}

	h, err := pnmNumber(in)
	if err != nil {
		return nil, err
	}

	if magic != "P4" {
		maxval, err = pnmNumber(in)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case w < 1 || h < 1 || w > maxPNMPixels/h:
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrPNM, w, h)
	case maxval < 1 || maxval > 65535:
		return nil, fmt.Errorf("%w: invalid maxval %d", ErrPNM, maxval)
	}

	// Single whitespace separates header from pixels
	in.Skip(1)

	need := (w + 7) / 8 * h
	switch magic {
	case "P5":
		need = w * h
	case "P6":
		need = w * h * 3
	}
	if maxval > 255 {
		need *= 2
	}

	if need > in.Remaining() {
		return nil, fmt.Errorf("%w: truncated pixels", ErrPNM)
	}

	r := image.Rect(0, 0, w, h)
	wide := maxval > 255
	sample := func() byte {
		if wide {
			return byte(int(in.U16()) * 255 / maxval)
		}
		return byte(int(in.U8()) * 255 / maxval)
	}

	var img image.Image
	switch magic {
	case "P4":
		g := image.NewGray(r)
		bpl := (w + 7) / 8
		for y := 0; y < h; y++ {
			line := in.Next(bpl)
			if line == nil {
				break
			}
			for x := 0; x < w; x++ {
				if line[x/8]&(0x80>>(x%8)) == 0 {
					g.Pix[y*g.Stride+x] = 0xff
				}
			}
		}
		img = g

	case "P5":
		g := image.NewGray(r)
		for i := range g.Pix {
			g.Pix[i] = sample()
		}
		img = g

	case "P6":
		rgba := image.NewRGBA(r)
		for i := 0; i < len(rgba.Pix); i += 4 {
			rgba.Pix[i] = sample()
			rgba.Pix[i+1] = sample()
			rgba.Pix[i+2] = sample()
			rgba.Pix[i+3] = 0xff
		}
		img = rgba
	}

	if in.Err() != nil {
		return nil, fmt.Errorf("%w: truncated pixels", ErrPNM)
	}

	return img, nil
}

// skipSpace skips whitespace and comments
func skipSpace(in *bytestream.Bytestream) {
	for {
		c, ok := in.PeekU8()
		switch {
		case !ok:
			return
		case c == '#':
			for ok && c != '\n' {
				in.Skip(1)
				c, ok = in.PeekU8()
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			in.Skip(1)
		default:
			return
		}
	}
}

// pnmNumber reads decimal number of the PNM header
func pnmNumber(in *bytestream.Bytestream) (int, error) {
	skipSpace(in)

	n, digits := 0, 0
	for {
		c, ok := in.PeekU8()
		if !ok || c < '0' || c > '9' {
			break
		}

		if n > 1<<24 {
			return 0, fmt.Errorf("%w: number too large", ErrPNM)
		}

		n = n*10 + int(c-'0')
		digits++
		in.Skip(1)
	}

	if digits == 0 {
		return 0, fmt.Errorf("%w: number expected", ErrPNM)
	}

	return n, nil
}

// EncodePNM writes Surface as binary PGM or PPM
func EncodePNM(w io.Writer, s *Surface) error {
	bw := bufio.NewWriter(w)

	magic := "P6"
	if s.Gray {
		magic = "P5"
	}

	fmt.Fprintf(bw, "%s\n%d %d\n255\n", magic, s.Width, s.Height)
	bw.Write(s.Pix)

	return bw.Flush()
}
