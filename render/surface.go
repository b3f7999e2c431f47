/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Rendered page surface
 */

// Package render produces page bitmaps for the raster codec: it
// defines the renderer contract, implements renderers for images
// and PNM streams, converts rendered pages into the printer color
// mode and drives the page pipeline.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/OpenPrinting/ipp-print/printparams"
)

// Surface is a rendered page: 8-bit RGB or 8-bit gray pixels,
// rows without padding
type Surface struct {
	Width, Height int    // Size, pixels
	Gray          bool   // Pixels are 1 byte gray, otherwise RGB
	Pix           []byte // Pixels
}

// NewSurface creates white Surface
func NewSurface(w, h int, gray bool) *Surface {
	s := &Surface{Width: w, Height: h, Gray: gray}
	s.Pix = make([]byte, w*h*s.bpp())
	for i := range s.Pix {
		s.Pix[i] = 0xff
	}
	return s
}

// bpp returns bytes per pixel
func (s *Surface) bpp() int {
	if s.Gray {
		return 1
	}
	return 3
}

// Stride returns size of the row, in bytes
func (s *Surface) Stride() int {
	return s.Width * s.bpp()
}

// Row returns pixels of the row y
func (s *Surface) Row(y int) []byte {
	stride := s.Stride()
	return s.Pix[y*stride : (y+1)*stride]
}

// Image returns Surface as image.Image, for encoding
func (s *Surface) Image() image.Image {
	r := image.Rect(0, 0, s.Width, s.Height)

	if s.Gray {
		return &image.Gray{Pix: s.Pix, Stride: s.Stride(), Rect: r}
	}

	img := image.NewRGBA(r)
	for y := 0; y < s.Height; y++ {
		src := s.Row(y)
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < s.Width; x++ {
			dst[4*x] = src[3*x]
			dst[4*x+1] = src[3*x+1]
			dst[4*x+2] = src[3*x+2]
			dst[4*x+3] = 0xff
		}
	}

	return img
}

// SurfaceFromBitmap converts decoded raster page back to Surface
func SurfaceFromBitmap(bitmap []byte, w, h int, mode printparams.ColorMode) (*Surface, error) {
	gray := mode.Colors() == 1
	s := NewSurface(w, h, gray)
	bpl := (w*mode.BitsPerPixel() + 7) / 8

	if len(bitmap) != bpl*h {
		return nil, fmt.Errorf("bitmap size mismatch: %d bytes, %dx%d expected",
			len(bitmap), bpl, h)
	}

	for y := 0; y < h; y++ {
		src := bitmap[y*bpl : (y+1)*bpl]
		dst := s.Row(y)

		switch mode {
		case printparams.SRGB24, printparams.Gray8:
			copy(dst, src)

		case printparams.Black8:
			for x := range dst {
				dst[x] = ^src[x]
			}

		case printparams.CMYK32:
			for x := 0; x < w; x++ {
				dst[3*x], dst[3*x+1], dst[3*x+2] = color.CMYKToRGB(
					src[4*x], src[4*x+1], src[4*x+2], src[4*x+3])
			}

		case printparams.Gray1, printparams.Black1:
			for x := 0; x < w; x++ {
				bit := src[x/8]&(0x80>>(x%8)) != 0
				if bit == (mode == printparams.Black1) {
					dst[x] = 0
				} else {
					dst[x] = 0xff
				}
			}
		}
	}

	return s, nil
}
