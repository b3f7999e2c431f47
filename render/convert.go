/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Conversion of rendered pages into printer bitmaps
 */

package render

import (
	"fmt"
	"image/color"

	"github.com/OpenPrinting/ipp-print/printparams"
)

// DitherThreshold is the gray level at and above which a pixel
// becomes white in 1-bit modes
const DitherThreshold = 128

// luma returns gray level of the RGB pixel
func luma(r, g, b byte) byte {
	return byte((299*int(r) + 587*int(g) + 114*int(b) + 500) / 1000)
}

// Bitmap converts Surface into page bitmap of the color mode,
// as the raster encoder expects it
func Bitmap(s *Surface, mode printparams.ColorMode) ([]byte, error) {
	bpl := (s.Width*mode.BitsPerPixel() + 7) / 8
	bitmap := make([]byte, bpl*s.Height)

	switch mode {
	case printparams.Gray1, printparams.Black1:
		dither(bitmap, s, bpl, mode == printparams.Black1)
		return bitmap, nil
	}

	for y := 0; y < s.Height; y++ {
		src := s.Row(y)
		dst := bitmap[y*bpl : (y+1)*bpl]

		for x := 0; x < s.Width; x++ {
			var r, g, b byte
			if s.Gray {
				r, g, b = src[x], src[x], src[x]
			} else {
				r, g, b = src[3*x], src[3*x+1], src[3*x+2]
			}

			switch mode {
			case printparams.SRGB24:
				dst[3*x], dst[3*x+1], dst[3*x+2] = r, g, b

			case printparams.CMYK32:
				c, m, ye, k := color.RGBToCMYK(r, g, b)
				dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = c, m, ye, k

			case printparams.Gray8:
				dst[x] = luma(r, g, b)

			case printparams.Black8:
				dst[x] = ^luma(r, g, b)

			default:
				return nil, fmt.Errorf("%s: color mode not supported", mode)
			}
		}
	}

	return bitmap, nil
}

// dither converts Surface into 1-bit bitmap with Floyd-Steinberg
// error diffusion. Set bits are white, or black if black is true.
func dither(bitmap []byte, s *Surface, bpl int, black bool) {
	// Errors of the current and the next row. The next row gets
	// 3/16 at x, 5/16 at x+1 and 1/16 at x+2
	cur := make([]int, s.Width+2)
	next := make([]int, s.Width+2)

	for y := 0; y < s.Height; y++ {
		src := s.Row(y)
		dst := bitmap[y*bpl : (y+1)*bpl]
		fwd := 0

		for x := 0; x < s.Width; x++ {
			var v int
			if s.Gray {
				v = int(src[x])
			} else {
				v = int(luma(src[3*x], src[3*x+1], src[3*x+2]))
			}

			v += fwd + cur[x]

			out := 0
			white := v >= DitherThreshold
			if white {
				out = 255
			}

			if white != black {
				dst[x/8] |= 0x80 >> (x % 8)
			}

			e := v - out
			fwd = e * 7 / 16
			next[x] += e * 3 / 16
			next[x+1] += e * 5 / 16
			next[x+2] += e * 1 / 16
		}

		cur, next = next, cur
		for i := range next {
			next[i] = 0
		}
	}
}
