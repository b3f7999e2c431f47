/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Paper Size Classifier
 */

package main

import (
	"github.com/OpenPrinting/ipp-print/ipp"
)

// PaperSize represents paper size, in IPP units (1/100 mm)
type PaperSize struct {
	Width, Height int // Paper width and height
}

// Standard paper sizes
//
//	               US name      US inches   US mm           ISO mm
//	"legal-A4"     A, Legal     8.5 x 14    215.9 x 355.6   A4: 210 x 297
//	"tabloid-A3"   B, Tabloid   11 x 17     279.4 x 431.8   A3: 297 x 420
//	"isoC-A2"      C            17 × 22     431.8 × 558.8   A2: 420 x 594
var (
	PaperLegal   = PaperSize{21590, 35560}
	PaperA4      = PaperSize{21000, 29700}
	PaperTabloid = PaperSize{27940, 43180}
	PaperA3      = PaperSize{29700, 42000}
	PaperC       = PaperSize{43180, 55880}
	PaperA2      = PaperSize{42000, 59400}
)

// Less checks that p is less that p2, which means:
//   - Either p.Width or p.Height is less that p2.Width or p2.Height
//   - Neither of p.Width or p.Height is greater that p2.Width or p2.Height
func (p PaperSize) Less(p2 PaperSize) bool {
	return (p.Width < p2.Width && p.Height <= p2.Height) ||
		(p.Height < p2.Height && p.Width <= p2.Width)
}

// Classify paper size according to Apple Bonjour rules
// Returns:
//
//	">isoC-A2" for paper larger that C or A2
//	"isoC-A2" for C or A2 paper
//	"tabloid-A3" for Tabloid or A3 paper
//	"legal-A4" for Legal or A4 paper
//	"<legal-A4" for paper smaller that Legal or A4
func (p PaperSize) Classify() string {
	switch {
	case PaperC.Less(p) || PaperA2.Less(p):
		return ">isoC-A2"

	case !p.Less(PaperC) || !p.Less(PaperA2):
		return "isoC-A2"

	case !p.Less(PaperTabloid) || !p.Less(PaperA3):
		return "tabloid-A3"

	case !p.Less(PaperLegal) || !p.Less(PaperA4):
		return "legal-A4"

	default:
		return "<legal-A4"
	}
}

// PaperSizeMax returns the largest paper size, listed in the
// media-size-supported printer attribute. Custom size ranges
// count by their upper bounds.
func PaperSizeMax(printer *ipp.Attrs) (PaperSize, bool) {
	var max PaperSize
	var found bool

	for _, col := range printer.Collections("media-size-supported") {
		p := PaperSize{
			Width:  paperDimension(col, "x-dimension"),
			Height: paperDimension(col, "y-dimension"),
		}

		if p.Width > 0 && p.Height > 0 && (!found || max.Less(p)) {
			max = p
			found = true
		}
	}

	return max, found
}

// paperDimension returns media-size dimension which may be
// an integer or a range
func paperDimension(col *ipp.Attrs, name string) int {
	if v, ok := col.Int(name); ok {
		return v
	}

	if r, ok := col.Range(name); ok {
		return int(r.High)
	}

	return 0
}
