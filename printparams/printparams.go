/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Print parameters
 */

// Package printparams describes how a document is to be rendered
// for a particular printer: format, color mode, paper geometry,
// resolution, duplex, copies and page selection, and computes the
// physical sequence of pages to emit.
package printparams

import (
	"fmt"
	"math"
	"strings"
)

// Format is the format of the document sent to the printer
type Format int

// Document formats
const (
	Invalid Format = iota
	PDF
	Postscript
	PWG
	URF
)

// Mime types of formats
const (
	MimePDF        = "application/pdf"
	MimePostscript = "application/postscript"
	MimePWG        = "image/pwg-raster"
	MimeURF        = "image/urf"
	MimeJPEG       = "image/jpeg"
	MimePNG        = "image/png"
	MimeGIF        = "image/gif"
	MimePNM        = "image/x-portable-anymap"
	MimeOctet      = "application/octet-stream"
)

// FormatFromMime returns Format by MIME type, Invalid if type
// is not one of the formats
func FormatFromMime(mime string) Format {
	switch mime {
	case MimePDF:
		return PDF
	case MimePostscript:
		return Postscript
	case MimePWG:
		return PWG
	case MimeURF:
		return URF
	}
	return Invalid
}

// Mime returns MIME type of the Format
func (f Format) Mime() string {
	switch f {
	case PDF:
		return MimePDF
	case Postscript:
		return MimePostscript
	case PWG:
		return MimePWG
	case URF:
		return MimeURF
	}
	return ""
}

// IsRaster reports whether Format is a printer raster format
func (f Format) IsRaster() bool {
	return f == PWG || f == URF
}

// String returns Format name
func (f Format) String() string {
	switch f {
	case Invalid:
		return "invalid"
	case PDF:
		return "pdf"
	case Postscript:
		return "postscript"
	case PWG:
		return "pwg"
	case URF:
		return "urf"
	}
	return fmt.Sprintf("unknown (%d)", int(f))
}

// ColorMode defines pixel layout of the rendered bitmap
type ColorMode int

// Color modes
const (
	SRGB24 ColorMode = iota // 3 x 8 bit sRGB
	CMYK32                  // 4 x 8 bit CMYK
	Gray8                   // 8 bit gray, 0 is black
	Black8                  // 8 bit black, 0 is white
	Gray1                   // 1 bit gray, 0 is black
	Black1                  // 1 bit black, 0 is white
)

// colorModeInfo is the fixed table of color mode properties
var colorModeInfo = [...]struct {
	name   string
	colors int
	bits   int
	black  bool
}{
	SRGB24: {"srgb24", 3, 8, false},
	CMYK32: {"cmyk32", 4, 8, false},
	Gray8:  {"gray8", 1, 8, false},
	Black8: {"black8", 1, 8, true},
	Gray1:  {"gray1", 1, 1, false},
	Black1: {"black1", 1, 1, true},
}

// ParseColorMode parses color mode name, as String returns it
func ParseColorMode(s string) (ColorMode, bool) {
	for m := range colorModeInfo {
		if colorModeInfo[m].name == s {
			return ColorMode(m), true
		}
	}
	return SRGB24, false
}

// String returns ColorMode name
func (m ColorMode) String() string {
	if m.valid() {
		return colorModeInfo[m].name
	}
	return fmt.Sprintf("unknown (%d)", int(m))
}

// Colors returns count of color channels
func (m ColorMode) Colors() int {
	return colorModeInfo[m].colors
}

// BitsPerColor returns bits per channel
func (m ColorMode) BitsPerColor() int {
	return colorModeInfo[m].bits
}

// BitsPerPixel returns bits per pixel
func (m ColorMode) BitsPerPixel() int {
	return colorModeInfo[m].bits * colorModeInfo[m].colors
}

// IsBlack reports whether 0 means white in this mode
func (m ColorMode) IsBlack() bool {
	return colorModeInfo[m].black
}

// valid reports whether m is one of the known modes
func (m ColorMode) valid() bool {
	return m >= 0 && int(m) < len(colorModeInfo)
}

// Quality is the print quality, with IPP print-quality enum values
type Quality int

// Print qualities
const (
	DefaultQuality Quality = 0
	DraftQuality   Quality = 3
	NormalQuality  Quality = 4
	HighQuality    Quality = 5
)

// Units defines units of paper size
type Units int

// Paper size units
const (
	Pixels Units = iota
	Millimeters
	Inches
)

// String returns Units suffix
func (u Units) String() string {
	switch u {
	case Pixels:
		return "px"
	case Millimeters:
		return "mm"
	case Inches:
		return "in"
	}
	return fmt.Sprintf("unknown (%d)", int(u))
}

// Duplex is the duplex mode
type Duplex int

// Duplex modes
const (
	OneSided Duplex = iota
	TwoSidedLongEdge
	TwoSidedShortEdge
)

// DuplexFromSides returns Duplex for the IPP "sides" keyword
func DuplexFromSides(sides string) (Duplex, bool) {
	switch sides {
	case "one-sided":
		return OneSided, true
	case "two-sided-long-edge":
		return TwoSidedLongEdge, true
	case "two-sided-short-edge":
		return TwoSidedShortEdge, true
	}
	return OneSided, false
}

// Sides returns the IPP "sides" keyword for Duplex
func (d Duplex) Sides() string {
	switch d {
	case TwoSidedLongEdge:
		return "two-sided-long-edge"
	case TwoSidedShortEdge:
		return "two-sided-short-edge"
	}
	return "one-sided"
}

// BackXform defines how the printer expects back sides of
// duplex sheets to be transformed
type BackXform int

// Back side transforms
const (
	Normal BackXform = iota
	Rotated
	Flipped
	ManualTumble
)

// ParseBackXform parses the PWG sheet-back keyword
func ParseBackXform(s string) (BackXform, bool) {
	switch s {
	case "normal":
		return Normal, true
	case "rotated":
		return Rotated, true
	case "flipped":
		return Flipped, true
	case "manual-tumble":
		return ManualTumble, true
	}
	return Normal, false
}

// String returns the PWG sheet-back keyword
func (x BackXform) String() string {
	switch x {
	case Normal:
		return "normal"
	case Rotated:
		return "rotated"
	case Flipped:
		return "flipped"
	case ManualTumble:
		return "manual-tumble"
	}
	return fmt.Sprintf("unknown (%d)", int(x))
}

// PrintParameters describes how to render a document
type PrintParameters struct {
	Format         Format         // Output format
	ColorMode      ColorMode      // Bitmap layout
	Quality        Quality        // Print quality
	PaperSizeName  string         // PWG media name, e.g. iso_a4_210x297mm
	PaperSizeW     float64        // Paper width, in PaperSizeUnits
	PaperSizeH     float64        // Paper height, in PaperSizeUnits
	PaperSizeUnits Units          // Units of PaperSizeW and PaperSizeH
	HwResW, HwResH int            // Resolution, DPI
	Duplex         Duplex         // Duplex mode
	BackXform      BackXform      // Back side transform
	Copies         int            // Copies produced by page replication
	Collated       bool           // Copies are collated
	PageRanges     PageRangeList  // Selected pages, empty for all
	MediaType      string         // Media type, for raster headers
	MediaPosition  int            // Input slot, for raster headers
}

// DefaultPaperSize is used when nothing better is known
const DefaultPaperSize = "iso_a4_210x297mm"

// Defaults returns PrintParameters with defaults: A4 paper,
// 300 DPI, sRGB, one-sided, one collated copy, all pages
func Defaults() PrintParameters {
	p := PrintParameters{
		Format:    PDF,
		ColorMode: SRGB24,
		Quality:   DefaultQuality,
		HwResW:    300,
		HwResH:    300,
		Duplex:    OneSided,
		BackXform: Normal,
		Copies:    1,
		Collated:  true,
	}
	p.SetPaperSize(DefaultPaperSize)
	return p
}

// IsTwoSided reports whether duplex is active
func (p *PrintParameters) IsTwoSided() bool {
	return p.Duplex != OneSided
}

// IsBackside reports whether the 1-based page of the emitted
// sequence is printed on the back side of a sheet
func (p *PrintParameters) IsBackside(page int) bool {
	return p.IsTwoSided() && page%2 == 0
}

// BackHFlip reports whether back sides must be mirrored horizontally
func (p *PrintParameters) BackHFlip() bool {
	switch p.Duplex {
	case TwoSidedLongEdge:
		return p.BackXform == Rotated
	case TwoSidedShortEdge:
		return p.BackXform == Flipped || p.BackXform == ManualTumble
	}
	return false
}

// BackVFlip reports whether back sides must be mirrored vertically
func (p *PrintParameters) BackVFlip() bool {
	switch p.Duplex {
	case TwoSidedLongEdge:
		return p.BackXform == Rotated || p.BackXform == Flipped
	case TwoSidedShortEdge:
		return p.BackXform == ManualTumble
	}
	return false
}

// toInches converts length in paper size units into inches,
// res is the resolution for Pixels
func (p *PrintParameters) toInches(v float64, res int) float64 {
	switch p.PaperSizeUnits {
	case Millimeters:
		return v / 25.4
	case Inches:
		return v
	}

	if res <= 0 {
		return 0
	}
	return v / float64(res)
}

// toPixels converts inches into pixels at res
func toPixels(in float64, res int) int {
	return int(math.Round(in * float64(res)))
}

// PaperSizeWInPixels returns paper width in pixels
func (p *PrintParameters) PaperSizeWInPixels() int {
	if p.PaperSizeUnits == Pixels {
		return int(p.PaperSizeW)
	}
	return toPixels(p.toInches(p.PaperSizeW, p.HwResW), p.HwResW)
}

// PaperSizeHInPixels returns paper height in pixels
func (p *PrintParameters) PaperSizeHInPixels() int {
	if p.PaperSizeUnits == Pixels {
		return int(p.PaperSizeH)
	}
	return toPixels(p.toInches(p.PaperSizeH, p.HwResH), p.HwResH)
}

// PaperSizeWInPoints returns paper width in 1/72 inch
func (p *PrintParameters) PaperSizeWInPoints() int {
	return int(math.Round(p.toInches(p.PaperSizeW, p.HwResW) * 72))
}

// PaperSizeHInPoints returns paper height in 1/72 inch
func (p *PrintParameters) PaperSizeHInPoints() int {
	return int(math.Round(p.toInches(p.PaperSizeH, p.HwResH) * 72))
}

// PaperSizeWInMillimeters returns paper width in millimeters
func (p *PrintParameters) PaperSizeWInMillimeters() float64 {
	if p.PaperSizeUnits == Millimeters {
		return p.PaperSizeW
	}
	return p.toInches(p.PaperSizeW, p.HwResW) * 25.4
}

// PaperSizeHInMillimeters returns paper height in millimeters
func (p *PrintParameters) PaperSizeHInMillimeters() float64 {
	if p.PaperSizeUnits == Millimeters {
		return p.PaperSizeH
	}
	return p.toInches(p.PaperSizeH, p.HwResH) * 25.4
}

// PaperSizeInHundredthsMM returns paper size in IPP media-size
// units (1/100 mm)
func (p *PrintParameters) PaperSizeInHundredthsMM() (x, y int) {
	return int(math.Round(p.PaperSizeWInMillimeters() * 100)),
		int(math.Round(p.PaperSizeHInMillimeters() * 100))
}

// PaperSizeWInBytes returns size of one bitmap line
func (p *PrintParameters) PaperSizeWInBytes() int {
	return (p.PaperSizeWInPixels()*p.ColorMode.BitsPerPixel() + 7) / 8
}

// PaperSizeInBytes returns size of the whole page bitmap
func (p *PrintParameters) PaperSizeInBytes() int {
	return p.PaperSizeWInBytes() * p.PaperSizeHInPixels()
}

// SetPaperSize sets paper size by its PWG self-describing name,
// <prefix>_<W>x<H><units>, where units are mm or in.
// On error PrintParameters is not modified.
func (p *PrintParameters) SetPaperSize(name string) error {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return fmt.Errorf("%q: invalid paper size name", name)
	}

	dim := name[i+1:]
	var units Units
	switch {
	case strings.HasSuffix(dim, "mm"):
		units = Millimeters
	case strings.HasSuffix(dim, "in"):
		units = Inches
	default:
		return fmt.Errorf("%q: invalid paper size units", name)
	}

	dim = dim[:len(dim)-2]
	ws, hs, ok := strings.Cut(dim, "x")
	if !ok {
		return fmt.Errorf("%q: invalid paper size dimensions", name)
	}

	w, okW := parseDimension(ws)
	h, okH := parseDimension(hs)
	if !okW || !okH {
		return fmt.Errorf("%q: invalid paper size dimensions", name)
	}

	p.PaperSizeName = name
	p.PaperSizeW, p.PaperSizeH = w, h
	p.PaperSizeUnits = units
	return nil
}

// parseDimension parses positive decimal number: digits with
// optional fraction
func parseDimension(s string) (float64, bool) {
	var v, scale float64
	digits := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			d := float64(c - '0')
			if scale == 0 {
				v = v*10 + d
			} else {
				v += d * scale
				scale /= 10
			}
			digits++
		case c == '.' && scale == 0:
			scale = 0.1
		default:
			return 0, false
		}
	}

	return v, digits > 0 && v > 0
}
