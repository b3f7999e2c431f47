/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * PWG and URF file and page headers
 */

package raster

import (
	"fmt"
	"math"

	"github.com/OpenPrinting/ipp-print/bytestream"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// File magics
var (
	pwgMagic = []byte("RaS2")
	urfMagic = []byte("UNIRAST\x00")
)

// Header sizes
const (
	PWGHeaderSize = 1796
	URFHeaderSize = 32
)

// PWG color spaces
const (
	pwgSpaceBlack = 3
	pwgSpaceCMYK  = 6
	pwgSpaceSGray = 18
	pwgSpaceSRGB  = 19
)

// URF color spaces
const (
	urfSpaceSGray = 0
	urfSpaceSRGB  = 1
	urfSpaceCMYK  = 6
)

// URF duplex modes
const (
	urfSimplex   = 1
	urfShortEdge = 2
	urfLongEdge  = 3
)

// PageHeader is the format-independent view of the PWG or URF
// page header
type PageHeader struct {
	Format         printparams.Format // PWG or URF
	Width, Height  int                // Page size, pixels
	BitsPerColor   int                // Bits per channel
	BitsPerPixel   int                // Bits per pixel
	BytesPerLine   int                // Bytes per scanline
	Colors         int                // Channels per pixel
	ColorSpace     int                // Format-specific color space code
	ResX, ResY     int                // Resolution, DPI
	Duplex, Tumble bool               // Duplex and short-edge flags
	Quality        int                // Print quality, IPP enum
	NumCopies      int                // Copies, PWG only
	TotalPageCount int                // Pages in file, 0 if unknown, PWG only
	PageSizeName   string             // PWG media name, PWG only
	MediaType      string             // Media type, PWG only
	MediaPosition  int                // Input slot, PWG only
	PageW, PageH   int                // Page size, points, PWG only
	HFlip, VFlip   bool               // Page is mirrored
}

// String returns a short description of the header, for logging
func (hdr *PageHeader) String() string {
	return fmt.Sprintf("%s %dx%d %d/%d bpp %dx%d dpi duplex=%v tumble=%v",
		hdr.Format, hdr.Width, hdr.Height, hdr.BitsPerPixel, hdr.BitsPerColor,
		hdr.ResX, hdr.ResY, hdr.Duplex, hdr.Tumble)
}

// ColorMode returns color mode, matching the header.
// ok is false, if header uses color space not known to us.
func (hdr *PageHeader) ColorMode() (mode printparams.ColorMode, ok bool) {
	switch {
	case hdr.Format == printparams.URF:
		switch {
		case hdr.ColorSpace == urfSpaceSRGB && hdr.BitsPerPixel == 24:
			return printparams.SRGB24, true
		case hdr.ColorSpace == urfSpaceCMYK && hdr.BitsPerPixel == 32:
			return printparams.CMYK32, true
		case hdr.ColorSpace == urfSpaceSGray && hdr.BitsPerPixel == 8:
			return printparams.Gray8, true
		}

	case hdr.ColorSpace == pwgSpaceSRGB && hdr.BitsPerPixel == 24:
		return printparams.SRGB24, true
	case hdr.ColorSpace == pwgSpaceCMYK && hdr.BitsPerPixel == 32:
		return printparams.CMYK32, true
	case hdr.ColorSpace == pwgSpaceSGray && hdr.BitsPerPixel == 8:
		return printparams.Gray8, true
	case hdr.ColorSpace == pwgSpaceSGray && hdr.BitsPerPixel == 1:
		return printparams.Gray1, true
	case hdr.ColorSpace == pwgSpaceBlack && hdr.BitsPerPixel == 8:
		return printparams.Black8, true
	case hdr.ColorSpace == pwgSpaceBlack && hdr.BitsPerPixel == 1:
		return printparams.Black1, true
	}

	return printparams.SRGB24, false
}

// groupSize returns size of the pixel group the run-length
// compression operates on
func (hdr *PageHeader) groupSize() int {
	if hdr.BitsPerPixel < 8 {
		return 1
	}
	return hdr.BitsPerPixel / 8
}

// white returns the all-white pixel group. sGray is additive,
// so its white is 0xff, like in sRGB.
func (hdr *PageHeader) white() []byte {
	w := make([]byte, hdr.groupSize())

	mode, _ := hdr.ColorMode()
	switch mode {
	case printparams.SRGB24, printparams.Gray8, printparams.Gray1:
		for i := range w {
			w[i] = 0xff
		}
	}

	return w
}

// MakePageHeader creates page header for the 1-based page of the
// emitted page sequence
func MakePageHeader(params *printparams.PrintParameters, page int) (*PageHeader, error) {
	mode := params.ColorMode
	if params.Format == printparams.URF {
		switch mode {
		case printparams.SRGB24, printparams.CMYK32, printparams.Gray8:
		default:
			return nil, fmt.Errorf("%w: URF can't carry %s", ErrBadHeader, mode)
		}
	}

	hdr := &PageHeader{
		Format:        params.Format,
		Width:         params.PaperSizeWInPixels(),
		Height:        params.PaperSizeHInPixels(),
		BitsPerColor:  mode.BitsPerColor(),
		BitsPerPixel:  mode.BitsPerPixel(),
		BytesPerLine:  params.PaperSizeWInBytes(),
		Colors:        mode.Colors(),
		ResX:          params.HwResW,
		ResY:          params.HwResH,
		Duplex:        params.IsTwoSided(),
		Tumble:        params.Duplex == printparams.TwoSidedShortEdge,
		Quality:       int(params.Quality),
		NumCopies:     1,
		PageSizeName:  params.PaperSizeName,
		MediaType:     params.MediaType,
		MediaPosition: params.MediaPosition,
		PageW:         params.PaperSizeWInPoints(),
		PageH:         params.PaperSizeHInPoints(),
	}

	if params.IsBackside(page) {
		hdr.HFlip = params.BackHFlip()
		hdr.VFlip = params.BackVFlip()
	}

	switch {
	case params.Format == printparams.URF:
		hdr.ResY = hdr.ResX
		switch mode {
		case printparams.SRGB24:
			hdr.ColorSpace = urfSpaceSRGB
		case printparams.CMYK32:
			hdr.ColorSpace = urfSpaceCMYK
		default:
			hdr.ColorSpace = urfSpaceSGray
		}

	case mode == printparams.SRGB24:
		hdr.ColorSpace = pwgSpaceSRGB
	case mode == printparams.CMYK32:
		hdr.ColorSpace = pwgSpaceCMYK
	case mode.IsBlack():
		hdr.ColorSpace = pwgSpaceBlack
	default:
		hdr.ColorSpace = pwgSpaceSGray
	}

	if err := hdr.check(); err != nil {
		return nil, err
	}

	return hdr, nil
}

// check validates header geometry
func (hdr *PageHeader) check() error {
	switch {
	case hdr.Width <= 0 || hdr.Height <= 0:
		return fmt.Errorf("%w: invalid page size %dx%d",
			ErrBadHeader, hdr.Width, hdr.Height)

	case hdr.BitsPerColor != 1 && hdr.BitsPerColor != 8:
		return fmt.Errorf("%w: %d bits per color not supported",
			ErrBadHeader, hdr.BitsPerColor)

	case hdr.Colors < 1 || hdr.Colors > 4 ||
		hdr.BitsPerPixel != hdr.BitsPerColor*hdr.Colors:
		return fmt.Errorf("%w: %d bits per pixel not supported",
			ErrBadHeader, hdr.BitsPerPixel)

	case hdr.BitsPerColor == 1 && hdr.Colors != 1:
		return fmt.Errorf("%w: 1-bit color not supported", ErrBadHeader)

	case hdr.Width > MaxPageBytes*8/hdr.BitsPerPixel:
		return fmt.Errorf("%w: page too wide", ErrBadHeader)
	}

	if hdr.BytesPerLine != (hdr.Width*hdr.BitsPerPixel+7)/8 {
		return fmt.Errorf("%w: bytes per line mismatch", ErrBadHeader)
	}

	if hdr.Height > MaxPageBytes/hdr.BytesPerLine {
		return fmt.Errorf("%w: page too large", ErrBadHeader)
	}

	return nil
}

// Encode appends header to the output
func (hdr *PageHeader) Encode(out *bytestream.Bytestream) {
	if hdr.Format == printparams.URF {
		hdr.encodeURF(out)
	} else {
		hdr.encodePWG(out)
	}
}

// encodeURF writes URF page header
func (hdr *PageHeader) encodeURF(out *bytestream.Bytestream) {
	duplex := uint8(urfSimplex)
	switch {
	case hdr.Duplex && hdr.Tumble:
		duplex = urfShortEdge
	case hdr.Duplex:
		duplex = urfLongEdge
	}

	quality := hdr.Quality
	if quality == 0 {
		quality = int(printparams.NormalQuality)
	}

	out.PutU8(uint8(hdr.BitsPerPixel))
	out.PutU8(uint8(hdr.ColorSpace))
	out.PutU8(duplex)
	out.PutU8(uint8(quality))
	out.PutU32(0)
	out.PutU32(0)
	out.PutU32(uint32(hdr.Width))
	out.PutU32(uint32(hdr.Height))
	out.PutU32(uint32(hdr.ResX))
	out.PutU32(0)
	out.PutU32(0)
}

// cstr writes NUL-terminated string into 64-byte field
func cstr(out *bytestream.Bytestream, s string) {
	if len(s) > 63 {
		s = s[:63]
	}
	out.PutPadded(s, 64)
}

// pwgBool encodes boolean header field
func pwgBool(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// pwgTransform encodes CrossFeedTransform and FeedTransform
func pwgTransform(flip bool) uint32 {
	if flip {
		return math.MaxUint32 // -1
	}
	return 1
}

// encodePWG writes PWG page header
func (hdr *PageHeader) encodePWG(out *bytestream.Bytestream) {
	cstr(out, "PwgRaster")   // MediaClass
	cstr(out, "")            // MediaColor
	cstr(out, hdr.MediaType) // MediaType
	cstr(out, "")            // OutputType

	out.PutU32(0) // AdvanceDistance
	out.PutU32(0) // AdvanceMedia
	out.PutU32(0) // Collate
	out.PutU32(0) // CutMedia
	out.PutU32(pwgBool(hdr.Duplex))
	out.PutU32(uint32(hdr.ResX))
	out.PutU32(uint32(hdr.ResY))
	out.PutZeros(4 * 4) // ImagingBoundingBox
	out.PutU32(0)       // InsertSheet
	out.PutU32(0)       // Jog
	out.PutU32(0)       // LeadingEdge
	out.PutZeros(2 * 4) // Margins
	out.PutU32(0)       // ManualFeed
	out.PutU32(uint32(hdr.MediaPosition))
	out.PutU32(0) // MediaWeight
	out.PutU32(0) // MirrorPrint
	out.PutU32(0) // NegativePrint
	out.PutU32(uint32(hdr.NumCopies))
	out.PutU32(0) // Orientation
	out.PutU32(0) // OutputFaceUp
	out.PutU32(uint32(hdr.PageW))
	out.PutU32(uint32(hdr.PageH))
	out.PutU32(0) // Separations
	out.PutU32(0) // TraySwitch
	out.PutU32(pwgBool(hdr.Tumble))

	out.PutU32(uint32(hdr.Width))
	out.PutU32(uint32(hdr.Height))
	out.PutU32(0) // cupsMediaType
	out.PutU32(uint32(hdr.BitsPerColor))
	out.PutU32(uint32(hdr.BitsPerPixel))
	out.PutU32(uint32(hdr.BytesPerLine))
	out.PutU32(0) // cupsColorOrder, chunky
	out.PutU32(uint32(hdr.ColorSpace))
	out.PutU32(0) // cupsCompression
	out.PutU32(0) // cupsRowCount
	out.PutU32(0) // cupsRowFeed
	out.PutU32(0) // cupsRowStep
	out.PutU32(uint32(hdr.Colors))

	out.PutU32(0) // cupsBorderlessScalingFactor
	out.PutU32(math.Float32bits(float32(hdr.PageW)))
	out.PutU32(math.Float32bits(float32(hdr.PageH)))
	out.PutZeros(4 * 4) // cupsImagingBBox

	// cupsInteger[16]
	out.PutU32(uint32(hdr.TotalPageCount))
	out.PutU32(pwgTransform(hdr.HFlip))
	out.PutU32(pwgTransform(hdr.VFlip))
	out.PutU32(0) // ImageBoxLeft
	out.PutU32(0) // ImageBoxTop
	out.PutU32(uint32(hdr.Width))
	out.PutU32(uint32(hdr.Height))
	out.PutU32(0x00ffffff) // AlternatePrimary
	out.PutU32(uint32(hdr.Quality))
	out.PutZeros(7 * 4) // Reserved, VendorIdentifier, VendorLength

	out.PutZeros(16 * 4)  // cupsReal
	out.PutZeros(16 * 64) // cupsString
	cstr(out, "")         // cupsMarkerType
	cstr(out, "")         // cupsRenderingIntent
	cstr(out, hdr.PageSizeName)
}

// DecodePageHeader decodes page header of the given format.
// For URF, HFlip and VFlip are not stored in the header and are
// left to the caller.
func DecodePageHeader(in *bytestream.Bytestream, format printparams.Format) (*PageHeader, error) {
	var hdr *PageHeader

	switch format {
	case printparams.PWG:
		hdr = decodePWG(in)
	case printparams.URF:
		hdr = decodeURF(in)
	default:
		return nil, fmt.Errorf("%w: %s is not a raster format", ErrBadHeader, format)
	}

	if in.Err() != nil {
		return nil, fmt.Errorf("%w: page header", ErrTruncated)
	}

	if err := hdr.check(); err != nil {
		return nil, err
	}

	return hdr, nil
}

// decodeURF reads URF page header
func decodeURF(in *bytestream.Bytestream) *PageHeader {
	hdr := &PageHeader{Format: printparams.URF, NumCopies: 1}

	hdr.BitsPerPixel = int(in.U8())
	hdr.ColorSpace = int(in.U8())
	duplex := in.U8()
	hdr.Quality = int(in.U8())
	in.Skip(8)
	hdr.Width = int(in.U32())
	hdr.Height = int(in.U32())
	hdr.ResX = int(in.U32())
	hdr.ResY = hdr.ResX
	in.Skip(8)

	hdr.Duplex = duplex == urfLongEdge || duplex == urfShortEdge
	hdr.Tumble = duplex == urfShortEdge

	hdr.BitsPerColor = 8
	hdr.Colors = hdr.BitsPerPixel / 8
	hdr.BytesPerLine = hdr.Width * hdr.Colors

	return hdr
}

// decodePWG reads PWG page header
func decodePWG(in *bytestream.Bytestream) *PageHeader {
	hdr := &PageHeader{Format: printparams.PWG}

	// MediaClass, MediaColor
	in.Skip(64 * 2)
	hdr.MediaType = in.Padded(64)

	// OutputType, AdvanceDistance, AdvanceMedia, Collate, CutMedia
	in.Skip(64 + 4*4)
	hdr.Duplex = in.U32() != 0
	hdr.ResX = int(in.U32())
	hdr.ResY = int(in.U32())

	// ImagingBoundingBox, InsertSheet, Jog, LeadingEdge, Margins,
	// ManualFeed
	in.Skip(4*4 + 3*4 + 2*4 + 4)
	hdr.MediaPosition = int(in.U32())

	// MediaWeight, MirrorPrint, NegativePrint
	in.Skip(3 * 4)
	hdr.NumCopies = int(in.U32())

	// Orientation, OutputFaceUp
	in.Skip(2 * 4)
	hdr.PageW = int(in.U32())
	hdr.PageH = int(in.U32())

	// Separations, TraySwitch
	in.Skip(2 * 4)
	hdr.Tumble = in.U32() != 0

	hdr.Width = int(in.U32())
	hdr.Height = int(in.U32())
	in.Skip(4) // cupsMediaType
	hdr.BitsPerColor = int(in.U32())
	hdr.BitsPerPixel = int(in.U32())
	hdr.BytesPerLine = int(in.U32())
	in.Skip(4) // cupsColorOrder
	hdr.ColorSpace = int(in.U32())
	in.Skip(4 * 4) // cupsCompression .. cupsRowStep
	hdr.Colors = int(in.U32())

	in.Skip(7 * 4) // float fields

	hdr.TotalPageCount = int(in.U32())
	hdr.HFlip = in.I32() < 0
	hdr.VFlip = in.I32() < 0
	in.Skip(5 * 4) // ImageBox, AlternatePrimary
	hdr.Quality = int(in.U32())
	in.Skip(7 * 4)

	in.Skip(16 * 4)  // cupsReal
	in.Skip(16 * 64) // cupsString
	in.Skip(64 * 2)  // cupsMarkerType, cupsRenderingIntent
	hdr.PageSizeName = in.Padded(64)

	// Guard against overflow on 32-bit platforms
	if hdr.Width < 0 || hdr.Height < 0 || hdr.BytesPerLine < 0 ||
		hdr.BitsPerPixel < 0 || hdr.BitsPerColor < 0 || hdr.Colors < 0 {
		hdr.Width = 0
	}

	return hdr
}

// FileHeader returns raster file header for the format of params.
// pages is the count of pages in file, URF only.
func FileHeader(params *printparams.PrintParameters, pages int) []byte {
	out := bytestream.NewWriter(12)

	if params.Format == printparams.URF {
		out.PutBytes(urfMagic)
		out.PutU32(uint32(pages))
	} else {
		out.PutBytes(pwgMagic)
	}

	return out.Bytes()
}

// DecodeFileHeader detects raster format by the file header.
// For URF it returns also count of pages.
func DecodeFileHeader(in *bytestream.Bytestream) (format printparams.Format, pages int, err error) {
	switch {
	case in.Match(pwgMagic):
		return printparams.PWG, 0, nil

	case in.Match(urfMagic):
		pages = int(in.U32())
		if in.Err() != nil {
			return printparams.Invalid, 0, fmt.Errorf("%w: file header", ErrTruncated)
		}
		return printparams.URF, pages, nil
	}

	return printparams.Invalid, 0, ErrBadMagic
}
