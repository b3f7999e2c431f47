/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Raster file reader
 */

package raster

import (
	"io"

	"github.com/OpenPrinting/ipp-print/bytestream"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// Reader reads pages of PWG or URF raster file
type Reader struct {
	Format    printparams.Format    // File format
	Pages     int                   // Page count from URF file header
	BackXform printparams.BackXform // Back side transform, URF only
	in        *bytestream.Bytestream
	page      int
}

// NewReader creates Reader on top of raster file data
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{in: bytestream.New(data)}

	var err error
	r.Format, r.Pages, err = DecodeFileHeader(r.in)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Next decodes the next page. At the end of file it returns io.EOF.
func (r *Reader) Next() (*PageHeader, []byte, error) {
	if r.in.AtEnd() {
		return nil, nil, io.EOF
	}

	hdr, err := DecodePageHeader(r.in, r.Format)
	if err != nil {
		return nil, nil, err
	}

	r.page++

	// URF doesn't store transforms; restore them from duplex mode
	if r.Format == printparams.URF && hdr.Duplex {
		params := printparams.PrintParameters{
			Duplex:    printparams.TwoSidedLongEdge,
			BackXform: r.BackXform,
		}

		if hdr.Tumble {
			params.Duplex = printparams.TwoSidedShortEdge
		}

		if params.IsBackside(r.page) {
			hdr.HFlip = params.BackHFlip()
			hdr.VFlip = params.BackVFlip()
		}
	}

	bitmap, err := DecodePage(r.in, hdr)
	if err != nil {
		return nil, nil, err
	}

	return hdr, bitmap, nil
}
