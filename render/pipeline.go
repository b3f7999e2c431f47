/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Raster page pipeline
 */

package render

import (
	"fmt"
	"io"

	"github.com/OpenPrinting/ipp-print/bytestream"
	"github.com/OpenPrinting/ipp-print/printparams"
	"github.com/OpenPrinting/ipp-print/raster"
)

// ProgressFunc is called after each emitted page
type ProgressFunc func(page, total int)

// RasterPages renders the page sequence of params from the Source,
// encodes it as PWG or URF raster and writes to w, one page at a
// time. Blank pages of the sequence are rendered white.
func RasterPages(w io.Writer, src Source, params *printparams.PrintParameters,
	progress ProgressFunc) error {

	if !params.Format.IsRaster() {
		return fmt.Errorf("%s is not a raster format", params.Format)
	}

	seq := params.PageSequence(src.Pages())
	if len(seq) == 0 {
		return fmt.Errorf("no pages to print")
	}

	if _, err := w.Write(raster.FileHeader(params, len(seq))); err != nil {
		return err
	}

	// The last rendered page is reused, so uncollated copies are
	// rendered once
	var last []byte
	lastPage := -1

	for i, page := range seq {
		if page != lastPage {
			bitmap, err := renderBitmap(src, page, params)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}

			last, lastPage = bitmap, page
		}

		out := bytestream.NewWriter(raster.PWGHeaderSize + len(last)/4)
		err := raster.EncodePage(out, last, i+1, params)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		if _, err = w.Write(out.Bytes()); err != nil {
			return err
		}

		if progress != nil {
			progress(i+1, len(seq))
		}
	}

	return nil
}

// renderBitmap renders page in the color mode of params
func renderBitmap(src Source, page int, params *printparams.PrintParameters) ([]byte, error) {
	var s *Surface

	if page == printparams.InvalidPage {
		s = NewSurface(params.PaperSizeWInPixels(), params.PaperSizeHInPixels(),
			params.ColorMode.Colors() == 1)
	} else {
		var err error
		s, err = src.Render(page, params)
		if err != nil {
			return nil, err
		}
	}

	return Bitmap(s, params.ColorMode)
}
