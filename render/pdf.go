/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Conversion of rendered pages into PDF
 */

package render

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/OpenPrinting/ipp-print/printparams"
)

// WritePDF renders all pages of the Source and writes them as PDF
// document with the paper size of params, one PDF page per page
func WritePDF(w io.Writer, src Source, params *printparams.PrintParameters,
	progress ProgressFunc) error {

	pages := src.Pages()
	if pages == 0 {
		return fmt.Errorf("PDF: no pages")
	}

	wmm := params.PaperSizeWInMillimeters()
	hmm := params.PaperSizeHInMillimeters()

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)

	for page := 1; page <= pages; page++ {
		s, err := src.Render(page, params)
		if err != nil {
			return fmt.Errorf("PDF: page %d: %w", page, err)
		}

		var buf bytes.Buffer
		if err = png.Encode(&buf, s.Image()); err != nil {
			return fmt.Errorf("PDF: page %d: %w", page, err)
		}

		name := fmt.Sprintf("page%d", page)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: wmm, Ht: hmm})
		pdf.RegisterImageOptionsReader(name,
			fpdf.ImageOptions{ImageType: "PNG"}, &buf)
		pdf.ImageOptions(name, 0, 0, wmm, hmm, false,
			fpdf.ImageOptions{}, 0, "")

		if err = pdf.Error(); err != nil {
			return fmt.Errorf("PDF: page %d: %w", page, err)
		}

		if progress != nil {
			progress(page, pages)
		}
	}

	return pdf.Output(w)
}
