/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Print job finalization
 */

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/ipp"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// formatPipelines lists, for each input format, formats it can
// be converted into, in order of preference
var formatPipelines = map[string][]string{
	printparams.MimePDF: {
		printparams.MimePDF,
		printparams.MimePWG,
		printparams.MimeURF,
	},
	printparams.MimeJPEG: {
		printparams.MimeJPEG,
		printparams.MimePWG,
		printparams.MimeURF,
		printparams.MimePDF,
	},
	printparams.MimePNG: {
		printparams.MimePNG,
		printparams.MimePWG,
		printparams.MimeURF,
		printparams.MimePDF,
	},
	printparams.MimeGIF: {
		printparams.MimePWG,
		printparams.MimeURF,
		printparams.MimePDF,
	},
	printparams.MimePNM: {
		printparams.MimePWG,
		printparams.MimeURF,
		printparams.MimePDF,
	},
	printparams.MimePWG: {printparams.MimePWG},
	printparams.MimeURF: {printparams.MimeURF},
}

// pwgRasterTypes maps pwg-raster-document-type-supported keywords
// into color modes
var pwgRasterTypes = map[string]printparams.ColorMode{
	"srgb_8":  printparams.SRGB24,
	"cmyk_8":  printparams.CMYK32,
	"sgray_8": printparams.Gray8,
	"black_8": printparams.Black8,
	"sgray_1": printparams.Gray1,
	"black_1": printparams.Black1,
}

// PrintJob represents a print job: attributes, sent to the printer,
// and parameters for rendering of the document
type PrintJob struct {
	OpAttrs      ipp.Attrs                   // Operation attributes
	JobAttrs     ipp.Attrs                   // Job template attributes
	Params       printparams.PrintParameters // Rendering parameters
	Force        bool                        // Don't check capabilities
	DefaultPaper string                      // Paper size if nothing else known

	// Resolved by Finalize
	InputFormat string // Input document format
	Format      string // Document format, sent to the printer
	Compression string // Document compression, "" if none
	Passthrough bool   // Document is sent without conversion

	printer *ipp.Attrs // Printer attributes
	quirks  Quirks     // Printer quirks
}

// NewPrintJob creates a new PrintJob for the printer
func NewPrintJob(printer *ipp.Attrs, quirks Quirks) *PrintJob {
	return &PrintJob{
		Params:  printparams.Defaults(),
		printer: printer,
		quirks:  quirks,
	}
}

// Finalize resolves job settings against printer capabilities,
// for the document of the given format and count of pages (0 if
// unknown). On success, Params and job attributes are ready for
// rendering and transmission.
func (job *PrintJob) Finalize(inputFormat string, pages int) error {
	if !job.Force {
		for _, s := range settingsChecked {
			if err := s.Check(job, job.printer); err != nil {
				return err
			}
		}
	}

	// Choose document format
	err := job.finalizeFormat(inputFormat)
	if err != nil {
		return err
	}

	job.finalizeCompression()

	// Paper size and margins
	err = job.finalizePaper()
	if err != nil {
		return err
	}

	if strings.HasPrefix(job.Format, "image/") {
		for _, s := range settingsMargins {
			s.Unset(job)
		}
	}

	job.finalizeMediaCol()

	// Raster parameters
	err = job.finalizeResolution()
	if err == nil {
		err = job.finalizeColorMode()
	}
	if err != nil {
		return err
	}

	if q, ok := SettingQuality.Get(job); ok {
		job.Params.Quality = printparams.Quality(q)
	}

	if sides, ok := SettingSides.GetOrDefault(job, job.printer); ok {
		job.Params.Duplex, _ = printparams.DuplexFromSides(sides)
	}

	job.finalizeBackXform()

	if mt, ok := SettingMediaType.Get(job); ok {
		job.Params.MediaType = mt
	}

	// Pages and copies
	err = job.finalizePageRanges(pages)
	if err == nil {
		job.finalizeCopies(pages)
	}

	return err
}

// finalizeFormat chooses the document format
func (job *PrintJob) finalizeFormat(inputFormat string) error {
	target, err := job.targetFormat(inputFormat)
	if err != nil {
		return err
	}

	job.InputFormat = inputFormat
	job.Format = target
	job.Passthrough = target == inputFormat
	job.Params.Format = printparams.FormatFromMime(target)
	SettingDocumentFormat.Set(job, target)

	Log.Debug(' ', "JOB: format %s -> %s", inputFormat, target)

	return nil
}

// targetFormat returns format the document is sent in. The explicitly
// requested format is used if the printer supports it and the input
// can be converted into it. Otherwise the first supported format of
// the conversion pipeline is used. Otherwise the document is sent as
// is, if printer accepts it.
func (job *PrintJob) targetFormat(inputFormat string) (string, error) {
	supported := job.printer.Strings("document-format-supported")
	if len(supported) == 0 {
		return inputFormat, nil
	}

	accepts := func(format string) bool {
		for _, f := range supported {
			if f == format {
				return true
			}
		}
		return false
	}

	pipeline := formatPipelines[inputFormat]

	if explicit, ok := SettingDocumentFormat.Get(job); ok && accepts(explicit) {
		if explicit == inputFormat {
			return explicit, nil
		}

		for _, f := range pipeline {
			if f == explicit {
				return explicit, nil
			}
		}

		Log.Debug('!', "JOB: can't convert %s to %s", inputFormat, explicit)
	}

	for _, f := range pipeline {
		if accepts(f) {
			return f, nil
		}
	}

	if accepts(inputFormat) {
		return inputFormat, nil
	}

	return "", &FormatError{Input: inputFormat, Supported: supported}
}

// finalizeCompression chooses compression of the document data.
// Only raster data is compressed, with gzip preferred over deflate.
func (job *PrintJob) finalizeCompression() {
	requested, _ := SettingCompression.Get(job)
	SettingCompression.Unset(job)
	job.Compression = ""

	if !job.Params.Format.IsRaster() || requested == "none" ||
		!job.quirks.GetCompression() {
		return
	}

	candidates := []string{"gzip", "deflate"}
	if requested != "" {
		candidates = []string{requested}
	}

	for _, c := range candidates {
		if c != "gzip" && c != "deflate" {
			continue
		}

		if job.printer.Contains("compression-supported", ipp.String(c)) {
			job.Compression = c
			SettingCompression.Set(job, c)
			return
		}
	}
}

// finalizePaper resolves the paper size. Explicitly requested
// size must be valid, defaults are tried in order until the
// valid one is found.
func (job *PrintJob) finalizePaper() error {
	explicit := ""
	if media, ok := SettingMedia.Get(job); ok {
		explicit = media
	} else if name, ok := SettingMediaSizeName.Get(job); ok {
		explicit = name
	} else if col, ok := job.JobAttrs.Collection("media-col"); ok {
		if size, ok := col.Collection("media-size"); ok {
			x, okX := size.Int("x-dimension")
			y, okY := size.Int("y-dimension")
			if okX && okY {
				explicit = fmt.Sprintf("custom_%sx%smm",
					hundredthsMM(x), hundredthsMM(y))
			}
		}
	}

	if explicit != "" {
		err := job.Params.SetPaperSize(explicit)
		if err != nil {
			return &ParameterError{Name: "media", Value: explicit, Err: err}
		}
		return nil
	}

	var candidates []string
	if media, ok := SettingMedia.Default(job.printer); ok {
		candidates = append(candidates, media)
	}
	if name, ok := SettingMediaSizeName.Default(job.printer); ok {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, job.DefaultPaper, printparams.DefaultPaperSize)

	for _, name := range candidates {
		if name != "" && job.Params.SetPaperSize(name) == nil {
			return nil
		}
	}

	return &ParameterError{Name: "media", Value: printparams.DefaultPaperSize}
}

// hundredthsMM formats length in 1/100 mm as millimeters
func hundredthsMM(v int) string {
	return strconv.FormatFloat(float64(v)/100, 'f', -1, 64)
}

// finalizeMediaCol injects the resolved media size into media-col
// and removes the flat media, as these two are mutually exclusive.
//
// Any member of media-col counts as a media choice. Paper size is
// always resolved by finalizePaper at this point, so media-size is
// never empty.
func (job *PrintJob) finalizeMediaCol() {
	if !job.JobAttrs.Has("media-col") {
		return
	}

	x, y := job.Params.PaperSizeInHundredthsMM()
	size := ipp.NewCollection(
		ipp.Member{Name: "x-dimension",
			Attr: ipp.MakeAttr(goipp.TagInteger, ipp.Integer(x))},
		ipp.Member{Name: "y-dimension",
			Attr: ipp.MakeAttr(goipp.TagInteger, ipp.Integer(y))},
	)

	col, _ := job.JobAttrs.Collection("media-col")
	members := col.Clone()
	members.Delete("media-size-name")
	members.Add("media-size", goipp.TagBeginCollection, size)

	job.JobAttrs.Add("media-col", goipp.TagBeginCollection,
		ipp.Collection{Members: members})
	SettingMedia.Unset(job)
}

// finalizeResolution resolves the printing resolution. For raster
// formats it is adjusted to the nearest resolution, supported
// by the printer.
func (job *PrintJob) finalizeResolution() error {
	res, explicit := SettingResolution.Get(job)
	if !explicit {
		var ok bool
		res, ok = SettingResolution.Default(job.printer)
		if !ok {
			res = ipp.Resolution{X: 300, Y: 300, Units: goipp.UnitsDpi}
		}
	}

	var err error
	switch job.Params.Format {
	case printparams.PWG:
		res, err = job.snapPWGResolution(res)
	case printparams.URF:
		res, err = job.snapURFResolution(res)
	default:
		if explicit && !job.Force {
			err = SettingResolution.Check(job, job.printer)
		}
	}

	if err != nil {
		return err
	}

	if explicit {
		SettingResolution.Set(job, res)
	}

	job.Params.HwResW, job.Params.HwResH = ResolutionDPI(res)
	return nil
}

// snapPWGResolution returns resolution from the
// pwg-raster-document-resolution-supported, nearest to the
// requested by Manhattan distance. The first listed wins on ties.
func (job *PrintJob) snapPWGResolution(res ipp.Resolution) (ipp.Resolution, error) {
	x, y := ResolutionDPI(res)

	var best ipp.Resolution
	bestDist := -1

	for _, r := range job.printer.Resolutions("pwg-raster-document-resolution-supported") {
		rx, ry := ResolutionDPI(r)
		dist := absInt(rx-x) + absInt(ry-y)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = r, dist
		}
	}

	if bestDist < 0 {
		return res, &ParameterError{
			Name:  "printer-resolution",
			Value: res.String(),
			Err:   errors.New("no supported PWG raster resolutions"),
		}
	}

	return best, nil
}

// snapURFResolution returns resolution from the RS token of
// urf-supported, nearest to the requested. URF resolution is
// symmetric, so the lower of requested values is used. The first
// listed wins on ties.
func (job *PrintJob) snapURFResolution(res ipp.Resolution) (ipp.Resolution, error) {
	x, y := ResolutionDPI(res)
	want := min(x, y)

	best, bestDist := 0, -1
	for _, r := range urfResolutions(job.printer) {
		dist := absInt(r - want)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = r, dist
		}
	}

	if bestDist < 0 {
		return res, &ParameterError{
			Name:  "printer-resolution",
			Value: res.String(),
			Err:   errors.New("no supported URF resolutions"),
		}
	}

	return ipp.Resolution{
		X:     int32(best),
		Y:     int32(best),
		Units: goipp.UnitsDpi,
	}, nil
}

// urfTokens returns tokens of urf-supported. Some printers send
// it as a single comma-separated string.
func urfTokens(printer *ipp.Attrs) []string {
	var tokens []string
	for _, s := range printer.Strings("urf-supported") {
		for _, tok := range strings.Split(s, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

// urfResolutions returns resolutions, listed in the RS token
// of urf-supported as RSxxx[-yyy...]
func urfResolutions(printer *ipp.Attrs) []int {
	var res []int
	for _, tok := range urfTokens(printer) {
		if !strings.HasPrefix(tok, "RS") {
			continue
		}

		for _, s := range strings.Split(tok[2:], "-") {
			if v, err := strconv.Atoi(s); err == nil && v > 0 {
				res = append(res, v)
			}
		}
	}
	return res
}

// hasURFToken reports whether urf-supported contains the token
func hasURFToken(printer *ipp.Attrs, token string) bool {
	for _, tok := range urfTokens(printer) {
		if tok == token {
			return true
		}
	}
	return false
}

// finalizeColorMode chooses the bitmap color mode from the
// requested print-color-mode and the printer raster capabilities
func (job *PrintJob) finalizeColorMode() error {
	mode, ok := SettingColorMode.GetOrDefault(job, job.printer)
	if !ok {
		mode = "auto"
	}

	var candidates []printparams.ColorMode
	switch job.Params.Format {
	case printparams.PWG:
		var types []string
		switch mode {
		case "monochrome", "auto-monochrome", "process-monochrome":
			types = []string{"sgray_8", "black_1"}
		case "bi-level", "process-bi-level":
			types = []string{"black_1"}
		default:
			types = []string{"srgb_8", "sgray_8", "black_1"}
		}

		supported := job.printer.Strings("pwg-raster-document-type-supported")
		for _, t := range types {
			for _, s := range supported {
				if s == t {
					candidates = append(candidates, pwgRasterTypes[t])
				}
			}
		}

		// Any known type is better than nothing
		for _, s := range supported {
			if m, ok := pwgRasterTypes[s]; ok {
				candidates = append(candidates, m)
			}
		}

	case printparams.URF:
		color := hasURFToken(job.printer, "SRGB24")
		gray := hasURFToken(job.printer, "W8")

		switch mode {
		case "monochrome", "auto-monochrome", "process-monochrome",
			"bi-level", "process-bi-level":
			if gray {
				candidates = append(candidates, printparams.Gray8)
			}
		}

		if color {
			candidates = append(candidates, printparams.SRGB24)
		}
		if gray {
			candidates = append(candidates, printparams.Gray8)
		}

	default:
		switch mode {
		case "monochrome", "auto-monochrome", "process-monochrome",
			"bi-level", "process-bi-level":
			candidates = append(candidates, printparams.Gray8)
		default:
			candidates = append(candidates, printparams.SRGB24)
		}
	}

	if len(candidates) == 0 {
		return &ParameterError{
			Name:  "print-color-mode",
			Value: mode,
			Err:   fmt.Errorf("no supported %s color space", job.Params.Format),
		}
	}

	job.Params.ColorMode = candidates[0]
	return nil
}

// finalizeBackXform sets the back side transform, required by
// the printer for duplex raster
func (job *PrintJob) finalizeBackXform() {
	job.Params.BackXform = printparams.Normal

	switch job.Params.Format {
	case printparams.PWG:
		s, _ := job.printer.String("pwg-raster-document-sheet-back")
		job.Params.BackXform, _ = printparams.ParseBackXform(s)

	case printparams.URF:
		switch {
		case hasURFToken(job.printer, "DM2"):
			job.Params.BackXform = printparams.Flipped
		case hasURFToken(job.printer, "DM3"):
			job.Params.BackXform = printparams.Rotated
		case hasURFToken(job.printer, "DM4"):
			job.Params.BackXform = printparams.ManualTumble
		}
	}
}

// finalizePageRanges applies page-ranges to the rendering. The
// attribute itself is only sent along with unconverted documents.
func (job *PrintJob) finalizePageRanges(pages int) error {
	ranges, ok := SettingPageRanges.Get(job)
	if !ok {
		return nil
	}

	job.Params.PageRanges = ranges
	if job.Passthrough {
		return nil
	}

	SettingPageRanges.Unset(job)

	if pages > 0 && len(job.Params.PageSequence(pages)) == 0 {
		return &ParameterError{
			Name:  "page-ranges",
			Value: ranges.String(),
			Err:   fmt.Errorf("document has %d pages", pages),
		}
	}

	return nil
}

// finalizeCopies decides how copies are made. If the printer
// can't make copies itself, they are made by replication of pages
// in the rendered document.
func (job *PrintJob) finalizeCopies(pages int) {
	job.Params.Copies = 1

	copies, ok := SettingCopies.Get(job)
	if !ok || copies <= 1 || job.Passthrough || job.nativeCopies(copies) {
		return
	}

	mdh, _ := SettingMultipleDocumentHandling.GetOrDefault(job, job.printer)

	job.Params.Copies = copies
	job.Params.Collated = mdh != "separate-documents-uncollated-copies"
	SettingCopies.Unset(job)

	Log.Debug(' ', "JOB: %d copies by page replication", copies)

	// Single page needs no duplex: copies would be padded
	// with blank back sides. A range of several pages keeps
	// duplex, even if contiguous.
	if job.Params.IsTwoSided() && pages > 0 {
		p := job.Params
		p.Copies = 1
		if len(p.PageSequence(pages)) == 1 {
			job.Params.Duplex = printparams.OneSided
			if SettingSides.IsSet(job) {
				SettingSides.Set(job, job.Params.Duplex.Sides())
			}
		}
	}
}

// nativeCopies reports whether printer makes copies itself
func (job *PrintJob) nativeCopies(copies int) bool {
	if !job.quirks.GetNativeCopies() {
		return false
	}

	r, ok := job.printer.Range("copies-supported")
	if !ok || int(r.High) < copies {
		return false
	}

	if job.Params.Format.IsRaster() &&
		job.printer.Contains("document-format-varying-attributes",
			ipp.String("copies")) {
		return false
	}

	return true
}

// absInt returns absolute value of v
func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
