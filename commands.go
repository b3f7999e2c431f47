/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * CLI commands
 */

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/ipp"
	"github.com/OpenPrinting/ipp-print/printparams"
	"github.com/OpenPrinting/ipp-print/raster"
	"github.com/OpenPrinting/ipp-print/render"
)

func init() {
	Commands = []*Command{
		{"info", "[-txt] printer", "print printer information", cmdInfo},
		{"identify", "printer", "make printer identify itself", cmdIdentify},
		{"get-attrs", "printer [attribute...]", "print printer attributes", cmdGetAttrs},
		{"set-attrs", "printer name=value...", "set printer attributes", cmdSetAttrs},
		{"get-jobs", "printer", "list print jobs", cmdGetJobs},
		{"cancel-job", "printer", "cancel print job (the last submitted by default)", cmdCancelJob},
		{"print", "printer file", "print the file", cmdPrint},
		{"discover", "", "discover printers on the local network", cmdDiscover},
		{"convert", "input output", "convert image into PWG, URF or PDF file", cmdConvert},
		{"unraster", "input prefix", "convert PWG or URF file into images, one per page", cmdUnraster},
	}
}

// openPrinter creates Printer for the address, given in the
// command line. If refresh is true, printer attributes are loaded.
func openPrinter(ctx context.Context, addr string, refresh bool) (*Printer, JobDefaults, error) {
	uri, defaults, err := ResolvePrinter(addr)
	if err != nil {
		return nil, defaults, err
	}

	transport := NewHTTPTransport(Conf.Timeout, Conf.VerifyTLS, nil)
	p := NewPrinter(uri, transport, Conf.Quirks)

	p.UserName = defaults.UserName
	if p.UserName == "" {
		if u, err := user.Current(); err == nil {
			p.UserName = u.Username
		}
	}

	if refresh {
		if err = p.Refresh(ctx); err != nil {
			return nil, defaults, err
		}
	}

	return p, defaults, nil
}

// printerState loads the persistent state of the printer
func printerState(p *Printer) *PrinterState {
	uuid, _ := p.Attrs.String("printer-uuid")
	host := p.URI
	if u, err := url.Parse(p.URI); err == nil {
		host = u.Hostname()
	}

	state := LoadPrinterState(PathStateDir(), PrinterStateIdent(uuid, host))
	state.URI = p.URI
	if mm := p.MakeModel(); mm != "" {
		state.MakeModel = mm
	}

	return state
}

// usageArgs checks count of command arguments
func usageArgs(fs *flag.FlagSet, args []string, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		fs.Usage()
		return ErrUsage
	}
	return nil
}

// cmdInfo implements the "info" command
func cmdInfo(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	txt := fs.Bool("txt", false, "print as DNS-SD TXT record")
	quirks := fs.Bool("quirks", false, "print applied quirks")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 1, 1); err != nil {
			return err
		}

		p, _, err := openPrinter(ctx, args[0], true)
		if err != nil {
			return err
		}

		info := NewPrinterInfo(&p.Attrs)
		if *txt {
			for _, s := range info.TxtRecord(&p.Attrs).Strings() {
				fmt.Println(s)
			}
		} else {
			info.Write(os.Stdout)
		}

		if *quirks {
			for _, q := range p.Quirks.All() {
				fmt.Printf("quirk %s = %s (%s)\n", q.Name, q.RawValue, q.Origin)
			}
		}

		return nil
	}
}

// cmdIdentify implements the "identify" command
func cmdIdentify(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	actions := fs.String("action", "", "comma-separated actions: display, flash, sound, speak")
	message := fs.String("message", "", "message to display or speak")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 1, 1); err != nil {
			return err
		}

		p, _, err := openPrinter(ctx, args[0], false)
		if err != nil {
			return err
		}

		var list []string
		if *actions != "" {
			list = strings.Split(*actions, ",")
		}

		return p.Identify(ctx, list, *message)
	}
}

// cmdGetAttrs implements the "get-attrs" command
func cmdGetAttrs(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 1, -1); err != nil {
			return err
		}

		p, _, err := openPrinter(ctx, args[0], false)
		if err != nil {
			return err
		}

		attrs, err := p.GetAttributes(ctx, args[1:])
		if err != nil {
			return err
		}

		fmt.Print(ipp.FormatAttrs(attrs, 0))
		return nil
	}
}

// cmdSetAttrs implements the "set-attrs" command
func cmdSetAttrs(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 2, -1); err != nil {
			return err
		}

		p, _, err := openPrinter(ctx, args[0], false)
		if err != nil {
			return err
		}

		// Parse name=value pairs
		type pair struct{ name, value string }
		var pairs []pair
		var names []string

		for _, arg := range args[1:] {
			name, value, ok := strings.Cut(arg, "=")
			if !ok || name == "" {
				return fmt.Errorf("%q: name=value expected", arg)
			}

			pairs = append(pairs, pair{name, value})
			names = append(names, name)
		}

		// Value types follow the current printer attributes
		current, err := p.GetAttributes(ctx, names)
		if err != nil {
			return err
		}

		var attrs ipp.Attrs
		for _, pr := range pairs {
			tag := goipp.TagKeyword
			if attr, ok := current.Get(pr.name); ok {
				tag = attr.Tag
			}

			vals, err := ParseAttrValues(tag, pr.value)
			if err != nil {
				return &ParameterError{Name: pr.name, Value: pr.value, Err: err}
			}

			attrs.Add(pr.name, tag, vals...)
		}

		return p.SetAttributes(ctx, attrs)
	}
}

// ParseAttrValues parses comma-separated attribute values of
// the given tag. Text and name values are not split.
func ParseAttrValues(tag goipp.Tag, s string) ([]ipp.Value, error) {
	switch tag {
	case goipp.TagText, goipp.TagName, goipp.TagTextLang, goipp.TagNameLang:
		return []ipp.Value{ipp.String(s)}, nil
	case goipp.TagBeginCollection, goipp.TagDateTime, goipp.TagString:
		return nil, fmt.Errorf("%s values not supported", tag)
	}

	var vals []ipp.Value
	for _, item := range strings.Split(s, ",") {
		var v ipp.Value

		switch tag {
		case goipp.TagInteger, goipp.TagEnum:
			i, err := strconv.ParseInt(item, 10, 32)
			if err != nil {
				return nil, errors.New("integer expected")
			}
			v = ipp.Integer(i)

		case goipp.TagBoolean:
			b, err := strconv.ParseBool(item)
			if err != nil {
				return nil, errors.New("boolean expected")
			}
			v = ipp.Boolean(b)

		case goipp.TagRange:
			lo, hi, _ := strings.Cut(item, "-")
			l, err := strconv.ParseInt(lo, 10, 32)
			h, err2 := strconv.ParseInt(hi, 10, 32)
			if err != nil || err2 != nil || l > h {
				return nil, errors.New("range expected")
			}
			v = ipp.Range{Low: int32(l), High: int32(h)}

		case goipp.TagResolution:
			res, err := ParseResolution(item)
			if err != nil {
				return nil, errors.New("resolution expected")
			}
			v = res

		default:
			v = ipp.String(item)
		}

		vals = append(vals, v)
	}

	return vals, nil
}

// cmdGetJobs implements the "get-jobs" command
func cmdGetJobs(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	which := fs.String("which", "", "completed, not-completed or all")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 1, 1); err != nil {
			return err
		}

		p, _, err := openPrinter(ctx, args[0], false)
		if err != nil {
			return err
		}

		jobs, err := p.GetJobs(ctx, *which)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			fmt.Printf("%-6d %-18s %-12s %s\n",
				job.ID, job.StateName(), job.User, job.Name)
		}

		return nil
	}
}

// cmdCancelJob implements the "cancel-job" command
func cmdCancelJob(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	id := fs.Int("id", 0, "job-id, the last submitted job by default")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 1, 1); err != nil {
			return err
		}

		// printer-uuid is needed to find the last job
		p, _, err := openPrinter(ctx, args[0], *id == 0)
		if err != nil {
			return err
		}

		jobID := *id
		if jobID == 0 {
			jobID = printerState(p).LastJobID
			if jobID == 0 {
				return ErrNoJob
			}
		}

		err = p.CancelJob(ctx, jobID)
		if err == nil {
			fmt.Printf("job %d canceled\n", jobID)
		}

		return err
	}
}

// jobFlags are the job options of the "print" command
type jobFlags struct {
	format      string
	outFormat   string
	copies      int
	collate     string
	sides       string
	colorMode   string
	quality     string
	media       string
	mediaType   string
	mediaSource string
	outputBin   string
	resolution  string
	pageRanges  string
	numberUp    int
	orientation string
	scaling     string
	jobName     string
	compression string
	force       bool
}

// orientations maps orientation names into orientation-requested
var orientations = map[string]int{
	"portrait":          3,
	"landscape":         4,
	"reverse-landscape": 5,
	"reverse-portrait":  6,
}

// register registers job options
func (jf *jobFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&jf.format, "format", "", "input document MIME type (detected by default)")
	fs.StringVar(&jf.outFormat, "document-format", "", "document format, sent to the printer")
	fs.IntVar(&jf.copies, "copies", 1, "number of copies")
	fs.StringVar(&jf.collate, "collate", "", "collated or uncollated copies")
	fs.StringVar(&jf.sides, "sides", "", "one-sided, two-sided-long-edge or two-sided-short-edge")
	fs.StringVar(&jf.colorMode, "color-mode", "", "print-color-mode, e.g. color or monochrome")
	fs.StringVar(&jf.quality, "quality", "", "draft, normal or high")
	fs.StringVar(&jf.media, "media", "", "paper size, e.g. iso_a4_210x297mm")
	fs.StringVar(&jf.mediaType, "media-type", "", "media type, e.g. stationery")
	fs.StringVar(&jf.mediaSource, "media-source", "", "input tray, e.g. tray-1")
	fs.StringVar(&jf.outputBin, "output-bin", "", "output bin, e.g. face-down")
	fs.StringVar(&jf.resolution, "resolution", "", "resolution, e.g. 300 or 600x300dpi")
	fs.StringVar(&jf.pageRanges, "page-ranges", "", "pages to print, e.g. 1-3,7")
	fs.IntVar(&jf.numberUp, "number-up", 0, "pages per side")
	fs.StringVar(&jf.orientation, "orientation", "", "portrait, landscape, reverse-landscape or reverse-portrait")
	fs.StringVar(&jf.scaling, "scaling", "", "print-scaling, e.g. fit or fill")
	fs.StringVar(&jf.jobName, "name", "", "job name (file name by default)")
	fs.StringVar(&jf.compression, "compression", "", "gzip, deflate or none")
	fs.BoolVar(&jf.force, "force", false, "don't check printer capabilities")
}

// apply applies job options, with defaults, to the job
func (jf *jobFlags) apply(job *PrintJob, defaults JobDefaults, file string) error {
	set := func(s *Setting[string], v, def string) {
		if v == "" {
			v = def
		}
		if v != "" {
			s.Set(job, v)
		}
	}

	job.Force = jf.force
	job.DefaultPaper = defaults.PaperSize

	set(SettingJobName, jf.jobName, filepath.Base(file))
	set(SettingDocumentFormat, jf.outFormat, "")
	set(SettingCompression, jf.compression, defaults.Compression)
	set(SettingSides, jf.sides, defaults.Sides)
	set(SettingColorMode, jf.colorMode, defaults.ColorMode)
	set(SettingMedia, jf.media, "")
	set(SettingMediaType, jf.mediaType, "")
	set(SettingMediaSource, jf.mediaSource, "")
	set(SettingOutputBin, jf.outputBin, "")
	set(SettingPrintScaling, jf.scaling, "")

	if q := jf.quality; q != "" || defaults.Quality != "" {
		if q == "" {
			q = defaults.Quality
		}

		quality, err := ParseQuality(q)
		if err != nil {
			return err
		}
		SettingQuality.Set(job, int(quality))
	}

	if jf.resolution != "" {
		res, err := ParseResolution(jf.resolution)
		if err != nil {
			return err
		}
		SettingResolution.Set(job, res)
	}

	if jf.pageRanges != "" {
		ranges, err := printparams.ParsePageRanges(jf.pageRanges)
		if err != nil {
			return &ParameterError{Name: "page-ranges", Value: jf.pageRanges, Err: err}
		}
		SettingPageRanges.Set(job, ranges)
	}

	if jf.copies < 1 {
		return &ParameterError{Name: "copies", Value: strconv.Itoa(jf.copies)}
	} else if jf.copies > 1 {
		SettingCopies.Set(job, jf.copies)
	}

	switch jf.collate {
	case "":
	case "collated":
		SettingMultipleDocumentHandling.Set(job, "separate-documents-collated-copies")
	case "uncollated":
		SettingMultipleDocumentHandling.Set(job, "separate-documents-uncollated-copies")
	default:
		return &ParameterError{Name: "collate", Value: jf.collate}
	}

	if jf.numberUp > 0 {
		SettingNumberUp.Set(job, jf.numberUp)
	}

	if jf.orientation != "" {
		o, ok := orientations[jf.orientation]
		if !ok {
			return &ParameterError{Name: "orientation-requested", Value: jf.orientation}
		}
		SettingOrientation.Set(job, o)
	}

	return nil
}

// documentSource returns render.Source for the document. For
// formats that cannot be rendered, nil Source is returned.
func documentSource(mime string, data []byte) (render.Source, error) {
	var src *render.ImageSource
	var err error

	switch mime {
	case printparams.MimeJPEG, printparams.MimePNG:
		src, err = render.DecodeImage(bytes.NewReader(data))
	case printparams.MimeGIF:
		src, err = render.DecodeGIF(bytes.NewReader(data))
	case printparams.MimePNM:
		src, err = render.DecodePNM(data)
	default:
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return src, nil
}

// writeDocument writes the document, converted as the job requires
func writeDocument(w io.Writer, job *PrintJob, data []byte, src render.Source) error {
	if job.Passthrough {
		_, err := w.Write(data)
		return err
	}

	progress := func(page, total int) {
		Log.Debug(' ', "PRINT: page %d of %d", page, total)
	}

	switch {
	case src == nil:
	case job.Params.Format.IsRaster():
		return render.RasterPages(w, src, &job.Params, progress)
	case job.Params.Format == printparams.PDF:
		return render.WritePDF(w, src, &job.Params, progress)
	}

	return fmt.Errorf("%s -> %s: %w", job.InputFormat, job.Format, ErrNoRenderer)
}

// cmdPrint implements the "print" command
func cmdPrint(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	var jf jobFlags
	jf.register(fs)

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 2, 2); err != nil {
			return err
		}

		file := args[1]
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		if len(data) == 0 {
			return fmt.Errorf("%s: %w", file, ErrEmptyDocument)
		}

		inputFormat := jf.format
		if inputFormat == "" {
			inputFormat = DetectFormat(file, data)
		}

		src, err := documentSource(inputFormat, data)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}

		pages := 0
		if src != nil {
			pages = src.Pages()
		}

		p, defaults, err := openPrinter(ctx, args[0], true)
		if err != nil {
			return err
		}

		job := NewPrintJob(&p.Attrs, p.Quirks)
		if err = jf.apply(job, defaults, file); err != nil {
			return err
		}

		if err = job.Finalize(inputFormat, pages); err != nil {
			return err
		}

		if !job.Passthrough && src == nil {
			return fmt.Errorf("%s -> %s: %w", inputFormat, job.Format, ErrNoRenderer)
		}

		Log.Debug(' ', "PRINT: %s as %s, compression %q",
			file, job.Format, job.Compression)

		info, err := p.Print(ctx, job, func(w io.Writer) error {
			return writeDocument(w, job, data, src)
		})

		if err != nil {
			return err
		}

		// Failure to save state doesn't fail the job
		printerState(p).SetLastJob(info.ID, info.URI)

		fmt.Printf("job-id %d (%s)\n", info.ID, info.StateName())
		return nil
	}
}

// cmdDiscover implements the "discover" command
func cmdDiscover(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	txt := fs.Bool("txt", false, "print TXT records")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 0, 0); err != nil {
			return err
		}

		printers, err := DnsSdBrowse(ctx, Conf.DiscoverTimeout)
		if err != nil {
			return err
		}

		for _, p := range printers {
			fmt.Printf("%s\n    %s\n", p.Summary(), p.URI())
			if *txt {
				for _, s := range p.Txt.Strings() {
					fmt.Printf("    %s\n", s)
				}
			}
		}

		return nil
	}
}

// ParseOutputFormat parses output format of the "convert"
// command: pwg, urf, pdf or MIME type
func ParseOutputFormat(s string) (printparams.Format, error) {
	f := printparams.FormatFromMime(s)
	switch strings.ToLower(s) {
	case "pwg":
		f = printparams.PWG
	case "urf":
		f = printparams.URF
	case "pdf":
		f = printparams.PDF
	}

	if f != printparams.PWG && f != printparams.URF && f != printparams.PDF {
		return printparams.Invalid,
			&ParameterError{Name: "format", Value: s, Err: errors.New("must be pwg, urf or pdf")}
	}

	return f, nil
}

// cmdConvert implements the "convert" command
func cmdConvert(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	format := fs.String("format", "", "pwg, urf or pdf (by output file extension by default)")
	media := fs.String("media", printparams.DefaultPaperSize, "paper size")
	resolution := fs.String("resolution", "300", "resolution, e.g. 300 or 600x300dpi")
	colorMode := fs.String("color-mode", "srgb24", "srgb24, cmyk32, gray8, black8, gray1 or black1")
	sides := fs.String("sides", "one-sided", "one-sided, two-sided-long-edge or two-sided-short-edge")
	backXform := fs.String("back-xform", "normal", "back side transform: normal, rotated, flipped or manual-tumble")
	copies := fs.Int("copies", 1, "number of copies")
	uncollated := fs.Bool("uncollated", false, "uncollated copies")
	pageRanges := fs.String("page-ranges", "", "pages, e.g. 1-3,7")
	inFormat := fs.String("input-format", "", "input MIME type (detected by default)")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 2, 2); err != nil {
			return err
		}

		in, out := args[0], args[1]

		// Setup parameters
		params := printparams.Defaults()

		f := *format
		if f == "" {
			f = strings.TrimPrefix(filepath.Ext(out), ".")
		}

		var err error
		params.Format, err = ParseOutputFormat(f)
		if err != nil {
			return err
		}

		if err = params.SetPaperSize(*media); err != nil {
			return &ParameterError{Name: "media", Value: *media, Err: err}
		}

		res, err := ParseResolution(*resolution)
		if err != nil {
			return err
		}
		params.HwResW, params.HwResH = ResolutionDPI(res)

		var ok bool
		if params.ColorMode, ok = printparams.ParseColorMode(*colorMode); !ok {
			return &ParameterError{Name: "color-mode", Value: *colorMode}
		}

		if params.Duplex, ok = printparams.DuplexFromSides(*sides); !ok {
			return &ParameterError{Name: "sides", Value: *sides}
		}

		if params.BackXform, ok = printparams.ParseBackXform(*backXform); !ok {
			return &ParameterError{Name: "back-xform", Value: *backXform}
		}

		if *copies < 1 {
			return &ParameterError{Name: "copies", Value: strconv.Itoa(*copies)}
		}
		params.Copies = *copies
		params.Collated = !*uncollated

		if *pageRanges != "" {
			params.PageRanges, err = printparams.ParsePageRanges(*pageRanges)
			if err != nil {
				return &ParameterError{Name: "page-ranges", Value: *pageRanges, Err: err}
			}
		}

		// Load input
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}

		mime := *inFormat
		if mime == "" {
			mime = DetectFormat(in, data)
		}

		src, err := documentSource(mime, data)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		} else if src == nil {
			return fmt.Errorf("%s: %s: %w", in, mime, ErrNoRenderer)
		}

		// Convert
		file, err := os.Create(out)
		if err != nil {
			return err
		}

		w := bufio.NewWriter(file)
		if params.Format == printparams.PDF {
			err = render.WritePDF(w, src, &params, nil)
		} else {
			err = render.RasterPages(w, src, &params, nil)
		}

		if err == nil {
			err = w.Flush()
		}

		if err2 := file.Close(); err == nil {
			err = err2
		}

		if err != nil {
			os.Remove(out)
			return fmt.Errorf("%s: %w", out, err)
		}

		return nil
	}
}

// cmdUnraster implements the "unraster" command
func cmdUnraster(fs *flag.FlagSet) func(ctx context.Context, args []string) error {
	pnm := fs.Bool("pnm", false, "write PNM images instead of PNG")
	backXform := fs.String("back-xform", "normal", "URF back side transform")

	return func(ctx context.Context, args []string) error {
		if err := usageArgs(fs, args, 2, 2); err != nil {
			return err
		}

		in, prefix := args[0], args[1]

		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}

		r, err := raster.NewReader(data)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}

		var ok bool
		if r.BackXform, ok = printparams.ParseBackXform(*backXform); !ok {
			return &ParameterError{Name: "back-xform", Value: *backXform}
		}

		for page := 1; ; page++ {
			hdr, bitmap, err := r.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("%s: page %d: %w", in, page, err)
			}

			Log.Debug(' ', "UNRASTER: page %d: %s", page, hdr)

			mode, ok := hdr.ColorMode()
			if !ok {
				return fmt.Errorf("%s: page %d: unsupported color space", in, page)
			}

			s, err := render.SurfaceFromBitmap(bitmap, hdr.Width, hdr.Height, mode)
			if err != nil {
				return fmt.Errorf("%s: page %d: %w", in, page, err)
			}

			ext := "png"
			if *pnm {
				ext = "pnm"
			}

			name := fmt.Sprintf("%s-%d.%s", prefix, page, ext)
			if err = writeImage(name, s, *pnm); err != nil {
				return err
			}

			fmt.Println(name)
		}

		return nil
	}
}

// writeImage writes Surface into PNG or PNM file
func writeImage(name string, s *render.Surface, pnm bool) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}

	if pnm {
		err = render.EncodePNM(file, s)
	} else {
		err = png.Encode(file, s.Image())
	}

	if err2 := file.Close(); err == nil {
		err = err2
	}

	return err
}
