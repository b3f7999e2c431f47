/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * The main function
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/OpenPrinting/ipp-print/printparams"
)

const usageText = `Usage:
    %s command [options] [arguments]

Commands are:
`

const usageTrailer = `
Printer is specified by its URI (ipp://host/ipp/print), by host
name or address (printed as ipp://host:631/ipp/print), or by the
printer alias from the configuration file.

Try %s command -h for command options
`

// Command represents the CLI command
type Command struct {
	Name  string // Command name
	Args  string // Arguments, for usage
	Help  string // One-line description
	Flags func(fs *flag.FlagSet) func(ctx context.Context, args []string) error
}

// Commands lists all commands. Initialized in init, as the list
// is referenced from the usage
var Commands []*Command

// commandFlags are common options, available in all commands
type commandFlags struct {
	verbose bool // -v: debug logging
	trace   bool // -vv: IPP and HTTP tracing
}

// usage prints usage to w
func usage(w io.Writer) {
	fmt.Fprintf(w, usageText, os.Args[0])
	for _, cmd := range Commands {
		fmt.Fprintf(w, "    %-12s - %s\n", cmd.Name, cmd.Help)
	}
	fmt.Fprintf(w, usageTrailer, os.Args[0])
}

// findCommand returns command by name
func findCommand(name string) *Command {
	for _, cmd := range Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

// run runs the command line
func run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		usage(os.Stderr)
		return ErrUsage
	}

	switch argv[0] {
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return nil
	}

	cmd := findCommand(argv[0])
	if cmd == nil {
		return fmt.Errorf("%s: unknown command", argv[0])
	}

	// Parse command options
	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n    %s %s [options] %s\n\n%s\n\nOptions are:\n",
			os.Args[0], cmd.Name, cmd.Args, cmd.Help)
		fs.PrintDefaults()
	}

	var common commandFlags
	fs.BoolVar(&common.verbose, "v", false, "verbose: debug messages")
	fs.BoolVar(&common.trace, "vv", false, "very verbose: trace IPP and HTTP")

	action := cmd.Flags(fs)

	err := fs.Parse(argv[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return ErrUsage
	}

	// Load configuration and setup logging
	err = ConfLoad()
	if err != nil {
		return err
	}

	setupLog(common)
	defer Log.Close()

	return action(ctx, fs.Args())
}

// setupLog configures logging
func setupLog(common commandFlags) {
	levels := Conf.LogConsole
	if common.verbose {
		levels |= LogDebug
	}
	if common.trace {
		levels |= LogAll
	}

	Log.SetLevels(levels)
	Log.SetColor(Conf.ColorConsole)

	if Conf.LogPath != "" {
		Log.SetFile(Conf.LogPath, Conf.LogFile,
			Conf.LogMaxFileSize, Conf.LogMaxBackupFiles)
	}

	// Libraries, using the standard log, write into our log
	log.SetFlags(0)
	log.SetOutput(NewLogLineWriter(Log, '~'))
}

// ResolvePrinter resolves the printer address, given in the command
// line, into the printer URI and job defaults for the printer
func ResolvePrinter(addr string) (uri string, defaults JobDefaults, err error) {
	if addr == "" {
		return "", defaults, ErrNoPrinter
	}

	defaults = Conf.Defaults
	if pc := Conf.Printers[addr]; pc != nil {
		addr = pc.Address
		defaults = defaults.Merge(pc.Defaults)
	}

	uri, err = PrinterURI(addr)
	return
}

// PrinterURI makes the printer URI out of its address. Address
// may be URI, or host name or address, optionally with port
func PrinterURI(addr string) (string, error) {
	if strings.Contains(addr, "://") {
		if _, err := HTTPURL(addr); err != nil {
			return "", err
		}
		return addr, nil
	}

	if addr == "" || strings.ContainsAny(addr, "/?#") {
		return "", fmt.Errorf("%q: invalid printer address", addr)
	}

	host := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		host = net.JoinHostPort(strings.Trim(addr, "[]"),
			fmt.Sprintf("%d", DefaultIPPPort))
	}

	return "ipp://" + host + DefaultIPPPath, nil
}

// formatMagic maps file signatures into MIME types
var formatMagic = []struct {
	magic string
	mime  string
}{
	{"%PDF", printparams.MimePDF},
	{"%!", printparams.MimePostscript},
	{"RaS2", printparams.MimePWG},
	{"UNIRAST\x00", printparams.MimeURF},
	{"\xff\xd8\xff", printparams.MimeJPEG},
	{"\x89PNG\r\n\x1a\n", printparams.MimePNG},
	{"GIF87a", printparams.MimeGIF},
	{"GIF89a", printparams.MimeGIF},
	{"P5", printparams.MimePNM},
	{"P6", printparams.MimePNM},
}

// formatExt maps file extensions into MIME types
var formatExt = map[string]string{
	".pdf":  printparams.MimePDF,
	".ps":   printparams.MimePostscript,
	".pwg":  printparams.MimePWG,
	".urf":  printparams.MimeURF,
	".jpg":  printparams.MimeJPEG,
	".jpeg": printparams.MimeJPEG,
	".png":  printparams.MimePNG,
	".gif":  printparams.MimeGIF,
	".pnm":  printparams.MimePNM,
	".ppm":  printparams.MimePNM,
	".pgm":  printparams.MimePNM,
}

// DetectFormat detects document format by the file signature,
// then by the file name extension. If format is not known,
// application/octet-stream is returned.
func DetectFormat(name string, data []byte) string {
	for _, m := range formatMagic {
		if bytes.HasPrefix(data, []byte(m.magic)) {
			return m.mime
		}
	}

	if mime, ok := formatExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}

	return printparams.MimeOctet
}

// The main function
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	err := run(ctx, os.Args[1:])
	cancel()

	if err != nil {
		if err != ErrUsage {
			fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(os.Args[0]), err)
		}
		os.Exit(1)
	}
}
