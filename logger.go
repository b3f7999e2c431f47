/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Logging
 */

package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/term"

	"github.com/OpenPrinting/ipp-print/ipp"
)

var (
	logMessagePool = sync.Pool{New: func() interface{} { return &LogMessage{} }}
	logBufferPool  = sync.Pool{New: func() interface{} { return &bytes.Buffer{} }}
)

// LogLevel enumerates possible log levels. Levels are bits of the mask.
type LogLevel int

// Log levels
const (
	LogError LogLevel = 1 << iota
	LogInfo
	LogDebug
	LogTraceIPP
	LogTraceHTTP

	LogTraceAll = LogTraceIPP | LogTraceHTTP
	LogAll      = LogError | LogInfo | LogDebug | LogTraceAll
)

// Log is the program-wide logger. It writes to stderr until
// configured otherwise.
var Log = NewLogger(os.Stderr)

// Logger implements logging facilities. Messages go to the console
// and, optionally, to the log file, each with its own level mask.
type Logger struct {
	lock sync.Mutex // Write lock

	console       io.Writer // Console output, nil if none
	consoleLevels LogLevel  // Console level mask
	color         bool      // Colorize console output

	path       string       // Path to log file, "" if none
	fileLevels LogLevel     // Log file level mask
	maxSize    int64        // Rotate when file grows larger
	maxBackups uint         // Count of rotated files to keep
	file       *os.File     // Log file, opened on demand
	time       bytes.Buffer // Time prefix buffer
}

// NewLogger creates new logger that writes LogError and LogInfo
// messages to the console
func NewLogger(console io.Writer) *Logger {
	return &Logger{
		console:       console,
		consoleLevels: LogError | LogInfo,
	}
}

// SetLevels sets console level mask
func (l *Logger) SetLevels(levels LogLevel) {
	l.lock.Lock()
	l.consoleLevels = levels
	l.lock.Unlock()
}

// SetColor enables or disables colorized console output. Colors
// are only used when console is a terminal.
func (l *Logger) SetColor(enable bool) {
	l.lock.Lock()
	l.color = enable && logIsAtty(l.console)
	l.lock.Unlock()
}

// SetFile directs log messages of the given levels to the log file.
// The file is rotated when its size exceeds maxSize; up to maxBackups
// gzip-compressed backups are kept.
func (l *Logger) SetFile(path string, levels LogLevel, maxSize int64, maxBackups uint) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	l.path = path
	l.fileLevels = levels
	l.maxSize = maxSize
	l.maxBackups = maxBackups
}

// Enabled reports whether any message of the level will be written
func (l *Logger) Enabled(level LogLevel) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	mask := l.consoleLevels
	if l.path != "" {
		mask |= l.fileLevels
	}

	return mask&level != 0
}

// Close the logger
func (l *Logger) Close() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// Begin new log message
func (l *Logger) Begin() *LogMessage {
	msg := logMessagePool.Get().(*LogMessage)
	msg.logger = l
	return msg
}

// Debug writes a LogDebug message
func (l *Logger) Debug(prefix byte, format string, args ...interface{}) {
	l.Begin().Debug(prefix, format, args...).Commit()
}

// Info writes a LogInfo message
func (l *Logger) Info(prefix byte, format string, args ...interface{}) {
	l.Begin().Info(prefix, format, args...).Commit()
}

// Error writes a LogError message
func (l *Logger) Error(prefix byte, format string, args ...interface{}) {
	l.Begin().Error(prefix, format, args...).Commit()
}

// Dump writes HEX dump of data at the given level
func (l *Logger) Dump(level LogLevel, data []byte) {
	l.Begin().Dump(level, data).Commit()
}

// Format a time prefix
func (l *Logger) fmtTime() {
	l.time.Reset()

	now := time.Now()

	year, month, day := now.Date()
	fmt.Fprintf(&l.time, "%2.2d-%2.2d-%4.4d ", day, month, year)

	hour, min, sec := now.Clock()
	fmt.Fprintf(&l.time, "%2.2d:%2.2d:%2.2d", hour, min, sec)

	l.time.WriteString(": ")
}

// Handle log rotation
func (l *Logger) rotate() {
	// Do we need to rotate?
	stat, err := l.file.Stat()
	if err != nil || l.maxSize <= 0 || stat.Size() <= l.maxSize {
		return
	}

	// Perform rotation
	prevpath := ""
	for i := int(l.maxBackups); i >= 0; i-- {
		nextpath := l.path
		if i > 0 {
			nextpath += fmt.Sprintf(".%d.gz", i-1)
		}

		switch {
		case i == 0:
			err := l.gzip(nextpath, prevpath)
			if err == nil {
				l.file.Truncate(0)
			}
		case i == int(l.maxBackups):
			os.Remove(nextpath)
		default:
			os.Rename(nextpath, prevpath)
		}

		prevpath = nextpath
	}
}

// gzip the log file
func (l *Logger) gzip(ipath, opath string) error {
	if opath == "" {
		// No backups kept
		return nil
	}

	// Open input file
	ifile, err := os.Open(ipath)
	if err != nil {
		return err
	}

	defer ifile.Close()

	// Open output file
	ofile, err := os.OpenFile(opath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return err
	}

	// gzip ifile->ofile
	w := gzip.NewWriter(ofile)
	_, err = io.Copy(w, ifile)
	err2 := w.Close()
	err3 := ofile.Close()

	switch {
	case err == nil && err2 != nil:
		err = err2
	case err == nil && err3 != nil:
		err = err3
	}

	// Cleanup and exit
	if err != nil {
		os.Remove(opath)
	}

	return err
}

// logLine is the single line of the LogMessage
type logLine struct {
	level LogLevel      // Line level
	buf   *bytes.Buffer // Line text
}

// LogMessage represents a single (possible multi line) log
// message, which will appear in the output log atomically,
// and will not be interrupted in the middle by other log activity
type LogMessage struct {
	logger *Logger   // Underlying logger
	lines  []logLine // Message lines
}

// add formats a next line of log message, with level and prefix char
func (msg *LogMessage) add(level LogLevel, prefix byte,
	format string, args ...interface{}) *LogMessage {

	buf := logBufAlloc()
	buf.Write([]byte{prefix, ' '})
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')
	msg.lines = append(msg.lines, logLine{level, buf})
	return msg
}

// Debug adds a LogDebug line
func (msg *LogMessage) Debug(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.add(LogDebug, prefix, format, args...)
}

// Info adds a LogInfo line
func (msg *LogMessage) Info(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.add(LogInfo, prefix, format, args...)
}

// Error adds a LogError line
func (msg *LogMessage) Error(prefix byte, format string, args ...interface{}) *LogMessage {
	return msg.add(LogError, prefix, format, args...)
}

// Write implements io.Writer interface. Text is automatically
// split into lines, written at the LogDebug level
func (msg *LogMessage) Write(text []byte) (n int, err error) {
	n, err = len(text), nil

	for len(text) > 0 {
		// Fetch next line
		var line []byte

		if l := bytes.IndexByte(text, '\n'); l >= 0 {
			l++
			line = text[:l]
			text = text[l:]
		} else {
			line = text
			text = nil
		}

		// Save the line
		if cnt := len(msg.lines); cnt > 0 && !logBufTerminated(msg.lines[cnt-1].buf) {
			msg.lines[cnt-1].buf.Write(line)
		} else {
			buf := logBufAlloc()
			buf.Write([]byte("  "))
			buf.Write(line)
			msg.lines = append(msg.lines, logLine{LogDebug, buf})
		}
	}

	return
}

// Dump adds HEX dump of data at the given level
func (msg *LogMessage) Dump(level LogLevel, data []byte) *LogMessage {
	hex := logBufAlloc()
	chr := logBufAlloc()

	defer logBufFree(hex)
	defer logBufFree(chr)

	off := 0

	for len(data) > 0 {
		hex.Reset()
		chr.Reset()

		sz := len(data)
		if sz > 16 {
			sz = 16
		}

		i := 0
		for ; i < sz; i++ {
			c := data[i]
			fmt.Fprintf(hex, "%2.2x", data[i])
			if i%4 == 3 {
				hex.Write([]byte(":"))
			} else {
				hex.Write([]byte(" "))
			}

			if 0x20 <= c && c < 0x80 {
				chr.WriteByte(c)
			} else {
				chr.WriteByte('.')
			}
		}

		for ; i < 16; i++ {
			hex.WriteString("   ")
		}

		msg.add(level, ' ', "%4.4x: %s %s", off, hex, chr)

		off += sz
		data = data[sz:]
	}

	return msg
}

// IppMessage adds pretty-printed IPP message at the LogTraceIPP level
func (msg *LogMessage) IppMessage(prefix byte, m *ipp.Message, request bool) *LogMessage {
	text := ipp.FormatMessage(m, request)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		msg.add(LogTraceIPP, prefix, "%s", line)
	}

	for _, w := range m.Warnings {
		msg.add(LogTraceIPP, '!', "%s", w)
	}

	return msg
}

// HTTPRequest adds HTTP request line and headers at the LogTraceHTTP
// level
func (msg *LogMessage) HTTPRequest(prefix byte, rq *http.Request) *LogMessage {
	msg.add(LogTraceHTTP, prefix, "HTTP %s %s %s", rq.Method, rq.URL, rq.Proto)
	return msg.httpHeader(prefix, rq.Header)
}

// HTTPResponse adds HTTP status line and headers at the LogTraceHTTP
// level
func (msg *LogMessage) HTTPResponse(prefix byte, rsp *http.Response) *LogMessage {
	msg.add(LogTraceHTTP, prefix, "HTTP %s %s", rsp.Proto, rsp.Status)
	return msg.httpHeader(prefix, rsp.Header)
}

// httpHeader adds HTTP header, sorted by key
func (msg *LogMessage) httpHeader(prefix byte, hdr http.Header) *LogMessage {
	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	for _, k := range keys {
		msg.add(LogTraceHTTP, prefix, "  %s: %s", k, hdr.Get(k))
	}

	return msg
}

// Commit message to the log
func (msg *LogMessage) Commit() {
	// Don't forget to free the message
	defer msg.free()

	// Ignore empty messages
	if len(msg.lines) == 0 {
		return
	}

	// Lock the logger
	l := msg.logger
	l.lock.Lock()
	defer l.lock.Unlock()

	// Console output
	if l.console != nil {
		for _, line := range msg.lines {
			if line.level&l.consoleLevels == 0 {
				continue
			}

			if !logBufTerminated(line.buf) {
				line.buf.WriteByte('\n')
			}

			if l.color {
				logColorConsoleWrite(l.console, line.level, line.buf.Bytes())
			} else {
				l.console.Write(line.buf.Bytes())
			}
		}
	}

	// Open log file on demand
	if l.file == nil && l.path != "" {
		os.MkdirAll(filepath.Dir(l.path), 0755)
		l.file, _ = os.OpenFile(l.path,
			os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	}

	if l.file == nil {
		return
	}

	// Rotate now
	l.rotate()

	// Send message content to the file
	l.fmtTime()
	for _, line := range msg.lines {
		if line.level&l.fileLevels == 0 {
			continue
		}

		if !logBufTerminated(line.buf) {
			line.buf.WriteByte('\n')
		}
		l.file.Write(l.time.Bytes())
		l.file.Write(line.buf.Bytes())
	}
}

// Reject the message
func (msg *LogMessage) Reject() {
	msg.free()
}

// Return message to the logMessagePool
func (msg *LogMessage) free() {
	for _, l := range msg.lines {
		logBufFree(l.buf)
	}

	// Reset the message and put it to the pool
	if len(msg.lines) < 16 {
		msg.lines = msg.lines[:0] // Keep memory, reset content
	} else {
		msg.lines = nil
	}

	msg.logger = nil

	// Put the message
	logMessagePool.Put(msg)
}

// logIsAtty returns true, if output refers to a terminal
func logIsAtty(out io.Writer) bool {
	file, ok := out.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// logColorConsoleWrite writes a colorized line to console
func logColorConsoleWrite(out io.Writer, level LogLevel, line []byte) {
	var beg, end string

	switch {
	case (level & LogError) != 0:
		beg, end = "\033[31;1m", "\033[0m" // Red
	case (level & LogInfo) != 0:
		beg, end = "\033[32;1m", "\033[0m" // Green
	case (level & LogDebug) != 0:
		beg, end = "\033[37;1m", "\033[0m" // White
	case (level & LogTraceAll) != 0:
		beg, end = "\033[37m", "\033[0m" // Gray
	}

	out.Write([]byte(beg))
	out.Write(line)
	out.Write([]byte(end))
}

// Check if line buffer is '\n'-terminated
func logBufTerminated(buf *bytes.Buffer) bool {
	if l := buf.Len(); l > 0 {
		return buf.Bytes()[l-1] == '\n'
	}
	return false
}

// Allocate a buffer
func logBufAlloc() *bytes.Buffer {
	return logBufferPool.Get().(*bytes.Buffer)
}

// Free a buffer
func logBufFree(buf *bytes.Buffer) {
	if buf.Cap() <= 256 {
		buf.Reset()
		logBufferPool.Put(buf)
	}
}
