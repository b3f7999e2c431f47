/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Logging tests
 */

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenPrinting/goipp"
	"github.com/klauspost/compress/gzip"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// TestLoggerLevels tests console level mask
func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Debug(' ', "debug")
	l.Info(' ', "info")
	l.Error('!', "error %d", 1)

	expected := "  info\n! error 1\n"
	if buf.String() != expected {
		t.Errorf("expected %q, present %q", expected, buf.String())
	}

	if l.Enabled(LogDebug) {
		t.Errorf("LogDebug unexpectedly enabled")
	}

	buf.Reset()
	l.SetLevels(LogDebug)
	l.Begin().
		Info(' ', "info").
		Debug('>', "line 1").
		Debug('>', "line 2").
		Commit()

	expected = "> line 1\n> line 2\n"
	if buf.String() != expected {
		t.Errorf("expected %q, present %q", expected, buf.String())
	}

	// Rejected message is not written
	buf.Reset()
	l.Begin().Debug(' ', "rejected").Reject()
	if buf.Len() != 0 {
		t.Errorf("rejected message written: %q", buf.String())
	}
}

// TestLoggerDump tests hex dump
func TestLoggerDump(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.SetLevels(LogDebug)

	l.Dump(LogDebug, []byte("0123456789abcdef\x01Y"))

	expected := "  0000: 30 31 32 33:34 35 36 37:38 39 61 62:63 64 65 66: 0123456789abcdef\n" +
		"  0010: 01 59 " + strings.Repeat(" ", 42) + " .Y\n"

	if buf.String() != expected {
		t.Errorf("expected:\n%s\npresent:\n%s", expected, buf.String())
	}
}

// TestLoggerIppMessage tests logging of IPP messages
func TestLoggerIppMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	rq := ipp.NewRequest(goipp.OpGetPrinterAttributes)
	rq.OpAttrs.Add("attributes-charset", goipp.TagCharset, ipp.String("utf-8"))
	rq.Warnings = []string{"something odd"}

	l.Begin().IppMessage('>', rq, true).Commit()
	if buf.Len() != 0 {
		t.Errorf("LogTraceIPP written with default levels")
	}

	l.SetLevels(LogTraceIPP)
	l.Begin().IppMessage('>', rq, true).Commit()

	out := buf.String()
	for _, s := range []string{"Get-Printer-Attributes", "attributes-charset", "! something odd"} {
		if !strings.Contains(out, s) {
			t.Errorf("%q missing in:\n%s", s, out)
		}
	}
}

// TestLoggerColor tests colorized console output
func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	logColorConsoleWrite(&buf, LogError, []byte("failed\n"))

	expected := "\033[31;1mfailed\n\033[0m"
	if buf.String() != expected {
		t.Errorf("expected %q, present %q", expected, buf.String())
	}

	// Colors are only used on terminals
	l := NewLogger(&buf)
	l.SetColor(true)
	if l.color {
		t.Errorf("colors enabled on non-terminal")
	}
}

// TestLoggerFile tests log file with rotation
func TestLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")

	l := NewLogger(nil)
	l.SetFile(path, LogAll, 100, 2)
	defer l.Close()

	line := strings.Repeat("x", 50)
	for i := 0; i < 3; i++ {
		l.Info(' ', "%d %s", i, line)
	}

	// Each message is above the half of the limit, so the
	// third one causes rotation
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("%s", err)
	}

	if n := strings.Count(string(data), "\n"); n != 1 ||
		!strings.Contains(string(data), "2 "+line) {
		t.Errorf("log file: unexpected content:\n%s", data)
	}

	file, err := os.Open(path + ".0.gz")
	if err != nil {
		t.Fatalf("%s", err)
	}
	defer file.Close()

	r, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("%s", err)
	}

	data, err = io.ReadAll(r)
	if err != nil {
		t.Fatalf("%s", err)
	}

	if n := strings.Count(string(data), "\n"); n != 2 ||
		!strings.Contains(string(data), "0 "+line) {
		t.Errorf("backup: unexpected content:\n%s", data)
	}
}
