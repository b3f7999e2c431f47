/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * LineWriter is a helper object, implementing io.Writer interface
 * on a top of write-line callback
 */

package main

import (
	"bytes"
)

// LineWriter implements io.Write and io.Close interfaces
// It splits stream into text lines and calls a provided
// callback for each complete line.
//
// Line passed to callback is not terminated by '\n'
// character. Close flushes last incomplete line, if any
//
// It is used to redirect output of libraries that log via
// the standard log package into the Logger.
type LineWriter struct {
	Func func([]byte) // write-line callback
	buf  bytes.Buffer // buffer for incomplete lines
}

// NewLogLineWriter returns LineWriter that writes lines into
// the logger at the LogDebug level, with the given prefix
func NewLogLineWriter(l *Logger, prefix byte) *LineWriter {
	return &LineWriter{
		Func: func(line []byte) {
			l.Debug(prefix, "%s", bytes.TrimRight(line, "\r"))
		},
	}
}

// Write implements io.Writer interface
func (lw *LineWriter) Write(text []byte) (n int, err error) {
	n = len(text)

	for len(text) > 0 {
		// Fetch next line
		var line []byte
		var unfinished bool

		if l := bytes.IndexByte(text, '\n'); l >= 0 {
			line = text[:l]
			text = text[l+1:]
		} else {
			line = text
			text = nil
			unfinished = true
		}

		// Dispatch next line
		if unfinished || lw.buf.Len() > 0 {
			lw.buf.Write(line)
			line = lw.buf.Bytes()
		}

		if !unfinished {
			lw.Func(line)
			lw.buf.Reset()
		}
	}

	return
}

// Close implements io.Closer interface
//
// Close flushes the last incomplete line from the
// internal buffer
func (lw *LineWriter) Close() error {
	if lw.buf.Len() > 0 {
		lw.Func(lw.buf.Bytes())
		lw.buf.Reset()
	}
	return nil
}
