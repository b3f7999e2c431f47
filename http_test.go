/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP over HTTP transport tests
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// TestHTTPURL tests printer URI to HTTP URL conversion
func TestHTTPURL(t *testing.T) {
	tests := []struct {
		in, out string
		fail    bool
	}{
		{in: "ipp://printer.local/ipp/print", out: "http://printer.local:631/ipp/print"},
		{in: "ipps://printer.local/ipp/print", out: "https://printer.local:631/ipp/print"},
		{in: "ipp://printer.local:8631/", out: "http://printer.local:8631/"},
		{in: "ipp://[fe80::1]/ipp/print", out: "http://[fe80::1]:631/ipp/print"},
		{in: "http://127.0.0.1:8080/ipp", out: "http://127.0.0.1:8080/ipp"},
		{in: "ftp://printer.local/", fail: true},
		{in: "ipp:///ipp/print", fail: true},
		{in: "ipp://%zz/", fail: true},
	}

	for _, test := range tests {
		out, err := HTTPURL(test.in)
		switch {
		case test.fail && err == nil:
			t.Errorf("HTTPURL(%q): error expected", test.in)
		case !test.fail && err != nil:
			t.Errorf("HTTPURL(%q): %s", test.in, err)
		case out != test.out:
			t.Errorf("HTTPURL(%q): expected %q, present %q",
				test.in, test.out, out)
		}
	}
}

// TestHTTPTransportRoundTrip tests the non-streaming request
func TestHTTPTransportRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost ||
				r.Header.Get("Content-Type") != ipp.ContentType ||
				r.Header.Get("User-Agent") != "ipp-print-test" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}

			w.Header().Set("Content-Type", ipp.ContentType)
			io.Copy(w, r.Body)
		}))
	defer srv.Close()

	tr := NewHTTPTransport(time.Second, false,
		map[string]string{"User-Agent": "ipp-print-test"})

	body := []byte("request body")
	rsp, err := tr.RoundTrip(context.Background(), srv.URL+"/ipp/print", body)
	if err != nil {
		t.Fatalf("RoundTrip: %s", err)
	}

	if !bytes.Equal(rsp, body) {
		t.Errorf("RoundTrip: expected %q, present %q", body, rsp)
	}

	// Missing header makes the server fail
	tr.Headers = nil
	_, err = tr.RoundTrip(context.Background(), srv.URL+"/ipp/print", body)

	var terr *TransportError
	if !errors.As(err, &terr) || terr.Status != http.StatusBadRequest {
		t.Errorf("RoundTrip: expected TransportError 400, present %v", err)
	}
}

// TestHTTPTransportStream tests streaming with compression
func TestHTTPTransportStream(t *testing.T) {
	header := []byte{0x02, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x03}
	document := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)

	tests := []struct {
		compression string
		decompress  func(io.Reader) io.Reader
	}{
		{"", func(r io.Reader) io.Reader { return r }},
		{"gzip", func(r io.Reader) io.Reader {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return bytes.NewReader(nil)
			}
			return zr
		}},
		{"deflate", func(r io.Reader) io.Reader { return flate.NewReader(r) }},
	}

	for _, test := range tests {
		var received []byte
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				hdr := make([]byte, len(header))
				io.ReadFull(r.Body, hdr)
				if !bytes.Equal(hdr, header) {
					http.Error(w, "bad header", http.StatusBadRequest)
					return
				}

				received, _ = io.ReadAll(test.decompress(r.Body))
				w.Write([]byte("done"))
			}))

		tr := NewHTTPTransport(time.Second, false, nil)
		rsp, err := tr.Stream(context.Background(), srv.URL, header,
			test.compression, func(w io.Writer) error {
				for off := 0; off < len(document); off += 4096 {
					if _, err := w.Write(document[off : off+4096]); err != nil {
						return err
					}
				}
				return nil
			})

		srv.Close()

		if err != nil {
			t.Errorf("Stream(%q): %s", test.compression, err)
			continue
		}

		if string(rsp) != "done" {
			t.Errorf("Stream(%q): response %q", test.compression, rsp)
		}

		if !bytes.Equal(received, document) {
			t.Errorf("Stream(%q): document mismatch, %d bytes received",
				test.compression, len(received))
		}
	}
}

// TestHTTPTransportStreamErrors tests error propagation of Stream
func TestHTTPTransportStreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			w.Write([]byte("done"))
		}))
	defer srv.Close()

	tr := NewHTTPTransport(time.Second, false, nil)

	// Document writer error aborts the job
	errRender := errors.New("render failed")
	_, err := tr.Stream(context.Background(), srv.URL, []byte{0x03}, "",
		func(w io.Writer) error {
			w.Write([]byte("page 1"))
			return errRender
		})

	if err == nil {
		t.Errorf("Stream: writer error not propagated")
	}

	// Unsupported compression
	_, err = tr.Stream(context.Background(), srv.URL, []byte{0x03}, "lzw",
		func(w io.Writer) error { return nil })

	if err == nil {
		t.Errorf("Stream: unsupported compression accepted")
	}

	// Transport error wins over the writer error
	srv.Close()
	_, err = tr.Stream(context.Background(), srv.URL, []byte{0x03}, "",
		func(w io.Writer) error {
			_, err := w.Write([]byte("page 1"))
			return err
		})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Errorf("Stream: expected TransportError, present %v", err)
	}
}
