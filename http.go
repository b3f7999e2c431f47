/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP over HTTP transport
 */

package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// Transport carries IPP requests to the printer
type Transport interface {
	// RoundTrip sends the whole request and returns the response body
	RoundTrip(ctx context.Context, uri string, body []byte) ([]byte, error)

	// Stream sends IPP header, followed by document data, produced
	// by writeBody. Document data is compressed, if compression
	// is "gzip" or "deflate". Response body is returned.
	Stream(ctx context.Context, uri string, header []byte,
		compression string, writeBody func(io.Writer) error) ([]byte, error)
}

// HTTPTransport is the Transport over HTTP(S)
type HTTPTransport struct {
	Client  *http.Client      // HTTP client
	Timeout time.Duration     // Timeout of non-streaming requests
	Headers map[string]string // Additional HTTP headers
}

// httpSession numbers HTTP requests in logs
var httpSession int32

// NewHTTPTransport creates a new HTTPTransport
func NewHTTPTransport(timeout time.Duration, verifyTLS bool,
	headers map[string]string) *HTTPTransport {

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !verifyTLS,
	}

	return &HTTPTransport{
		Client:  &http.Client{Transport: tr},
		Timeout: timeout,
		Headers: headers,
	}
}

// HTTPURL converts printer URI into HTTP URL:
//
//	ipp://host/path  -> http://host:631/path
//	ipps://host/path -> https://host:631/path
//
// http:// and https:// URLs are accepted as is.
func HTTPURL(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%q: %w", uri, err)
	}

	switch u.Scheme {
	case "ipp":
		u.Scheme = "http"
	case "ipps":
		u.Scheme = "https"
	case "http", "https":
		return u.String(), nil
	default:
		return "", fmt.Errorf("%q: unsupported URI scheme", uri)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%q: missing host", uri)
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(DefaultIPPPort))
	}

	return u.String(), nil
}

// RoundTrip sends the whole request and returns the response body
func (t *HTTPTransport) RoundTrip(ctx context.Context, uri string,
	body []byte) ([]byte, error) {

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	return t.post(ctx, uri, bytes.NewReader(body), int64(len(body)))
}

// Stream sends IPP header, followed by document data
//
// The HTTP request runs in its own goroutine, reading the body
// from io.Pipe, while document data is written from the caller's
// goroutine. Each write blocks until the transport consumes it.
func (t *HTTPTransport) Stream(ctx context.Context, uri string,
	header []byte, compression string,
	writeBody func(io.Writer) error) ([]byte, error) {

	pr, pw := io.Pipe()

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		data, err := t.post(ctx, uri, pr, -1)
		pr.CloseWithError(errStreamAborted)
		done <- result{data, err}
	}()

	werr := t.writeStream(pw, header, compression, writeBody)
	pw.CloseWithError(werr)

	res := <-done
	switch {
	case res.err != nil:
		return nil, res.err
	case werr != nil:
		return nil, werr
	}

	return res.data, nil
}

// errStreamAborted is returned to the document writer when the
// HTTP request finishes before the document is fully written
var errStreamAborted = errors.New("HTTP request finished")

// writeStream writes IPP header and compressed document data
func (t *HTTPTransport) writeStream(w io.Writer, header []byte,
	compression string, writeBody func(io.Writer) error) error {

	_, err := w.Write(header)
	if err != nil {
		return err
	}

	var zw io.WriteCloser
	switch compression {
	case "", "none":
	case "gzip":
		zw = gzip.NewWriter(w)
	case "deflate":
		zw, err = flate.NewWriter(w, flate.DefaultCompression)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%q: unsupported compression", compression)
	}

	if zw == nil {
		return writeBody(w)
	}

	err = writeBody(zw)
	err2 := zw.Close()
	if err == nil {
		err = err2
	}

	return err
}

// post performs HTTP POST of IPP data and returns response body
func (t *HTTPTransport) post(ctx context.Context, uri string,
	body io.Reader, length int64) ([]byte, error) {

	session := atomic.AddInt32(&httpSession, 1)

	target, err := HTTPURL(uri)
	if err != nil {
		return nil, err
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}

	rq.ContentLength = length
	rq.Header.Set("Content-Type", ipp.ContentType)
	rq.Header.Set("Accept", ipp.ContentType)
	for name, value := range t.Headers {
		rq.Header.Set(name, value)
	}

	Log.Begin().
		Debug('>', "HTTP[%3.3d]: %s %s", session, rq.Method, target).
		HTTPRequest('>', rq).
		Commit()

	rsp, err := t.Client.Do(rq)
	if err != nil {
		Log.Debug('!', "HTTP[%3.3d]: %s", session, err)
		return nil, &TransportError{URL: target, Err: err}
	}

	defer rsp.Body.Close()

	Log.Begin().
		Debug('<', "HTTP[%3.3d]: %s", session, rsp.Status).
		HTTPResponse('<', rsp).
		Commit()

	if rsp.StatusCode/100 != 2 {
		return nil, &TransportError{
			URL:    target,
			Status: rsp.StatusCode,
			Err:    fmt.Errorf("HTTP %s", rsp.Status),
		}
	}

	data, err := io.ReadAll(io.LimitReader(rsp.Body, MaxResponseSize+1))
	if err == nil && len(data) > MaxResponseSize {
		err = errors.New("response too large")
	}

	if err != nil {
		return nil, &TransportError{URL: target, Status: rsp.StatusCode, Err: err}
	}

	return data, nil
}
