/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP messages
 */

// Package ipp implements the IPP/1.1-2.0 binary message format
// (RFC 8010): an ordered attribute model, an encoder with the
// operation attribute ordering IPP requires, and a bounded,
// non-recursive decoder suitable for data received from the network.
//
// Tags, operation and status codes are those of
// github.com/OpenPrinting/goipp, so messages can be converted to
// goipp for pretty-printing.
package ipp

import (
	"fmt"
	"sync/atomic"

	"github.com/OpenPrinting/goipp"
)

// ContentType is the HTTP Content-Type of IPP messages
const ContentType = goipp.ContentType

// Version is the IPP protocol version
type Version struct {
	Major, Minor uint8
}

// Protocol versions
var (
	Version11 = Version{1, 1}
	Version20 = Version{2, 0}
)

// String formats Version as major.minor
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Message is an IPP request or response
type Message struct {
	Version   Version // Protocol version
	Code      uint16  // Operation for request, status for response
	RequestID uint32  // Request ID

	OpAttrs          Attrs    // Operation attributes
	JobAttrs         []Attrs  // Job attribute groups, one per job
	PrinterAttrs     Attrs    // Printer attributes
	UnsupportedAttrs Attrs    // Unsupported attributes
	Warnings         []string // Recoverable decode findings
}

// NewRequest creates a new request message with IPP 2.0 version.
// RequestID is assigned by Encode.
func NewRequest(op goipp.Op) *Message {
	return &Message{
		Version: Version20,
		Code:    uint16(op),
	}
}

// NewResponse creates a response for the request
func NewResponse(rq *Message, status goipp.Status) *Message {
	return &Message{
		Version:   rq.Version,
		Code:      uint16(status),
		RequestID: rq.RequestID,
	}
}

// Op returns message Code as operation
func (m *Message) Op() goipp.Op {
	return goipp.Op(m.Code)
}

// Status returns message Code as status
func (m *Message) Status() goipp.Status {
	return goipp.Status(m.Code)
}

// Equal reports whether two messages carry the same header and
// attributes. Warnings are not compared.
func (m *Message) Equal(m2 *Message) bool {
	if m.Version != m2.Version || m.Code != m2.Code ||
		m.RequestID != m2.RequestID ||
		len(m.JobAttrs) != len(m2.JobAttrs) {
		return false
	}

	for i := range m.JobAttrs {
		if !m.JobAttrs[i].Equal(&m2.JobAttrs[i]) {
			return false
		}
	}

	return m.OpAttrs.Equal(&m2.OpAttrs) &&
		m.PrinterAttrs.Equal(&m2.PrinterAttrs) &&
		m.UnsupportedAttrs.Equal(&m2.UnsupportedAttrs)
}

// Sequence generates request IDs. IDs start at 1 and increment on
// every request. The zero value is ready to use and Sequence is safe
// for concurrent use.
type Sequence struct {
	last atomic.Uint32
}

// Next returns the next request ID
func (seq *Sequence) Next() uint32 {
	return seq.last.Add(1)
}

// DecodeError describes a malformed IPP message
type DecodeError struct {
	Off int    // Offset of the offending record
	Msg string // Problem description
}

// Error returns the error text
func (e *DecodeError) Error() string {
	return fmt.Sprintf("IPP decode: offset %d: %s", e.Off, e.Msg)
}

// EncodeError describes a message that cannot be encoded
type EncodeError struct {
	Name string // Attribute name
	Msg  string // Problem description
}

// Error returns the error text
func (e *EncodeError) Error() string {
	return fmt.Sprintf("IPP encode: %q: %s", e.Name, e.Msg)
}
