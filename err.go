/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Common errors
 */

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenPrinting/goipp"
)

// Error values for ipp-print
var (
	ErrNoRenderer    = errors.New("no renderer for this document format")
	ErrNoPrinter     = errors.New("printer address required")
	ErrNoJob         = errors.New("no job to cancel")
	ErrNoAttrs       = errors.New("printer attributes not loaded")
	ErrUsage         = errors.New("invalid usage")
	ErrEmptyDocument = errors.New("document has no pages")
)

// CapabilityError is returned when the requested setting is not
// supported by the printer
type CapabilityError struct {
	Name      string   // Attribute name
	Value     string   // Requested value
	Supported []string // Supported values, as advertised
}

// Error returns the error text
func (e *CapabilityError) Error() string {
	s := fmt.Sprintf("%s=%s: not supported by printer", e.Name, e.Value)
	if len(e.Supported) != 0 {
		s += " (supported: " + strings.Join(e.Supported, ", ") + ")"
	}
	return s
}

// FormatError is returned when there is no way to convert the
// document into any format the printer accepts
type FormatError struct {
	Input     string   // Input document format
	Supported []string // Formats the printer accepts
}

// Error returns the error text
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: no target format (printer accepts: %s)",
		e.Input, strings.Join(e.Supported, ", "))
}

// ParameterError is returned for malformed user parameters, like
// invalid paper size name or page range
type ParameterError struct {
	Name  string // Parameter name
	Value string // Offending value
	Err   error  // Underlying error, may be nil
}

// Error returns the error text
func (e *ParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s=%q: %s", e.Name, e.Value, e.Err)
	}
	return fmt.Sprintf("%s=%q: invalid value", e.Name, e.Value)
}

// Unwrap returns the underlying error
func (e *ParameterError) Unwrap() error {
	return e.Err
}

// TransportError is returned for HTTP-level failures
type TransportError struct {
	URL    string // Request URL
	Status int    // HTTP status, 0 if request failed before response
	Err    error  // Underlying error
}

// Error returns the error text
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// JobError is returned when printer responds with IPP error status
type JobError struct {
	Op      goipp.Op     // Failed operation
	Status  goipp.Status // Response status
	Message string       // status-message, if any
}

// Error returns the error text
func (e *JobError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Op, e.Status)
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}
