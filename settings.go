/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Job settings, bound to printer capabilities
 */

package main

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/ipp"
	"github.com/OpenPrinting/ipp-print/printparams"
)

// Setting is the job attribute, bound to the printer capability
// attributes: <Name>-supported and <Name>-default
//
// Settings don't hold any state. Accessors take the job and read
// or modify its attributes. Settings that live inside a collection
// (media-col) are updated by read-modify-write of the collection,
// so many settings may safely share the same collection.
type Setting[T any] struct {
	Name       string    // Attribute name
	Tag        goipp.Tag // Attribute tag
	Collection string    // Enclosing collection, "" for top level
	Op         bool      // Operation attribute, not job template

	encode func(T) ipp.Value
	decode func(ipp.Value) (T, bool)
}

// target returns attributes the Setting lives in
func (s *Setting[T]) target(job *PrintJob) *ipp.Attrs {
	if s.Op {
		return &job.OpAttrs
	}
	return &job.JobAttrs
}

// Get returns the job setting value
func (s *Setting[T]) Get(job *PrintJob) (T, bool) {
	attrs := s.target(job)
	if s.Collection != "" {
		col, ok := attrs.Collection(s.Collection)
		if !ok {
			var zero T
			return zero, false
		}
		attrs = col
	}

	return s.get(attrs, s.Name)
}

// get decodes attribute value
func (s *Setting[T]) get(attrs *ipp.Attrs, name string) (T, bool) {
	attr, ok := attrs.Get(name)
	if !ok || attr.Value == nil {
		var zero T
		return zero, false
	}

	return s.decode(attr.Value)
}

// IsSet reports whether the setting has a value in the job
func (s *Setting[T]) IsSet(job *PrintJob) bool {
	_, ok := s.Get(job)
	return ok
}

// Set sets the job setting value
func (s *Setting[T]) Set(job *PrintJob, v T) {
	attr := ipp.MakeAttr(s.Tag, s.encode(v))
	attrs := s.target(job)

	if s.Collection == "" {
		attrs.Set(s.Name, attr)
		return
	}

	var members ipp.Attrs
	if col, ok := attrs.Collection(s.Collection); ok {
		members = col.Clone()
	}

	members.Set(s.Name, attr)
	attrs.Add(s.Collection, goipp.TagBeginCollection,
		ipp.Collection{Members: members})
}

// Unset removes the job setting. The enclosing collection is
// removed when it becomes empty.
func (s *Setting[T]) Unset(job *PrintJob) {
	attrs := s.target(job)

	if s.Collection == "" {
		attrs.Delete(s.Name)
		return
	}

	col, ok := attrs.Collection(s.Collection)
	if !ok || !col.Has(s.Name) {
		return
	}

	members := col.Clone()
	members.Delete(s.Name)

	if members.Len() == 0 {
		attrs.Delete(s.Collection)
	} else {
		attrs.Add(s.Collection, goipp.TagBeginCollection,
			ipp.Collection{Members: members})
	}
}

// Default returns the printer default for the setting, from
// <Name>-default or, for collection members, <Collection>-default
func (s *Setting[T]) Default(printer *ipp.Attrs) (T, bool) {
	if s.Collection == "" {
		return s.get(printer, s.Name+"-default")
	}

	col, ok := printer.Collection(s.Collection + "-default")
	if !ok {
		var zero T
		return zero, false
	}

	return s.get(col, s.Name)
}

// GetOrDefault returns the job setting value or the printer default
func (s *Setting[T]) GetOrDefault(job *PrintJob, printer *ipp.Attrs) (T, bool) {
	if v, ok := s.Get(job); ok {
		return v, ok
	}
	return s.Default(printer)
}

// Supported returns values of <Name>-supported. nil means the
// printer doesn't advertise the capability.
func (s *Setting[T]) Supported(printer *ipp.Attrs) []ipp.Value {
	attr, ok := printer.Get(s.Name + "-supported")
	if !ok {
		return nil
	}
	return attr.Values()
}

// IsSupported reports whether printer accepts the value. Values of
// settings without the -supported attribute are accepted.
func (s *Setting[T]) IsSupported(printer *ipp.Attrs, v T) bool {
	return settingAccepts(s.Supported(printer), s.encode(v))
}

// Check returns *CapabilityError if the job setting is not
// supported by the printer
func (s *Setting[T]) Check(job *PrintJob, printer *ipp.Attrs) error {
	v, ok := s.Get(job)
	if !ok || s.IsSupported(printer, v) {
		return nil
	}

	supported := s.Supported(printer)
	err := &CapabilityError{
		Name:      s.Name,
		Value:     s.encode(v).String(),
		Supported: make([]string, len(supported)),
	}

	for i, sv := range supported {
		err.Supported[i] = sv.String()
	}

	return err
}

// settingAccepts reports whether value, possibly multi-valued,
// is within the supported values
func settingAccepts(supported []ipp.Value, v ipp.Value) bool {
	if len(supported) == 0 {
		return true
	}

	for _, v := range ipp.Values(v) {
		if !settingAcceptsSingle(supported, v) {
			return false
		}
	}

	return true
}

// settingAcceptsSingle reports whether single value is
// within the supported values
func settingAcceptsSingle(supported []ipp.Value, v ipp.Value) bool {
	for _, sv := range supported {
		switch sv := sv.(type) {
		case ipp.Boolean:
			// page-ranges-supported and friends
			if sv {
				return true
			}

		case ipp.Range:
			switch v := v.(type) {
			case ipp.Integer:
				if int32(v) >= sv.Low && int32(v) <= sv.High {
					return true
				}
			case ipp.Range:
				if v.Low >= sv.Low && v.High <= sv.High {
					return true
				}
			}

		default:
			if ipp.Equal(sv, v) {
				return true
			}
		}
	}

	return false
}

// settingFirst returns the first of attribute values, nil if none
func settingFirst(v ipp.Value) ipp.Value {
	if vals := ipp.Values(v); len(vals) != 0 {
		return vals[0]
	}
	return nil
}

// newStringSetting creates a Setting of string type
func newStringSetting(name string, tag goipp.Tag) *Setting[string] {
	return &Setting[string]{
		Name: name,
		Tag:  tag,
		encode: func(s string) ipp.Value {
			return ipp.String(s)
		},
		decode: func(v ipp.Value) (string, bool) {
			s, ok := settingFirst(v).(ipp.String)
			return string(s), ok
		},
	}
}

// newIntSetting creates a Setting of integer or enum type
func newIntSetting(name string, tag goipp.Tag) *Setting[int] {
	return &Setting[int]{
		Name: name,
		Tag:  tag,
		encode: func(i int) ipp.Value {
			return ipp.Integer(i)
		},
		decode: func(v ipp.Value) (int, bool) {
			i, ok := settingFirst(v).(ipp.Integer)
			return int(i), ok
		},
	}
}

// inMediaCol moves the Setting into the media-col collection
func inMediaCol[T any](s *Setting[T]) *Setting[T] {
	s.Collection = "media-col"
	return s
}

// asOp makes the Setting an operation attribute
func asOp[T any](s *Setting[T]) *Setting[T] {
	s.Op = true
	return s
}

// Job settings
var (
	SettingSides                    = newStringSetting("sides", goipp.TagKeyword)
	SettingColorMode                = newStringSetting("print-color-mode", goipp.TagKeyword)
	SettingQuality                  = newIntSetting("print-quality", goipp.TagEnum)
	SettingMedia                    = newStringSetting("media", goipp.TagKeyword)
	SettingMediaType                = inMediaCol(newStringSetting("media-type", goipp.TagKeyword))
	SettingMediaSource              = inMediaCol(newStringSetting("media-source", goipp.TagKeyword))
	SettingMediaSizeName            = inMediaCol(newStringSetting("media-size-name", goipp.TagKeyword))
	SettingTopMargin                = inMediaCol(newIntSetting("media-top-margin", goipp.TagInteger))
	SettingBottomMargin             = inMediaCol(newIntSetting("media-bottom-margin", goipp.TagInteger))
	SettingLeftMargin               = inMediaCol(newIntSetting("media-left-margin", goipp.TagInteger))
	SettingRightMargin              = inMediaCol(newIntSetting("media-right-margin", goipp.TagInteger))
	SettingOutputBin                = newStringSetting("output-bin", goipp.TagKeyword)
	SettingCopies                   = newIntSetting("copies", goipp.TagInteger)
	SettingMultipleDocumentHandling = newStringSetting("multiple-document-handling", goipp.TagKeyword)
	SettingNumberUp                 = newIntSetting("number-up", goipp.TagInteger)
	SettingOrientation              = newIntSetting("orientation-requested", goipp.TagEnum)
	SettingPrintScaling             = newStringSetting("print-scaling", goipp.TagKeyword)
	SettingDocumentFormat           = asOp(newStringSetting("document-format", goipp.TagMimeType))
	SettingCompression              = asOp(newStringSetting("compression", goipp.TagKeyword))
	SettingJobName                  = asOp(newStringSetting("job-name", goipp.TagName))
	SettingUserName                 = asOp(newStringSetting("requesting-user-name", goipp.TagName))

	SettingResolution = &Setting[ipp.Resolution]{
		Name: "printer-resolution",
		Tag:  goipp.TagResolution,
		encode: func(r ipp.Resolution) ipp.Value {
			return r
		},
		decode: func(v ipp.Value) (ipp.Resolution, bool) {
			r, ok := settingFirst(v).(ipp.Resolution)
			return r, ok
		},
	}

	SettingPageRanges = &Setting[printparams.PageRangeList]{
		Name: "page-ranges",
		Tag:  goipp.TagRange,
		encode: func(l printparams.PageRangeList) ipp.Value {
			vals := make([]ipp.Value, len(l))
			for i, r := range l {
				last := r.Last
				if last == 0 {
					last = 0x7fffffff
				}
				vals[i] = ipp.Range{Low: int32(r.First), High: int32(last)}
			}
			return ipp.Join(vals...)
		},
		decode: func(v ipp.Value) (printparams.PageRangeList, bool) {
			var l printparams.PageRangeList
			for _, v := range ipp.Values(v) {
				r, ok := v.(ipp.Range)
				if !ok || r.Low < 1 || r.High < r.Low {
					return nil, false
				}
				last := int(r.High)
				if r.High == 0x7fffffff {
					last = 0
				}
				l = append(l, printparams.PageRange{First: int(r.Low), Last: last})
			}
			return l, len(l) != 0
		},
	}
)

// settingsMargins lists media-col margins
var settingsMargins = []*Setting[int]{
	SettingTopMargin,
	SettingBottomMargin,
	SettingLeftMargin,
	SettingRightMargin,
}

// settingsChecker is the capability check of some Setting
type settingsChecker interface {
	Check(job *PrintJob, printer *ipp.Attrs) error
}

// settingsChecked lists settings, verified against printer
// capabilities before the job is sent. Document format, compression
// and raster resolution are resolved rather than checked, and copies
// may be realized by page replication.
var settingsChecked = []settingsChecker{
	SettingSides,
	SettingColorMode,
	SettingQuality,
	SettingMedia,
	SettingMediaType,
	SettingMediaSource,
	SettingTopMargin,
	SettingBottomMargin,
	SettingLeftMargin,
	SettingRightMargin,
	SettingOutputBin,
	SettingMultipleDocumentHandling,
	SettingPageRanges,
	SettingNumberUp,
	SettingOrientation,
	SettingPrintScaling,
}

// ParseResolution parses resolution in one of the forms:
// "300", "300x600", "300dpi" or "300x600dpi"
func ParseResolution(s string) (ipp.Resolution, error) {
	str := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "dpi")

	xs, ys, found := strings.Cut(str, "x")
	if !found {
		ys = xs
	}

	x, errX := strconv.ParseUint(xs, 10, 16)
	y, errY := strconv.ParseUint(ys, 10, 16)
	if errX != nil || errY != nil || x == 0 || y == 0 {
		return ipp.Resolution{}, &ParameterError{
			Name:  "printer-resolution",
			Value: s,
		}
	}

	return ipp.Resolution{X: int32(x), Y: int32(y), Units: goipp.UnitsDpi}, nil
}

// ResolutionDPI returns resolution in dots per inch
func ResolutionDPI(r ipp.Resolution) (x, y int) {
	if r.Units == goipp.UnitsDpcm {
		return int(float64(r.X)*2.54 + 0.5), int(float64(r.Y)*2.54 + 0.5)
	}
	return int(r.X), int(r.Y)
}

// ParseQuality parses print quality name
func ParseQuality(s string) (printparams.Quality, error) {
	switch strings.ToLower(s) {
	case "draft":
		return printparams.DraftQuality, nil
	case "normal":
		return printparams.NormalQuality, nil
	case "high":
		return printparams.HighQuality, nil
	}

	return printparams.DefaultQuality, &ParameterError{
		Name:  "print-quality",
		Value: s,
		Err:   errors.New("must be draft, normal or high"),
	}
}
