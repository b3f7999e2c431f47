/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Conversion to and from goipp
 */

package ipp

import (
	"time"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/bytestream"
)

// Goipp converts message into goipp.Message
func (m *Message) Goipp() *goipp.Message {
	gm := &goipp.Message{
		Version:   goipp.MakeVersion(m.Version.Major, m.Version.Minor),
		Code:      goipp.Code(m.Code),
		RequestID: m.RequestID,
	}

	gm.Groups.Add(goipp.Group{Tag: goipp.TagOperationGroup, Attrs: m.OpAttrs.Goipp()})
	gm.Operation = gm.Groups[0].Attrs

	for i := range m.JobAttrs {
		g := goipp.Group{Tag: goipp.TagJobGroup, Attrs: m.JobAttrs[i].Goipp()}
		gm.Groups.Add(g)
		gm.Job = append(gm.Job, g.Attrs...)
	}

	if m.PrinterAttrs.Len() != 0 {
		gm.Printer = m.PrinterAttrs.Goipp()
		gm.Groups.Add(goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: gm.Printer})
	}

	if m.UnsupportedAttrs.Len() != 0 {
		gm.Unsupported = m.UnsupportedAttrs.Goipp()
		gm.Groups.Add(goipp.Group{Tag: goipp.TagUnsupportedGroup, Attrs: gm.Unsupported})
	}

	return gm
}

// Goipp converts attributes into goipp.Attributes, preserving order
func (attrs *Attrs) Goipp() goipp.Attributes {
	var out goipp.Attributes

	for _, name := range attrs.Names() {
		attr, _ := attrs.Get(name)
		gattr := goipp.Attribute{Name: name}
		for _, v := range attr.Values() {
			gattr.Values.Add(attr.Tag, toGoipp(attr.Tag, v))
		}
		out.Add(gattr)
	}

	return out
}

// FromGoipp converts goipp.Attributes into Attrs. Values of
// an attribute must share the same tag; values with a tag that
// differs from the first one are skipped.
func FromGoipp(gattrs goipp.Attributes) Attrs {
	var attrs Attrs

	for _, gattr := range gattrs {
		if len(gattr.Values) == 0 || attrs.Has(gattr.Name) {
			continue
		}

		tag := gattr.Values[0].T
		var vals []Value
		for _, gv := range gattr.Values {
			if gv.T == tag {
				vals = append(vals, fromGoipp(gv.V))
			}
		}

		attrs.Add(gattr.Name, tag, vals...)
	}

	return attrs
}

// toGoipp converts single value
func toGoipp(tag goipp.Tag, v Value) goipp.Value {
	switch v := v.(type) {
	case String:
		switch tag.Type() {
		case goipp.TypeVoid:
			return goipp.Void{}
		case goipp.TypeBinary:
			return goipp.Binary(v)
		case goipp.TypeTextWithLang:
			if twl, ok := splitTextWithLang(string(v)); ok {
				return twl
			}
			return goipp.Binary(v)
		}
		return goipp.String(v)

	case Integer:
		return goipp.Integer(v)

	case Boolean:
		return goipp.Boolean(v)

	case Range:
		return goipp.Range{Lower: int(v.Low), Upper: int(v.High)}

	case Resolution:
		return goipp.Resolution{Xres: int(v.X), Yres: int(v.Y), Units: v.Units}

	case DateTime:
		off := 3600*int(v.UTCHours) + 60*int(v.UTCMinutes)
		if v.UTCDir == '-' {
			off = -off
		}
		t := time.Date(int(v.Year), time.Month(v.Month), int(v.Day),
			int(v.Hour), int(v.Minute), int(v.Second),
			int(v.Decisecond)*100000000, time.FixedZone("", off))
		return goipp.Time{Time: t}

	case Collection:
		return goipp.Collection(v.Members.Goipp())
	}

	return goipp.Void{}
}

// fromGoipp converts single value
func fromGoipp(gv goipp.Value) Value {
	switch gv := gv.(type) {
	case goipp.Void:
		return String("")

	case goipp.String:
		return String(gv)

	case goipp.Binary:
		return String(gv)

	case goipp.TextWithLang:
		out := bytestream.NewWriter(4 + len(gv.Lang) + len(gv.Text))
		out.PutLenString(gv.Lang)
		out.PutLenString(gv.Text)
		return String(out.Bytes())

	case goipp.Integer:
		return Integer(gv)

	case goipp.Boolean:
		return Boolean(gv)

	case goipp.Range:
		return Range{Low: int32(gv.Lower), High: int32(gv.Upper)}

	case goipp.Resolution:
		return Resolution{X: int32(gv.Xres), Y: int32(gv.Yres), Units: gv.Units}

	case goipp.Time:
		_, off := gv.Zone()
		dir := byte('+')
		if off < 0 {
			dir, off = '-', -off
		}
		return DateTime{
			Year:       uint16(gv.Year()),
			Month:      uint8(gv.Month()),
			Day:        uint8(gv.Day()),
			Hour:       uint8(gv.Hour()),
			Minute:     uint8(gv.Minute()),
			Second:     uint8(gv.Second()),
			Decisecond: uint8(gv.Nanosecond() / 100000000),
			UTCDir:     dir,
			UTCHours:   uint8(off / 3600),
			UTCMinutes: uint8((off / 60) % 60),
		}

	case goipp.Collection:
		return Collection{Members: FromGoipp(goipp.Attributes(gv))}
	}

	return String(gv.String())
}

// splitTextWithLang parses raw textWithLanguage value
func splitTextWithLang(raw string) (goipp.TextWithLang, bool) {
	in := bytestream.New([]byte(raw))
	lang := in.LenString()
	text := in.LenString()
	if in.Err() != nil || !in.AtEnd() {
		return goipp.TextWithLang{}, false
	}
	return goipp.TextWithLang{Lang: lang, Text: text}, true
}

// FormatAttrs returns human-readable dump of attributes, using
// goipp.Formatter
func FormatAttrs(attrs *Attrs, indent int) string {
	f := goipp.NewFormatter()
	f.SetIndent(indent)
	f.FmtAttributes(attrs.Goipp())
	return f.String()
}

// FormatMessage returns human-readable dump of the message
func FormatMessage(m *Message, request bool) string {
	f := goipp.NewFormatter()
	if request {
		f.FmtRequest(m.Goipp())
	} else {
		f.FmtResponse(m.Goipp())
	}
	return f.String()
}
