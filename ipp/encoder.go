/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP message encoder
 */

package ipp

import (
	"math"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/bytestream"
)

// opAttrsOrder lists operation attributes that must come first,
// in this order (RFC 8011, 4.1.4)
var opAttrsOrder = []string{
	"attributes-charset",
	"attributes-natural-language",
	"printer-uri",
	"job-id",
	"requesting-user-name",
}

// Encode encodes the message. If seq is not nil, a new request ID
// is taken from it and stored into the message; otherwise RequestID
// is used as is (responses echo the request's ID).
func (m *Message) Encode(seq *Sequence) ([]byte, error) {
	if seq != nil {
		m.RequestID = seq.Next()
	}

	out := bytestream.NewWriter(1024)
	out.PutU8(m.Version.Major)
	out.PutU8(m.Version.Minor)
	out.PutU16(m.Code)
	out.PutU32(m.RequestID)

	// Operation attributes, with the mandatory prefix
	out.PutU8(uint8(goipp.TagOperationGroup))

	for _, name := range opAttrsOrder {
		if attr, found := m.OpAttrs.Get(name); found {
			if err := encodeAttr(out, name, attr); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range m.OpAttrs.Names() {
		if isOrdered(name) {
			continue
		}
		attr, _ := m.OpAttrs.Get(name)
		if err := encodeAttr(out, name, attr); err != nil {
			return nil, err
		}
	}

	// Other groups
	for i := range m.JobAttrs {
		if err := encodeGroup(out, goipp.TagJobGroup, &m.JobAttrs[i]); err != nil {
			return nil, err
		}
	}

	err := encodeGroup(out, goipp.TagPrinterGroup, &m.PrinterAttrs)
	if err == nil {
		err = encodeGroup(out, goipp.TagUnsupportedGroup, &m.UnsupportedAttrs)
	}

	if err != nil {
		return nil, err
	}

	out.PutU8(uint8(goipp.TagEnd))
	return out.Bytes(), nil
}

// isOrdered reports whether operation attribute belongs to the
// mandatory prefix
func isOrdered(name string) bool {
	for _, n := range opAttrsOrder {
		if n == name {
			return true
		}
	}
	return false
}

// encodeGroup encodes a group. Empty groups are omitted.
func encodeGroup(out *bytestream.Bytestream, tag goipp.Tag, attrs *Attrs) error {
	if attrs.Len() == 0 {
		return nil
	}

	out.PutU8(uint8(tag))
	for _, name := range attrs.Names() {
		attr, _ := attrs.Get(name)
		if err := encodeAttr(out, name, attr); err != nil {
			return err
		}
	}

	return nil
}

// encodeAttr encodes attribute as a named record followed by
// unnamed records for additional values
func encodeAttr(out *bytestream.Bytestream, name string, attr Attr) error {
	if name == "" {
		return &EncodeError{Name: name, Msg: "attribute without name"}
	}

	if len(name) > math.MaxInt16 {
		return &EncodeError{Name: name[:32] + "...", Msg: "name too long"}
	}

	vals := attr.Values()
	if len(vals) == 0 {
		return &EncodeError{Name: name, Msg: "attribute without value"}
	}

	for _, v := range vals {
		if err := encodeValue(out, name, attr.Tag, v); err != nil {
			return err
		}
		name = ""
	}

	return nil
}

// encodeValue encodes one value record. Collections are followed by
// their members and the endCollection record.
func encodeValue(out *bytestream.Bytestream, name string, tag goipp.Tag, v Value) error {
	if _, nested := v.(SetOf); nested {
		return &EncodeError{Name: name, Msg: "nested 1setOf"}
	}

	if !tagAccepts(tag, v) {
		return &EncodeError{Name: name,
			Msg: "tag " + tag.String() + " mismatches value " + v.String()}
	}

	out.PutU8(uint8(tag))
	out.PutLenString(name)

	switch v := v.(type) {
	case String:
		if tag.Type() == goipp.TypeVoid {
			out.PutU16(0)
			break
		}
		if len(v) > math.MaxInt16 {
			return &EncodeError{Name: name, Msg: "value too long"}
		}
		out.PutLenString(string(v))

	case Integer:
		out.PutU16(4)
		out.PutI32(int32(v))

	case Boolean:
		out.PutU16(1)
		if v {
			out.PutU8(1)
		} else {
			out.PutU8(0)
		}

	case Range:
		out.PutU16(8)
		out.PutI32(v.Low)
		out.PutI32(v.High)

	case Resolution:
		out.PutU16(9)
		out.PutI32(v.X)
		out.PutI32(v.Y)
		out.PutU8(uint8(v.Units))

	case DateTime:
		out.PutU16(11)
		out.PutU16(v.Year)
		out.PutU8(v.Month)
		out.PutU8(v.Day)
		out.PutU8(v.Hour)
		out.PutU8(v.Minute)
		out.PutU8(v.Second)
		out.PutU8(v.Decisecond)
		out.PutU8(v.UTCDir)
		out.PutU8(v.UTCHours)
		out.PutU8(v.UTCMinutes)

	case Collection:
		out.PutU16(0)
		return encodeMembers(out, &v.Members)
	}

	return nil
}

// encodeMembers encodes collection members and the terminating
// endCollection record
func encodeMembers(out *bytestream.Bytestream, members *Attrs) error {
	for _, name := range members.Names() {
		if name == "" {
			return &EncodeError{Name: name, Msg: "collection member without name"}
		}

		attr, _ := members.Get(name)
		vals := attr.Values()
		if len(vals) == 0 {
			return &EncodeError{Name: name, Msg: "collection member without value"}
		}

		out.PutU8(uint8(goipp.TagMemberName))
		out.PutU16(0)
		out.PutLenString(name)

		for _, v := range vals {
			if err := encodeValue(out, "", attr.Tag, v); err != nil {
				return err
			}
		}
	}

	out.PutU8(uint8(goipp.TagEndCollection))
	out.PutU16(0)
	out.PutU16(0)
	return nil
}
