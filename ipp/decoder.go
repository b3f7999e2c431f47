/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP message decoder
 */

package ipp

import (
	"fmt"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/bytestream"
)

// MaxCollectionDepth limits nesting of collections in decoded
// messages
const MaxCollectionDepth = 64

// Decode decodes IPP message. Data after the end-of-attributes tag
// (document data of a request) is ignored.
func Decode(data []byte) (*Message, error) {
	m, _, err := DecodePrefix(data)
	return m, err
}

// DecodePrefix decodes IPP message and returns count of bytes it
// occupies, so the caller can find the document data that follows.
func DecodePrefix(data []byte) (*Message, int, error) {
	md := messageDecoder{in: bytestream.New(data)}
	m, err := md.decode()
	if err != nil {
		return nil, 0, err
	}
	return m, md.in.Pos(), nil
}

// decoderLevel represents one level of attribute nesting: the
// message group at the bottom, and one level per open collection.
type decoderLevel struct {
	attrs  *Attrs // Where values go
	name   string // Collection name in the parent level
	addl   bool   // Collection is an additional value in the parent
	member string // Pending member name, from memberAttrName record
	last   string // Last attribute name, for additional values
	drop   bool   // Values for last are being discarded
}

// messageDecoder represents the decoder state
type messageDecoder struct {
	in     *bytestream.Bytestream // Input data
	msg    *Message               // Message being decoded
	levels []decoderLevel         // levels[0] is the current group
	off    int                    // Offset of the current record
}

// decode decodes the whole message
func (md *messageDecoder) decode() (*Message, error) {
	md.msg = &Message{}
	md.msg.Version.Major = md.in.U8()
	md.msg.Version.Minor = md.in.U8()
	md.msg.Code = md.in.U16()
	md.msg.RequestID = md.in.U32()
	if md.in.Err() != nil {
		return nil, md.error("truncated message header")
	}

	md.levels = make([]decoderLevel, 1, 8)

	for {
		md.off = md.in.Pos()
		tag := goipp.Tag(md.in.U8())
		if md.in.Err() != nil {
			return nil, md.error("missing end-of-attributes tag")
		}

		if tag.IsDelimiter() {
			if len(md.levels) > 1 {
				return nil, md.error("%s inside collection", tag)
			}

			if tag == goipp.TagEnd {
				md.dropEmptyJobs()
				return md.msg, nil
			}

			if err := md.group(tag); err != nil {
				return nil, err
			}

			continue
		}

		name := md.in.LenString()
		value := md.in.Next(int(md.in.U16()))
		if md.in.Err() != nil {
			return nil, md.error("truncated attribute")
		}

		var err error
		if len(md.levels) == 1 {
			err = md.attribute(tag, name, value)
		} else {
			err = md.member(tag, name, value)
		}

		if err != nil {
			return nil, err
		}
	}
}

// group handles a group delimiter tag
func (md *messageDecoder) group(tag goipp.Tag) error {
	var attrs *Attrs

	switch tag {
	case goipp.TagZero:
		return md.error("invalid tag 0")

	case goipp.TagOperationGroup:
		attrs = &md.msg.OpAttrs

	case goipp.TagJobGroup:
		md.msg.JobAttrs = append(md.msg.JobAttrs, Attrs{})
		attrs = &md.msg.JobAttrs[len(md.msg.JobAttrs)-1]

	case goipp.TagPrinterGroup:
		attrs = &md.msg.PrinterAttrs

	case goipp.TagUnsupportedGroup:
		attrs = &md.msg.UnsupportedAttrs
		md.warn("printer reports unsupported attributes")

	default:
		// Other groups are parsed but not kept
		attrs = &Attrs{}
		md.warn("%s ignored", tag)
	}

	md.levels[0] = decoderLevel{attrs: attrs}
	return nil
}

// dropEmptyJobs removes job groups without attributes
func (md *messageDecoder) dropEmptyJobs() {
	jobs := md.msg.JobAttrs[:0]
	for _, job := range md.msg.JobAttrs {
		if job.Len() != 0 {
			jobs = append(jobs, job)
		}
	}

	if len(jobs) == 0 {
		jobs = nil
	}

	md.msg.JobAttrs = jobs
}

// attribute handles a value record at the group level
func (md *messageDecoder) attribute(tag goipp.Tag, name string, value []byte) error {
	lvl := &md.levels[0]

	switch {
	case lvl.attrs == nil:
		return md.error("attribute %q outside of group", name)
	case tag == goipp.TagMemberName || tag == goipp.TagEndCollection:
		return md.error("%s outside of collection", tag)
	}

	addl := name == ""
	if addl {
		if lvl.last == "" {
			return md.error("additional value without attribute")
		}
		name = lvl.last
	}

	return md.value(lvl, tag, name, addl, value)
}

// member handles a record inside of collection
func (md *messageDecoder) member(tag goipp.Tag, name string, value []byte) error {
	lvl := &md.levels[len(md.levels)-1]

	switch tag {
	case goipp.TagEndCollection:
		if lvl.member != "" {
			return md.error("collection member %q without value", lvl.member)
		}

		done := md.levels[len(md.levels)-1]
		md.levels = md.levels[:len(md.levels)-1]
		parent := &md.levels[len(md.levels)-1]
		md.deliver(parent, done.name, goipp.TagBeginCollection,
			Collection{Members: *done.attrs}, done.addl)
		return nil

	case goipp.TagMemberName:
		if lvl.member != "" {
			return md.error("collection member %q without value", lvl.member)
		}
		if len(value) == 0 {
			return md.error("empty collection member name")
		}
		lvl.member = string(value)
		return nil
	}

	addl := false
	switch {
	case lvl.member != "":
		name = lvl.member
		lvl.member = ""

	case name != "":
		// Named value without memberAttrName record. Some
		// printers encode collections this way; the name is
		// taken as the member name.

	default:
		if lvl.last == "" {
			return md.error("collection value without member name")
		}
		name = lvl.last
		addl = true
	}

	return md.value(lvl, tag, name, addl, value)
}

// value decodes a value of the attribute or member and delivers
// it to the level. Collections open a new level.
func (md *messageDecoder) value(lvl *decoderLevel, tag goipp.Tag,
	name string, addl bool, value []byte) error {

	if tag == goipp.TagBeginCollection {
		if len(md.levels) > MaxCollectionDepth {
			return md.error("collections nested too deep")
		}

		if !addl {
			md.begin(lvl, name)
		}

		md.levels = append(md.levels, decoderLevel{
			attrs: &Attrs{},
			name:  name,
			addl:  addl,
		})
		return nil
	}

	v, err := decodeValue(tag, value)
	if err != nil {
		return md.error("%q: %s", name, err)
	}

	if !addl {
		md.begin(lvl, name)
	}

	md.deliver(lvl, name, tag, v, addl)
	return nil
}

// begin starts a new attribute at the level. If attribute is
// already present, first occurrence wins and values of the
// duplicate are discarded.
func (md *messageDecoder) begin(lvl *decoderLevel, name string) {
	lvl.last = name
	lvl.drop = lvl.attrs.Has(name)
	if lvl.drop {
		md.warn("%q: duplicated attribute ignored", name)
	}
}

// deliver stores decoded value into the level
func (md *messageDecoder) deliver(lvl *decoderLevel, name string,
	tag goipp.Tag, v Value, addl bool) {

	if lvl.drop {
		return
	}

	if !addl {
		lvl.attrs.Set(name, Attr{Tag: tag, Value: v})
		return
	}

	prev, _ := lvl.attrs.Get(name)
	if prev.Tag != tag {
		md.warn("%q: %s value mixed with %s dropped", name, tag, prev.Tag)
		return
	}

	set := append(SetOf(nil), prev.Values()...)
	lvl.attrs.Set(name, Attr{Tag: tag, Value: append(set, v)})
}

// warn records a recoverable problem
func (md *messageDecoder) warn(format string, args ...interface{}) {
	md.msg.Warnings = append(md.msg.Warnings, fmt.Sprintf(format, args...))
}

// error creates DecodeError at the current record
func (md *messageDecoder) error(format string, args ...interface{}) error {
	return &DecodeError{Off: md.off, Msg: fmt.Sprintf(format, args...)}
}

// decodeValue decodes a single non-collection value
func decodeValue(tag goipp.Tag, data []byte) (Value, error) {
	in := bytestream.New(data)

	need := -1
	switch tag.Type() {
	case goipp.TypeInteger:
		need = 4
	case goipp.TypeBoolean:
		need = 1
	case goipp.TypeDateTime:
		need = 11
	case goipp.TypeResolution:
		need = 9
	case goipp.TypeRange:
		need = 8
	}

	if need >= 0 && len(data) != need {
		return nil, fmt.Errorf("%s value must be %d bytes, present %d",
			tag, need, len(data))
	}

	switch tag.Type() {
	case goipp.TypeVoid:
		return String(""), nil

	case goipp.TypeInteger:
		return Integer(in.I32()), nil

	case goipp.TypeBoolean:
		return Boolean(in.U8() != 0), nil

	case goipp.TypeDateTime:
		return DateTime{
			Year:       in.U16(),
			Month:      in.U8(),
			Day:        in.U8(),
			Hour:       in.U8(),
			Minute:     in.U8(),
			Second:     in.U8(),
			Decisecond: in.U8(),
			UTCDir:     in.U8(),
			UTCHours:   in.U8(),
			UTCMinutes: in.U8(),
		}, nil

	case goipp.TypeResolution:
		return Resolution{
			X:     in.I32(),
			Y:     in.I32(),
			Units: goipp.Units(in.U8()),
		}, nil

	case goipp.TypeRange:
		return Range{Low: in.I32(), High: in.I32()}, nil
	}

	return String(data), nil
}
