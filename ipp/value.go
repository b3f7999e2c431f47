/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP attribute values
 */

package ipp

import (
	"fmt"
	"strings"

	"github.com/OpenPrinting/goipp"
)

// Value is the closed set of IPP attribute values.
//
// Implementations are String, Integer, Boolean, Range, Resolution,
// DateTime, SetOf and Collection.
type Value interface {
	// String returns a human-readable representation of the value
	String() string

	// isValue closes the set of implementations
	isValue()
}

// String is a value of any string-like tag (text, name, keyword,
// uri, charset, mimeMediaType and so on).
//
// Out-of-band tags (no-value, unknown, unsupported and friends) carry
// an empty String. textWithLanguage, nameWithLanguage and octetString
// values are kept as raw wire bytes.
type String string

// Integer is a value of integer and enum tags
type Integer int32

// Boolean is a value of the boolean tag
type Boolean bool

// Range is a value of the rangeOfInteger tag
type Range struct {
	Low, High int32
}

// Resolution is a value of the resolution tag
type Resolution struct {
	X, Y  int32       // Cross-feed and feed resolution
	Units goipp.Units // goipp.UnitsDpi or goipp.UnitsDpcm
}

// DateTime is a value of the dateTime tag, field by field as
// RFC 2579 defines it
type DateTime struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Decisecond uint8
	UTCDir     byte // '+' or '-'
	UTCHours   uint8
	UTCMinutes uint8
}

// SetOf is a multi-valued (1setOf) attribute value.
// Elements are never SetOf themselves.
type SetOf []Value

// Collection is a value of the begCollection tag
type Collection struct {
	Members Attrs
}

func (String) isValue()     {}
func (Integer) isValue()    {}
func (Boolean) isValue()    {}
func (Range) isValue()      {}
func (Resolution) isValue() {}
func (DateTime) isValue()   {}
func (SetOf) isValue()      {}
func (Collection) isValue() {}

// String returns the string itself
func (v String) String() string { return string(v) }

// String formats Integer as decimal
func (v Integer) String() string { return fmt.Sprintf("%d", int32(v)) }

// String formats Boolean as true/false
func (v Boolean) String() string { return fmt.Sprintf("%t", bool(v)) }

// String formats Range as low-high
func (v Range) String() string { return fmt.Sprintf("%d-%d", v.Low, v.High) }

// String formats Resolution as XxYunits
func (v Resolution) String() string {
	return fmt.Sprintf("%dx%d%s", v.X, v.Y, v.Units)
}

// String formats DateTime in the ISO 8601 manner
func (v DateTime) String() string {
	dir := v.UTCDir
	if dir != '-' {
		dir = '+'
	}

	return fmt.Sprintf("%4.4d-%2.2d-%2.2dT%2.2d:%2.2d:%2.2d.%d%c%2.2d:%2.2d",
		v.Year, v.Month, v.Day, v.Hour, v.Minute, v.Second,
		v.Decisecond, dir, v.UTCHours, v.UTCMinutes)
}

// String formats SetOf as comma-separated list
func (v SetOf) String() string {
	s := make([]string, len(v))
	for i := range v {
		s[i] = v[i].String()
	}
	return strings.Join(s, ",")
}

// String formats Collection as {name=value ...}
func (v Collection) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range v.Members.Names() {
		if i != 0 {
			b.WriteByte(' ')
		}
		attr, _ := v.Members.Get(name)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(attr.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Values returns v as a slice of single values: elements of a SetOf,
// or v itself for a single value
func Values(v Value) []Value {
	switch v := v.(type) {
	case nil:
		return nil
	case SetOf:
		return v
	}
	return []Value{v}
}

// Join makes a Value out of a list of single values: nil for an
// empty list, the value itself for one element, SetOf otherwise.
// Nested sets are flattened.
func Join(vals ...Value) Value {
	var flat SetOf
	for _, v := range vals {
		flat = append(flat, Values(v)...)
	}

	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}

	return flat
}

// Equal reports whether two values are semantically equal.
// Collections compare members regardless of their order.
func Equal(v1, v2 Value) bool {
	switch v1 := v1.(type) {
	case SetOf:
		s2, ok := v2.(SetOf)
		if !ok || len(v1) != len(s2) {
			return false
		}
		for i := range v1 {
			if !Equal(v1[i], s2[i]) {
				return false
			}
		}
		return true

	case Collection:
		c2, ok := v2.(Collection)
		return ok && v1.Members.Equal(&c2.Members)
	}

	return v1 == v2
}

// valueType returns goipp type a Value variant encodes as.
// String covers all string-like and raw types.
func valueType(v Value) goipp.Type {
	switch v.(type) {
	case String:
		return goipp.TypeString
	case Integer:
		return goipp.TypeInteger
	case Boolean:
		return goipp.TypeBoolean
	case Range:
		return goipp.TypeRange
	case Resolution:
		return goipp.TypeResolution
	case DateTime:
		return goipp.TypeDateTime
	case Collection:
		return goipp.TypeCollection
	}
	return goipp.TypeInvalid
}

// tagAccepts reports whether a value of the given variant may be
// encoded with the tag
func tagAccepts(tag goipp.Tag, v Value) bool {
	want := tag.Type()
	switch want {
	case goipp.TypeVoid, goipp.TypeTextWithLang, goipp.TypeBinary:
		want = goipp.TypeString
	case goipp.TypeInvalid:
		return false
	}

	switch {
	case tag == goipp.TagMemberName, tag == goipp.TagEndCollection:
		return false
	case tag > 0xff:
		return false
	}

	return valueType(v) == want
}
