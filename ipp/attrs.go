/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Ordered attribute map
 */

package ipp

import (
	"github.com/OpenPrinting/goipp"
)

// Attr is a single attribute: the value tag and the value.
// Multi-valued attributes carry a SetOf whose elements all
// share the Tag.
type Attr struct {
	Tag   goipp.Tag
	Value Value
}

// MakeAttr creates an Attr out of one or more values
func MakeAttr(tag goipp.Tag, vals ...Value) Attr {
	return Attr{Tag: tag, Value: Join(vals...)}
}

// Values returns attribute values as a flat slice
func (a Attr) Values() []Value {
	return Values(a.Value)
}

// Attrs is an insertion-ordered map of attributes by name.
// The zero value is an empty map ready to use.
type Attrs struct {
	names  []string        // Names in insertion order
	byName map[string]Attr // Attributes by name
}

// Len returns count of attributes
func (attrs *Attrs) Len() int {
	return len(attrs.names)
}

// Names returns attribute names in insertion order.
// The returned slice must not be modified.
func (attrs *Attrs) Names() []string {
	return attrs.names
}

// Has reports whether attribute is present
func (attrs *Attrs) Has(name string) bool {
	_, found := attrs.byName[name]
	return found
}

// Get returns attribute by name
func (attrs *Attrs) Get(name string) (Attr, bool) {
	attr, found := attrs.byName[name]
	return attr, found
}

// Set adds or replaces attribute. A replaced attribute keeps its
// position in the order.
func (attrs *Attrs) Set(name string, attr Attr) {
	if attrs.byName == nil {
		attrs.byName = make(map[string]Attr)
	}

	if _, found := attrs.byName[name]; !found {
		attrs.names = append(attrs.names, name)
	}

	attrs.byName[name] = attr
}

// Add is the shortcut for Set(name, MakeAttr(tag, vals...))
func (attrs *Attrs) Add(name string, tag goipp.Tag, vals ...Value) {
	attrs.Set(name, MakeAttr(tag, vals...))
}

// Delete removes attribute, if present
func (attrs *Attrs) Delete(name string) {
	if _, found := attrs.byName[name]; !found {
		return
	}

	delete(attrs.byName, name)
	for i, n := range attrs.names {
		if n == name {
			attrs.names = append(attrs.names[:i:i], attrs.names[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of attrs. Nested collections are
// copied as well, so the clone may be modified independently.
func (attrs *Attrs) Clone() Attrs {
	clone := Attrs{
		names:  append([]string(nil), attrs.names...),
		byName: make(map[string]Attr, len(attrs.byName)),
	}

	for name, attr := range attrs.byName {
		clone.byName[name] = Attr{Tag: attr.Tag, Value: cloneValue(attr.Value)}
	}

	return clone
}

// cloneValue deep-copies collections and sets
func cloneValue(v Value) Value {
	switch v := v.(type) {
	case SetOf:
		s := make(SetOf, len(v))
		for i := range v {
			s[i] = cloneValue(v[i])
		}
		return s
	case Collection:
		return Collection{Members: v.Members.Clone()}
	}
	return v
}

// Equal reports whether attrs and attrs2 contain the same
// attributes, regardless of order
func (attrs *Attrs) Equal(attrs2 *Attrs) bool {
	if attrs.Len() != attrs2.Len() {
		return false
	}

	for name, attr := range attrs.byName {
		attr2, found := attrs2.byName[name]
		if !found || attr.Tag != attr2.Tag || !Equal(attr.Value, attr2.Value) {
			return false
		}
	}

	return true
}

// String returns the first value of a string attribute
func (attrs *Attrs) String(name string) (string, bool) {
	strs := attrs.Strings(name)
	if len(strs) == 0 {
		return "", false
	}
	return strs[0], true
}

// Strings returns all values of a string attribute.
// Values of other types are skipped.
func (attrs *Attrs) Strings(name string) []string {
	var strs []string
	for _, v := range attrs.values(name) {
		if s, ok := v.(String); ok {
			strs = append(strs, string(s))
		}
	}
	return strs
}

// Int returns the first value of an integer or enum attribute
func (attrs *Attrs) Int(name string) (int, bool) {
	ints := attrs.Ints(name)
	if len(ints) == 0 {
		return 0, false
	}
	return ints[0], true
}

// Ints returns all values of an integer or enum attribute
func (attrs *Attrs) Ints(name string) []int {
	var ints []int
	for _, v := range attrs.values(name) {
		if i, ok := v.(Integer); ok {
			ints = append(ints, int(i))
		}
	}
	return ints
}

// Bool returns value of a boolean attribute
func (attrs *Attrs) Bool(name string) (value, found bool) {
	for _, v := range attrs.values(name) {
		if b, ok := v.(Boolean); ok {
			return bool(b), true
		}
	}
	return false, false
}

// Range returns the first value of a rangeOfInteger attribute
func (attrs *Attrs) Range(name string) (Range, bool) {
	for _, v := range attrs.values(name) {
		if r, ok := v.(Range); ok {
			return r, true
		}
	}
	return Range{}, false
}

// Resolutions returns all values of a resolution attribute
func (attrs *Attrs) Resolutions(name string) []Resolution {
	var res []Resolution
	for _, v := range attrs.values(name) {
		if r, ok := v.(Resolution); ok {
			res = append(res, r)
		}
	}
	return res
}

// Collection returns members of the first collection value
func (attrs *Attrs) Collection(name string) (*Attrs, bool) {
	cols := attrs.Collections(name)
	if len(cols) == 0 {
		return nil, false
	}
	return cols[0], true
}

// Collections returns members of all collection values
func (attrs *Attrs) Collections(name string) []*Attrs {
	var cols []*Attrs
	for _, v := range attrs.values(name) {
		if c, ok := v.(Collection); ok {
			members := c.Members
			cols = append(cols, &members)
		}
	}
	return cols
}

// values returns flattened values of the attribute
func (attrs *Attrs) values(name string) []Value {
	if attr, found := attrs.byName[name]; found {
		return attr.Values()
	}
	return nil
}

// Contains reports whether any value of the attribute equals v
func (attrs *Attrs) Contains(name string, v Value) bool {
	for _, v2 := range attrs.values(name) {
		if Equal(v, v2) {
			return true
		}
	}
	return false
}

// NewCollection is a shortcut that builds Collection value
// out of name/attribute pairs, in order
func NewCollection(members ...Member) Collection {
	var c Collection
	for _, m := range members {
		c.Members.Set(m.Name, m.Attr)
	}
	return c
}

// Member is a named collection member, used with NewCollection
type Member struct {
	Name string
	Attr Attr
}
