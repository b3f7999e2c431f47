/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Printer attributes decoding
 */

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// PrinterSupply is the single marker (toner, ink and so on) state
type PrinterSupply struct {
	Name  string // marker-names
	Type  string // marker-types
	Color string // marker-colors
	Level int    // marker-levels, percents; negative if unknown
}

// PrinterInfo is the human-oriented summary of printer attributes
type PrinterInfo struct {
	Name         string          // printer-name
	DNSSdName    string          // DNS-SD name
	MakeModel    string          // printer-make-and-model
	Location     string          // printer-location
	Info         string          // printer-info
	State        string          // printer-state, by name
	StateReasons []string        // printer-state-reasons
	StateMessage string          // printer-state-message
	UUID         string          // printer-uuid, normalized
	Firmware     []string        // printer-firmware-string-version
	Versions     []string        // ipp-versions-supported
	Formats      []string        // document-format-supported
	Color        string          // "T", "F" or "" if unknown
	Duplex       string          // "T", "F" or "" if unknown
	URF          string          // urf-supported
	PaperMax     string          // Bonjour paper size class
	Supplies     []PrinterSupply // Marker states
}

// printerStates maps printer-state into names
var printerStates = map[int]string{
	3: "idle",
	4: "processing",
	5: "stopped",
}

// ippAttrs wraps printer attributes with lookup helpers
type ippAttrs struct {
	*ipp.Attrs
}

// NewPrinterInfo decodes printer attributes into PrinterInfo
//
// This is where information comes from:
//
//	DNS-SD name: "printer-dns-sd-name" with fallback to
//	             "printer-info" and "printer-make-and-model"
//	Color:       "color-supported"
//	Duplex:      search "sides-supported" for strings with
//	             prefix "one" or "two"
//	URF:         "urf-supported" with fallback to "printer-device-id"
func NewPrinterInfo(printer *ipp.Attrs) *PrinterInfo {
	attrs := ippAttrs{printer}

	info := &PrinterInfo{
		Name:         attrs.strSingle("printer-name"),
		DNSSdName:    attrs.strSingle("printer-dns-sd-name", "printer-info", "printer-make-and-model"),
		MakeModel:    attrs.strSingle("printer-make-and-model"),
		Location:     attrs.strSingle("printer-location"),
		Info:         attrs.strSingle("printer-info"),
		StateReasons: printer.Strings("printer-state-reasons"),
		StateMessage: attrs.strSingle("printer-state-message"),
		UUID:         UUIDNormalize(attrs.strSingle("printer-uuid")),
		Firmware:     printer.Strings("printer-firmware-string-version"),
		Versions:     printer.Strings("ipp-versions-supported"),
		Formats:      printer.Strings("document-format-supported"),
		Color:        attrs.getBool("color-supported"),
		Duplex:       attrs.getDuplex(),
		URF:          attrs.strJoined("urf-supported"),
	}

	if state, ok := printer.Int("printer-state"); ok {
		info.State = printerStates[state]
		if info.State == "" {
			info.State = fmt.Sprintf("unknown (%d)", state)
		}
	}

	if info.URF == "" {
		info.URF = attrs.deviceID()["URF"]
	}

	if p, ok := PaperSizeMax(printer); ok {
		info.PaperMax = p.Classify()
	}

	names := printer.Strings("marker-names")
	types := printer.Strings("marker-types")
	colors := printer.Strings("marker-colors")
	levels := printer.Ints("marker-levels")

	for i, name := range names {
		supply := PrinterSupply{Name: name, Level: -1}
		if i < len(types) {
			supply.Type = types[i]
		}
		if i < len(colors) {
			supply.Color = colors[i]
		}
		if i < len(levels) && levels[i] >= 0 {
			supply.Level = levels[i]
		}
		info.Supplies = append(info.Supplies, supply)
	}

	return info
}

// TxtRecord returns DNS-SD TXT record, describing the printer
// the way Bonjour printing specification requires
func (info *PrinterInfo) TxtRecord(printer *ipp.Attrs) DnsSdTxtRecord {
	attrs := ippAttrs{printer}

	var txt DnsSdTxtRecord
	txt.Add("txtvers", "1")
	txt.Add("rp", strings.TrimPrefix(DefaultIPPPath, "/"))
	txt.IfNotEmpty("ty", info.MakeModel)
	if info.MakeModel != "" {
		txt.Add("product", "("+info.MakeModel+")")
	}
	txt.Add("note", info.Location)
	txt.IfNotEmpty("pdl", strings.Join(info.Formats, ","))
	txt.IfNotEmpty("kind", attrs.strJoined("printer-kind"))
	txt.IfNotEmpty("URF", info.URF)
	txt.IfNotEmpty("UUID", info.UUID)
	txt.IfNotEmpty("Color", info.Color)
	txt.IfNotEmpty("Duplex", info.Duplex)
	txt.IfNotEmpty("PaperMax", info.PaperMax)
	txt.IfNotEmpty("mopria-certified", attrs.strSingle("mopria-certified"))

	return txt
}

// Write writes PrinterInfo as a human-readable text
func (info *PrinterInfo) Write(w io.Writer) {
	line := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-14s %s\n", name+":", value)
		}
	}

	state := info.State
	if len(info.StateReasons) != 0 {
		state += " (" + strings.Join(info.StateReasons, ", ") + ")"
	}

	line("Name", info.Name)
	line("DNS-SD name", info.DNSSdName)
	line("Make and model", info.MakeModel)
	line("Location", info.Location)
	line("Info", info.Info)
	line("State", state)
	line("Message", info.StateMessage)
	line("UUID", info.UUID)
	line("Firmware", strings.Join(info.Firmware, ", "))
	line("IPP versions", strings.Join(info.Versions, ", "))
	line("Formats", strings.Join(info.Formats, ", "))
	line("Color", info.Color)
	line("Duplex", info.Duplex)
	line("URF", info.URF)
	line("Paper max", info.PaperMax)

	for i, s := range info.Supplies {
		level := "unknown"
		if s.Level >= 0 {
			level = fmt.Sprintf("%d%%", s.Level)
		}

		desc := fmt.Sprintf("%s, %s", s.Name, level)
		if s.Type != "" {
			desc += ", " + s.Type
		}
		if s.Color != "" {
			desc += ", " + s.Color
		}

		line(fmt.Sprintf("Supply %d", i+1), desc)
	}
}

// deviceID parses IEEE 1284 device ID
func (attrs ippAttrs) deviceID() map[string]string {
	devid := make(map[string]string)
	for _, id := range strings.Split(attrs.strSingle("printer-device-id"), ";") {
		keyval := strings.SplitN(id, ":", 2)
		if len(keyval) == 2 {
			devid[strings.TrimSpace(keyval[0])] = keyval[1]
		}
	}

	return devid
}

// getDuplex returns "T" if printer supports two-sided
// printing, "F" if not and "" if it can't tell
func (attrs ippAttrs) getDuplex() string {
	one, two := false, false
	for _, s := range attrs.Strings("sides-supported") {
		switch {
		case strings.HasPrefix(s, "one"):
			one = true
		case strings.HasPrefix(s, "two"):
			two = true
		}
	}

	if two {
		return "T"
	}

	if one {
		return "F"
	}

	return ""
}

// Get a single-string attribute
// Multiple names may be specified, for fallback purposes
func (attrs ippAttrs) strSingle(names ...string) string {
	for _, name := range names {
		if s, ok := attrs.String(name); ok && s != "" {
			return s
		}
	}

	return ""
}

// Get a multi-string attribute, represented as a comma-separated list
func (attrs ippAttrs) strJoined(name string) string {
	return strings.Join(attrs.Strings(name), ",")
}

// Get boolean attribute. Returns "F" or "T" if attribute is found,
// empty string otherwise.
func (attrs ippAttrs) getBool(name string) string {
	v, found := attrs.Bool(name)
	switch {
	case !found:
		return ""
	case v:
		return "T"
	}
	return "F"
}
