/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * DNS-SD discovery tests
 */

package main

import (
	"net"
	"reflect"
	"testing"

	"github.com/grandcat/zeroconf"
)

// TestParseDnsSdTxt tests TXT record parsing
func TestParseDnsSdTxt(t *testing.T) {
	txt := ParseDnsSdTxt([]string{
		"txtvers=1",
		"rp=ipp/print",
		"ty=Acme LaserBox 2000",
		"pdl=application/pdf,image/urf,image/pwg-raster",
		"URF=W8,SRGB24,RS300-600,DM1",
		"Color=T",
		"Duplex=F",
		"",
		"air",
		"note=a=b",
		"rp=ignored",
	})

	tests := []struct{ key, value string }{
		{"txtvers", "1"},
		{"rp", "ipp/print"},
		{"RP", "ipp/print"},
		{"ty", "Acme LaserBox 2000"},
		{"urf", "W8,SRGB24,RS300-600,DM1"},
		{"air", ""},
		{"note", "a=b"},
		{"missing", ""},
	}

	for _, test := range tests {
		v := txt.Get(test.key)
		if v != test.value {
			t.Errorf("Get(%q): expected %q, present %q",
				test.key, test.value, v)
		}
	}

	if len(txt) != 10 {
		t.Errorf("ParseDnsSdTxt: expected 10 items, present %d", len(txt))
	}

	strs := txt.Strings()
	if strs[0] != "txtvers=1" || strs[7] != "air=" {
		t.Errorf("Strings: %q", strs)
	}
}

// TestDnsSdTxtRecordAdd tests DnsSdTxtRecord construction
func TestDnsSdTxtRecordAdd(t *testing.T) {
	var txt DnsSdTxtRecord

	txt.Add("txtvers", "1")
	if txt.IfNotEmpty("note", "") {
		t.Errorf("IfNotEmpty: empty value added")
	}
	if !txt.IfNotEmpty("ty", "Acme") {
		t.Errorf("IfNotEmpty: value not added")
	}

	expected := []string{"txtvers=1", "ty=Acme"}
	if !reflect.DeepEqual(txt.Strings(), expected) {
		t.Errorf("Strings: expected %q, present %q", expected, txt.Strings())
	}
}

// TestDnsSdPrinter tests DnsSdPrinter construction and URI building
func TestDnsSdPrinter(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Acme LaserBox", "_ipps._tcp", "local.")
	entry.HostName = "laserbox.local."
	entry.Port = 443
	entry.Text = []string{"rp=ipp/print", "ty=Acme LaserBox 2000",
		"pdl=application/pdf,image/urf", "Color=T", "Duplex=T"}
	entry.AddrIPv4 = []net.IP{net.IPv4(192, 168, 1, 10)}

	p := newDnsSdPrinter(entry)

	tests := []struct{ name, present, expected string }{
		{"Host", p.Host, "laserbox.local"},
		{"URI", p.URI(), "ipps://laserbox.local:443/ipp/print"},
		{"MakeModel", p.MakeModel(), "Acme LaserBox 2000"},
		{"Summary", p.Summary(), "Acme LaserBox (Acme LaserBox 2000) [color,duplex]"},
	}

	for _, test := range tests {
		if test.present != test.expected {
			t.Errorf("%s: expected %q, present %q",
				test.name, test.expected, test.present)
		}
	}

	if !reflect.DeepEqual(p.Formats(), []string{"application/pdf", "image/urf"}) {
		t.Errorf("Formats: %q", p.Formats())
	}

	// No host name, IPv6 address, product instead of ty
	p = &DnsSdPrinter{
		Service: "_ipp._tcp",
		Port:    631,
		Addrs:   []net.IP{net.ParseIP("fe80::1")},
		Txt:     ParseDnsSdTxt([]string{"product=(Acme Inkjet)"}),
	}

	if uri := p.URI(); uri != "ipp://[fe80::1]:631/" {
		t.Errorf("URI: %q", uri)
	}

	if mm := p.MakeModel(); mm != "Acme Inkjet" {
		t.Errorf("MakeModel: %q", mm)
	}
}
