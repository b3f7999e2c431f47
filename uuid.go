/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * UUID normalizer
 */

package main

import (
	"bytes"
	"strings"

	"github.com/OpenPrinting/go-mfp/util/uuid"
)

// UUIDNormalize parses an UUID and then reformats it into
// the standard form (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx)
//
// If input is not a valid UUID, it returns an empty string
// Many standard formats of UUIDs are recognized
func UUIDNormalize(str string) string {
	var buf [32]byte
	var cnt int

	in := bytes.ToLower([]byte(str))

	if bytes.HasPrefix(in, []byte("urn:")) {
		in = in[4:]
	}

	if bytes.HasPrefix(in, []byte("uuid:")) {
		in = in[5:]
	}

	for len(in) != 0 {
		c := in[0]
		in = in[1:]

		if '0' <= c && c <= '9' || 'a' <= c && c <= 'f' {
			if cnt == 32 {
				return ""
			}

			buf[cnt] = c
			cnt++
		}
	}

	if cnt != 32 {
		return ""
	}

	return string(buf[0:8]) + "-" +
		string(buf[8:12]) + "-" +
		string(buf[12:16]) + "-" +
		string(buf[16:20]) + "-" +
		string(buf[20:32])
}

// UUIDFromHost makes a stable name-based (SHA-1) UUID for printers
// that don't report their printer-uuid
func UUIDFromHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return UUIDNormalize(uuid.SHA1(uuid.NameSpaceDNS, host).String())
}
