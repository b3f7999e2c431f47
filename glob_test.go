/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Tests for glob-style pattern matching
 */

package main

import (
	"testing"
)

// Test GlobMatch
func TestGlobMatch(t *testing.T) {
	testData := []struct {
		model, pattern string
		count          int
	}{
		{"test", "test", 4},
		{"test", "tes?", 3},
		{"test", "te?t", 3},
		{"test", "te??", 2},
		{"test", "te??x", -1},
		{"test", "te*", 2},
		{"test", "te**", 2},
		{"test", "*te**", 2},
		{"test", "*x*", -1},
		{"", "*", 0},
		{"", "x", -1},
		{"test", "t\\est", 4},
		{"t?st", "t\\?st", 4},
		{"HP LaserJet M404", "hp laserjet*", 11},
		{"HP LaserJet M404", "HP *M404", 7},
		{"Canon G3010 series", "Canon G3010*", 11},
		{"Canon G3010 series", "Canon G2010*", -1},
		{"abcbc", "a*bc", 3},
		{"abcbd", "a*bc", -1},
		{"aXbYc", "a*b*c", 3},
		{"test", "test\\", -1},
		{"", "", 0},
		{"x", "", -1},
	}

	for _, data := range testData {
		n := GlobMatch(data.model, data.pattern)
		if n != data.count {
			t.Errorf("GlobMatch(%q,%q): expected %d got %d",
				data.model, data.pattern, data.count, n)
		}
	}
}
