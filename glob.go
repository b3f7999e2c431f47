/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Glob-style pattern matching
 */

package main

// globToken is the single element of the parsed glob pattern
type globToken struct {
	c    byte // Literal character
	any  bool // '?': any single character
	star bool // '*': any sequence of characters
}

// GlobMatch matches string against glob-style pattern:
//
//	?   - matches exactly one character
//	*   - matches any sequence of characters
//	\C  - matches character C
//	C   - matches character C (C is not *, ? or \)
//
// ASCII letters match regardless of case, as printers are not
// consistent in capitalization of their printer-make-and-model.
//
// On match it returns the weight, the count of literal characters
// in the pattern, so more specific patterns win. Otherwise, or if
// pattern is malformed, it returns -1.
func GlobMatch(str, pattern string) int {
	tokens, literals, ok := globParse(pattern)
	if !ok || !globMatchTokens(str, tokens) {
		return -1
	}
	return literals
}

// globParse splits pattern into tokens and counts literals.
// Dangling backslash makes pattern invalid.
func globParse(pattern string) (tokens []globToken, literals int, ok bool) {
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if n := len(tokens); n == 0 || !tokens[n-1].star {
				tokens = append(tokens, globToken{star: true})
			}
		case '?':
			tokens = append(tokens, globToken{any: true})
		case '\\':
			i++
			if i == len(pattern) {
				return nil, 0, false
			}
			tokens = append(tokens, globToken{c: pattern[i]})
			literals++
		default:
			tokens = append(tokens, globToken{c: c})
			literals++
		}
	}

	return tokens, literals, true
}

// globMatchTokens matches str against parsed pattern. On mismatch
// after '*' it retries with the '*' consuming one more character.
func globMatchTokens(str string, tokens []globToken) bool {
	si, ti := 0, 0
	starTi, starSi := -1, 0

	for si < len(str) {
		switch {
		case ti < len(tokens) && tokens[ti].star:
			starTi, starSi = ti, si
			ti++

		case ti < len(tokens) &&
			(tokens[ti].any || globFold(tokens[ti].c) == globFold(str[si])):
			si++
			ti++

		case starTi >= 0:
			starSi++
			si, ti = starSi, starTi+1

		default:
			return false
		}
	}

	for ti < len(tokens) && tokens[ti].star {
		ti++
	}

	return ti == len(tokens)
}

// globFold converts ASCII upper case letter to lower case
func globFold(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c
}
