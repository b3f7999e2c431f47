/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Page ranges and page sequence
 */

package printparams

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidPage is the page sequence entry for a blank page
const InvalidPage = 0

// PageRange is the inclusive range of 1-based pages. Zero First
// means the first page, zero Last means the last page.
type PageRange struct {
	First, Last int
}

// PageRangeList is the list of page ranges
type PageRangeList []PageRange

// String returns PageRange in the N-M form
func (r PageRange) String() string {
	switch {
	case r.First == r.Last && r.First != 0:
		return strconv.Itoa(r.First)
	case r.Last == 0:
		return fmt.Sprintf("%d-", r.First)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// String returns PageRangeList as comma-separated ranges
func (l PageRangeList) String() string {
	s := make([]string, len(l))
	for i, r := range l {
		s[i] = r.String()
	}
	return strings.Join(s, ",")
}

// ParsePageRanges parses comma-separated list of page ranges.
// Each token is either N or N-M, where missing M means "up to the
// last page". Any invalid token, or M < N, fails the whole parse.
func ParsePageRanges(s string) (PageRangeList, error) {
	var l PageRangeList

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		first, last, isRange := strings.Cut(tok, "-")

		f, err := parsePageNumber(first)
		if err != nil {
			return nil, fmt.Errorf("%q: invalid page range", tok)
		}

		r := PageRange{First: f, Last: f}
		if isRange {
			r.Last = 0
			if last != "" {
				r.Last, err = parsePageNumber(last)
				if err != nil || r.Last < r.First {
					return nil, fmt.Errorf("%q: invalid page range", tok)
				}
			}
		}

		l = append(l, r)
	}

	return l, nil
}

// parsePageNumber parses positive page number
func parsePageNumber(s string) (int, error) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, strconv.ErrSyntax
	}

	n, err := strconv.Atoi(s)
	if err == nil && n < 1 {
		err = strconv.ErrRange
	}
	return n, err
}

// Pages returns count of pages the list selects out of total
func (l PageRangeList) Pages(total int) int {
	n := 0
	for _, r := range l.ranges() {
		first, last := r.clip(total)
		if last >= first {
			n += last - first + 1
		}
	}
	return n
}

// ranges returns the list, or the single all-pages range if empty
func (l PageRangeList) ranges() PageRangeList {
	if len(l) == 0 {
		return PageRangeList{{0, 0}}
	}
	return l
}

// clip resolves zero bounds and limits range to [1, total]
func (r PageRange) clip(total int) (first, last int) {
	first, last = r.First, r.Last
	if first < 1 {
		first = 1
	}
	if last == 0 || last > total {
		last = total
	}
	return
}

// PageSequence returns the physical sequence of 1-based pages to
// emit for a document of total pages, with InvalidPage marking
// blank pages. It applies page ranges, duplex padding and copies.
func (p *PrintParameters) PageSequence(total int) []int {
	var seq []int
	for _, r := range p.PageRanges.ranges() {
		first, last := r.clip(total)
		for page := first; page <= last; page++ {
			seq = append(seq, page)
		}
	}

	copies := p.Copies
	if copies < 1 {
		copies = 1
	}

	if copies == 1 {
		return seq
	}

	// Each copy must start on a new sheet
	if p.IsTwoSided() && len(seq)%2 != 0 {
		seq = append(seq, InvalidPage)
	}

	out := make([]int, 0, len(seq)*copies)
	if p.Collated {
		for c := 0; c < copies; c++ {
			out = append(out, seq...)
		}
		return out
	}

	sheet := 1
	if p.IsTwoSided() {
		sheet = 2
	}

	for i := 0; i < len(seq); i += sheet {
		for c := 0; c < copies; c++ {
			out = append(out, seq[i:i+sheet]...)
		}
	}

	return out
}
