/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Printer-specific quirks
 */

package main

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// Quirk represents a single quirk
type Quirk struct {
	Origin    string      // file [section] of definition
	Match     string      // Match pattern
	Name      string      // Quirk name
	RawValue  string      // Quirk raw (not parsed) value
	Parsed    interface{} // Parsed Value
	LoadOrder int         // Incremented in order of loading
}

// Quirk names. Use these constants instead of literal strings,
// so compiler will catch a mistake:
const (
	QuirkNmCompression     = "compression"
	QuirkNmCreateJob       = "create-job"
	QuirkNmIgnoreIppStatus = "ignore-ipp-status"
	QuirkNmIppVersion      = "ipp-version"
	QuirkNmNativeCopies    = "native-copies"
)

// quirkParse maps quirk names into appropriate parsing methods,
// which defines value syntax and resulting type.
var quirkParse = map[string]func(*Quirk) error{
	QuirkNmCompression:     (*Quirk).parseBool,
	QuirkNmCreateJob:       (*Quirk).parseBool,
	QuirkNmIgnoreIppStatus: (*Quirk).parseBool,
	QuirkNmIppVersion:      (*Quirk).parseIppVersion,
	QuirkNmNativeCopies:    (*Quirk).parseBool,
}

// quirkDefaultStrings contains default values for quirks, in
// a string form.
var quirkDefaultStrings = map[string]string{
	QuirkNmCompression:     "true",
	QuirkNmCreateJob:       "true",
	QuirkNmIgnoreIppStatus: "false",
	QuirkNmIppVersion:      "2.0",
	QuirkNmNativeCopies:    "true",
}

// quirkDefault contains default values for quirks, precompiled.
var quirkDefault = make(map[string]*Quirk)

// init populates quirkDefault using quirk values from quirkDefaultStrings.
func init() {
	for name, value := range quirkDefaultStrings {
		q := &Quirk{
			Origin:    "default",
			Match:     "*",
			Name:      name,
			RawValue:  value,
			LoadOrder: math.MaxInt32,
		}

		parse := quirkParse[name]
		err := parse(q)
		if err != nil {
			panic(err)
		}

		quirkDefault[name] = q
	}
}

// parseBool parses and saves [Quirk.RawValue] as bool.
func (q *Quirk) parseBool() error {
	switch q.RawValue {
	case "true":
		q.Parsed = true
	case "false":
		q.Parsed = false
	default:
		return fmt.Errorf("%q: must be true or false", q.RawValue)
	}

	return nil
}

// parseIppVersion parses [Quirk.RawValue] as ipp.Version.
func (q *Quirk) parseIppVersion() error {
	switch q.RawValue {
	case "1.1":
		q.Parsed = ipp.Version11
	case "2.0":
		q.Parsed = ipp.Version20
	default:
		return fmt.Errorf("%q: must be 1.1 or 2.0", q.RawValue)
	}

	return nil
}

// prioritize returns more prioritized Quirk, choosing between q and q2.
func (q *Quirk) prioritize(q2 *Quirk, model string) *Quirk {
	matchlen := GlobMatch(model, q.Match)
	matchlen2 := GlobMatch(model, q2.Match)

	switch {
	// Choose by match length (more specific match wins)
	case matchlen > matchlen2:
		return q
	case matchlen < matchlen2:
		return q2

	// Choose by load order (first loaded wins)
	case q.LoadOrder < q2.LoadOrder:
		return q
	}

	return q2
}

// Quirks is the collection of Quirk, indexed by Quirk.Name.
// All quirks in the collection have a unique name.
//
// It is used for two purposes:
//   - to represent a section in the quirks file
//   - to represent set of quirks, applied to the particular printer.
type Quirks struct {
	byName      map[string]*Quirk // Quirks by name
	HTTPHeaders map[string]string // HTTP header override
}

// Get returns quirk by name.
func (quirks Quirks) Get(name string) *Quirk {
	q := quirks.byName[name]
	if q == nil {
		q = quirkDefault[name]
	}

	return q
}

// All returns all quirks in the collection. This method is
// intended mostly for diagnostic purposes (logging, dumping,
// testing and so on).
func (quirks Quirks) All() []*Quirk {
	qq := make([]*Quirk, 0, len(quirks.byName))
	for _, q := range quirks.byName {
		qq = append(qq, q)
	}

	sort.Slice(qq, func(i, j int) bool {
		return qq[i].Name < qq[j].Name
	})

	return qq
}

// GetCompression returns effective "compression" parameter,
// taking the whole set into consideration.
func (quirks Quirks) GetCompression() bool {
	return quirks.Get(QuirkNmCompression).Parsed.(bool)
}

// GetCreateJob returns effective "create-job" parameter,
// taking the whole set into consideration.
func (quirks Quirks) GetCreateJob() bool {
	return quirks.Get(QuirkNmCreateJob).Parsed.(bool)
}

// GetIgnoreIppStatus returns effective "ignore-ipp-status" parameter,
// taking the whole set into consideration.
func (quirks Quirks) GetIgnoreIppStatus() bool {
	return quirks.Get(QuirkNmIgnoreIppStatus).Parsed.(bool)
}

// GetIppVersion returns effective "ipp-version" parameter,
// taking the whole set into consideration.
func (quirks Quirks) GetIppVersion() ipp.Version {
	return quirks.Get(QuirkNmIppVersion).Parsed.(ipp.Version)
}

// GetNativeCopies returns effective "native-copies" parameter,
// taking the whole set into consideration.
func (quirks Quirks) GetNativeCopies() bool {
	return quirks.Get(QuirkNmNativeCopies).Parsed.(bool)
}

// QuirksDb represents in-memory data base of Quirks, as loaded
// from the disk files and configuration.
type QuirksDb struct {
	sections  []*Quirks // One per section
	loadOrder int       // Load order of the next Quirk
}

// LoadQuirksDb creates new QuirksDb and loads its content from
// directories
func LoadQuirksDb(paths ...string) (*QuirksDb, error) {
	qdb := &QuirksDb{}

	for _, path := range paths {
		err := qdb.readDir(path)
		if err != nil {
			return nil, err
		}
	}

	return qdb, nil
}

// readDir loads all Quirks from a directory
func (qdb *QuirksDb) readDir(path string) error {
	files, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = nil
		}
		return err
	}

	for _, file := range files {
		if file.Type().IsRegular() &&
			strings.HasSuffix(file.Name(), ".conf") {
			err = qdb.readFile(filepath.Join(path, file.Name()))
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// readFile reads all Quirks from a file. Each section of the file
// is named by the model name pattern it applies to.
func (qdb *QuirksDb) readFile(file string) error {
	inifile, err := ini.Load(file)
	if err != nil {
		return err
	}

	for _, section := range inifile.Sections() {
		if section.Name() == ini.DefaultSection {
			if len(section.Keys()) != 0 {
				return fmt.Errorf("%s: %q out of any section",
					file, section.Keys()[0].Name())
			}
			continue
		}

		err = qdb.loadSection(file, section.Name(), section)
		if err != nil {
			return err
		}
	}

	return nil
}

// loadSection loads Quirks from the ini.Section, applicable to
// models that match the pattern
func (qdb *QuirksDb) loadSection(file, pattern string, section *ini.Section) error {
	quirks := &Quirks{
		byName:      make(map[string]*Quirk),
		HTTPHeaders: make(map[string]string),
	}

	origin := fmt.Sprintf("%s [%s]", file, section.Name())

	for _, key := range section.Keys() {
		name := strings.ToLower(key.Name())

		q := &Quirk{
			Origin:    origin,
			Match:     pattern,
			Name:      name,
			RawValue:  key.String(),
			LoadOrder: qdb.loadOrder,
		}

		if strings.HasPrefix(name, "http-") {
			// Canonicalize HTTP header name
			q.Parsed = q.RawValue

			hdr := http.CanonicalHeaderKey(name[5:])
			quirks.HTTPHeaders[hdr] = q.RawValue
		} else {
			parse := quirkParse[name]
			if parse == nil {
				// Ignore unknown keys, they may come from
				// a newer version
				continue
			}

			err := parse(q)
			if err != nil {
				return fmt.Errorf("%s: %s: %s", origin, key.Name(), err)
			}
		}

		qdb.loadOrder++
		quirks.byName[name] = q
	}

	qdb.Add(quirks)
	return nil
}

// Add appends Quirks to QuirksDb
func (qdb *QuirksDb) Add(q *Quirks) {
	qdb.sections = append(qdb.sections, q)
}

// MatchByModelName returns collection of quirks, applicable for
// specific printer, matched by printer-make-and-model.
func (qdb *QuirksDb) MatchByModelName(model string) Quirks {
	ret := Quirks{
		byName:      make(map[string]*Quirk),
		HTTPHeaders: make(map[string]string),
	}

	if qdb == nil {
		return ret
	}

	for _, quirks := range qdb.sections {
		for name, q := range quirks.byName {
			if GlobMatch(model, q.Match) >= 0 {
				q2 := ret.byName[name]
				if q2 != nil {
					q = q.prioritize(q2, model)
				}
				ret.byName[name] = q
			}
		}
	}

	for name, q := range ret.byName {
		if strings.HasPrefix(name, "http-") {
			hdr := http.CanonicalHeaderKey(name[5:])
			ret.HTTPHeaders[hdr] = q.RawValue
		}
	}

	return ret
}
