/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Per-printer persistent state
 */

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"
)

// PrinterState manages a per-printer persistent state: the
// printer identity and the last submitted job
type PrinterState struct {
	Ident      string // Printer identification (normalized UUID)
	URI        string // Printer URI
	MakeModel  string // printer-make-and-model
	LastJobID  int    // job-id of the last submitted job
	LastJobURI string // job-uri of the last submitted job

	path string // Path to the disk file
}

// PrinterStateIdent returns identification of the printer, used as
// the state file name. Printers without printer-uuid are identified
// by host name.
func PrinterStateIdent(printerUUID, host string) string {
	if uuid := UUIDNormalize(printerUUID); uuid != "" {
		return uuid
	}
	return UUIDFromHost(host)
}

// LoadPrinterState loads PrinterState from a disk file in the dir.
// Missing or broken file results in the empty state.
func LoadPrinterState(dir, ident string) *PrinterState {
	state := &PrinterState{
		Ident: ident,
		path:  filepath.Join(dir, ident+".state"),
	}

	// Load state file
	inifile, err := ini.Load(state.path)
	if err != nil {
		if !os.IsNotExist(err) {
			Log.Debug('!', "STATE LOAD: %s", state.error("%s", err))
		}
		return state
	}

	// Extract data
	if section, _ := inifile.GetSection("printer"); section != nil {
		state.URI = state.loadString(section, "uri")
		state.MakeModel = state.loadString(section, "make-and-model")
	}

	if section, _ := inifile.GetSection("job"); section != nil {
		err = state.loadInt(section, &state.LastJobID, "last-job-id")
		if err != nil {
			Log.Debug('!', "STATE LOAD: %s", err)
		}

		state.LastJobURI = state.loadString(section, "last-job-uri")
	}

	return state
}

// Load integer
func (state *PrinterState) loadInt(section *ini.Section,
	out *int, name string) error {

	if key, _ := section.GetKey(name); key != nil {
		v, err := key.Int()

		if err != nil {
			err = state.error("%s", err)
		} else if v < 0 {
			err = state.error("%s: out of range", key.Name())
		}

		if err != nil {
			return err
		}

		*out = v
	}

	return nil
}

// Load string, defaults to ""
func (state *PrinterState) loadString(section *ini.Section,
	name string) string {

	if key, _ := section.GetKey(name); key != nil {
		return key.String()
	}

	return ""
}

// Save updates PrinterState on disk
func (state *PrinterState) Save() error {
	os.MkdirAll(filepath.Dir(state.path), 0755)

	inifile := ini.Empty()
	section, _ := inifile.NewSection("printer")

	if state.URI != "" {
		section.NewKey("uri", state.URI)
	}

	if state.MakeModel != "" {
		section.NewKey("make-and-model", state.MakeModel)
	}

	if state.LastJobID > 0 {
		section, _ = inifile.NewSection("job")
		section.NewKey("last-job-id", strconv.Itoa(state.LastJobID))
		if state.LastJobURI != "" {
			section.NewKey("last-job-uri", state.LastJobURI)
		}
	}

	err := inifile.SaveTo(state.path)
	if err != nil {
		err = state.error("%s", err)
		Log.Debug('!', "STATE SAVE: %s", err)
	}

	return err
}

// SetLastJob records the submitted job
func (state *PrinterState) SetLastJob(id int, uri string) error {
	state.LastJobID = id
	state.LastJobURI = uri
	return state.Save()
}

// error creates a state-related error
func (state *PrinterState) error(format string, args ...interface{}) error {
	return fmt.Errorf(state.Ident+": "+format, args...)
}
