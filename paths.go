/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Common paths
 */

package main

import (
	"os"
	"path/filepath"
)

const (
	// PathConfDir defines path to system configuration directory
	PathConfDir = "/etc/ipp-print"

	// PathQuirksDir defines path to quirks files
	PathQuirksDir = "/usr/share/ipp-print/quirks"

	// PathProgName is the name of per-user directories
	PathProgName = "ipp-print"
)

// PathUserConfDir returns path to per-user configuration directory,
// or "" if user has no home directory
func PathUserConfDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, PathProgName)
}

// PathUserCacheDir returns path to per-user cache directory, where
// printer state and log files are kept
func PathUserCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, PathProgName)
}

// PathStateDir returns path to directory of per-printer state files
func PathStateDir() string {
	return filepath.Join(PathUserCacheDir(), "printers")
}

// PathLogFile returns the default log file path
func PathLogFile() string {
	return filepath.Join(PathUserCacheDir(), "ipp-print.log")
}
