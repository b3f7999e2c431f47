/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Program configuration
 */

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// ConfFileName defines a name of ipp-print configuration file
	ConfFileName = "ipp-print.conf"
)

// JobDefaults contains default job settings, used when not
// specified in the command line
type JobDefaults struct {
	UserName    string // requesting-user-name
	PaperSize   string // media
	ColorMode   string // print-color-mode
	Sides       string // sides
	Quality     string // print-quality: draft, normal or high
	Compression string // compression
}

// PrinterConf is the configured printer alias
type PrinterConf struct {
	Name     string      // Alias name
	Address  string      // Printer URI or host
	Defaults JobDefaults // Per-printer defaults, over the global ones
}

// Configuration represents a program configuration
type Configuration struct {
	LogConsole        LogLevel                // Console LogLevel mask
	LogFile           LogLevel                // Log file LogLevel mask
	LogPath           string                  // Log file path, "" to disable
	LogMaxFileSize    int64                   // Maximum log file size
	LogMaxBackupFiles uint                    // Count of files preserved during rotation
	ColorConsole      bool                    // Enable ANSI colors on console
	Timeout           time.Duration           // IPP request timeout
	VerifyTLS         bool                    // Verify printer TLS certificates
	DiscoverTimeout   time.Duration           // DNS-SD browse time
	Defaults          JobDefaults             // Default job settings
	Printers          map[string]*PrinterConf // Printer aliases
	Quirks            *QuirksDb               // Printer quirks
}

// Conf contains a global instance of program configuration
var Conf = DefaultConfiguration()

// DefaultConfiguration returns configuration with default values
func DefaultConfiguration() Configuration {
	return Configuration{
		LogConsole:        LogError | LogInfo,
		LogFile:           0,
		LogMaxFileSize:    256 * 1024,
		LogMaxBackupFiles: 5,
		ColorConsole:      true,
		Timeout:           DefaultTimeout,
		VerifyTLS:         false,
		DiscoverTimeout:   DefaultDiscoverTimeout,
		Printers:          make(map[string]*PrinterConf),
		Quirks:            &QuirksDb{},
	}
}

// ConfLoad loads the program configuration
func ConfLoad() error {
	// Obtain path to executable directory
	exepath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}

	exepath = filepath.Dir(exepath)

	// Load quirks first, so configuration files may
	// override them
	quirksDirs := []string{PathQuirksDir}
	if dir := PathUserConfDir(); dir != "" {
		quirksDirs = append(quirksDirs, filepath.Join(dir, "quirks"))
	}

	Conf.Quirks, err = LoadQuirksDb(quirksDirs...)
	if err != nil {
		return fmt.Errorf("conf: %s", err)
	}

	// Build list of configuration files
	files := []string{
		filepath.Join(PathConfDir, ConfFileName),
	}

	if dir := PathUserConfDir(); dir != "" {
		files = append(files, filepath.Join(dir, ConfFileName))
	}

	files = append(files, filepath.Join(exepath, ConfFileName))

	// Load file by file
	for _, file := range files {
		err = Conf.Load(file)
		if err != nil {
			return fmt.Errorf("conf: %s", err)
		}
	}

	return nil
}

// Load loads configuration file. Missing file is not an error.
// Values from the file override values already set.
func (conf *Configuration) Load(path string) error {
	inifile, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return fmt.Errorf("%s: %s", path, err)
	}

	for _, section := range inifile.Sections() {
		kind, name, _ := strings.Cut(section.Name(), " ")
		name = strings.TrimSpace(name)

		switch kind {
		case "logging":
			err = conf.loadLogging(section)
		case "network":
			err = conf.loadNetwork(section)
		case "defaults":
			err = conf.Defaults.load(section)
		case "printer":
			err = conf.loadPrinter(name, section)
		case "quirks":
			if name == "" {
				err = fmt.Errorf("[%s]: missing model pattern",
					section.Name())
			} else {
				err = conf.Quirks.loadSection(path, name, section)
			}
		}

		if err != nil {
			return fmt.Errorf("%s: %s", path, err)
		}
	}

	return nil
}

// loadLogging loads the [logging] section
func (conf *Configuration) loadLogging(section *ini.Section) error {
	var err error

	for _, key := range section.Keys() {
		switch key.Name() {
		case "console-log":
			err = confLoadLogLevelKey(&conf.LogConsole, key)
		case "file-log":
			err = confLoadLogLevelKey(&conf.LogFile, key)
		case "log-file":
			conf.LogPath = key.String()
		case "console-color":
			err = confLoadBinaryKey(&conf.ColorConsole, key, "disable", "enable")
		case "max-file-size":
			err = confLoadSizeKey(&conf.LogMaxFileSize, key)
		case "max-backup-files":
			err = confLoadUintKeyRange(&conf.LogMaxBackupFiles, key, 0, 100)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// loadNetwork loads the [network] section
func (conf *Configuration) loadNetwork(section *ini.Section) error {
	var err error

	for _, key := range section.Keys() {
		switch key.Name() {
		case "timeout":
			err = confLoadDurationKey(&conf.Timeout, key)
		case "verify-tls":
			err = confLoadBinaryKey(&conf.VerifyTLS, key, "false", "true")
		case "discover-timeout":
			err = confLoadDurationKey(&conf.DiscoverTimeout, key)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// loadPrinter loads the [printer NAME] section
func (conf *Configuration) loadPrinter(name string, section *ini.Section) error {
	if name == "" {
		return fmt.Errorf("[%s]: missing printer name", section.Name())
	}

	p := &PrinterConf{Name: name}
	for _, key := range section.Keys() {
		if key.Name() == "address" {
			p.Address = key.String()
		}
	}

	if p.Address == "" {
		return fmt.Errorf("[%s]: missing address", section.Name())
	}

	if err := p.Defaults.load(section); err != nil {
		return err
	}

	conf.Printers[name] = p
	return nil
}

// load loads job defaults from the section
func (defaults *JobDefaults) load(section *ini.Section) error {
	for _, key := range section.Keys() {
		val := key.String()

		switch key.Name() {
		case "user-name":
			defaults.UserName = val
		case "paper-size":
			defaults.PaperSize = val
		case "color-mode":
			defaults.ColorMode = val
		case "sides":
			defaults.Sides = val
		case "quality":
			switch val {
			case "draft", "normal", "high":
				defaults.Quality = val
			default:
				return confBadValue(key, "must be draft, normal or high")
			}
		case "compression":
			defaults.Compression = val
		}
	}

	return nil
}

// Merge returns defaults, overridden by non-empty values of
// defaults2
func (defaults JobDefaults) Merge(defaults2 JobDefaults) JobDefaults {
	merge := func(v1, v2 string) string {
		if v2 != "" {
			return v2
		}
		return v1
	}

	return JobDefaults{
		UserName:    merge(defaults.UserName, defaults2.UserName),
		PaperSize:   merge(defaults.PaperSize, defaults2.PaperSize),
		ColorMode:   merge(defaults.ColorMode, defaults2.ColorMode),
		Sides:       merge(defaults.Sides, defaults2.Sides),
		Quality:     merge(defaults.Quality, defaults2.Quality),
		Compression: merge(defaults.Compression, defaults2.Compression),
	}
}

// Create "bad value" error
func confBadValue(key *ini.Key, format string, args ...interface{}) error {
	return fmt.Errorf(key.Name()+": "+format, args...)
}

// Load the binary key
func confLoadBinaryKey(out *bool, key *ini.Key, vFalse, vTrue string) error {
	switch key.String() {
	case vFalse:
		*out = false
		return nil
	case vTrue:
		*out = true
		return nil
	default:
		return confBadValue(key, "must be %s or %s", vFalse, vTrue)
	}
}

// Load LogLevel key
func confLoadLogLevelKey(out *LogLevel, key *ini.Key) error {
	var mask LogLevel
	for _, s := range strings.Split(key.String(), ",") {
		s = strings.TrimSpace(s)
		switch s {
		case "", "none":
		case "error":
			mask |= LogError
		case "info":
			mask |= LogInfo | LogError
		case "debug":
			mask |= LogDebug | LogInfo | LogError
		case "trace-ipp":
			mask |= LogTraceIPP | LogDebug | LogInfo | LogError
		case "trace-http":
			mask |= LogTraceHTTP | LogDebug | LogInfo | LogError
		case "all", "trace-all":
			mask |= LogAll
		default:
			return confBadValue(key, "invalid log level %q", s)
		}
	}

	*out = mask
	return nil
}

// Load size key
func confLoadSizeKey(out *int64, key *ini.Key) error {
	units := uint64(1)
	val := key.String()

	if l := len(val); l > 0 {
		switch val[l-1] {
		case 'k', 'K':
			units = 1024
		case 'm', 'M':
			units = 1024 * 1024
		}

		if units != 1 {
			val = val[:l-1]
		}
	}

	sz, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return confBadValue(key, "%q: invalid size", key.String())
	}

	if sz > uint64(math.MaxInt64/units) {
		return confBadValue(key, "size too large")
	}

	*out = int64(sz * units)
	return nil
}

// Load unsigned integer key
func confLoadUintKey(out *uint, key *ini.Key) error {
	num, err := strconv.ParseUint(key.String(), 10, 0)
	if err != nil {
		return confBadValue(key, "%q: invalid number", key.String())
	}

	*out = uint(num)
	return nil
}

// Load unsigned integer key within the range
func confLoadUintKeyRange(out *uint, key *ini.Key, min, max uint) error {
	var val uint
	err := confLoadUintKey(&val, key)
	if err == nil && (val < min || val > max) {
		err = confBadValue(key, "must be in range %d...%d", min, max)
	}

	if err == nil {
		*out = val
	}

	return err
}

// Load duration key. Plain number means seconds, otherwise
// time.ParseDuration syntax is used
func confLoadDurationKey(out *time.Duration, key *ini.Key) error {
	val := key.String()

	if secs, err := strconv.ParseUint(val, 10, 32); err == nil {
		*out = time.Duration(secs) * time.Second
		return nil
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return confBadValue(key, "%q: invalid duration", val)
	}

	*out = d
	return nil
}
