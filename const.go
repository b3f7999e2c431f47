/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * Configuration constants
 */

package main

import (
	"time"
)

const (
	// DefaultIPPPort is the IPP port, used when printer URI
	// doesn't specify one
	DefaultIPPPort = 631

	// DefaultIPPPath is the resource path of the printer,
	// used when only a host name is given
	DefaultIPPPath = "/ipp/print"

	// DefaultTimeout limits non-streaming IPP requests
	DefaultTimeout = 30 * time.Second

	// DefaultDiscoverTimeout is how long discover waits for
	// DNS-SD responses
	DefaultDiscoverTimeout = 3 * time.Second

	// MaxResponseSize limits size of IPP responses
	MaxResponseSize = 16 * 1024 * 1024
)
