/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * DNS-SD printer discovery
 */

package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// DnsSdServices lists the browsed service types
var DnsSdServices = []string{"_ipp._tcp", "_ipps._tcp"}

// DnsSdTxtItem represents a single TXT record item
type DnsSdTxtItem struct {
	Key, Value string // TXT entry: Key=Value
}

// DnsSdTxtRecord represents a TXT record
type DnsSdTxtRecord []DnsSdTxtItem

// ParseDnsSdTxt parses TXT record strings. Strings without '='
// become keys with empty value.
func ParseDnsSdTxt(txt []string) DnsSdTxtRecord {
	var rec DnsSdTxtRecord
	for _, s := range txt {
		if s == "" {
			continue
		}

		key, value, _ := strings.Cut(s, "=")
		rec.Add(key, value)
	}

	return rec
}

// Add adds item to DnsSdTxtRecord
func (txt *DnsSdTxtRecord) Add(key, value string) {
	*txt = append(*txt, DnsSdTxtItem{key, value})
}

// IfNotEmpty adds item to DnsSdTxtRecord if its value is not empty
//
// It returns true if item was actually added, false otherwise
func (txt *DnsSdTxtRecord) IfNotEmpty(key, value string) bool {
	if value != "" {
		txt.Add(key, value)
		return true
	}
	return false
}

// Get returns value by key. Keys are case-insensitive, as
// RFC 6763 requires. The first occurrence wins.
func (txt DnsSdTxtRecord) Get(key string) string {
	for _, item := range txt {
		if strings.EqualFold(item.Key, key) {
			return item.Value
		}
	}
	return ""
}

// Strings returns TXT record as list of key=value strings
func (txt DnsSdTxtRecord) Strings() []string {
	strs := make([]string, len(txt))
	for i, item := range txt {
		strs[i] = item.Key + "=" + item.Value
	}
	return strs
}

// DnsSdPrinter represents a discovered printer
type DnsSdPrinter struct {
	Instance string         // Service instance name
	Service  string         // Service type, "_ipp._tcp" or "_ipps._tcp"
	Host     string         // Host name, without trailing dot
	Port     int            // TCP port
	Addrs    []net.IP       // Host addresses
	Txt      DnsSdTxtRecord // TXT record
}

// URI returns printer URI, built from the service type, host, port
// and the "rp" (resource path) TXT item
func (p *DnsSdPrinter) URI() string {
	scheme := "ipp"
	if p.Service == "_ipps._tcp" {
		scheme = "ipps"
	}

	host := p.Host
	if host == "" && len(p.Addrs) != 0 {
		host = p.Addrs[0].String()
	}

	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(p.Port)),
		Path:   "/" + strings.TrimPrefix(p.Txt.Get("rp"), "/"),
	}

	return u.String()
}

// MakeModel returns printer make and model, reported by TXT record
func (p *DnsSdPrinter) MakeModel() string {
	if ty := p.Txt.Get("ty"); ty != "" {
		return ty
	}
	return strings.Trim(p.Txt.Get("product"), "()")
}

// Formats returns document formats, reported by TXT record
func (p *DnsSdPrinter) Formats() []string {
	if pdl := p.Txt.Get("pdl"); pdl != "" {
		return strings.Split(pdl, ",")
	}
	return nil
}

// Summary returns the one-line printer description
func (p *DnsSdPrinter) Summary() string {
	var flags []string
	if p.Txt.Get("Color") == "T" {
		flags = append(flags, "color")
	}
	if p.Txt.Get("Duplex") == "T" {
		flags = append(flags, "duplex")
	}
	if p.Txt.Get("URF") != "" {
		flags = append(flags, "urf")
	}

	s := fmt.Sprintf("%s (%s)", p.Instance, p.MakeModel())
	if len(flags) != 0 {
		s += " [" + strings.Join(flags, ",") + "]"
	}

	return s
}

// newDnsSdPrinter makes DnsSdPrinter from the zeroconf entry
func newDnsSdPrinter(entry *zeroconf.ServiceEntry) *DnsSdPrinter {
	p := &DnsSdPrinter{
		Instance: entry.Instance,
		Service:  entry.Service,
		Host:     strings.TrimSuffix(entry.HostName, "."),
		Port:     entry.Port,
		Txt:      ParseDnsSdTxt(entry.Text),
	}

	p.Addrs = append(p.Addrs, entry.AddrIPv4...)
	p.Addrs = append(p.Addrs, entry.AddrIPv6...)

	return p
}

// DnsSdBrowse browses the local network for IPP printers during
// the timeout. Printers are returned sorted by instance name, the
// IPPS service of a printer is preferred over IPP.
func DnsSdBrowse(ctx context.Context, timeout time.Duration) ([]*DnsSdPrinter, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lock sync.Mutex
	var wait sync.WaitGroup
	var browseErr error
	found := make(map[string]*DnsSdPrinter)

	for _, service := range DnsSdServices {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("DNS-SD: %w", err)
		}

		entries := make(chan *zeroconf.ServiceEntry)
		wait.Add(1)
		go func() {
			defer wait.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case entry, ok := <-entries:
					if !ok {
						return
					}

					p := newDnsSdPrinter(entry)
					Log.Debug(' ', "DNS-SD: found %s %q at %s:%d",
						p.Service, p.Instance, p.Host, p.Port)

					lock.Lock()
					if prev := found[p.Instance]; prev == nil ||
						p.Service == "_ipps._tcp" {
						found[p.Instance] = p
					}
					lock.Unlock()
				}
			}
		}()

		err = resolver.Browse(ctx, service, "local.", entries)
		if err != nil {
			lock.Lock()
			browseErr = fmt.Errorf("DNS-SD: %s: %w", service, err)
			lock.Unlock()
		}
	}

	<-ctx.Done()
	wait.Wait()

	if len(found) == 0 && browseErr != nil {
		return nil, browseErr
	}

	printers := make([]*DnsSdPrinter, 0, len(found))
	for _, p := range found {
		printers = append(printers, p)
	}

	sort.Slice(printers, func(i, j int) bool {
		return printers[i].Instance < printers[j].Instance
	})

	return printers, nil
}
