/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP printer operations
 */

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// Printer represents the IPP printer
type Printer struct {
	URI       string    // Printer URI
	Transport Transport // Transport to the printer
	Attrs     ipp.Attrs // Printer attributes, loaded by Refresh
	Quirks    Quirks    // Printer quirks, matched by Refresh
	UserName  string    // requesting-user-name, "" if none

	quirksDb *QuirksDb    // Quirks database
	seq      ipp.Sequence // Request IDs
}

// JobInfo describes a print job, as reported by printer
type JobInfo struct {
	ID      int      // job-id
	URI     string   // job-uri
	State   int      // job-state
	Reasons []string // job-state-reasons
	Name    string   // job-name
	User    string   // job-originating-user-name
	Message string   // job-state-message
}

// jobStates maps job-state into names
var jobStates = map[int]string{
	3: "pending",
	4: "pending-held",
	5: "processing",
	6: "processing-stopped",
	7: "canceled",
	8: "aborted",
	9: "completed",
}

// StateName returns job-state as a name
func (info *JobInfo) StateName() string {
	if s, ok := jobStates[info.State]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%d)", info.State)
}

// NewPrinter creates a new Printer
func NewPrinter(uri string, transport Transport, quirksDb *QuirksDb) *Printer {
	return &Printer{
		URI:       uri,
		Transport: transport,
		Quirks:    quirksDb.MatchByModelName(""),
		quirksDb:  quirksDb,
	}
}

// MakeModel returns printer-make-and-model
func (p *Printer) MakeModel() string {
	s, _ := p.Attrs.String("printer-make-and-model")
	return s
}

// Refresh loads printer attributes and matches printer quirks
// by the printer-make-and-model
func (p *Printer) Refresh(ctx context.Context) error {
	rq := p.request(goipp.OpGetPrinterAttributes)
	rq.OpAttrs.Add("requested-attributes", goipp.TagKeyword,
		ipp.String("all"), ipp.String("media-col-database"))

	// Status is checked after quirks are known
	rsp, err := p.call(ctx, rq, true)
	if err != nil {
		return err
	}

	if rsp.PrinterAttrs.Len() == 0 {
		return ErrNoAttrs
	}

	p.Attrs = rsp.PrinterAttrs
	p.Quirks = p.quirksDb.MatchByModelName(p.MakeModel())

	if t, ok := p.Transport.(*HTTPTransport); ok && len(p.Quirks.HTTPHeaders) != 0 {
		t.Headers = p.Quirks.HTTPHeaders
	}

	log := Log.Begin()
	log.Debug(' ', "PRINTER: %q", p.MakeModel())
	for _, q := range p.Quirks.All() {
		log.Debug(' ', "  quirk %s = %s (%s)", q.Name, q.RawValue, q.Origin)
	}
	log.Commit()

	if rsp.Code > 0xff && !p.Quirks.GetIgnoreIppStatus() {
		return p.jobError(rq, rsp)
	}

	return nil
}

// GetAttributes returns requested printer attributes
func (p *Printer) GetAttributes(ctx context.Context, names []string) (*ipp.Attrs, error) {
	rq := p.request(goipp.OpGetPrinterAttributes)
	if len(names) != 0 {
		vals := make([]ipp.Value, len(names))
		for i, name := range names {
			vals[i] = ipp.String(name)
		}
		rq.OpAttrs.Add("requested-attributes", goipp.TagKeyword, vals...)
	}

	rsp, err := p.call(ctx, rq, false)
	if err != nil {
		return nil, err
	}

	return &rsp.PrinterAttrs, nil
}

// SetAttributes sets printer attributes
func (p *Printer) SetAttributes(ctx context.Context, attrs ipp.Attrs) error {
	rq := p.request(goipp.OpSetPrinterAttributes)
	rq.PrinterAttrs = attrs

	_, err := p.call(ctx, rq, false)
	return err
}

// Identify makes the printer identify itself: beep, flash
// or display a message
func (p *Printer) Identify(ctx context.Context, actions []string, message string) error {
	rq := p.request(goipp.OpIdentifyPrinter)
	if len(actions) != 0 {
		vals := make([]ipp.Value, len(actions))
		for i, a := range actions {
			vals[i] = ipp.String(a)
		}
		rq.OpAttrs.Add("identify-actions", goipp.TagKeyword, vals...)
	}

	if message != "" {
		rq.OpAttrs.Add("message", goipp.TagText, ipp.String(message))
	}

	_, err := p.call(ctx, rq, false)
	return err
}

// GetJobs returns list of jobs. which is "completed",
// "not-completed" or "" for the printer default
func (p *Printer) GetJobs(ctx context.Context, which string) ([]*JobInfo, error) {
	rq := p.request(goipp.OpGetJobs)
	if which != "" {
		rq.OpAttrs.Add("which-jobs", goipp.TagKeyword, ipp.String(which))
	}

	rq.OpAttrs.Add("requested-attributes", goipp.TagKeyword,
		ipp.String("job-id"),
		ipp.String("job-uri"),
		ipp.String("job-state"),
		ipp.String("job-state-reasons"),
		ipp.String("job-state-message"),
		ipp.String("job-name"),
		ipp.String("job-originating-user-name"))

	rsp, err := p.call(ctx, rq, false)
	if err != nil {
		return nil, err
	}

	jobs := make([]*JobInfo, 0, len(rsp.JobAttrs))
	for i := range rsp.JobAttrs {
		jobs = append(jobs, newJobInfo(&rsp.JobAttrs[i]))
	}

	return jobs, nil
}

// CancelJob cancels the job
func (p *Printer) CancelJob(ctx context.Context, id int) error {
	rq := p.request(goipp.OpCancelJob)
	rq.OpAttrs.Add("job-id", goipp.TagInteger, ipp.Integer(id))

	_, err := p.call(ctx, rq, false)
	return err
}

// Print submits the finalized job. writeDoc writes the document
// data and is called once.
//
// Create-Job followed by Send-Document is used when the printer
// supports it, unless disabled by quirks. Otherwise the job is
// submitted by Print-Job.
func (p *Printer) Print(ctx context.Context, job *PrintJob,
	writeDoc func(io.Writer) error) (*JobInfo, error) {

	if !p.useCreateJob() {
		rq := p.request(goipp.OpPrintJob)
		p.jobOpAttrs(rq, job, nil)
		rq.JobAttrs = []ipp.Attrs{job.JobAttrs.Clone()}

		rsp, err := p.stream(ctx, rq, job.Compression, writeDoc)
		if err != nil {
			return nil, err
		}

		return p.jobInfo(rsp)
	}

	// Create-Job
	rq := p.request(goipp.OpCreateJob)
	p.jobOpAttrs(rq, job, []string{"job-name"})
	rq.JobAttrs = []ipp.Attrs{job.JobAttrs.Clone()}

	rsp, err := p.call(ctx, rq, false)
	if err != nil {
		return nil, err
	}

	info, err := p.jobInfo(rsp)
	if err != nil {
		return nil, err
	}

	// Send-Document
	rq = p.request(goipp.OpSendDocument)
	rq.OpAttrs.Add("job-id", goipp.TagInteger, ipp.Integer(info.ID))
	p.jobOpAttrs(rq, job, []string{"document-format", "compression"})
	rq.OpAttrs.Add("last-document", goipp.TagBoolean, ipp.Boolean(true))

	rsp, err = p.stream(ctx, rq, job.Compression, writeDoc)
	if err != nil {
		// Don't leave the empty job behind
		if err2 := p.CancelJob(ctx, info.ID); err2 != nil {
			Log.Debug('!', "PRINTER: cancel job %d: %s", info.ID, err2)
		}
		return nil, err
	}

	if len(rsp.JobAttrs) != 0 {
		info = newJobInfo(&rsp.JobAttrs[0])
	}

	return info, nil
}

// useCreateJob reports whether Create-Job and Send-Document
// are used instead of Print-Job
func (p *Printer) useCreateJob() bool {
	return p.Quirks.GetCreateJob() &&
		p.Attrs.Contains("operations-supported", ipp.Integer(goipp.OpCreateJob)) &&
		p.Attrs.Contains("operations-supported", ipp.Integer(goipp.OpSendDocument))
}

// jobOpAttrs copies operation attributes of the job into request.
// If names is not nil, only listed attributes are copied.
func (p *Printer) jobOpAttrs(rq *ipp.Message, job *PrintJob, names []string) {
	for _, name := range job.OpAttrs.Names() {
		if names == nil || name == "requesting-user-name" ||
			contains(names, name) {
			attr, _ := job.OpAttrs.Get(name)
			rq.OpAttrs.Set(name, attr)
		}
	}
}

// jobInfo returns JobInfo of the job, created by request
func (p *Printer) jobInfo(rsp *ipp.Message) (*JobInfo, error) {
	if len(rsp.JobAttrs) == 0 {
		return nil, fmt.Errorf("%s: job attributes missing in response",
			p.URI)
	}

	info := newJobInfo(&rsp.JobAttrs[0])
	if info.ID <= 0 {
		return nil, fmt.Errorf("%s: job-id missing in response", p.URI)
	}

	return info, nil
}

// newJobInfo decodes job attributes
func newJobInfo(attrs *ipp.Attrs) *JobInfo {
	info := &JobInfo{
		Reasons: attrs.Strings("job-state-reasons"),
	}

	info.ID, _ = attrs.Int("job-id")
	info.State, _ = attrs.Int("job-state")
	info.URI, _ = attrs.String("job-uri")
	info.Name, _ = attrs.String("job-name")
	info.User, _ = attrs.String("job-originating-user-name")
	info.Message, _ = attrs.String("job-state-message")

	return info
}

// request creates a new request with the common operation attributes
func (p *Printer) request(op goipp.Op) *ipp.Message {
	rq := ipp.NewRequest(op)
	rq.Version = p.Quirks.GetIppVersion()

	rq.OpAttrs.Add("attributes-charset", goipp.TagCharset, ipp.String("utf-8"))
	rq.OpAttrs.Add("attributes-natural-language", goipp.TagLanguage, ipp.String("en-us"))
	rq.OpAttrs.Add("printer-uri", goipp.TagURI, ipp.String(p.URI))

	if p.UserName != "" {
		rq.OpAttrs.Add("requesting-user-name", goipp.TagName, ipp.String(p.UserName))
	}

	return rq
}

// call performs IPP request. If ignoreStatus is true, IPP error
// status is not converted into the error.
func (p *Printer) call(ctx context.Context, rq *ipp.Message,
	ignoreStatus bool) (*ipp.Message, error) {

	data, err := rq.Encode(&p.seq)
	if err != nil {
		return nil, err
	}

	p.logRequest(rq)

	data, err = p.Transport.RoundTrip(ctx, p.URI, data)
	if err != nil {
		return nil, err
	}

	return p.response(rq, data, ignoreStatus)
}

// stream performs IPP request with the document data
func (p *Printer) stream(ctx context.Context, rq *ipp.Message,
	compression string, writeDoc func(io.Writer) error) (*ipp.Message, error) {

	header, err := rq.Encode(&p.seq)
	if err != nil {
		return nil, err
	}

	p.logRequest(rq)

	data, err := p.Transport.Stream(ctx, p.URI, header, compression, writeDoc)
	if err != nil {
		return nil, err
	}

	return p.response(rq, data, false)
}

// logRequest writes request to the log
func (p *Printer) logRequest(rq *ipp.Message) {
	Log.Begin().
		Debug('>', "IPP: %s (request-id %d)", rq.Op(), rq.RequestID).
		IppMessage('>', rq, true).
		Commit()
}

// response decodes and logs IPP response
func (p *Printer) response(rq *ipp.Message, data []byte,
	ignoreStatus bool) (*ipp.Message, error) {

	rsp, err := ipp.Decode(data)
	if err != nil {
		Log.Begin().
			Error('!', "IPP: %s: %s", rq.Op(), err).
			Dump(LogDebug, data).
			Commit()
		return nil, err
	}

	Log.Begin().
		Debug('<', "IPP: %s: %s", rq.Op(), rsp.Status()).
		IppMessage('<', rsp, false).
		Commit()

	if rsp.UnsupportedAttrs.Len() != 0 {
		Log.Info('!', "IPP: %s: unsupported attributes: %s", rq.Op(),
			strings.Join(rsp.UnsupportedAttrs.Names(), ", "))
	}

	if rsp.Code > 0xff && !ignoreStatus {
		return nil, p.jobError(rq, rsp)
	}

	return rsp, nil
}

// jobError creates JobError out of failed response
func (p *Printer) jobError(rq, rsp *ipp.Message) error {
	msg, _ := rsp.OpAttrs.String("status-message")
	return &JobError{Op: rq.Op(), Status: rsp.Status(), Message: msg}
}

// contains reports whether list contains the string
func contains(list []string, s string) bool {
	for _, s2 := range list {
		if s2 == s {
			return true
		}
	}
	return false
}
