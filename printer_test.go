/* ipp-print - IPP client and printer raster toolkit
 *
 * Copyright (C) 2020 and up by Alexander Pevzner (pzz@apevzner.com)
 * See LICENSE for license terms and conditions
 *
 * IPP printer operations tests
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/OpenPrinting/goipp"

	"github.com/OpenPrinting/ipp-print/ipp"
)

// fakePrinter is the minimal IPP printer, for testing
type fakePrinter struct {
	t        *testing.T
	attrs    ipp.Attrs                 // Printer attributes
	status   map[goipp.Op]goipp.Status // Forced statuses
	lock     sync.Mutex                // Access lock
	requests []*ipp.Message            // Received requests
	docs     [][]byte                  // Received documents
	nextJob  int                       // Next job-id
	canceled []int                     // Canceled jobs
}

// newFakePrinter creates a new fakePrinter and its HTTP server
func newFakePrinter(t *testing.T, attrs ipp.Attrs) (*fakePrinter, *httptest.Server) {
	fp := &fakePrinter{
		t:       t,
		attrs:   attrs,
		status:  make(map[goipp.Op]goipp.Status),
		nextJob: 100,
	}

	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	return fp, srv
}

// ServeHTTP handles IPP requests
func (fp *fakePrinter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		fp.t.Errorf("fakePrinter: %s", err)
		return
	}

	rq, n, err := ipp.DecodePrefix(body)
	if err != nil {
		fp.t.Errorf("fakePrinter: %s", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fp.lock.Lock()
	fp.requests = append(fp.requests, rq)

	status, ok := fp.status[rq.Op()]
	if !ok {
		status = goipp.StatusOk
	}

	rsp := ipp.NewResponse(rq, status)
	rsp.OpAttrs.Add("attributes-charset", goipp.TagCharset, ipp.String("utf-8"))
	rsp.OpAttrs.Add("attributes-natural-language", goipp.TagLanguage,
		ipp.String("en-us"))

	if status != goipp.StatusOk {
		rsp.OpAttrs.Add("status-message", goipp.TagText,
			ipp.String("forced failure"))
	}

	switch rq.Op() {
	case goipp.OpGetPrinterAttributes:
		rsp.PrinterAttrs = fp.attrs.Clone()

	case goipp.OpPrintJob, goipp.OpCreateJob:
		if status == goipp.StatusOk {
			fp.nextJob++
			rsp.JobAttrs = []ipp.Attrs{fp.job(fp.nextJob, 3)}
		}

	case goipp.OpSendDocument:
		id, _ := rq.OpAttrs.Int("job-id")
		rsp.JobAttrs = []ipp.Attrs{fp.job(id, 5)}

	case goipp.OpGetJobs:
		rsp.JobAttrs = []ipp.Attrs{fp.job(7, 9), fp.job(8, 5)}

	case goipp.OpCancelJob:
		id, _ := rq.OpAttrs.Int("job-id")
		fp.canceled = append(fp.canceled, id)
	}

	switch rq.Op() {
	case goipp.OpPrintJob, goipp.OpSendDocument:
		fp.docs = append(fp.docs, body[n:])
	}

	fp.lock.Unlock()

	data, err := rsp.Encode(nil)
	if err != nil {
		fp.t.Errorf("fakePrinter: %s", err)
		return
	}

	w.Header().Set("Content-Type", ipp.ContentType)
	w.Write(data)
}

// job returns job attributes
func (fp *fakePrinter) job(id, state int) ipp.Attrs {
	var attrs ipp.Attrs
	attrs.Add("job-id", goipp.TagInteger, ipp.Integer(id))
	attrs.Add("job-uri", goipp.TagURI,
		ipp.String("ipp://localhost/jobs/"+ipp.Integer(id).String()))
	attrs.Add("job-state", goipp.TagEnum, ipp.Integer(state))
	attrs.Add("job-state-reasons", goipp.TagKeyword, ipp.String("none"))
	return attrs
}

// ops returns operations of the received requests
func (fp *fakePrinter) ops() []goipp.Op {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	ops := make([]goipp.Op, len(fp.requests))
	for i, rq := range fp.requests {
		ops[i] = rq.Op()
	}
	return ops
}

// request returns i-th received request. Negative i counts
// from the end
func (fp *fakePrinter) request(i int) *ipp.Message {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	if i < 0 {
		i += len(fp.requests)
	}
	return fp.requests[i]
}

// setStatus forces response status of the operation
func (fp *fakePrinter) setStatus(op goipp.Op, status goipp.Status) {
	fp.lock.Lock()
	fp.status[op] = status
	fp.lock.Unlock()
}

// doc returns i-th received document
func (fp *fakePrinter) doc(i int) []byte {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.docs[i]
}

// canceledJobs returns IDs of canceled jobs
func (fp *fakePrinter) canceledJobs() []int {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return append([]int(nil), fp.canceled...)
}

// fakePrinterAttrs returns attributes of the fake printer
func fakePrinterAttrs(ops ...goipp.Op) ipp.Attrs {
	var attrs ipp.Attrs
	attrs.Add("printer-make-and-model", goipp.TagText, ipp.String("Fake Printer 1000"))
	attrs.Add("document-format-supported", goipp.TagMimeType,
		ipp.String("application/pdf"), ipp.String("image/pwg-raster"))

	vals := make([]ipp.Value, len(ops))
	for i, op := range ops {
		vals[i] = ipp.Integer(op)
	}
	attrs.Add("operations-supported", goipp.TagEnum, vals...)

	return attrs
}

// newTestPrinter creates Printer, connected to the fake printer
func newTestPrinter(t *testing.T, srv *httptest.Server,
	qdb *QuirksDb) *Printer {

	uri := srv.URL + DefaultIPPPath
	p := NewPrinter(uri, NewHTTPTransport(5*time.Second, true, nil), qdb)
	p.UserName = "tester"
	return p
}

// TestPrinterRefresh tests loading of printer attributes
func TestPrinterRefresh(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob))
	p := newTestPrinter(t, srv, nil)

	err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %s", err)
	}

	if p.MakeModel() != "Fake Printer 1000" {
		t.Errorf("MakeModel: %q", p.MakeModel())
	}

	rq := fp.request(0)
	if rq.Version != ipp.Version20 {
		t.Errorf("request version: %s", rq.Version)
	}

	if s, _ := rq.OpAttrs.String("printer-uri"); s != p.URI {
		t.Errorf("printer-uri: %q", s)
	}

	if s, _ := rq.OpAttrs.String("requesting-user-name"); s != "tester" {
		t.Errorf("requesting-user-name: %q", s)
	}

	requested := []string{"all", "media-col-database"}
	if s := rq.OpAttrs.Strings("requested-attributes"); !reflect.DeepEqual(s, requested) {
		t.Errorf("requested-attributes: %q", s)
	}
}

// TestPrinterRefreshStatus tests handling of IPP status by Refresh
func TestPrinterRefreshStatus(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob))
	fp.setStatus(goipp.OpGetPrinterAttributes, goipp.StatusErrorInternal)

	p := newTestPrinter(t, srv, nil)
	err := p.Refresh(context.Background())

	var jerr *JobError
	if !errors.As(err, &jerr) {
		t.Fatalf("Refresh: expected JobError, present %v", err)
	}

	if jerr.Status != goipp.StatusErrorInternal || jerr.Message != "forced failure" {
		t.Errorf("JobError: %+v", jerr)
	}

	// With ignore-ipp-status quirk, attributes are accepted
	qdb := &QuirksDb{}
	qdb.Add(&Quirks{
		byName: map[string]*Quirk{
			QuirkNmIgnoreIppStatus: {
				Origin:   "test",
				Match:    "Fake Printer*",
				Name:     QuirkNmIgnoreIppStatus,
				RawValue: "true",
				Parsed:   true,
			},
		},
	})

	p = newTestPrinter(t, srv, qdb)
	if err = p.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh with ignore-ipp-status: %s", err)
	}
}

// TestPrinterPrintJob tests printing with Print-Job
func TestPrinterPrintJob(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob))
	p := newTestPrinter(t, srv, nil)

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %s", err)
	}

	job := NewPrintJob(&p.Attrs, p.Quirks)
	SettingJobName.Set(job, "test")
	SettingCopies.Set(job, 2)
	if err := job.Finalize("application/pdf", 1); err != nil {
		t.Fatalf("Finalize: %s", err)
	}

	doc := []byte("%PDF-1.4 document")
	info, err := p.Print(context.Background(), job,
		func(w io.Writer) error {
			_, err := w.Write(doc)
			return err
		})

	if err != nil {
		t.Fatalf("Print: %s", err)
	}

	if info.ID != 101 || info.StateName() != "pending" {
		t.Errorf("JobInfo: %+v", info)
	}

	expected := []goipp.Op{goipp.OpGetPrinterAttributes, goipp.OpPrintJob}
	if ops := fp.ops(); !reflect.DeepEqual(ops, expected) {
		t.Errorf("operations: expected %v, present %v", expected, ops)
	}

	rq := fp.request(1)
	if s, _ := rq.OpAttrs.String("document-format"); s != "application/pdf" {
		t.Errorf("document-format: %q", s)
	}

	if s, _ := rq.OpAttrs.String("job-name"); s != "test" {
		t.Errorf("job-name: %q", s)
	}

	if !bytes.Equal(fp.doc(0), doc) {
		t.Errorf("document: %q", fp.doc(0))
	}
}

// TestPrinterCreateJob tests printing with Create-Job and Send-Document
func TestPrinterCreateJob(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob,
		goipp.OpCreateJob, goipp.OpSendDocument))
	p := newTestPrinter(t, srv, nil)

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %s", err)
	}

	job := NewPrintJob(&p.Attrs, p.Quirks)
	SettingJobName.Set(job, "test")
	if err := job.Finalize("application/pdf", 1); err != nil {
		t.Fatalf("Finalize: %s", err)
	}

	doc := []byte("%PDF-1.4 document")
	info, err := p.Print(context.Background(), job,
		func(w io.Writer) error {
			_, err := w.Write(doc)
			return err
		})

	if err != nil {
		t.Fatalf("Print: %s", err)
	}

	if info.ID != 101 || info.StateName() != "processing" {
		t.Errorf("JobInfo: %+v", info)
	}

	expected := []goipp.Op{goipp.OpGetPrinterAttributes,
		goipp.OpCreateJob, goipp.OpSendDocument}
	if ops := fp.ops(); !reflect.DeepEqual(ops, expected) {
		t.Errorf("operations: expected %v, present %v", expected, ops)
	}

	create, send := fp.request(1), fp.request(2)
	if create.OpAttrs.Has("document-format") {
		t.Errorf("Create-Job: document-format present")
	}

	if s, _ := create.OpAttrs.String("job-name"); s != "test" {
		t.Errorf("Create-Job: job-name: %q", s)
	}

	if id, _ := send.OpAttrs.Int("job-id"); id != 101 {
		t.Errorf("Send-Document: job-id: %d", id)
	}

	if v, _ := send.OpAttrs.Bool("last-document"); !v {
		t.Errorf("Send-Document: last-document missing")
	}

	if s, _ := send.OpAttrs.String("document-format"); s != "application/pdf" {
		t.Errorf("Send-Document: document-format: %q", s)
	}

	if !bytes.Equal(fp.doc(0), doc) {
		t.Errorf("document: %q", fp.doc(0))
	}
}

// TestPrinterSendDocumentFailure tests that the created job is
// canceled when Send-Document fails
func TestPrinterSendDocumentFailure(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob,
		goipp.OpCreateJob, goipp.OpSendDocument))
	fp.setStatus(goipp.OpSendDocument, goipp.StatusErrorDocumentFormatError)

	p := newTestPrinter(t, srv, nil)
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %s", err)
	}

	job := NewPrintJob(&p.Attrs, p.Quirks)
	if err := job.Finalize("application/pdf", 1); err != nil {
		t.Fatalf("Finalize: %s", err)
	}

	_, err := p.Print(context.Background(), job,
		func(w io.Writer) error { return nil })

	var jerr *JobError
	if !errors.As(err, &jerr) || jerr.Op != goipp.OpSendDocument {
		t.Fatalf("Print: expected Send-Document JobError, present %v", err)
	}

	if !reflect.DeepEqual(fp.canceledJobs(), []int{101}) {
		t.Errorf("canceled jobs: %v", fp.canceledJobs())
	}
}

// TestPrinterJobs tests Get-Jobs and Cancel-Job
func TestPrinterJobs(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpPrintJob))
	p := newTestPrinter(t, srv, nil)

	jobs, err := p.GetJobs(context.Background(), "all")
	if err != nil {
		t.Fatalf("GetJobs: %s", err)
	}

	if len(jobs) != 2 || jobs[0].ID != 7 || jobs[0].StateName() != "completed" ||
		jobs[1].ID != 8 || jobs[1].StateName() != "processing" {
		t.Errorf("GetJobs: unexpected result")
	}

	if s, _ := fp.request(0).OpAttrs.String("which-jobs"); s != "all" {
		t.Errorf("which-jobs: %q", s)
	}

	if err = p.CancelJob(context.Background(), 8); err != nil {
		t.Errorf("CancelJob: %s", err)
	}

	if !reflect.DeepEqual(fp.canceledJobs(), []int{8}) {
		t.Errorf("canceled jobs: %v", fp.canceledJobs())
	}

	fp.setStatus(goipp.OpCancelJob, goipp.StatusErrorNotFound)
	err = p.CancelJob(context.Background(), 9)

	var jerr *JobError
	if !errors.As(err, &jerr) || jerr.Status != goipp.StatusErrorNotFound {
		t.Errorf("CancelJob: expected JobError, present %v", err)
	}
}

// TestPrinterIdentify tests Identify-Printer
func TestPrinterIdentify(t *testing.T) {
	fp, srv := newFakePrinter(t, fakePrinterAttrs(goipp.OpIdentifyPrinter))
	p := newTestPrinter(t, srv, nil)

	err := p.Identify(context.Background(), []string{"flash", "sound"}, "hello")
	if err != nil {
		t.Fatalf("Identify: %s", err)
	}

	rq := fp.request(0)
	if rq.Op() != goipp.OpIdentifyPrinter {
		t.Errorf("operation: %s", rq.Op())
	}

	actions := rq.OpAttrs.Strings("identify-actions")
	if !reflect.DeepEqual(actions, []string{"flash", "sound"}) {
		t.Errorf("identify-actions: %q", actions)
	}

	if s, _ := rq.OpAttrs.String("message"); s != "hello" {
		t.Errorf("message: %q", s)
	}
}
