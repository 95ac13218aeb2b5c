// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/martinf08/batch-image-processor/internal/zip"
)

// Archive is the host's handle on a source archive held in memory.
// It is owned by one caller and must not be used by two at once.
type Archive struct {
	zr *zip.Reader
}

// Open parses data as a Zip archive. data must not change while the Archive is in use.
func Open(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveOpen, err)
	}
	return &Archive{zr: zr}, nil
}

// Names lists the file entries in index order. Directories are left out.
func (a *Archive) Names() []string {
	var names []string
	for i := range a.zr.Len() {
		e, _ := a.zr.EntryAt(i)
		if !e.IsDir {
			names = append(names, e.Name)
		}
	}
	return names
}

// Extract returns the decompressed contents of the named file entry.
func (a *Archive) Extract(name string) ([]byte, error) {
	e, err := a.zr.EntryByName(name)
	if err != nil {
		return nil, err
	}
	if e.IsDir {
		return nil, fmt.Errorf("%w: %q is a directory", ErrEntryNotFound, name)
	}
	return readEntry(e)
}

// Transform runs o over the archive into a fresh destination.
// The Result is nil only when the run was aborted. Under [Continue] a
// Result with partial output comes back alongside the [*BatchError].
func (a *Archive) Transform(o *Orchestrator) (*Result, error) {
	dst := zip.NewWriter()
	rep, err := o.Run(a.zr, dst)
	var batch *BatchError
	if err != nil && !errors.As(err, &batch) {
		return nil, err
	}
	return &Result{Report: rep, dst: dst}, err
}

// Result holds a finished destination archive until its bytes are taken.
type Result struct {
	Report Report
	dst    *zip.Writer
}

// Bytes finalises the destination. It succeeds once only.
func (r *Result) Bytes() ([]byte, error) {
	return r.dst.Bytes()
}

// WriteTo finalises the destination into w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	b, err := r.dst.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}
