// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/martinf08/batch-image-processor/internal/raster"
	"github.com/martinf08/batch-image-processor/internal/zip"
)

// The lower layers' sentinels are reused so that errors.Is works at every level.
var (
	ErrArchiveOpen      = errors.New("pipeline: cannot open archive")
	ErrEntryNotFound    = zip.ErrNotFound
	ErrDecode           = raster.ErrDecode
	ErrDimension        = raster.ErrDimension
	ErrEncode           = raster.ErrEncode
	ErrAlreadyFinalized = zip.ErrFinalized
	ErrDuplicateName    = errors.New("pipeline: name collides after case mapping")
)

// EntryError is a failure confined to one entry.
type EntryError struct {
	Index int
	Name  string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// BatchError lists every entry skipped under [Continue].
type BatchError struct {
	Failures []*EntryError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d entries failed", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
