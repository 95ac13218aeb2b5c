// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package pipeline turns one Zip archive of images into another.
//
// Entries are visited strictly in central directory order, one at a time.
// Directories never reach the output. Every file is either re-encoded as a
// square JPEG ([Transform]) or copied untouched ([RenameOnly]), and its name
// is case-mapped exactly once. Output entries of the transform path are stored
// uncompressed, because JPEG data does not shrink any further.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/martinf08/batch-image-processor/internal/canvas"
	"github.com/martinf08/batch-image-processor/internal/raster"
	"github.com/martinf08/batch-image-processor/internal/zip"
)

// Progress is a snapshot of a run. Index is the entry currently being handled,
// -1 before the first one. Processed counts entries that are finished, skips included.
type Progress struct {
	Index     int
	Processed int
	Total     int
}

// Report summarises a finished (or aborted) run.
type Report struct {
	Written     int
	Directories int
	Skipped     int // excluded by pattern
	CacheHits   int
	Failures    []*EntryError
}

// An Orchestrator drives one run at a time over a source and a destination.
// Its progress can be read from any goroutine.
type Orchestrator struct {
	opts   Options
	log    *slog.Logger
	filter filter
	cache  *resultCache

	index     atomic.Int64
	processed atomic.Int64
	total     atomic.Int64
}

func New(opts Options, log *slog.Logger) (*Orchestrator, error) {
	f, err := newFilter(opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.MaxSide < 0 {
		return nil, fmt.Errorf("pipeline: negative max side %d", opts.MaxSide)
	}
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		opts:   opts,
		log:    log,
		filter: f,
		cache:  newResultCache(opts.CacheSize),
	}
	o.index.Store(-1)
	return o, nil
}

func (o *Orchestrator) Progress() Progress {
	return Progress{
		Index:     int(o.index.Load()),
		Processed: int(o.processed.Load()),
		Total:     int(o.total.Load()),
	}
}

// Run writes one output entry per source file entry into dst.
// Under [Abort] the first failure is returned as an [*EntryError] and dst holds
// whatever came before it. Under [Continue] the run always reaches the end and
// any failures are returned together as a [*BatchError].
func (o *Orchestrator) Run(src *zip.Reader, dst *zip.Writer) (Report, error) {
	var rep Report
	if dst.Finalized() {
		return rep, ErrAlreadyFinalized
	}

	o.total.Store(int64(src.Len()))
	o.processed.Store(0)
	o.index.Store(-1)
	written := make(map[string]int)

	for i := range src.Len() {
		o.index.Store(int64(i))
		e, err := src.EntryAt(i)
		if err != nil {
			return rep, err
		}

		switch {
		case e.IsDir:
			rep.Directories++
		case o.filter.excludes(e.Name):
			rep.Skipped++
			o.log.Debug("entrySkipped", "index", i, "name", e.Name)
		default:
			err := o.one(e, dst, written, &rep)
			if err != nil {
				if errors.Is(err, ErrAlreadyFinalized) {
					return rep, err
				}
				ee := &EntryError{Index: i, Name: e.Name, Err: err}
				o.log.Warn("entryFailed", "index", i, "name", e.Name, "err", err)
				if o.opts.Failure == Abort {
					return rep, ee
				}
				rep.Failures = append(rep.Failures, ee)
			}
		}

		o.processed.Add(1)
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(o.Progress())
		}
	}

	o.log.Info("transformDone",
		"mode", o.opts.Mode, "written", rep.Written, "directories", rep.Directories,
		"skipped", rep.Skipped, "failed", len(rep.Failures), "cacheHits", rep.CacheHits)
	if len(rep.Failures) > 0 {
		return rep, &BatchError{Failures: rep.Failures}
	}
	return rep, nil
}

func (o *Orchestrator) one(e *zip.Entry, dst *zip.Writer, written map[string]int, rep *Report) error {
	name := o.opts.Case.Apply(e.Name)
	if prev, ok := written[name]; ok {
		return fmt.Errorf("%w: %q is also the name of entry %d", ErrDuplicateName, name, prev)
	}

	switch o.opts.Mode {
	case RenameOnly:
		if err := dst.CopyRaw(name, e); err != nil {
			return err
		}
	default:
		data, err := readEntry(e)
		if err != nil {
			return err
		}
		out, hit, err := o.transform(data)
		if err != nil {
			return err
		}
		if hit {
			rep.CacheHits++
			o.log.Debug("cacheHit", "index", e.Index, "name", e.Name)
		}
		if err := dst.CreateStored(name, out, e.Modified); err != nil {
			return err
		}
	}

	written[name] = e.Index
	rep.Written++
	return nil
}

// readEntry holds the entry open only for as long as it takes to copy it out.
func readEntry(e *zip.Entry) ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (o *Orchestrator) transform(data []byte) (out []byte, hit bool, err error) {
	key := o.keyFor(data)
	if out, ok := o.cache.get(key); ok {
		return out, true, nil
	}

	img, _, err := raster.Decode(data)
	if err != nil {
		return nil, false, err
	}
	img = canvas.Prescale(img, o.opts.MaxSide)
	square, _, err := canvas.Compose(img, o.opts.Policy)
	if err != nil {
		return nil, false, err
	}
	out, err = raster.Encode(raster.Normalize(square))
	if err != nil {
		return nil, false, err
	}

	o.cache.add(key, out)
	return out, false, nil
}
