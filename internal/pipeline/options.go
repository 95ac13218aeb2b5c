// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pipeline

import (
	"fmt"
	"strings"

	"github.com/martinf08/batch-image-processor/internal/canvas"
)

// Mode selects what happens to each file entry.
type Mode int

const (
	Transform  Mode = iota // decode, composite, normalise, re-encode
	RenameOnly             // copy the packed bytes under the new name
)

func (m Mode) String() string {
	switch m {
	case Transform:
		return "transform"
	case RenameOnly:
		return "rename"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "transform", "":
		return Transform, nil
	case "rename":
		return RenameOnly, nil
	}
	return 0, fmt.Errorf("pipeline: unknown mode %q (want transform or rename)", s)
}

// Case maps an entry name to its destination name.
// Every Case is total and idempotent.
type Case int

const (
	Lower Case = iota
	Upper
)

func (c Case) Apply(name string) string {
	if c == Upper {
		return strings.ToUpper(name)
	}
	return strings.ToLower(name)
}

func (c Case) String() string {
	switch c {
	case Lower:
		return "lower"
	case Upper:
		return "upper"
	}
	return fmt.Sprintf("Case(%d)", int(c))
}

func ParseCase(s string) (Case, error) {
	switch s {
	case "lower", "":
		return Lower, nil
	case "upper":
		return Upper, nil
	}
	return 0, fmt.Errorf("pipeline: unknown case %q (want lower or upper)", s)
}

// FailureMode decides the scope of a per-entry error.
type FailureMode int

const (
	Abort    FailureMode = iota // the first failing entry ends the run
	Continue                    // failing entries are skipped and reported together
)

func (f FailureMode) String() string {
	switch f {
	case Abort:
		return "abort"
	case Continue:
		return "continue"
	}
	return fmt.Sprintf("FailureMode(%d)", int(f))
}

func ParseFailureMode(s string) (FailureMode, error) {
	switch s {
	case "abort", "":
		return Abort, nil
	case "continue":
		return Continue, nil
	}
	return 0, fmt.Errorf("pipeline: unknown failure mode %q (want abort or continue)", s)
}

// Options are fixed when an [Orchestrator] is built. The zero value is
// transform, pad to square, lower case, abort on the first error, no cache.
type Options struct {
	Mode    Mode
	Policy  canvas.Policy
	Case    Case
	Failure FailureMode

	MaxSide   int      // prescale limit for the longer side, 0 for none
	Exclude   []string // doublestar patterns matched against original names
	CacheSize int      // encoded results kept for duplicate payloads, 0 disables

	OnProgress func(Progress) // called after each entry, on the calling goroutine
}
