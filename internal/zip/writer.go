// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package zip

import (
	gozip "archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

var ErrFinalized = errors.New("zip: archive already finalized")

type writerState int

const (
	stateOpen writerState = iota
	stateFinalizing
	stateClosed
)

// Writer accumulates entries in memory.
// Once [Writer.Bytes] has been called nothing more can be written.
type Writer struct {
	buf   bytes.Buffer
	zw    *gozip.Writer
	state writerState
}

func NewWriter() *Writer {
	w := new(Writer)
	w.zw = gozip.NewWriter(&w.buf)
	return w
}

// Finalized reports whether [Writer.Bytes] has been called.
func (w *Writer) Finalized() bool { return w.state != stateOpen }

// CreateStored writes data uncompressed under name.
func (w *Writer) CreateStored(name string, data []byte, modified time.Time) error {
	if w.state != stateOpen {
		return ErrFinalized
	}
	f, err := w.zw.CreateHeader(&gozip.FileHeader{
		Name:     name,
		Method:   gozip.Store,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("zip: create %q: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("zip: write %q: %w", name, err)
	}
	return nil
}

// CopyRaw writes the packed payload of e under a new name,
// keeping its method, checksum, sizes, mode and timestamp extra fields.
func (w *Writer) CopyRaw(name string, e *Entry) error {
	if w.state != stateOpen {
		return ErrFinalized
	}
	fh := &gozip.FileHeader{
		Name:               name,
		Method:             e.Method,
		Flags:              e.Flags &^ 0x8, // sizes go in the local header, no data descriptor
		CRC32:              e.CRC32,
		CompressedSize64:   uint64(e.CompressedSize),
		UncompressedSize64: uint64(e.UncompressedSize),
		Extra:              carriedExtra(e.extra),
	}
	fh.SetModTime(e.Modified) //nolint:staticcheck // CreateRaw only writes the MS-DOS fields
	if !isASCII(name) && utf8.ValidString(name) {
		fh.Flags |= 0x800
	}
	fh.SetMode(e.Mode)

	packed, err := e.Raw()
	if err != nil {
		return fmt.Errorf("zip: copy %q: %w", e.Name, err)
	}
	f, err := w.zw.CreateRaw(fh)
	if err != nil {
		return fmt.Errorf("zip: create %q: %w", name, err)
	}
	if _, err := f.Write(packed); err != nil {
		return fmt.Errorf("zip: copy %q: %w", e.Name, err)
	}
	return nil
}

// carriedExtra keeps the extra fields that still hold once an entry is renamed.
// ZIP64 sizes are rewritten by archive/zip, and a Unicode path field
// would describe the old name.
func carriedExtra(x []byte) []byte {
	var out []byte
	for len(x) >= 4 {
		kind := int(binary.LittleEndian.Uint16(x))
		size := int(binary.LittleEndian.Uint16(x[2:]))
		if len(x) < 4+size {
			break
		}
		if kind != extraZip64 && kind != extraInfoZipUTF8 {
			out = append(out, x[:4+size]...)
		}
		x = x[4+size:]
	}
	return out
}

// Bytes writes the central directory and returns the finished archive.
func (w *Writer) Bytes() ([]byte, error) {
	if w.state != stateOpen {
		return nil, ErrFinalized
	}
	w.state = stateFinalizing
	err := w.zw.Close()
	w.state = stateClosed
	if err != nil {
		return nil, fmt.Errorf("zip: finalize: %w", err)
	}
	return w.buf.Bytes(), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
