// Copyright Elliot Nunn. Portions copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zip reads and writes Zip archives held entirely in memory.
//   - entries are addressed by their central directory index
//   - names are kept exactly as stored, directories included
//   - packed payloads can be copied to a [Writer] without recompression
package zip

import (
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/therootcompany/xz"
)

var (
	ErrFormat    = errors.New("zip: not a valid zip file")
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	ErrChecksum  = errors.New("zip: checksum error")
	ErrNoSpanned = errors.New("zip: spanned archives not supported")
	ErrNotFound  = errors.New("zip: entry not found")
)

// Compression methods understood by [Entry.Open].
const (
	Store   uint16 = 0
	Deflate uint16 = 8
	BZip2   uint16 = 12
	Zstd    uint16 = 93
	XZ      uint16 = 95
)

// Reader is a read-only view of an archive.
// Nothing it returns may be modified.
type Reader struct {
	entries []*Entry
	byName  map[string]int
}

// Entry is one record of the central directory.
type Entry struct {
	Name             string
	Index            int
	IsDir            bool
	Method           uint16
	Flags            uint16
	CRC32            uint32
	CompressedSize   int64
	UncompressedSize int64
	Modified         time.Time
	Mode             fs.FileMode

	extra  []byte // central directory extra fields, as stored
	packed *localHeaderReader
}

// NewReader parses the central directory of an archive of the given size.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	eocd, err := getEOCD(r, size)
	if err != nil {
		return nil, err
	}

	eocdOffset := size - int64(len(eocd))
	thisDisk := uint32(binary.LittleEndian.Uint16(eocd[4:]))
	centralDisk := uint32(binary.LittleEndian.Uint16(eocd[6:]))
	recordsTotal := uint64(binary.LittleEndian.Uint16(eocd[10:]))
	centralSize := int64(binary.LittleEndian.Uint32(eocd[12:]))
	centralOffset := int64(binary.LittleEndian.Uint32(eocd[16:]))

	sixtyFour := recordsTotal == 0xffff || centralSize == 0xffffffff || centralOffset == 0xffffffff
	if sixtyFour {
		locator := make([]byte, 20)
		if int64(len(locator)+len(eocd)) > size {
			return nil, ErrFormat
		}
		n, err := r.ReadAt(locator, size-int64(len(eocd))-int64(len(locator)))
		if n < len(locator) {
			return nil, orFormat(err)
		}
		if string(locator[:4]) != "PK\x06\x07" {
			return nil, ErrFormat
		}
		eocd64Disk := binary.LittleEndian.Uint32(locator[4:])
		eocdOffset = int64(binary.LittleEndian.Uint64(locator[8:]))
		totalDisks := binary.LittleEndian.Uint32(locator[16:])
		if eocd64Disk != 0 || totalDisks != 1 {
			return nil, ErrNoSpanned
		}
		if eocdOffset < 0 || eocdOffset > size-56 {
			return nil, ErrFormat
		}
		eocd64 := make([]byte, 56)
		n, err = r.ReadAt(eocd64, eocdOffset)
		if n < len(eocd64) {
			return nil, orFormat(err)
		}
		if string(eocd64[:4]) != "PK\x06\x06" {
			return nil, ErrFormat
		}
		thisDisk = binary.LittleEndian.Uint32(eocd64[16:])
		centralDisk = binary.LittleEndian.Uint32(eocd64[20:])
		recordsTotal = binary.LittleEndian.Uint64(eocd64[32:])
		centralSize = int64(binary.LittleEndian.Uint64(eocd64[40:]))
		centralOffset = int64(binary.LittleEndian.Uint64(eocd64[48:]))
	}
	if thisDisk != 0 || centralDisk != 0 {
		return nil, ErrNoSpanned
	}

	// Fix zip files that are carelessly appended to non-zip data,
	// the creating program unaware of the leading data.
	baseCorrection := eocdOffset - centralSize - centralOffset

	// The stated central directory size is not trusted
	if centralOffset < 0 || centralOffset > eocdOffset || baseCorrection+centralOffset < 0 {
		return nil, ErrFormat
	}
	dir := make([]byte, eocdOffset-centralOffset)
	n, err := r.ReadAt(dir, baseCorrection+centralOffset)
	if n != len(dir) {
		return nil, orFormat(err)
	}

	zr := &Reader{byName: make(map[string]int)}
	for len(dir) >= 46 && string(dir[:4]) == "PK\x01\x02" {
		os := dir[5]
		flags := binary.LittleEndian.Uint16(dir[8:])
		method := binary.LittleEndian.Uint16(dir[10:])
		dostime := binary.LittleEndian.Uint16(dir[12:])
		dosdate := binary.LittleEndian.Uint16(dir[14:])
		crc32 := binary.LittleEndian.Uint32(dir[16:])
		packed := int64(binary.LittleEndian.Uint32(dir[20:]))
		unpacked := int64(binary.LittleEndian.Uint32(dir[24:]))
		namelen := int(binary.LittleEndian.Uint16(dir[28:]))
		extralen := int(binary.LittleEndian.Uint16(dir[30:]))
		commentlen := int(binary.LittleEndian.Uint16(dir[32:]))
		attrs := binary.LittleEndian.Uint32(dir[38:])
		loc := int64(binary.LittleEndian.Uint32(dir[42:]))
		if len(dir) < 46+namelen+extralen+commentlen {
			return nil, ErrFormat
		}
		dir = dir[46:]
		name := string(dir[:namelen])
		dir = dir[namelen:]
		rawExtra := dir[:extralen:extralen]
		extra := parseExtra(rawExtra)
		dir = dir[extralen:]
		dir = dir[commentlen:]

		if nx, ok := extra[extraInfoZipUTF8]; ok && len(nx) >= 6 && nx[0] == 1 {
			name = string(nx[5:])
		}
		name = unicode(name)

		mtime := msDosTimeToTime(dosdate, dostime)
		for _, k := range slices.Backward(slices.Sorted(maps.Keys(extra))) {
			t := timeFromExtraField(k, extra[k])
			if !t.IsZero() {
				mtime = t
			}
		}

		// ZIP64 sizes may appear even without a ZIP64 end record
		fields := extra[extraZip64]
		for _, shortField := range []*int64{&unpacked, &packed, &loc} {
			if *shortField == 0xffffffff && len(fields) >= 8 {
				*shortField = int64(binary.LittleEndian.Uint64(fields))
				fields = fields[8:]
			}
		}

		isdir := strings.HasSuffix(name, "/")
		var mode fs.FileMode
		switch os {
		case 3, 19: // Unix, Mac OS X
			mode = unixModeToFileMode(attrs >> 16)
		case 0, 11, 14: // DOS, NTFS, VFAT
			mode = msdosModeToFileMode(attrs)
		default:
			mode = 0o644
		}
		if isdir {
			mode |= fs.ModeDir
		}
		isdir = isdir || mode.IsDir()

		e := &Entry{
			Name:             name,
			Index:            len(zr.entries),
			IsDir:            isdir,
			Method:           method,
			Flags:            flags,
			CRC32:            crc32,
			CompressedSize:   packed,
			UncompressedSize: unpacked,
			Modified:         mtime,
			Mode:             mode,
			extra:            rawExtra,
			packed:           &localHeaderReader{r: r, offset: baseCorrection + loc, size: packed},
		}
		if _, dup := zr.byName[name]; !dup {
			zr.byName[name] = e.Index
		}
		zr.entries = append(zr.entries, e)
	}
	if !sixtyFour && uint64(len(zr.entries)) != recordsTotal {
		return nil, fmt.Errorf("%w: central directory lists %d of %d records", ErrFormat, len(zr.entries), recordsTotal)
	}
	return zr, nil
}

// Len returns the number of entries, directories included.
func (zr *Reader) Len() int { return len(zr.entries) }

// EntryAt returns the entry with the given central directory index.
func (zr *Reader) EntryAt(i int) (*Entry, error) {
	if i < 0 || i >= len(zr.entries) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNotFound, i, len(zr.entries))
	}
	return zr.entries[i], nil
}

// EntryByName returns the first entry stored under exactly this name.
func (zr *Reader) EntryByName(name string) (*Entry, error) {
	i, ok := zr.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return zr.entries[i], nil
}

// Open returns the decompressed contents, checked against the stored CRC32.
func (e *Entry) Open() (io.ReadCloser, error) {
	packed := io.NewSectionReader(e.packed, 0, e.CompressedSize)
	var r io.Reader
	switch e.Method {
	case Store:
		r = packed
	case Deflate:
		r = flate.NewReader(packed)
	case BZip2:
		r = bzip2.NewReader(packed)
	case Zstd:
		d, err := zstd.NewReader(packed, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		r = d.IOReadCloser()
	case XZ:
		d, err := xz.NewReader(packed, xz.DefaultDictMax)
		if err != nil {
			return nil, err
		}
		r = d
	default:
		return nil, fmt.Errorf("%w: %d", ErrAlgorithm, e.Method)
	}
	return newChecksumReader(r, e.UncompressedSize, e.CRC32), nil
}

// Raw returns the payload exactly as it is stored in the archive.
func (e *Entry) Raw() ([]byte, error) {
	buf := make([]byte, e.CompressedSize)
	n, err := e.packed.ReadAt(buf, 0)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

type localHeaderReader struct {
	r      io.ReaderAt
	offset int64
	size   int64
	once   sync.Once
	err    error
}

func (g *localHeaderReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fs.ErrInvalid
	}
	if off >= g.size {
		return 0, io.EOF
	}

	g.once.Do(func() {
		buf := make([]byte, 30)
		n, err := g.r.ReadAt(buf, g.offset)
		if n < len(buf) {
			g.err = orFormat(err)
			return
		}
		if string(buf[:4]) != "PK\x03\x04" {
			g.err = errors.New("zip: corrupt/absent local file header")
			return
		}
		g.offset += 30 +
			int64(binary.LittleEndian.Uint16(buf[26:])) + // filename field
			int64(binary.LittleEndian.Uint16(buf[28:])) // extra field
	})

	if g.err != nil {
		return 0, g.err
	}

	tooLong := false
	if off+int64(len(p)) > g.size {
		p = p[:g.size-off]
		tooLong = true
	}

	n, err := g.r.ReadAt(p, g.offset+off)
	if err == nil && tooLong {
		err = io.EOF
	}
	return n, err
}

func orFormat(err error) error {
	if err == nil || err == io.EOF {
		return ErrFormat
	}
	return err
}

func unicode(s string) string {
	for _, rune := range s {
		if rune == 0xfffd {
			goto bad
		}
	}
	return s
bad:
	var b strings.Builder
	for _, byte := range []byte(s) {
		if byte < 128 && byte != '%' {
			b.WriteByte(byte)
		} else {
			fmt.Fprintf(&b, "%%%02x", byte)
		}
	}
	return b.String()
}

func parseExtra(x []byte) map[int][]byte {
	ret := make(map[int][]byte)
	for len(x) >= 4 {
		kind := int(binary.LittleEndian.Uint16(x))
		size := int(binary.LittleEndian.Uint16(x[2:]))
		if len(x) < 4+size {
			break
		}
		ret[kind] = x[4:][:size]
		x = x[4+size:]
	}
	return ret
}

// getEOCD reads the End of Directory Record.
//
// No bytes outside the EOCD are read,
// but the largest chunks possible are read (up to 22 bytes).
func getEOCD(r io.ReaderAt, size int64) ([]byte, error) {
	if size < 22 {
		return nil, ErrFormat
	}
	cmtMax, haveData := int(min(65535, size-22)), 0
	data := make([]byte, 22+cmtMax)

	// If there are fewer than min bytes in the buffer then make it max,
	// not tolerating any errors
	getData := func(min, max int) error {
		if min <= haveData {
			return nil
		}
		if max > len(data) {
			return ErrFormat
		}
		n, err := r.ReadAt(data[len(data)-max:len(data)-haveData], size-int64(max))
		haveData += n
		if haveData != max {
			return orFormat(err)
		}
		return nil
	}
	atNegOffset := func(offset int) byte { return data[len(data)-1-offset] }

	for cmtSize := 0; cmtSize <= cmtMax; cmtSize++ {
		if err := getData(cmtSize+2, cmtSize+22); err != nil {
			return nil, err
		}
		if cmtSize > 0 {
			ch := atNegOffset(cmtSize - 1)
			if ch < 32 && ch != '\t' && ch != '\n' && ch != '\r' {
				return nil, ErrFormat // control chars not allowed in comments
			}
		}
		// Check for 16-bit little-endian comment field
		if atNegOffset(cmtSize) != byte(cmtSize>>8) ||
			atNegOffset(cmtSize+1) != byte(cmtSize) {
			continue
		}
		if err := getData(cmtSize+22, cmtSize+22); err != nil {
			return nil, err
		}
		if atNegOffset(cmtSize+21) == 'P' &&
			atNegOffset(cmtSize+20) == 'K' &&
			atNegOffset(cmtSize+19) == 5 &&
			atNegOffset(cmtSize+18) == 6 {
			return data[len(data)-haveData:], nil
		}
	}
	return nil, ErrFormat
}
