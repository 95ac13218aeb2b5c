// Copyright Elliot Nunn. Portions copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zip

import (
	gozip "archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

type fixture struct {
	name   string
	method uint16
	data   string
}

func build(t *testing.T, entries ...fixture) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)
	w.RegisterCompressor(Zstd, func(out io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(out)
	})
	for _, e := range entries {
		f, err := w.CreateHeader(&gozip.FileHeader{
			Name:     e.name,
			Method:   e.method,
			Modified: time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(f, e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func open(t *testing.T, b []byte) *Reader {
	t.Helper()
	zr, err := NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatal(err)
	}
	return zr
}

func readAll(t *testing.T, e *Entry) string {
	t.Helper()
	rc, err := e.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %q: %v", e.Name, err)
	}
	return string(b)
}

func TestIndexOrder(t *testing.T) {
	zr := open(t, build(t,
		fixture{"Photos/", Store, ""},
		fixture{"Photos/B.png", Deflate, "bee"},
		fixture{"a.txt", Store, "ay"},
	))

	if zr.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", zr.Len())
	}
	expect := []struct {
		name  string
		isdir bool
	}{{"Photos/", true}, {"Photos/B.png", false}, {"a.txt", false}}
	for i, x := range expect {
		e, err := zr.EntryAt(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.Name != x.name || e.IsDir != x.isdir || e.Index != i {
			t.Errorf("entry %d: expect %q dir=%v got %q dir=%v index=%d", i, x.name, x.isdir, e.Name, e.IsDir, e.Index)
		}
	}

	for _, i := range []int{-1, 3, 100} {
		if _, err := zr.EntryAt(i); !errors.Is(err, ErrNotFound) {
			t.Errorf("EntryAt(%d): expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestEntryByName(t *testing.T) {
	zr := open(t, build(t, fixture{"Upper.TXT", Deflate, "hello"}))

	if _, err := zr.EntryByName("upper.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup is case sensitive, expected ErrNotFound, got %v", err)
	}
	e, err := zr.EntryByName("Upper.TXT")
	if err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, e); got != "hello" {
		t.Errorf("expected %q got %q", "hello", got)
	}
}

func TestMethods(t *testing.T) {
	payload := strings.Repeat("the quick brown fox ", 200)
	for _, method := range []uint16{Store, Deflate, Zstd} {
		zr := open(t, build(t, fixture{"f", method, payload}))
		e, _ := zr.EntryAt(0)
		if e.Method != method {
			t.Errorf("expected method %d got %d", method, e.Method)
		}
		if got := readAll(t, e); got != payload {
			t.Errorf("method %d: wrong data", method)
		}
		if e.UncompressedSize != int64(len(payload)) {
			t.Errorf("method %d: size %d", method, e.UncompressedSize)
		}
	}
}

func TestRawMatchesStdlib(t *testing.T) {
	b := build(t, fixture{"f", Deflate, strings.Repeat("abc", 1000)})
	stdlib, err := gozip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatal("the canonical implementation complains", err)
	}
	rc, err := stdlib.File[0].OpenRaw()
	if err != nil {
		t.Fatal(err)
	}
	theirs, _ := io.ReadAll(rc)

	e, _ := open(t, b).EntryAt(0)
	ours, err := e.Raw()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(theirs, ours) {
		t.Error("raw payload differs from archive/zip")
	}
	if !e.Modified.Equal(stdlib.File[0].Modified) {
		t.Errorf("mtime: expect %s got %s", stdlib.File[0].Modified, e.Modified)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	var buf bytes.Buffer
	w := gozip.NewWriter(&buf)
	f, err := w.CreateRaw(&gozip.FileHeader{Name: "odd", Method: 99, CompressedSize64: 3, UncompressedSize64: 3})
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("xyz"))
	w.Close()

	e, _ := open(t, buf.Bytes()).EntryAt(0)
	if _, err := e.Open(); !errors.Is(err, ErrAlgorithm) {
		t.Errorf("expected ErrAlgorithm, got %v", err)
	}
	raw, err := e.Raw()
	if err != nil || string(raw) != "xyz" {
		t.Errorf("raw access should not care about the method: %q %v", raw, err)
	}
}

func TestChecksum(t *testing.T) {
	b := build(t, fixture{"f", Store, "payload"})
	i := bytes.Index(b, []byte("payload"))
	b[i] ^= 0xff

	e, _ := open(t, b).EntryAt(0)
	rc, err := e.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if _, err := io.ReadAll(rc); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestMalformed(t *testing.T) {
	valid := build(t, fixture{"f", Store, "x"})
	cases := map[string][]byte{
		"empty":     nil,
		"short":     []byte("PK\x05\x06"),
		"text":      []byte(strings.Repeat("not a zip file ", 10)),
		"truncated": valid[:len(valid)-30],
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewReader(bytes.NewReader(b), int64(len(b))); !errors.Is(err, ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestEmptyArchive(t *testing.T) {
	zr := open(t, build(t))
	if zr.Len() != 0 {
		t.Errorf("expected no entries, got %d", zr.Len())
	}
}

func TestBadUnicodeEscaped(t *testing.T) {
	zr := open(t, build(t, fixture{"caf\xe9.png", Store, "x"}))
	e, _ := zr.EntryAt(0)
	if e.Name != "caf%e9.png" {
		t.Errorf("expected escaped name, got %q", e.Name)
	}
}

func TestExtraFieldTimes(t *testing.T) {
	want := time.Date(2020, 1, 2, 3, 4, 5, 600, time.UTC)

	ntfs := make([]byte, 4+4+24)
	binary.LittleEndian.PutUint16(ntfs[4:], 1)
	binary.LittleEndian.PutUint16(ntfs[6:], 24)
	ticks := (want.Unix()+11644473600)*1e7 + int64(want.Nanosecond()/100)
	binary.LittleEndian.PutUint64(ntfs[8:], uint64(ticks))
	if got := timeFromExtraField(extraNTFS, ntfs); !got.Equal(want.Truncate(100)) {
		t.Errorf("NTFS: expected %s got %s", want, got)
	}

	ext := []byte{1, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(ext[1:], uint32(want.Unix()))
	if got := timeFromExtraField(extraExtTimestamp, ext); !got.Equal(want.Truncate(time.Second)) {
		t.Errorf("extended timestamp: expected %s got %s", want, got)
	}

	if got := timeFromExtraField(extraExtTimestamp, []byte{0, 1, 2, 3, 4}); !got.IsZero() {
		t.Errorf("mtime flag clear, expected zero time, got %s", got)
	}

	// 2020-01-02 03:04:06
	if got := msDosTimeToTime(40<<9|1<<5|2, 3<<11|4<<5|3); !got.Equal(time.Date(2020, 1, 2, 3, 4, 6, 0, time.UTC)) {
		t.Errorf("DOS: got %s", got)
	}
}
