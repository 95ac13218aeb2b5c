// Copyright Elliot Nunn. Portions copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zip

import (
	"hash"
	"hash/crc32"
	"io"
)

// newChecksumReader wraps an [io.Reader]/[io.ReadCloser] and checks the CRC32
// and the length once the stream is exhausted.
func newChecksumReader(r io.Reader, size int64, checksum uint32) io.ReadCloser {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &checksumReader{rc: rc, remain: size, sum: checksum, hash: crc32.NewIEEE()}
}

type checksumReader struct {
	rc     io.ReadCloser
	remain int64
	sum    uint32
	hash   hash.Hash32
	err    error // sticky
}

func (r *checksumReader) Read(b []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err = r.rc.Read(b)
	r.hash.Write(b[:n])
	r.remain -= int64(n)
	switch {
	case r.remain < 0:
		err = ErrFormat
	case err == io.EOF && r.remain > 0:
		err = io.ErrUnexpectedEOF
	case err == io.EOF && r.hash.Sum32() != r.sum:
		err = ErrChecksum
	}
	if err != nil {
		r.err = err
	}
	return n, err
}

func (r *checksumReader) Close() error { return r.rc.Close() }
