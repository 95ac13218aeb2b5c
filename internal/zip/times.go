// Copyright Elliot Nunn. Portions copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zip

import (
	"encoding/binary"
	"time"
)

// Extra field header IDs
const (
	extraZip64         = 0x0001
	extraNTFS          = 0x000a
	extraUnix          = 0x000d
	extraExtTimestamp  = 0x5455
	extraInfoZipUnix   = 0x5855
	extraInfoZipUTF8   = 0x7055
	ntfsTicksPerSecond = 1e7
)

var ntfsEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	year := int(dosDate>>9) + 1980
	month := time.Month(dosDate >> 5 & 0xf)
	day := int(dosDate & 0x1f)
	hour := int(dosTime >> 11)
	minute := int(dosTime >> 5 & 0x3f)
	sec := int(dosTime&0x1f) * 2
	return time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
}

// timeFromExtraField returns the modification time carried by one extra field,
// or the zero time if the field has none.
func timeFromExtraField(kind int, buf []byte) time.Time {
	switch kind {
	case extraNTFS:
		if len(buf) < 4 {
			break
		}
		// attribute 1 holds mtime, atime, ctime; we want the first
		if times, ok := parseExtra(buf[4:])[1]; ok && len(times) >= 8 {
			ticks := int64(binary.LittleEndian.Uint64(times))
			secs, rem := ticks/ntfsTicksPerSecond, ticks%ntfsTicksPerSecond
			return time.Unix(ntfsEpoch.Unix()+secs, rem*(1e9/ntfsTicksPerSecond))
		}
	case extraUnix, extraInfoZipUnix:
		if len(buf) >= 8 {
			return time.Unix(int64(binary.LittleEndian.Uint32(buf[4:])), 0)
		}
	case extraExtTimestamp:
		if len(buf) >= 5 && buf[0]&1 != 0 {
			return time.Unix(int64(binary.LittleEndian.Uint32(buf[1:])), 0)
		}
	}
	return time.Time{}
}
