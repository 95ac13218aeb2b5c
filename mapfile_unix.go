// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build unix

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// readInput maps the file read-only. The slice is valid until release is called.
func readInput(name string) (data []byte, release func() error, err error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := stat.Size()
	if size == 0 || !stat.Mode().IsRegular() {
		data, err := os.ReadFile(name)
		return data, func() error { return nil }, err
	}
	if int64(int(size)) != size {
		return nil, nil, fmt.Errorf("%s: too large to map (%d bytes)", name, size)
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
