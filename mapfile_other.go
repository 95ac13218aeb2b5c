// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !unix

package main

import "os"

func readInput(name string) (data []byte, release func() error, err error) {
	data, err = os.ReadFile(name)
	return data, func() error { return nil }, err
}
