// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pipeline

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

type filter []string

func newFilter(patterns []string) (filter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("pipeline: bad exclude pattern %q", p)
		}
	}
	return filter(patterns), nil
}

func (f filter) excludes(name string) bool {
	for _, p := range f {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
