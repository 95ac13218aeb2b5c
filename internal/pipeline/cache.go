// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pipeline

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/martinf08/batch-image-processor/internal/canvas"
)

var seed = maphash.MakeSeed()

// A resultKey identifies everything that determines the encoded output.
type resultKey struct {
	sum     uint64
	size    int
	policy  canvas.Policy
	maxSide int
}

// resultCache remembers encoded output so that a payload repeated within
// an archive is decoded and encoded only once. A nil cache holds nothing.
type resultCache struct {
	t *tinylfu.T[resultKey, []byte]
}

func newResultCache(n int) *resultCache {
	if n <= 0 {
		return nil
	}
	return &resultCache{t: tinylfu.New[resultKey, []byte](n, n*10, hasher)}
}

func hasher(k resultKey) uint64 {
	return maphash.Comparable(seed, k)
}

func (o *Orchestrator) keyFor(data []byte) resultKey {
	return resultKey{
		sum:     xxhash.Sum64(data),
		size:    len(data),
		policy:  o.opts.Policy,
		maxSide: o.opts.MaxSide,
	}
}

func (c *resultCache) get(k resultKey) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.t.Get(k)
}

func (c *resultCache) add(k resultKey, v []byte) {
	if c == nil {
		return
	}
	c.t.Add(k, v)
}
