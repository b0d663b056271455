// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "github.com/cznic/mathutil"

// Alignment is the byte alignment applied to every block payload. 16
// matches the platform alignment of a 64-bit target.
const Alignment = 16

// WordSize is the size in bytes of the header and footer words.
const WordSize = 8

// Segment is a one-shot acquired, fixed-size contiguous byte range handed
// to an Allocator at Init time. It never grows once acquired, and owns the
// only backing array its blocks are ever addressed into — see block.go for
// why that matters.
type Segment struct {
	data []byte
}

// Init (re)acquires size bytes for the segment, discarding any prior
// content. Calling it again resets the segment: any outstanding payload
// slices from a prior Init become invalid.
func (s *Segment) Init(size int) {
	s.data = make([]byte, mathutil.Max(size, 0))
}

// Start returns 0, the logical start offset of the segment. Real addressing
// in this in-memory implementation is always relative to the segment's own
// backing array, never an absolute process address.
func (s *Segment) Start() int { return 0 }

// Size returns the total byte capacity of the segment.
func (s *Segment) Size() int { return len(s.data) }
