// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// FreeIndex is the common contract every free-block index variant
// implements. A FreeIndex never sees size-zero requests and never panics on
// a miss: lookups report "no fit" by returning ok == false.
type FreeIndex interface {
	// MinPayload is the smallest payload this variant's free-index node
	// can overlay.
	MinPayload() int

	// Insert adds a free block to the index. b must not already be
	// indexed.
	Insert(b block)

	// RemoveBestFit removes and returns an indexed block whose payload is
	// >= size, or (nullBlock, false) if none fits. The tree and splay
	// variants return the smallest such block. FreeList returns the first
	// fit in the target's own bucket, else the front block of the next
	// non-empty bucket, which is not necessarily the smallest fit.
	RemoveBestFit(size int) (block, bool)

	// RemoveKnown removes a block whose address is already known (used by
	// the allocator's coalescing path). b must currently be indexed.
	RemoveKnown(b block)

	// Capacity returns the total free payload bytes currently indexed.
	Capacity() int64

	// Each calls fn once per indexed free block, in unspecified order. The
	// allocator uses it to reconcile "free per the index" against "free
	// per a segment walk" since that cross-check needs both sides and the
	// index alone cannot see the segment.
	Each(fn func(block))

	// Validate performs a full structural audit of the index and reports
	// every violation found to log, stopping early if log returns false.
	// It returns true iff no violation was found.
	Validate(log func(error) bool) bool
}

// nolog is the default "don't report, just fail fast" logger, mirroring
// lldb's package-level nolog used by Allocator.Verify.
var nolog = func(error) bool { return false }
