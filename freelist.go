// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "math/bits"

// NumBuckets is the bucket-array length of the segregated free-list
// variant.
const NumBuckets = 20

// numExactBuckets are the first few buckets, each an exact size class
// stepped by Alignment; the remaining buckets (up to the catch-all) double
// in range, matching lldb's FLTPowersOf2 canned table in shape if not in
// exact step values.
const numExactBuckets = 4

// exactMax is the largest size handled by an exact bucket.
const exactMax = numExactBuckets * Alignment // 64

// FreeList is the segregated free-list FreeIndex variant: an array of
// size-class buckets, each a doubly linked LIFO list, with O(1) bucket
// selection via an integer-log2. Grounded on lldb/flt.go's canned
// free-list table, generalized from file-offset handles to in-memory block
// handles and from a fixed canned table to a computed power-of-two
// schedule.
type FreeList struct {
	seg      *Segment
	heads    [NumBuckets]int64 // head handle per bucket, 0 == empty
	capacity int64
}

// NewFreeList returns a FreeList indexing blocks within seg.
func NewFreeList(seg *Segment) *FreeList { return &FreeList{seg: seg} }

func (*FreeList) MinPayload() int { return minPayloadList }

// classFor maps a payload size to its bucket index using an integer-log2,
// jumping directly to the appropriate class instead of scanning buckets in
// order.
func classFor(size int) int {
	if size <= exactMax {
		c := size/Alignment - 1
		if c < 0 {
			c = 0
		}
		return c
	}

	// log2(size-1)+1 == position of the highest set bit of the smallest
	// power of two >= size; bits.Len gives that directly via
	// bits.Len(uint(size-1)).
	log := bits.Len(uint(size - 1))
	const log2ExactMax = 6 // log2(64)
	class := numExactBuckets + (log - log2ExactMax)
	if class >= NumBuckets-1 {
		return NumBuckets - 1
	}
	return class
}

func (f *FreeList) linkFront(class int, b block) {
	head := f.heads[class]
	b.setSlot(0, 0)
	b.setSlot(1, head)
	if head != 0 {
		hb, _ := blockFromHandle(f.seg, head)
		hb.setSlot(0, handleOf(b))
	}
	f.heads[class] = handleOf(b)
}

func (f *FreeList) unlink(class int, b block) {
	prev, next := b.slot(0), b.slot(1)
	if prev == 0 {
		f.heads[class] = next
	} else {
		pb, _ := blockFromHandle(f.seg, prev)
		pb.setSlot(1, next)
	}
	if next != 0 {
		nb, _ := blockFromHandle(f.seg, next)
		nb.setSlot(0, prev)
	}
}

// Insert implements FreeIndex.
func (f *FreeList) Insert(b block) {
	f.linkFront(classFor(b.Size()), b)
	f.capacity += int64(b.Size())
}

// RemoveBestFit implements FreeIndex: scan the target's own bucket first
// for an exact-or-larger fit, then fall back to the first non-empty
// higher bucket, whose every member is guaranteed large enough.
func (f *FreeList) RemoveBestFit(size int) (block, bool) {
	class := classFor(size)

	for h := f.heads[class]; h != 0; {
		b, _ := blockFromHandle(f.seg, h)
		if b.Size() >= size {
			f.unlink(class, b)
			f.capacity -= int64(b.Size())
			return b, true
		}
		h = b.slot(1)
	}

	for c := class + 1; c < NumBuckets; c++ {
		if h := f.heads[c]; h != 0 {
			b, _ := blockFromHandle(f.seg, h)
			f.unlink(c, b)
			f.capacity -= int64(b.Size())
			return b, true
		}
	}

	return nullBlock, false
}

// RemoveKnown implements FreeIndex.
func (f *FreeList) RemoveKnown(b block) {
	f.unlink(classFor(b.Size()), b)
	f.capacity -= int64(b.Size())
}

// Capacity implements FreeIndex.
func (f *FreeList) Capacity() int64 { return f.capacity }

// Each implements FreeIndex.
func (f *FreeList) Each(fn func(block)) {
	for c := 0; c < NumBuckets; c++ {
		for h := f.heads[c]; h != 0; {
			b, _ := blockFromHandle(f.seg, h)
			fn(b)
			h = b.slot(1)
		}
	}
}

// Validate implements FreeIndex: every block in bucket k has size in
// bucket k's range, and each bucket's list is a consistent doubly linked
// chain.
func (f *FreeList) Validate(log func(error) bool) bool {
	if log == nil {
		log = nolog
	}
	ok := true

	for c := 0; c < NumBuckets; c++ {
		prev := int64(0)
		for h := f.heads[c]; h != 0; {
			b, _ := blockFromHandle(f.seg, h)
			if classFor(b.Size()) != c {
				ok = false
				if !log(&ErrILSEQ{Type: ErrBadBucketRange, Off: b.off, Arg: int64(b.Size()), Arg2: int64(c)}) {
					return false
				}
			}
			if b.slot(0) != prev {
				ok = false
				if !log(&ErrILSEQ{Type: ErrBadDuplicateRing, Off: b.off}) {
					return false
				}
			}
			prev = h
			h = b.slot(1)
		}
	}

	return ok
}
