// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "errors"

// ErrOutOfMemory is returned by Malloc and Realloc when no free block in
// the index is large enough to satisfy the request, even after a full
// segment walk would find nothing better: the index is always kept
// complete, so there is nothing to recover by retrying.
var ErrOutOfMemory = errors.New("heapfit: no free block large enough")

// IndexFactory builds a fresh, empty FreeIndex bound to seg. Allocator
// calls it once per Init so a single Allocator value can be reset to a
// clean state (and, in principle, reconfigured to a different free-index
// variant) without disturbing the caller's reference to it.
type IndexFactory func(seg *Segment) FreeIndex

// Allocator is a single-threaded, fixed-segment heap manager generic over
// the choice of free-index variant: the segment and block layers below it
// never change, only which FreeIndex implementation tracks free space.
type Allocator struct {
	seg      *Segment
	newIndex IndexFactory
	idx      FreeIndex
	stats    AllocStats
}

// NewAllocator returns an Allocator that will build its free index with
// newIndex. Call Init before using it.
func NewAllocator(newIndex IndexFactory) *Allocator {
	return &Allocator{seg: &Segment{}, newIndex: newIndex}
}

// Init (re)acquires a segment of size bytes and resets the allocator to a
// single free block spanning the whole thing. Any payload slices returned
// by a previous generation become invalid.
func (a *Allocator) Init(size int) error {
	if size <= 0 {
		return &ErrINVAL{Reason: "segment size must be positive", Arg: size}
	}
	a.seg.Init(size)
	a.idx = a.newIndex(a.seg)
	a.stats = AllocStats{}

	payload := (size - 2*WordSize) &^ (Alignment - 1)
	if payload < a.idx.MinPayload() {
		return &ErrINVAL{Reason: "segment too small for this free-index variant", Arg: size}
	}

	root := block{seg: a.seg, off: 0}
	root.setFlags(payload, 0)
	root.setLeftAllocated(true) // no real left neighbor; avoids leftOf ever reading before offset 0
	root.writeFooter()
	a.idx.Insert(root)
	return nil
}

// commitAlloc marks f allocated, splitting off and reinserting a free tail
// when the remainder is large enough to stand as its own block, and fixes
// up the right neighbor's left-allocated bit either way.
func (a *Allocator) commitAlloc(f block, want int) block {
	if head, tail, ok := split(f, want, a.idx.MinPayload()); ok {
		head.setAllocated(true)
		a.freeBlock(tail)
		return head
	}
	// No split: f keeps its whole physical span unchanged, since a block's
	// total size no longer depends on its allocated bit.
	f.setAllocated(true)
	if r, ok := rightOf(f); ok {
		r.setLeftAllocated(true)
	}
	return f
}

func (a *Allocator) allocate(want int) (block, bool) {
	f, ok := a.idx.RemoveBestFit(want)
	if !ok {
		return nullBlock, false
	}
	return a.commitAlloc(f, want), true
}

// Malloc returns a payload slice of at least n bytes, or ErrOutOfMemory if
// no free block fits. Malloc(0) is not an error: it returns a nil slice
// without touching the segment, mirroring free(malloc(0)) being a no-op.
// The returned slice aliases the segment's backing array and stays valid
// until the matching Free or until Init is called again.
func (a *Allocator) Malloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, &ErrINVAL{Reason: "negative allocation size", Arg: n}
	}
	if n == 0 {
		return nil, nil
	}
	want := roundUp(n, a.idx.MinPayload())
	blk, ok := a.allocate(want)
	if !ok {
		return nil, ErrOutOfMemory
	}
	a.stats.Mallocs++
	a.stats.BytesRequested += int64(n)
	a.stats.BytesGranted += int64(blk.Size())
	return blk.Payload(), nil
}

// freeBlock marks b (already flagged not-allocated) free, coalescing with
// either neighbor that is itself free, then reindexes whatever remains.
// The right neighbor is probed and absorbed before the left one; either
// order produces the same final block. The word before b's header is read
// only when b's left-allocated bit is clear.
func (a *Allocator) freeBlock(b block) {
	if r, ok := rightOf(b); ok && !r.Allocated() {
		a.idx.RemoveKnown(r)
		combined := (r.off + r.totalSize()) - b.off
		merged := block{seg: a.seg, off: b.off}
		merged.setFlags(combined-2*WordSize, b.header()&^sizeMask)
		b = merged
	}
	if l, ok := leftOf(b); ok && !l.Allocated() {
		a.idx.RemoveKnown(l)
		combined := (b.off + b.totalSize()) - l.off
		merged := block{seg: a.seg, off: l.off}
		merged.setFlags(combined-2*WordSize, l.header()&^sizeMask)
		b = merged
	}
	b.writeFooter()
	if r, ok := rightOf(b); ok {
		r.setLeftAllocated(false)
	}
	a.idx.Insert(b)
}

// Free releases a payload slice previously returned by Malloc or Realloc.
// Freeing an address that is not currently allocated is a protocol
// violation and returns ErrPERM rather than corrupting the segment.
// Free(nil) is a no-op.
func (a *Allocator) Free(p []byte) error {
	if p == nil {
		return nil
	}
	b := blockFromPayload(a.seg, p)
	if !b.Allocated() {
		return &ErrPERM{Reason: "free of a block that is not allocated"}
	}
	b.setAllocated(false)
	a.freeBlock(b)
	a.stats.Frees++
	return nil
}

// Realloc resizes a previously allocated block, preferring to do so in
// place (shrinking by splitting off a free tail, or growing by absorbing
// one or both free neighbors) before falling back to a fresh allocation,
// copy and free. Growing into the left neighbor moves the live payload to
// a new address; growing into the right neighbor alone never does.
func (a *Allocator) Realloc(p []byte, n int) ([]byte, error) {
	if p == nil {
		return a.Malloc(n)
	}
	if n < 0 {
		return nil, &ErrINVAL{Reason: "negative allocation size", Arg: n}
	}
	b := blockFromPayload(a.seg, p)
	if !b.Allocated() {
		return nil, &ErrPERM{Reason: "realloc of a block that is not allocated"}
	}
	if n == 0 {
		b.setAllocated(false)
		a.freeBlock(b)
		a.stats.Frees++
		return nil, nil
	}
	want := roundUp(n, a.idx.MinPayload())

	if want <= b.Size() {
		if head, tail, ok := split(b, want, a.idx.MinPayload()); ok {
			head.setAllocated(true)
			a.freeBlock(tail)
			a.stats.Reallocs++
			return head.Payload(), nil
		}
		return p, nil
	}

	// Probe both neighbors before committing to either. Growing right
	// alone keeps b's address and never moves live bytes, so it is tried
	// first; only when that falls short is the left neighbor folded in
	// too, which shifts the block's start and requires moving the payload
	// already there.
	r, rightFree := rightOf(b)
	rightFree = rightFree && !r.Allocated()
	l, leftFree := leftOf(b)
	leftFree = leftFree && !l.Allocated()

	end := b.off + b.totalSize()
	if rightFree {
		end = r.off + r.totalSize()
	}

	rightOnly := end - b.off - 2*WordSize
	if rightFree && rightOnly >= want {
		a.idx.RemoveKnown(r)
		grown := block{seg: a.seg, off: b.off}
		grown.setFlags(rightOnly, b.header()&^sizeMask)
		blk := a.commitAlloc(grown, want)
		a.stats.Reallocs++
		return blk.Payload(), nil
	}

	start := b.off
	if leftFree {
		start = l.off
	}
	both := end - start - 2*WordSize
	if leftFree && both >= want {
		if rightFree {
			a.idx.RemoveKnown(r)
		}
		a.idx.RemoveKnown(l)
		payload := b.Payload()
		grown := block{seg: a.seg, off: l.off}
		grown.setFlags(both, l.header()&^sizeMask)
		copy(grown.seg.data[grown.payloadOff():grown.payloadOff()+len(payload)], payload)
		blk := a.commitAlloc(grown, want)
		a.stats.Reallocs++
		return blk.Payload(), nil
	}

	nb, ok := a.allocate(want)
	if !ok {
		return nil, ErrOutOfMemory
	}
	copy(nb.Payload(), b.Payload())
	b.setAllocated(false)
	a.freeBlock(b)
	a.stats.Mallocs++
	a.stats.Reallocs++
	return nb.Payload(), nil
}

// Capacity returns the total free payload bytes currently indexed.
func (a *Allocator) Capacity() int64 { return a.idx.Capacity() }

// Size returns the total byte size of the underlying segment.
func (a *Allocator) Size() int { return a.seg.Size() }

// Align rounds n up to the allocator's alignment, the size Malloc(n) will
// actually carve a block for before any free-index minimum is applied.
func (a *Allocator) Align(n int) int { return roundUp(n, Alignment) }

// Stats returns a snapshot of the allocator's running counters.
func (a *Allocator) Stats() AllocStats { return a.stats }

// Validate walks the whole segment, checking block-to-block consistency
// (header/footer agreement, left-allocated bits, no two adjacent free
// blocks) and cross-checks the result against the free index (every free
// block walked is indexed and vice versa, and the indexed byte total
// matches what the walk found), then validates the index's own internal
// structure. It stops at the first violation log declines to continue
// past (log == nil stops at the first one).
func (a *Allocator) Validate(log func(error) bool) bool {
	if log == nil {
		log = nolog
	}
	ok := true

	indexed := map[int]bool{}
	a.idx.Each(func(b block) { indexed[b.off] = true })
	seen := map[int]bool{}

	off := 0
	var freeWalked int64
	for off < a.seg.Size() {
		b := block{seg: a.seg, off: off}
		sz := b.Size()
		if sz <= 0 || sz%Alignment != 0 {
			ok = false
			if !log(&ErrILSEQ{Type: ErrBadHeaderFooter, Off: off, Arg: int64(sz)}) {
				return false
			}
			break
		}

		if !b.Allocated() {
			if b.word(b.footerOff())&(sizeMask|flagAlloc) != b.header()&(sizeMask|flagAlloc) {
				ok = false
				if !log(&ErrILSEQ{Type: ErrBadHeaderFooter, Off: off}) {
					return false
				}
			}
			freeWalked += int64(sz)
			if !indexed[off] {
				ok = false
				if !log(&ErrILSEQ{Type: ErrFreeIndexMembership, Off: off}) {
					return false
				}
			} else {
				seen[off] = true
			}
		}

		next := off + b.totalSize()
		if next <= off || next > a.seg.Size() {
			ok = false
			log(&ErrILSEQ{Type: ErrCoverageGap, Off: off})
			break
		}

		if next < a.seg.Size() {
			rb := block{seg: a.seg, off: next}
			if rb.LeftAllocated() != b.Allocated() {
				ok = false
				if !log(&ErrILSEQ{Type: ErrBadLeftAllocBit, Off: next}) {
					return false
				}
			}
			if !b.Allocated() && !rb.Allocated() {
				ok = false
				if !log(&ErrILSEQ{Type: ErrAdjacentFree, Off: off}) {
					return false
				}
			}
		}
		off = next
	}

	if len(seen) != len(indexed) {
		ok = false
		log(&ErrILSEQ{Type: ErrFreeIndexMembership, Arg: int64(len(seen)), Arg2: int64(len(indexed))})
	}
	if freeWalked != a.idx.Capacity() {
		ok = false
		log(&ErrILSEQ{Type: ErrCoverageGap, Arg: freeWalked, Arg2: a.idx.Capacity()})
	}
	if !a.idx.Validate(log) {
		ok = false
	}
	return ok
}

// ValidateVerbose runs the same audit as Validate but, when log is nil,
// keeps going after every violation instead of stopping at the first one
// — useful for drivers that want a complete report rather than a single
// failure.
func (a *Allocator) ValidateVerbose(log func(error) bool) bool {
	if log == nil {
		log = func(error) bool { return true }
	}
	return a.Validate(log)
}
