// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import (
	"sort"
	"testing"
)

// buildBlocks lays out one free block per size, back to back, with no
// footer: FreeIndex implementations never read a block's footer, only
// the allocator does, so index-only tests can skip it.
func buildBlocks(seg *Segment, sizes []int) []block {
	off := 0
	out := make([]block, len(sizes))
	for i, sz := range sizes {
		b := block{seg: seg, off: off}
		b.setFlags(sz, 0)
		out[i] = b
		off += WordSize + sz
	}
	return out
}

func segmentFor(sizes []int) *Segment {
	total := 0
	for _, sz := range sizes {
		total += WordSize + sz
	}
	seg := &Segment{}
	seg.Init(total + WordSize) // margin
	return seg
}

func testSizes() []int {
	return []int{32, 48, 32, 96, 32, 160, 64, 48, 224, 32}
}

func TestFreeIndexVariants(t *testing.T) {
	for _, name := range Variants {
		name := name
		t.Run(name, func(t *testing.T) {
			newIndex, ok := NewIndexFactory(name)
			if !ok {
				t.Fatalf("unknown variant %q", name)
			}

			sizes := testSizes()
			seg := segmentFor(sizes)
			idx := newIndex(seg)

			blocks := buildBlocks(seg, sizes)
			total := int64(0)
			for _, b := range blocks {
				idx.Insert(b)
				total += int64(b.Size())
			}

			if g, e := idx.Capacity(), total; g != e {
				t.Fatalf("Capacity() = %d, want %d", g, e)
			}
			if !idx.Validate(nil) {
				t.Fatal("Validate() failed after inserting all blocks")
			}

			n := 0
			idx.Each(func(block) { n++ })
			if n != len(sizes) {
				t.Fatalf("Each visited %d blocks, want %d", n, len(sizes))
			}

			// The tree and splay variants return the smallest indexed size
			// >= target.
			sorted := append([]int(nil), sizes...)
			sort.Ints(sorted)
			want := 0
			for _, sz := range sorted {
				if sz >= 100 {
					want = sz
					break
				}
			}
			if name == "freelist" {
				// 96 shares the target's bucket but is too small; 160 and
				// 224 share the next bucket and 224, inserted last, is its
				// front.
				want = 224
			}
			got, ok := idx.RemoveBestFit(100)
			if !ok {
				t.Fatal("RemoveBestFit(100) found nothing")
			}
			if got.Size() != want {
				t.Fatalf("RemoveBestFit(100) = %d, want %d", got.Size(), want)
			}
			total -= int64(got.Size())
			if idx.Capacity() != total {
				t.Fatalf("Capacity() after RemoveBestFit = %d, want %d", idx.Capacity(), total)
			}
			if !idx.Validate(nil) {
				t.Fatal("Validate() failed after RemoveBestFit")
			}

			// RemoveKnown on an arbitrary remaining block.
			var known block
			idx.Each(func(b block) { known = b })
			sz := known.Size()
			idx.RemoveKnown(known)
			total -= int64(sz)
			if idx.Capacity() != total {
				t.Fatalf("Capacity() after RemoveKnown = %d, want %d", idx.Capacity(), total)
			}
			if !idx.Validate(nil) {
				t.Fatal("Validate() failed after RemoveKnown")
			}

			if _, ok := idx.RemoveBestFit(1 << 30); ok {
				t.Fatal("RemoveBestFit(huge) unexpectedly succeeded")
			}
		})
	}
}

// TestFreeIndexDuplicates exercises the duplicate-size path: after
// inserting several blocks of the same size, RemoveBestFit must be able to
// satisfy every one of them before reporting "no fit", leaving the index
// valid after each removal.
func TestFreeIndexDuplicates(t *testing.T) {
	for _, name := range Variants {
		name := name
		t.Run(name, func(t *testing.T) {
			newIndex, ok := NewIndexFactory(name)
			if !ok {
				t.Fatalf("unknown variant %q", name)
			}

			const dupSize = 64
			const dupCount = 5
			sizes := make([]int, dupCount)
			for i := range sizes {
				sizes[i] = dupSize
			}
			seg := segmentFor(sizes)
			idx := newIndex(seg)
			blocks := buildBlocks(seg, sizes)
			for _, b := range blocks {
				idx.Insert(b)
			}
			if !idx.Validate(nil) {
				t.Fatal("Validate() failed after inserting duplicates")
			}

			got := 0
			for {
				b, ok := idx.RemoveBestFit(dupSize)
				if !ok {
					break
				}
				if b.Size() != dupSize {
					t.Fatalf("RemoveBestFit(%d) returned size %d", dupSize, b.Size())
				}
				got++
				if !idx.Validate(nil) {
					t.Fatalf("Validate() failed after removing duplicate %d", got)
				}
			}
			if got != dupCount {
				t.Fatalf("removed %d duplicates, want %d", got, dupCount)
			}
			if idx.Capacity() != 0 {
				t.Fatalf("Capacity() = %d after draining all duplicates, want 0", idx.Capacity())
			}
		})
	}
}

// TestFreeIndexRemoveKnownDuplicate checks that RemoveKnown works for a
// block that is part of a duplicate ring (or, for the segregated list,
// simply one of several equal-size list members), without disturbing
// the others.
func TestFreeIndexRemoveKnownDuplicate(t *testing.T) {
	for _, name := range Variants {
		name := name
		t.Run(name, func(t *testing.T) {
			newIndex, ok := NewIndexFactory(name)
			if !ok {
				t.Fatalf("unknown variant %q", name)
			}

			sizes := []int{64, 64, 64}
			seg := segmentFor(sizes)
			idx := newIndex(seg)
			blocks := buildBlocks(seg, sizes)
			for _, b := range blocks {
				idx.Insert(b)
			}

			// Remove the middle one specifically by address.
			idx.RemoveKnown(blocks[1])
			if !idx.Validate(nil) {
				t.Fatal("Validate() failed after RemoveKnown on a duplicate")
			}
			if idx.Capacity() != 128 {
				t.Fatalf("Capacity() = %d, want 128", idx.Capacity())
			}

			n := 0
			idx.Each(func(b block) {
				if b.off == blocks[1].off {
					t.Fatal("removed block still indexed")
				}
				n++
			})
			if n != 2 {
				t.Fatalf("Each visited %d blocks, want 2", n)
			}
		})
	}
}
