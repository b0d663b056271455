// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "testing"

func TestClassForMonotonic(t *testing.T) {
	prev := -1
	for size := Alignment; size <= 1<<20; size += Alignment {
		c := classFor(size)
		if c < 0 || c >= NumBuckets {
			t.Fatalf("classFor(%d) = %d, out of range [0,%d)", size, c, NumBuckets)
		}
		if c < prev {
			t.Fatalf("classFor(%d) = %d, decreased from previous class %d", size, c, prev)
		}
		prev = c
	}
}

func TestFreeListInsertRemoveBestFit(t *testing.T) {
	var seg Segment
	seg.Init(4096)
	fl := NewFreeList(&seg)

	mk := func(off, size int) block {
		b := block{seg: &seg, off: off}
		b.setFlags(size, 0)
		return b
	}

	b1 := mk(0, 32)
	b2 := mk(48, 128)
	b3 := mk(192, 64)
	fl.Insert(b1)
	fl.Insert(b2)
	fl.Insert(b3)

	if fl.Capacity() != 32+128+64 {
		t.Fatalf("Capacity() = %d, want %d", fl.Capacity(), 32+128+64)
	}

	got, ok := fl.RemoveBestFit(64)
	if !ok || got.Size() < 64 {
		t.Fatalf("RemoveBestFit(64) = (%+v, %v), want a block >= 64", got, ok)
	}
	if !fl.Validate(nil) {
		t.Fatal("Validate() failed after RemoveBestFit")
	}

	if _, ok := fl.RemoveBestFit(1 << 20); ok {
		t.Fatal("RemoveBestFit(huge) unexpectedly succeeded")
	}
}

func TestFreeListRemoveKnown(t *testing.T) {
	var seg Segment
	seg.Init(1024)
	fl := NewFreeList(&seg)

	b := block{seg: &seg, off: 0}
	b.setFlags(64, 0)
	fl.Insert(b)
	fl.RemoveKnown(b)

	if fl.Capacity() != 0 {
		t.Fatalf("Capacity() after RemoveKnown = %d, want 0", fl.Capacity())
	}
	n := 0
	fl.Each(func(block) { n++ })
	if n != 0 {
		t.Fatalf("Each visited %d blocks, want 0", n)
	}
}
