// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "testing"

func requireOK(t *testing.T, got []ActualBlock) {
	t.Helper()
	for i, g := range got {
		if g.Error != BlockOK {
			t.Fatalf("slot %d: %s (%+v)", i, g.Error, g)
		}
	}
}

func TestDiffSingleAlloc(t *testing.T) {
	// init(2048); p = malloc(32) => diff = [(p, align(32), OK), (free, capacity-align(32), OK)].
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p, err := a.Malloc(32)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed")
	}

	requireOK(t, a.Diff([]ExpectedBlock{
		{Address: p, PayloadBytes: a.Align(32)},
		{Address: nil, PayloadBytes: AnySize},
	}))
}

func TestDiffCoalesceOnFree(t *testing.T) {
	// a,b,c = malloc(64)x3; free(b) => [(a,OK),(free,OK),(c,OK),(free,OK)];
	// then free(a) => the two free blocks at segment start coalesce into one.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Malloc(64)
	pb, _ := a.Malloc(64)
	pc, _ := a.Malloc(64)

	if err := a.Free(pb); err != nil {
		t.Fatal(err)
	}
	requireOK(t, a.Diff([]ExpectedBlock{
		{Address: pa, PayloadBytes: a.Align(64)},
		{Address: nil, PayloadBytes: a.Align(64)},
		{Address: pc, PayloadBytes: a.Align(64)},
		{Address: nil, PayloadBytes: AnySize},
	}))

	if err := a.Free(pa); err != nil {
		t.Fatal(err)
	}
	got := a.Diff([]ExpectedBlock{
		{Address: nil, PayloadBytes: 2*a.Align(64) + 2*WordSize},
		{Address: pc, PayloadBytes: a.Align(64)},
		{Address: nil, PayloadBytes: AnySize},
	})
	requireOK(t, got)
}

func TestDiffOutOfBoundsAndContinuesPastEnd(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p, err := a.Malloc(32)
	if err != nil {
		t.Fatal(err)
	}

	// One too many expected slots: there is no third physical block.
	got := a.Diff([]ExpectedBlock{
		{Address: p, PayloadBytes: a.Align(32)},
		{Address: nil, PayloadBytes: AnySize},
		{Address: nil, PayloadBytes: AnySize},
	})
	if got[2].Error != BlockOutOfBounds {
		t.Fatalf("slot 2 Error = %v, want BlockOutOfBounds", got[2].Error)
	}

	// One too few: the trailing free block is never accounted for.
	got = a.Diff([]ExpectedBlock{
		{Address: p, PayloadBytes: a.Align(32)},
	})
	if got[0].Error != BlockContinuesPastEnd {
		t.Fatalf("slot 0 Error = %v, want BlockContinuesPastEnd", got[0].Error)
	}
}

func TestDiffMismatch(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p, err := a.Malloc(32)
	if err != nil {
		t.Fatal(err)
	}

	got := a.Diff([]ExpectedBlock{
		{Address: nil, PayloadBytes: AnySize}, // wrong: this slot is allocated
		{Address: nil, PayloadBytes: AnySize},
	})
	if got[0].Error != BlockMismatch {
		t.Fatalf("slot 0 Error = %v, want BlockMismatch", got[0].Error)
	}

	got = a.Diff([]ExpectedBlock{
		{Address: p, PayloadBytes: a.Align(32) + 16}, // wrong size
		{Address: nil, PayloadBytes: AnySize},
	})
	if got[0].Error != BlockMismatch {
		t.Fatalf("slot 0 Error = %v, want BlockMismatch on size mismatch", got[0].Error)
	}
}
