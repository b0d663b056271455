// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import (
	"math/rand"
	"testing"
)

func TestSplayTopdownAccessedNodeBecomesRoot(t *testing.T) {
	sizes := []int{32, 64, 96, 160, 224, 320}
	seg := segmentFor(sizes)
	tr := NewSplayTopdown(seg)
	for _, b := range buildBlocks(seg, sizes) {
		tr.Insert(b)
	}

	tr.splay(96)
	if tr.size(tr.root) != 96 {
		t.Fatalf("root size = %d after splay(96), want 96", tr.size(tr.root))
	}
	if !tr.Validate(nil) {
		t.Fatal("Validate() failed after splay")
	}
}

// TestSplayTopdownBestFitSubSplay exercises RemoveBestFit's two-splay path:
// when the first splay lands on a node smaller than the target, a second
// splay over the right subtree must surface the true best fit.
func TestSplayTopdownBestFitSubSplay(t *testing.T) {
	sizes := []int{32, 48, 64, 96, 128, 192, 256, 384}
	seg := segmentFor(sizes)
	tr := NewSplayTopdown(seg)
	for _, b := range buildBlocks(seg, sizes) {
		tr.Insert(b)
	}

	got, ok := tr.RemoveBestFit(100)
	if !ok {
		t.Fatal("RemoveBestFit(100) found nothing")
	}
	if got.Size() != 128 {
		t.Fatalf("RemoveBestFit(100) = %d, want 128 (smallest size >= 100)", got.Size())
	}
	if !tr.Validate(nil) {
		t.Fatal("Validate() failed after RemoveBestFit")
	}
}

func TestSplayTopdownRandomizedDrain(t *testing.T) {
	rng := rand.New(rand.NewSource(321))
	const n = 200
	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = 32 + rng.Intn(40)*16
	}
	seg := segmentFor(sizes)
	tr := NewSplayTopdown(seg)
	blocks := buildBlocks(seg, sizes)
	for _, b := range blocks {
		tr.Insert(b)
	}
	if !tr.Validate(nil) {
		t.Fatal("Validate() failed after insert")
	}

	rng.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
	for _, b := range blocks {
		if b.IsDup() {
			tr.RemoveKnown(b)
		} else if _, ok := tr.RemoveBestFit(b.Size()); !ok {
			t.Fatalf("RemoveBestFit(%d) found nothing", b.Size())
		}
		if !tr.Validate(nil) {
			t.Fatal("Validate() failed mid-drain")
		}
	}
	if tr.Capacity() != 0 {
		t.Fatalf("Capacity() = %d after draining, want 0", tr.Capacity())
	}
}
