// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import (
	"flag"
	"math/rand"
	"sort"
	"testing"

	"github.com/cznic/sortutil"
)

var (
	allocRndN         = flag.Int("N", 200, "Allocator rnd test request count")
	allocRndSizeLimit = flag.Int("lim", 512, "Allocator rnd test max request size")
)

func TestAllocatorInitTooSmall(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(4); err == nil {
		t.Fatal("Init(4) unexpectedly succeeded")
	}
}

func TestAllocatorMallocFreeScenario1(t *testing.T) {
	// init(2048); p = malloc(32) => p != null, validate() holds.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBUnified(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p, err := a.Malloc(32)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("Malloc(32) returned nil payload")
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed")
	}
	blocks := a.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("Blocks() = %d entries, want 2 (allocated + free remainder)", len(blocks))
	}
	if !blocks[0].Allocated || blocks[1].Allocated {
		t.Fatalf("Blocks() = %+v, want [allocated, free]", blocks)
	}
}

func TestAllocatorCoalesceOnFree(t *testing.T) {
	// a,b,c = malloc(64)x3; free(b) => b's space stays free and isolated;
	// free(a) => the two free blocks at the segment start coalesce.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBCanonical(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, err := a.Malloc(64)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := a.Malloc(64)
	if err != nil {
		t.Fatal(err)
	}
	pc, err := a.Malloc(64)
	if err != nil {
		t.Fatal(err)
	}
	_ = pc

	if err := a.Free(pb); err != nil {
		t.Fatal(err)
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed after freeing b")
	}

	blocksBefore := a.Blocks()
	freeCountBefore := 0
	for _, b := range blocksBefore {
		if !b.Allocated {
			freeCountBefore++
		}
	}

	if err := a.Free(pa); err != nil {
		t.Fatal(err)
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed after freeing a")
	}

	blocksAfter := a.Blocks()
	freeCountAfter := 0
	for _, b := range blocksAfter {
		if !b.Allocated {
			freeCountAfter++
		}
	}
	// a and b's blocks coalesce into one, so the free-block count must not
	// grow by one the way it would without coalescing.
	if freeCountAfter != freeCountBefore {
		t.Fatalf("free block count = %d after freeing a, want unchanged at %d (coalesce expected)", freeCountAfter, freeCountBefore)
	}
}

func TestAllocatorReallocGrowCoalescesRight(t *testing.T) {
	// a,b,c,d = malloc(64)x4; free(c); realloc(b, 2*align(64)) grows b
	// in place into c's freed space. a and d stay allocated throughout, so
	// this exercises the right-neighbor-only path.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBLinked(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Malloc(64)
	pb, _ := a.Malloc(64)
	pc, _ := a.Malloc(64)
	pd, _ := a.Malloc(64)
	_ = pa
	_ = pd

	copy(pb, []byte("hello-world-payload-bytes!!"))
	snapshot := append([]byte(nil), pb...)
	pbAddr := &pb[0]

	if err := a.Free(pc); err != nil {
		t.Fatal(err)
	}

	grown, err := a.Realloc(pb, 2*a.Align(64))
	if err != nil {
		t.Fatal(err)
	}
	if &grown[0] != pbAddr {
		t.Fatal("Realloc grow-right should not move the block's address")
	}
	if string(grown[:len(snapshot)]) != string(snapshot) {
		t.Fatal("Realloc grow did not preserve b's contents")
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed after grow-realloc")
	}
}

func TestAllocatorReallocGrowCoalescesLeft(t *testing.T) {
	// a,b,c = malloc(64)x3; free(a); realloc(b, 2*align(64)). c stays
	// allocated, so b can only grow by absorbing its freed left neighbor a,
	// which moves the live bytes down to a's old address.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBLinked(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Malloc(64)
	pb, _ := a.Malloc(64)
	pc, _ := a.Malloc(64)
	_ = pc

	copy(pb, []byte("hello-world-payload-bytes!!"))
	snapshot := append([]byte(nil), pb...)
	paAddr := &pa[0]

	if err := a.Free(pa); err != nil {
		t.Fatal(err)
	}

	grown, err := a.Realloc(pb, 2*a.Align(64))
	if err != nil {
		t.Fatal(err)
	}
	if &grown[0] != paAddr {
		t.Fatal("Realloc grow-left should coalesce with the freed left neighbor and move to its address")
	}
	if string(grown[:len(snapshot)]) != string(snapshot) {
		t.Fatal("Realloc grow-left did not preserve b's contents")
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed after grow-left realloc")
	}
}

func TestAllocatorReallocGrowPrefersRightWhenSufficient(t *testing.T) {
	// a,b,c,d = malloc(64)x4; free(a); free(c); realloc(b, 2*align(64)).
	// Both of b's neighbors are free, but c alone already covers the
	// request, so growth stays right-only and b's address does not move.
	// This pins down the left-vs-right open question this module resolves
	// by preferring whichever neighbor avoids a memmove when either would
	// do (see DESIGN.md).
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBLinked(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Malloc(64)
	pb, _ := a.Malloc(64)
	pc, _ := a.Malloc(64)
	pd, _ := a.Malloc(64)
	_ = pd

	copy(pb, []byte("hello-world-payload-bytes!!"))
	snapshot := append([]byte(nil), pb...)
	pbAddr := &pb[0]

	if err := a.Free(pa); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(pc); err != nil {
		t.Fatal(err)
	}

	grown, err := a.Realloc(pb, 2*a.Align(64))
	if err != nil {
		t.Fatal(err)
	}
	if &grown[0] != pbAddr {
		t.Fatal("Realloc grow should prefer the sufficient right neighbor over moving into the left one")
	}
	if string(grown[:len(snapshot)]) != string(snapshot) {
		t.Fatal("Realloc grow did not preserve b's contents")
	}
	if !a.Validate(nil) {
		t.Fatal("Validate() failed after grow-realloc")
	}
}

func TestAllocatorReallocOutOfMemoryPreservesBlock(t *testing.T) {
	// A realloc that cannot be satisfied must leave p allocated and intact.
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewSplayStack(seg) })
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	pa, _ := a.Malloc(64)
	_, _ = a.Malloc(64)
	_, _ = a.Malloc(64)

	copy(pa, []byte("still-here"))
	snapshot := append([]byte(nil), pa...)

	_, err := a.Realloc(pa, a.Size()*2)
	if err == nil {
		t.Fatal("Realloc(huge) unexpectedly succeeded")
	}
	if string(pa[:len(snapshot)]) != string(snapshot) {
		t.Fatal("failed Realloc corrupted the original block's contents")
	}
}

func TestAllocatorReallocZeroIsFree(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBTopdown(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p, _ := a.Malloc(64)
	before := a.Capacity()
	got, err := a.Realloc(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("Realloc(p, 0) should return nil")
	}
	if a.Capacity() <= before {
		t.Fatal("Realloc(p, 0) did not free the block")
	}
}

func TestAllocatorRnd(t *testing.T) {
	N := *allocRndN
	limit := *allocRndSizeLimit

	for _, name := range Variants {
		name := name
		t.Run(name, func(t *testing.T) {
			newIndex, ok := NewIndexFactory(name)
			if !ok {
				t.Fatalf("unknown variant %q", name)
			}

			rng := rand.New(rand.NewSource(42))
			a := NewAllocator(newIndex)
			if err := a.Init(1 << 20); err != nil {
				t.Fatal(err)
			}

			live := map[int][]byte{}
			nextID := 0

			for i := 0; i < N; i++ {
				switch rng.Intn(3) {
				case 0: // allocate
					n := rng.Intn(limit) + 1
					p, err := a.Malloc(n)
					if err != nil {
						continue // out of memory is expected near the tail
					}
					id := nextID
					nextID++
					stampByte := byte(id)
					for j := range p {
						p[j] = stampByte
					}
					live[id] = p

				case 1: // free a random live block, chosen in a stable order so
					// the seeded rng alone determines which one (map iteration
					// order is not reproducible across runs)
					if ids := stableLiveIDs(live); len(ids) > 0 {
						id := int(ids[rng.Intn(len(ids))])
						p := live[id]
						if checkStamp(p, byte(id)) != nil {
							t.Fatalf("i=%d: corrupted payload for id %d before free", i, id)
						}
						if err := a.Free(p); err != nil {
							t.Fatalf("i=%d: Free: %v", i, err)
						}
						delete(live, id)
					}

				case 2: // realloc a random live block, same stable-order pick
					if ids := stableLiveIDs(live); len(ids) > 0 {
						id := int(ids[rng.Intn(len(ids))])
						p := live[id]
						if checkStamp(p, byte(id)) != nil {
							t.Fatalf("i=%d: corrupted payload for id %d before realloc", i, id)
						}
						n := rng.Intn(limit) + 1
						np, err := a.Realloc(p, n)
						if err == nil {
							for j := range np {
								np[j] = byte(id)
							}
							live[id] = np
						}
					}
				}

				if !a.Validate(nil) {
					t.Fatalf("i=%d: Validate() failed", i)
				}
			}

			for id, p := range live {
				if checkStamp(p, byte(id)) != nil {
					t.Fatalf("final check: corrupted payload for id %d", id)
				}
				if err := a.Free(p); err != nil {
					t.Fatalf("final free of id %d: %v", id, err)
				}
			}
			if !a.Validate(nil) {
				t.Fatal("Validate() failed after draining every live block")
			}
			if a.Capacity() != int64(a.Size())-2*WordSize {
				t.Fatalf("Capacity() = %d after full drain, want %d", a.Capacity(), int64(a.Size())-2*WordSize)
			}
		})
	}
}

// stableLiveIDs returns live's keys in sorted order, the same technique
// lldb's falloc_test.go uses (there over handles) to make a randomized test
// reproducible from its rng seed alone despite Go's unordered map iteration.
func stableLiveIDs(live map[int][]byte) sortutil.Int64Slice {
	ids := make(sortutil.Int64Slice, 0, len(live))
	for id := range live {
		ids = append(ids, int64(id))
	}
	sort.Sort(ids)
	return ids
}

func checkStamp(p []byte, want byte) error {
	for _, got := range p {
		if got != want {
			return errStampMismatch
		}
	}
	return nil
}

var errStampMismatch = &ErrPERM{Reason: "payload stamp mismatch"}

func TestAllocatorValidateCatchesAdjacentFree(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	if err := a.Init(2048); err != nil {
		t.Fatal(err)
	}
	p1, _ := a.Malloc(32)
	p2, _ := a.Malloc(32)

	b1 := blockFromPayload(a.seg, p1)
	b2 := blockFromPayload(a.seg, p2)

	// Corrupt the segment directly: mark both allocated blocks free
	// without going through Free/coalescing, which must violate the
	// no-two-adjacent-free-blocks invariant.
	b1.setAllocated(false)
	b1.writeFooter()
	b2.setAllocated(false)
	b2.writeFooter()

	var violations int
	a.Validate(func(error) bool { violations++; return true })
	if violations == 0 {
		t.Fatal("Validate() did not report the manually introduced corruption")
	}
}
