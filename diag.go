// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import "unsafe"

// AllocStats is a running snapshot of an Allocator's lifetime activity,
// the numbers a stats driver reports per script or per run.
type AllocStats struct {
	Mallocs  int64
	Frees    int64
	Reallocs int64

	// BytesRequested is the sum of the n arguments ever passed to Malloc;
	// BytesGranted is the sum of the payload sizes actually handed back,
	// always >= BytesRequested once alignment and free-index minimums are
	// applied. Their ratio is the allocator's internal fragmentation.
	BytesRequested int64
	BytesGranted   int64
}

// Utilization returns BytesRequested/BytesGranted, or 1 if nothing has
// been granted yet.
func (s AllocStats) Utilization() float64 {
	if s.BytesGranted == 0 {
		return 1
	}
	return float64(s.BytesRequested) / float64(s.BytesGranted)
}

// BlockDescriptor is a read-only snapshot of one block in segment order,
// the unit a plot driver renders as a span and a stats driver tallies.
type BlockDescriptor struct {
	Offset        int
	Size          int
	Allocated     bool
	LeftAllocated bool
}

// Blocks walks the whole segment front to back and returns a descriptor
// per block. It does not consult the free index at all, so it reflects
// exactly what Validate's own segment walk sees.
func (a *Allocator) Blocks() []BlockDescriptor {
	var out []BlockDescriptor
	off := 0
	for off < a.seg.Size() {
		b := block{seg: a.seg, off: off}
		out = append(out, BlockDescriptor{
			Offset:        off,
			Size:          b.Size(),
			Allocated:     b.Allocated(),
			LeftAllocated: b.LeftAllocated(),
		})
		off += b.totalSize()
	}
	return out
}

// AnySize, used as ExpectedBlock.PayloadBytes, accepts a block of any
// payload size at that slot.
const AnySize = -1

// ExpectedBlock is one slot of a caller-built description of what a
// segment's block order ought to look like. Address == nil means "any free
// block belongs here" — the universal stand-in for a freed or
// not-yet-known address in a test table, since a fresh Malloc's address
// can't be predicted ahead of the call that produces it. PayloadBytes ==
// AnySize means any payload size is acceptable at that slot.
type ExpectedBlock struct {
	Address      []byte
	PayloadBytes int
}

// BlockErrorKind classifies how an ActualBlock compared against its
// ExpectedBlock.
type BlockErrorKind int

const (
	BlockOK BlockErrorKind = iota
	BlockMismatch
	BlockOutOfBounds
	BlockContinuesPastEnd
)

func (k BlockErrorKind) String() string {
	switch k {
	case BlockOK:
		return "OK"
	case BlockMismatch:
		return "mismatch"
	case BlockOutOfBounds:
		return "out-of-bounds"
	case BlockContinuesPastEnd:
		return "continues-past-end"
	default:
		return "unknown"
	}
}

// sameBacking reports whether two payload slices alias the same first
// byte, the only meaningful notion of address equality for slices into a
// shared segment buffer.
func sameBacking(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	return unsafe.Pointer(&a[0]) == unsafe.Pointer(&b[0])
}

// ActualBlock is what Diff fills in for one expected slot: the real block
// state found there, if any, and the verdict against that slot's
// ExpectedBlock.
type ActualBlock struct {
	Address      []byte
	PayloadBytes int
	Allocated    bool
	Error        BlockErrorKind
}

// Diff walks the segment in address order and checks it against expected,
// slot by slot, the way a correctness driver pinpoints exactly where a
// replayed script produced a heap that doesn't match the layout it was
// checked against. It returns one ActualBlock per entry in expected: a
// slot beyond the last physical block in the segment gets BlockOutOfBounds,
// and if the segment has more blocks than expected described, the last
// checked slot gets BlockContinuesPastEnd instead of BlockOK.
func (a *Allocator) Diff(expected []ExpectedBlock) []ActualBlock {
	blocks := a.Blocks()
	actual := make([]ActualBlock, len(expected))
	for i, want := range expected {
		if i >= len(blocks) {
			actual[i] = ActualBlock{Error: BlockOutOfBounds}
			continue
		}
		b := blocks[i]
		act := ActualBlock{PayloadBytes: b.Size, Allocated: b.Allocated}
		if b.Allocated {
			act.Address = a.seg.data[b.Offset+WordSize : b.Offset+WordSize+b.Size]
		}

		act.Error = BlockOK
		switch {
		case want.Address != nil:
			if !b.Allocated || !sameBacking(act.Address, want.Address) {
				act.Error = BlockMismatch
			}
		default:
			if b.Allocated {
				act.Error = BlockMismatch
			}
		}
		if want.PayloadBytes != AnySize && want.PayloadBytes != b.Size {
			act.Error = BlockMismatch
		}
		actual[i] = act
	}
	if len(expected) > 0 && len(blocks) > len(expected) {
		last := &actual[len(actual)-1]
		if last.Error == BlockOK {
			last.Error = BlockContinuesPastEnd
		}
	}
	return actual
}
