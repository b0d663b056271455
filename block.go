// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import (
	"encoding/binary"
	"unsafe"
)

// flag bits within a header/footer word.
const (
	flagAlloc     = 1 << 0 // this-allocated
	flagLeftAlloc = 1 << 1 // left-neighbor-allocated
	flagColor     = 1 << 2 // red (1) / black (0), tree variants only
	flagDup       = 1 << 3 // duplicate-ring member rather than a tree node, duplicate-ring variants only
	sizeMask      = ^uint64(Alignment - 1)
)

// minPayload is the smallest payload a block of a given free-index family
// can carry: large enough to overlay that family's free-index node. List
// buckets only need prev/next (two words);
// tree and splay variants need child pointers, an optional parent, and a
// duplicate-ring head (four words) to stay generic across all five
// red-black flavors and both splay flavors.
const (
	minPayloadList = 2 * WordSize
	minPayloadTree = 4 * WordSize
)

// block is the single narrow view through which every other file touches
// segment bytes: a segment plus the byte offset of that block's header
// word. It has no state of its own and is cheap to pass by value.
type block struct {
	seg *Segment
	off int
}

// nullBlock is the zero value of block and represents "no such block" (an
// absent left/right neighbor, an empty list, a failed lookup). Because
// off == 0 is also the first valid header offset, code that may return
// nullBlock always pairs it with an explicit `ok bool`.
var nullBlock = block{}

func (b block) valid() bool { return b.seg != nil }

func (b block) word(off int) uint64 {
	return binary.LittleEndian.Uint64(b.seg.data[off : off+WordSize])
}

func (b block) setWord(off int, w uint64) {
	binary.LittleEndian.PutUint64(b.seg.data[off:off+WordSize], w)
}

func (b block) header() uint64 { return b.word(b.off) }

func (b block) setHeader(w uint64) { b.setWord(b.off, w) }

// Size returns the payload size in bytes.
func (b block) Size() int { return int(b.header() & sizeMask) }

func (b block) setFlags(sz int, flags uint64) {
	b.setHeader(uint64(sz) | flags)
}

// Allocated reports the this-allocated flag.
func (b block) Allocated() bool { return b.header()&flagAlloc != 0 }

func (b block) setAllocated(v bool) {
	w := b.header()
	if v {
		w |= flagAlloc
	} else {
		w &^= flagAlloc
	}
	b.setHeader(w)
}

// LeftAllocated reports whether this block's left neighbor is allocated.
func (b block) LeftAllocated() bool { return b.header()&flagLeftAlloc != 0 }

func (b block) setLeftAllocated(v bool) {
	w := b.header()
	if v {
		w |= flagLeftAlloc
	} else {
		w &^= flagLeftAlloc
	}
	b.setHeader(w)
}

// Color reports the red-black color bit (true == red). Meaningless outside
// the red-black tree free-index variants.
func (b block) Color() bool { return b.header()&flagColor != 0 }

func (b block) setColor(red bool) {
	w := b.header()
	if red {
		w |= flagColor
	} else {
		w &^= flagColor
	}
	b.setHeader(w)
}

// IsDup reports whether this free block is hanging off a duplicate-size
// ring rather than sitting in the tree itself. Meaningful only in the
// red-black/splay variants that maintain duplicate rings.
func (b block) IsDup() bool { return b.header()&flagDup != 0 }

func (b block) setDup(v bool) {
	w := b.header()
	if v {
		w |= flagDup
	} else {
		w &^= flagDup
	}
	b.setHeader(w)
}

// payloadOff is the byte offset of the first payload byte.
func (b block) payloadOff() int { return b.off + WordSize }

// totalSize is header + payload + footer slot. The footer slot is reserved
// for every block, allocated or free, so that a block's physical extent
// never changes shape when its allocated bit flips: only a free block's
// footer word is ever written or read, but an allocated block still owns
// those bytes and a neighbor may not be placed over them.
func (b block) totalSize() int { return 2*WordSize + b.Size() }

// footerOff is the footer slot's offset. Only meaningful to read while the
// block is free; while allocated the word there is unused.
func (b block) footerOff() int { return b.off + WordSize + b.Size() }

// writeFooter mirrors the header word into the footer. The footer exists
// only on free blocks. Its size and allocated bits always equal the
// header's; the tree free indexes may later change the color and duplicate
// bits in the header without rewriting the footer.
func (b block) writeFooter() { b.setWord(b.footerOff(), b.header()) }

// Payload returns the block's payload as a slice of the segment's backing
// array. The slice is only meaningful while the block remains allocated.
func (b block) Payload() []byte {
	return b.seg.data[b.payloadOff() : b.payloadOff()+b.Size()]
}

// blockFromPayload recovers the owning block from a []byte previously
// returned by Allocator.Malloc/Realloc. This is the one place heapfit
// reaches for unsafe.Pointer: p and seg.data share the same backing array,
// so their addresses differ by a constant, computable offset (the same
// technique cznic/memory's Free uses to recover its page header from a
// payload slice).
func blockFromPayload(seg *Segment, p []byte) block {
	base := uintptr(unsafe.Pointer(&seg.data[0]))
	ptr := uintptr(unsafe.Pointer(&p[0]))
	payloadOff := int(ptr - base)
	return block{seg: seg, off: payloadOff - WordSize}
}

// slot reads/writes one of the (up to 4) free-index linkage words
// overlaying a free block's payload. Index i counts from the start of the
// payload; each free-index variant picks its own meaning for each slot
// (see freelist.go, rbtree_*.go, splay_*.go).
//
// Slot values are block handles: off+1, with 0 meaning "no block" (nil).
// Offset 0 is itself a valid header offset, so a raw offset cannot double
// as its own nil marker — the +1 bias is the same trick lldb's on-disk
// handles use (handle == atom offset + 1) for the same reason.
func (b block) slot(i int) int64 {
	return int64(b.word(b.payloadOff() + i*WordSize))
}

func (b block) setSlot(i int, h int64) {
	b.setWord(b.payloadOff()+i*WordSize, uint64(h))
}

func handleOf(b block) int64 {
	if !b.valid() {
		return 0
	}
	return int64(b.off) + 1
}

func blockFromHandle(seg *Segment, h int64) (block, bool) {
	if h == 0 {
		return nullBlock, false
	}
	return block{seg: seg, off: int(h - 1)}, true
}

// roundUp returns the smallest multiple of Alignment that is not less than
// max(n, min).
func roundUp(n, min int) int {
	if n < min {
		n = min
	}
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// rightOf returns the block immediately following b, or (nullBlock, false)
// if b is the last block in the segment.
func rightOf(b block) (block, bool) {
	off := b.off + b.totalSize()
	if off >= b.seg.Size() {
		return nullBlock, false
	}
	return block{seg: b.seg, off: off}, true
}

// leftOf returns the block immediately preceding b, or (nullBlock, false)
// if b is the first block or its left neighbor is allocated (in which case
// no footer precedes b to read).
func leftOf(b block) (block, bool) {
	if b.LeftAllocated() || b.off == 0 {
		return nullBlock, false
	}

	// The word immediately before b's header is the left block's footer,
	// which mirrors that block's header: its size bits give its size.
	footer := b.word(b.off - WordSize)
	leftSize := int(footer & sizeMask)
	leftOff := b.off - WordSize - leftSize - WordSize
	return block{seg: b.seg, off: leftOff}, true
}

// split carves a free block want bytes of payload out of the head of f,
// returning the allocated head and, if the remainder is large enough to
// stand on its own as a block of the given free-index family, a free tail
// to be reinserted. ok is false when the remainder is too small and must
// instead be folded into the allocation (the caller rounds want up first
// so this only happens when the index handed back more than requested by
// less than a full extra block).
func split(f block, want, minPayload int) (head block, tail block, ok bool) {
	remainder := f.Size() - want - 2*WordSize
	if remainder < minPayload {
		return f, nullBlock, false
	}

	head = block{seg: f.seg, off: f.off}
	head.setFlags(want, f.header()&^sizeMask)

	tail = block{seg: f.seg, off: head.off + head.totalSize()}
	tail.setFlags(remainder, 0)
	tail.setLeftAllocated(true) // head (tail's left neighbor) becomes allocated
	return head, tail, true
}
