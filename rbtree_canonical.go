// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// RBCanonical is the classic CLRS bottom-up red-black tree with a parent
// pointer on every node. Every block, including same-sized ones, is its
// own tree node — there is no duplicate ring in this variant.
//
// Node layout (payload slots): 0 = left, 1 = right, 2 = parent. Color lives
// in the block's header color bit.
type RBCanonical struct {
	seg      *Segment
	root     int64 // 0 == empty tree
	capacity int64
}

// NewRBCanonical returns an empty canonical red-black free index over seg.
func NewRBCanonical(seg *Segment) *RBCanonical { return &RBCanonical{seg: seg} }

func (*RBCanonical) MinPayload() int { return minPayloadTree }

func (t *RBCanonical) left(h int64) int64    { b, _ := blockFromHandle(t.seg, h); return b.slot(0) }
func (t *RBCanonical) right(h int64) int64   { b, _ := blockFromHandle(t.seg, h); return b.slot(1) }
func (t *RBCanonical) parent(h int64) int64  { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *RBCanonical) setLeft(h, v int64)    { b, _ := blockFromHandle(t.seg, h); b.setSlot(0, v) }
func (t *RBCanonical) setRight(h, v int64)   { b, _ := blockFromHandle(t.seg, h); b.setSlot(1, v) }
func (t *RBCanonical) setParent(h, v int64)  { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *RBCanonical) red(h int64) bool      { b, ok := blockFromHandle(t.seg, h); return ok && b.Color() }
func (t *RBCanonical) setRed(h int64, r bool) { b, _ := blockFromHandle(t.seg, h); b.setColor(r) }
func (t *RBCanonical) size(h int64) int      { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *RBCanonical) initNode(h int64) {
	t.setLeft(h, 0)
	t.setRight(h, 0)
	t.setParent(h, 0)
	t.setRed(h, true)
}

func (t *RBCanonical) rotateLeft(x int64) {
	y := t.right(x)
	t.setRight(x, t.left(y))
	if t.left(y) != 0 {
		t.setParent(t.left(y), x)
	}
	t.setParent(y, t.parent(x))
	switch {
	case t.parent(x) == 0:
		t.root = y
	case x == t.left(t.parent(x)):
		t.setLeft(t.parent(x), y)
	default:
		t.setRight(t.parent(x), y)
	}
	t.setLeft(y, x)
	t.setParent(x, y)
}

func (t *RBCanonical) rotateRight(x int64) {
	y := t.left(x)
	t.setLeft(x, t.right(y))
	if t.right(y) != 0 {
		t.setParent(t.right(y), x)
	}
	t.setParent(y, t.parent(x))
	switch {
	case t.parent(x) == 0:
		t.root = y
	case x == t.right(t.parent(x)):
		t.setRight(t.parent(x), y)
	default:
		t.setLeft(t.parent(x), y)
	}
	t.setRight(y, x)
	t.setParent(x, y)
}

// Insert implements FreeIndex.
func (t *RBCanonical) Insert(b block) {
	h := handleOf(b)
	t.initNode(h)
	t.capacity += int64(b.Size())

	var parent int64
	cur := t.root
	for cur != 0 {
		parent = cur
		if b.Size() < t.size(cur) {
			cur = t.left(cur)
		} else {
			cur = t.right(cur) // equal sizes go right: distinct duplicate nodes
		}
	}

	t.setParent(h, parent)
	switch {
	case parent == 0:
		t.root = h
	case b.Size() < t.size(parent):
		t.setLeft(parent, h)
	default:
		t.setRight(parent, h)
	}

	t.insertFixup(h)
}

// insertFixup is CLRS's four-case bottom-up fixup, written with the
// explicit left/right symmetric pairs (this is the "canonical",
// unabbreviated version; rbtree_unified.go collapses this through a
// two-element child array and a direction index).
func (t *RBCanonical) insertFixup(z int64) {
	for t.parent(z) != 0 && t.red(t.parent(z)) {
		p := t.parent(z)
		g := t.parent(p)
		if p == t.left(g) {
			u := t.right(g)
			if u != 0 && t.red(u) {
				t.setRed(p, false)
				t.setRed(u, false)
				t.setRed(g, true)
				z = g
				continue
			}
			if z == t.right(p) {
				z = p
				t.rotateLeft(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setRed(p, false)
			t.setRed(g, true)
			t.rotateRight(g)
		} else {
			u := t.left(g)
			if u != 0 && t.red(u) {
				t.setRed(p, false)
				t.setRed(u, false)
				t.setRed(g, true)
				z = g
				continue
			}
			if z == t.left(p) {
				z = p
				t.rotateRight(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setRed(p, false)
			t.setRed(g, true)
			t.rotateLeft(g)
		}
	}
	t.setRed(t.root, false)
}

// RemoveBestFit implements FreeIndex: descend, recording any node whose
// size is >= target and continuing left; otherwise go right; return the
// last recorded node.
func (t *RBCanonical) RemoveBestFit(size int) (block, bool) {
	var best int64
	cur := t.root
	for cur != 0 {
		if t.size(cur) >= size {
			best = cur
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	if best == 0 {
		return nullBlock, false
	}
	b, _ := blockFromHandle(t.seg, best)
	t.removeNode(best)
	t.capacity -= int64(b.Size())
	return b, true
}

// RemoveKnown implements FreeIndex.
func (t *RBCanonical) RemoveKnown(b block) {
	h := handleOf(b)
	t.removeNode(h)
	t.capacity -= int64(b.Size())
}

func (t *RBCanonical) transplant(u, v int64) {
	switch {
	case t.parent(u) == 0:
		t.root = v
	case u == t.left(t.parent(u)):
		t.setLeft(t.parent(u), v)
	default:
		t.setRight(t.parent(u), v)
	}
	if v != 0 {
		t.setParent(v, t.parent(u))
	}
}

func (t *RBCanonical) minimum(h int64) int64 {
	for t.left(h) != 0 {
		h = t.left(h)
	}
	return h
}

// removeNode is CLRS's bottom-up delete with the standard "extra black"
// fixup, using a sentinel-free nil (handle 0) throughout: fixup reads
// below treat a 0 child as an implicit black leaf and use x's remembered
// parent (xp) since a nil handle carries no parent link of its own.
func (t *RBCanonical) removeNode(z int64) {
	y := z
	yOriginalRed := t.red(y)
	var x, xp int64

	switch {
	case t.left(z) == 0:
		x = t.right(z)
		xp = t.parent(z)
		t.transplant(z, t.right(z))
	case t.right(z) == 0:
		x = t.left(z)
		xp = t.parent(z)
		t.transplant(z, t.left(z))
	default:
		y = t.minimum(t.right(z))
		yOriginalRed = t.red(y)
		x = t.right(y)
		if t.parent(y) == z {
			xp = y
		} else {
			xp = t.parent(y)
			t.transplant(y, t.right(y))
			t.setRight(y, t.right(z))
			t.setParent(t.right(y), y)
		}
		t.transplant(z, y)
		t.setLeft(y, t.left(z))
		t.setParent(t.left(y), y)
		t.setRed(y, t.red(z))
	}

	if !yOriginalRed {
		t.deleteFixup(x, xp)
	}
}

func (t *RBCanonical) deleteFixup(x, xp int64) {
	for x != t.root && !t.red(x) {
		if x == t.left(xp) {
			w := t.right(xp)
			if t.red(w) {
				t.setRed(w, false)
				t.setRed(xp, true)
				t.rotateLeft(xp)
				w = t.right(xp)
			}
			if !t.red(t.left(w)) && !t.red(t.right(w)) {
				t.setRed(w, true)
				x = xp
				xp = t.parent(x)
				continue
			}
			if !t.red(t.right(w)) {
				t.setRed(t.left(w), false)
				t.setRed(w, true)
				t.rotateRight(w)
				w = t.right(xp)
			}
			t.setRed(w, t.red(xp))
			t.setRed(xp, false)
			t.setRed(t.right(w), false)
			t.rotateLeft(xp)
			x = t.root
		} else {
			w := t.left(xp)
			if t.red(w) {
				t.setRed(w, false)
				t.setRed(xp, true)
				t.rotateRight(xp)
				w = t.left(xp)
			}
			if !t.red(t.right(w)) && !t.red(t.left(w)) {
				t.setRed(w, true)
				x = xp
				xp = t.parent(x)
				continue
			}
			if !t.red(t.left(w)) {
				t.setRed(t.right(w), false)
				t.setRed(w, true)
				t.rotateLeft(w)
				w = t.left(xp)
			}
			t.setRed(w, t.red(xp))
			t.setRed(xp, false)
			t.setRed(t.left(w), false)
			t.rotateRight(xp)
			x = t.root
		}
	}
	if x != 0 {
		t.setRed(x, false)
	}
}

// Capacity implements FreeIndex.
func (t *RBCanonical) Capacity() int64 { return t.capacity }

// Each implements FreeIndex.
func (t *RBCanonical) Each(fn func(block)) {
	var walk func(h int64)
	walk = func(h int64) {
		if h == 0 {
			return
		}
		walk(t.left(h))
		b, _ := blockFromHandle(t.seg, h)
		fn(b)
		walk(t.right(h))
	}
	walk(t.root)
}

// Validate implements FreeIndex, checking red-black invariants (no red
// node has a red child, every root-to-leaf path has equal black height)
// and BST key order.
func (t *RBCanonical) Validate(log func(error) bool) bool {
	if log == nil {
		log = nolog
	}
	ok := true
	if t.root != 0 && t.red(t.root) {
		ok = false
		if !log(&ErrILSEQ{Type: ErrBadTreeColor, Off: int(t.root - 1)}) {
			return false
		}
	}

	var check func(h int64, lo, hi int, blackDepth int) int
	var blackHeight = -1
	check = func(h int64, lo, hi int, blackDepth int) int {
		if h == 0 {
			if blackHeight == -1 {
				blackHeight = blackDepth
			} else if blackDepth != blackHeight {
				ok = false
				log(&ErrILSEQ{Type: ErrBadBlackHeight, Arg: int64(blackDepth), Arg2: int64(blackHeight)})
			}
			return blackDepth
		}

		sz := t.size(h)
		if (lo != -1 && sz < lo) || (hi != -1 && sz > hi) {
			ok = false
			log(&ErrILSEQ{Type: ErrBadTreeOrder, Off: int(h - 1), Arg: int64(sz)})
		}

		if t.red(h) {
			if t.red(t.left(h)) || t.red(t.right(h)) {
				ok = false
				log(&ErrILSEQ{Type: ErrBadTreeColor, Off: int(h - 1)})
			}
		}

		d := blackDepth
		if !t.red(h) {
			d++
		}
		check(t.left(h), lo, sz, d)
		return check(t.right(h), sz, hi, d)
	}
	check(t.root, -1, -1, 0)
	return ok
}
