// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// RBLinked is RBUnified plus a per-size duplicate ring: a second free
// block of a size already present in the tree is never inserted as its own
// tree node. Instead it is pushed onto a doubly linked list hanging off the
// existing tree node, so repeated same-size frees stay O(1) instead of
// growing the tree.
//
// Tree node layout: slot 0/1 = child[0]/child[1], slot 2 = parent,
// slot 3 = ring head handle (0 if this size currently has no duplicate).
// Ring member layout: slot 0/1 = ring prev/next, slot 2 = owning tree
// node's handle. A ring member's own header carries flagDup so RemoveKnown
// can tell at a glance which layout applies without a tree search.
type RBLinked struct {
	seg      *Segment
	root     int64
	capacity int64
}

func NewRBLinked(seg *Segment) *RBLinked { return &RBLinked{seg: seg} }

func (*RBLinked) MinPayload() int { return minPayloadTree }

func (t *RBLinked) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *RBLinked) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *RBLinked) parent(h int64) int64   { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *RBLinked) setParent(h, v int64)   { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *RBLinked) ringHead(h int64) int64 { b, _ := blockFromHandle(t.seg, h); return b.slot(3) }
func (t *RBLinked) setRingHead(h, v int64) { b, _ := blockFromHandle(t.seg, h); b.setSlot(3, v) }
func (t *RBLinked) red(h int64) bool       { b, ok := blockFromHandle(t.seg, h); return ok && b.Color() }
func (t *RBLinked) setRed(h int64, r bool) { b, _ := blockFromHandle(t.seg, h); b.setColor(r) }
func (t *RBLinked) size(h int64) int       { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *RBLinked) pushDup(owner, dup int64) {
	b, _ := blockFromHandle(t.seg, dup)
	b.setDup(true)
	b.setSlot(2, owner)
	head := t.ringHead(owner)
	b.setSlot(0, 0)
	b.setSlot(1, head)
	if head != 0 {
		hb, _ := blockFromHandle(t.seg, head)
		hb.setSlot(0, dup)
	}
	t.setRingHead(owner, dup)
}

// popDup removes and returns the current ring head for owner. Caller has
// already checked ringHead(owner) != 0.
func (t *RBLinked) popDup(owner int64) block {
	head := t.ringHead(owner)
	b, _ := blockFromHandle(t.seg, head)
	next := b.slot(1)
	t.setRingHead(owner, next)
	if next != 0 {
		nb, _ := blockFromHandle(t.seg, next)
		nb.setSlot(0, 0)
	}
	b.setDup(false)
	return b
}

// unlinkDup removes dup (a non-head or head ring member identified by its
// own slots) from whatever ring it belongs to, fixing the owner's ring
// head if dup was it.
func (t *RBLinked) unlinkDup(dup block) {
	prev, next, owner := dup.slot(0), dup.slot(1), dup.slot(2)
	if prev == 0 {
		t.setRingHead(owner, next)
	} else {
		pb, _ := blockFromHandle(t.seg, prev)
		pb.setSlot(1, next)
	}
	if next != 0 {
		nb, _ := blockFromHandle(t.seg, next)
		nb.setSlot(0, prev)
	}
	dup.setDup(false)
}

func (t *RBLinked) rotate(x int64, dir int) {
	other := dirOf(dir)
	y := t.child(x, other)
	t.setChild(x, other, t.child(y, dir))
	if t.child(y, dir) != 0 {
		t.setParent(t.child(y, dir), x)
	}
	t.setParent(y, t.parent(x))
	switch {
	case t.parent(x) == 0:
		t.root = y
	case x == t.child(t.parent(x), dir):
		t.setChild(t.parent(x), dir, y)
	default:
		t.setChild(t.parent(x), other, y)
	}
	t.setChild(y, dir, x)
	t.setParent(x, y)
}

// Insert implements FreeIndex. A size already present in the tree absorbs
// b into that node's duplicate ring instead of growing the tree.
func (t *RBLinked) Insert(b block) {
	h := handleOf(b)
	t.capacity += int64(b.Size())

	var parent int64
	dir := 0
	cur := t.root
	for cur != 0 {
		if b.Size() == t.size(cur) {
			t.pushDup(cur, h)
			return
		}
		parent = cur
		if b.Size() < t.size(cur) {
			dir = 0
		} else {
			dir = 1
		}
		cur = t.child(cur, dir)
	}

	t.setChild(h, 0, 0)
	t.setChild(h, 1, 0)
	t.setRingHead(h, 0)
	b.setDup(false)
	t.setParent(h, parent)
	t.setRed(h, true)
	if parent == 0 {
		t.root = h
	} else {
		t.setChild(parent, dir, h)
	}
	t.insertFixup(h)
}

func (t *RBLinked) insertFixup(z int64) {
	for t.parent(z) != 0 && t.red(t.parent(z)) {
		p := t.parent(z)
		g := t.parent(p)
		dir := 0
		if p == t.child(g, 1) {
			dir = 1
		}
		other := dirOf(dir)
		u := t.child(g, other)
		if u != 0 && t.red(u) {
			t.setRed(p, false)
			t.setRed(u, false)
			t.setRed(g, true)
			z = g
			continue
		}
		if z == t.child(p, other) {
			z = p
			t.rotate(z, dir)
			p = t.parent(z)
			g = t.parent(p)
		}
		t.setRed(p, false)
		t.setRed(g, true)
		t.rotate(g, other)
	}
	t.setRed(t.root, false)
}

// RemoveBestFit implements FreeIndex: find the best-fit tree node as usual,
// then prefer peeling its duplicate ring over touching the tree shape.
func (t *RBLinked) RemoveBestFit(size int) (block, bool) {
	var best int64
	cur := t.root
	for cur != 0 {
		if t.size(cur) >= size {
			best = cur
			cur = t.child(cur, 0)
		} else {
			cur = t.child(cur, 1)
		}
	}
	if best == 0 {
		return nullBlock, false
	}
	if t.ringHead(best) != 0 {
		d := t.popDup(best)
		t.capacity -= int64(d.Size())
		return d, true
	}
	b, _ := blockFromHandle(t.seg, best)
	t.removeNode(best)
	t.capacity -= int64(b.Size())
	return b, true
}

// RemoveKnown implements FreeIndex.
func (t *RBLinked) RemoveKnown(b block) {
	t.capacity -= int64(b.Size())
	if b.IsDup() {
		t.unlinkDup(b)
		return
	}
	h := handleOf(b)
	if dup := t.ringHead(h); dup != 0 {
		// Promote the ring head into h's tree slot so the tree never has
		// to be touched for a size that still has free blocks left.
		t.promoteDup(h, dup)
		return
	}
	t.removeNode(h)
}

func (t *RBLinked) promoteDup(old, newHandle int64) {
	d := t.popDup(old)
	nh := handleOf(d)
	_ = newHandle
	t.setChild(nh, 0, t.child(old, 0))
	t.setChild(nh, 1, t.child(old, 1))
	t.setParent(nh, t.parent(old))
	t.setRed(nh, t.red(old))
	t.setRingHead(nh, t.ringHead(old))
	if t.child(old, 0) != 0 {
		t.setParent(t.child(old, 0), nh)
	}
	if t.child(old, 1) != 0 {
		t.setParent(t.child(old, 1), nh)
	}
	switch {
	case t.parent(old) == 0:
		t.root = nh
	case old == t.child(t.parent(old), 0):
		t.setChild(t.parent(old), 0, nh)
	default:
		t.setChild(t.parent(old), 1, nh)
	}
	// Every remaining ring member's owner back-reference must repoint at
	// the promoted node.
	for r := t.ringHead(nh); r != 0; {
		rb, _ := blockFromHandle(t.seg, r)
		rb.setSlot(2, nh)
		r = rb.slot(1)
	}
}

func (t *RBLinked) transplant(u, v int64) {
	switch {
	case t.parent(u) == 0:
		t.root = v
	case u == t.child(t.parent(u), 0):
		t.setChild(t.parent(u), 0, v)
	default:
		t.setChild(t.parent(u), 1, v)
	}
	if v != 0 {
		t.setParent(v, t.parent(u))
	}
}

func (t *RBLinked) minimum(h int64) int64 {
	for t.child(h, 0) != 0 {
		h = t.child(h, 0)
	}
	return h
}

func (t *RBLinked) removeNode(z int64) {
	y := z
	yOriginalRed := t.red(y)
	var x, xp int64

	switch {
	case t.child(z, 0) == 0:
		x = t.child(z, 1)
		xp = t.parent(z)
		t.transplant(z, t.child(z, 1))
	case t.child(z, 1) == 0:
		x = t.child(z, 0)
		xp = t.parent(z)
		t.transplant(z, t.child(z, 0))
	default:
		y = t.minimum(t.child(z, 1))
		yOriginalRed = t.red(y)
		x = t.child(y, 1)
		if t.parent(y) == z {
			xp = y
		} else {
			xp = t.parent(y)
			t.transplant(y, t.child(y, 1))
			t.setChild(y, 1, t.child(z, 1))
			t.setParent(t.child(y, 1), y)
		}
		t.transplant(z, y)
		t.setChild(y, 0, t.child(z, 0))
		t.setParent(t.child(y, 0), y)
		t.setRed(y, t.red(z))
	}

	if !yOriginalRed {
		t.deleteFixup(x, xp)
	}
}

func (t *RBLinked) deleteFixup(x, xp int64) {
	for x != t.root && !t.red(x) {
		dir := 0
		if x == t.child(xp, 1) {
			dir = 1
		}
		other := dirOf(dir)
		w := t.child(xp, other)
		if t.red(w) {
			t.setRed(w, false)
			t.setRed(xp, true)
			t.rotate(xp, dir)
			w = t.child(xp, other)
		}
		if !t.red(t.child(w, dir)) && !t.red(t.child(w, other)) {
			t.setRed(w, true)
			x = xp
			xp = t.parent(x)
			continue
		}
		if !t.red(t.child(w, other)) {
			t.setRed(t.child(w, dir), false)
			t.setRed(w, true)
			t.rotate(w, other)
			w = t.child(xp, other)
		}
		t.setRed(w, t.red(xp))
		t.setRed(xp, false)
		t.setRed(t.child(w, other), false)
		t.rotate(xp, dir)
		x = t.root
	}
	if x != 0 {
		t.setRed(x, false)
	}
}

func (t *RBLinked) Capacity() int64 { return t.capacity }

// Each implements FreeIndex, visiting both tree nodes and their ring
// members.
func (t *RBLinked) Each(fn func(block)) {
	var walk func(h int64)
	walk = func(h int64) {
		if h == 0 {
			return
		}
		walk(t.child(h, 0))
		b, _ := blockFromHandle(t.seg, h)
		fn(b)
		for r := t.ringHead(h); r != 0; {
			rb, _ := blockFromHandle(t.seg, r)
			fn(rb)
			r = rb.slot(1)
		}
		walk(t.child(h, 1))
	}
	walk(t.root)
}

// Validate implements FreeIndex: red-black invariants over the tree nodes,
// plus every ring member's size matching its owner and its back-reference
// pointing at that owner.
func (t *RBLinked) Validate(log func(error) bool) bool {
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

	blackHeight := -1
	var check func(h int64, lo, hi int, depth int) int
	check = func(h int64, lo, hi int, depth int) int {
		if h == 0 {
			if blackHeight == -1 {
				blackHeight = depth
			} else if depth != blackHeight {
				ok = false
				log(&ErrILSEQ{Type: ErrBadBlackHeight, Arg: int64(depth), Arg2: int64(blackHeight)})
			}
			return depth
		}
		sz := t.size(h)
		if (lo != -1 && sz < lo) || (hi != -1 && sz > hi) {
			ok = false
			log(&ErrILSEQ{Type: ErrBadTreeOrder, Off: int(h - 1), Arg: int64(sz)})
		}
		if t.red(h) && (t.red(t.child(h, 0)) || t.red(t.child(h, 1))) {
			ok = false
			log(&ErrILSEQ{Type: ErrBadTreeColor, Off: int(h - 1)})
		}
		for r := t.ringHead(h); r != 0; {
			rb, _ := blockFromHandle(t.seg, r)
			if rb.Size() != sz {
				ok = false
				log(&ErrILSEQ{Type: ErrBadDuplicateRing, Off: rb.off, Arg: int64(rb.Size()), Arg2: int64(sz)})
			}
			if rb.slot(2) != h {
				ok = false
				log(&ErrILSEQ{Type: ErrBadDuplicateRing, Off: rb.off})
			}
			r = rb.slot(1)
		}
		d := depth
		if !t.red(h) {
			d++
		}
		check(t.child(h, 0), lo, sz, d)
		return check(t.child(h, 1), sz, hi, d)
	}
	check(t.root, -1, -1, 0)
	return ok
}
