// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// RBUnified is structurally identical to RBCanonical but collapses every
// left/right symmetric pair into a single function parameterized by a
// direction index (0 == left, 1 == right), the way a two-element child
// array lets a red-black implementation halve its rotation and fixup code
// relative to the named-field version.
//
// Node layout: slot 0/1 = child[0]/child[1], slot 2 = parent. No duplicate
// ring; same-size blocks are distinct tree nodes, as in RBCanonical.
type RBUnified struct {
	seg      *Segment
	root     int64
	capacity int64
}

func NewRBUnified(seg *Segment) *RBUnified { return &RBUnified{seg: seg} }

func (*RBUnified) MinPayload() int { return minPayloadTree }

func (t *RBUnified) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *RBUnified) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *RBUnified) parent(h int64) int64 { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *RBUnified) setParent(h, v int64) { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *RBUnified) red(h int64) bool     { b, ok := blockFromHandle(t.seg, h); return ok && b.Color() }
func (t *RBUnified) setRed(h int64, r bool) {
	b, _ := blockFromHandle(t.seg, h)
	b.setColor(r)
}
func (t *RBUnified) size(h int64) int { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func dirOf(dir int) int { return 1 - dir }

func (t *RBUnified) rotate(x int64, dir int) {
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

func (t *RBUnified) Insert(b block) {
	h := handleOf(b)
	t.setChild(h, 0, 0)
	t.setChild(h, 1, 0)
	t.setParent(h, 0)
	t.setRed(h, true)
	t.capacity += int64(b.Size())

	var parent int64
	dir := 0
	cur := t.root
	for cur != 0 {
		parent = cur
		if b.Size() < t.size(cur) {
			dir = 0
		} else {
			dir = 1
		}
		cur = t.child(cur, dir)
	}
	t.setParent(h, parent)
	if parent == 0 {
		t.root = h
	} else {
		t.setChild(parent, dir, h)
	}
	t.insertFixup(h)
}

func (t *RBUnified) insertFixup(z int64) {
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

func (t *RBUnified) RemoveBestFit(size int) (block, bool) {
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
	b, _ := blockFromHandle(t.seg, best)
	t.removeNode(best)
	t.capacity -= int64(b.Size())
	return b, true
}

func (t *RBUnified) RemoveKnown(b block) {
	t.removeNode(handleOf(b))
	t.capacity -= int64(b.Size())
}

func (t *RBUnified) transplant(u, v int64) {
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

func (t *RBUnified) minimum(h int64) int64 {
	for t.child(h, 0) != 0 {
		h = t.child(h, 0)
	}
	return h
}

func (t *RBUnified) removeNode(z int64) {
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

func (t *RBUnified) deleteFixup(x, xp int64) {
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

func (t *RBUnified) Capacity() int64 { return t.capacity }

func (t *RBUnified) Each(fn func(block)) {
	var walk func(h int64)
	walk = func(h int64) {
		if h == 0 {
			return
		}
		walk(t.child(h, 0))
		b, _ := blockFromHandle(t.seg, h)
		fn(b)
		walk(t.child(h, 1))
	}
	walk(t.root)
}

func (t *RBUnified) Validate(log func(error) bool) bool {
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
