// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// RBTopdown drops both the parent field and the stack RBStack needs: every
// fixup happens during a single downward pass instead of being deferred to
// a second, bottom-up one. Insertion is the textbook single-pass top-down
// red-black insert (Sedgewick/Niemann): any black node with two red
// children is split (color flip) on the way past it, and a resulting
// red-red violation one level up is cleared immediately with one or two
// rotations, so by the time the walk reaches bottom the tree is already
// back in shape and a freshly inserted leaf can simply be colored red.
//
// Deletion's ideal top-down analogue (push a red node down the search path
// so the node actually spliced out is never black) is considerably more
// delicate to get right without any parent or stack bookkeeping at all.
// This implementation keeps the shape of that idea — a black node with two
// red children is still split on the way down — but falls back to
// recording the descent as it goes and grafting the in-order successor
// into place the way RBStack does, rather than chasing Walker's full
// single-pass scheme. Best-fit removal runs two passes: a plain search to
// learn which size fits, then a second, key-based descent that knows
// exactly where it is going and can do its flips purely top-down.
//
// Tree node layout: slot 0/1 = child[0]/child[1], slot 2 = duplicate ring
// head. Duplicate members reuse slot 0/1/2 as prev/next/owner and carry
// flagDup, as in RBLinked and RBStack.
type RBTopdown struct {
	seg      *Segment
	root     int64
	capacity int64
}

func NewRBTopdown(seg *Segment) *RBTopdown { return &RBTopdown{seg: seg} }

func (*RBTopdown) MinPayload() int { return minPayloadTree }

func (t *RBTopdown) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *RBTopdown) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *RBTopdown) ringHead(h int64) int64 { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *RBTopdown) setRingHead(h, v int64) { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *RBTopdown) red(h int64) bool       { return h != 0 && func() bool { b, _ := blockFromHandle(t.seg, h); return b.Color() }() }
func (t *RBTopdown) setRed(h int64, r bool) { b, _ := blockFromHandle(t.seg, h); b.setColor(r) }
func (t *RBTopdown) size(h int64) int       { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *RBTopdown) pushDup(owner, dup int64) {
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

func (t *RBTopdown) popDup(owner int64) block {
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

func (t *RBTopdown) unlinkDup(dup block) {
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

func (t *RBTopdown) rotate(x int64, dir int) int64 {
	other := dirOf(dir)
	y := t.child(x, other)
	t.setChild(x, other, t.child(y, dir))
	t.setChild(y, dir, x)
	return y
}

func (t *RBTopdown) rotate2(x int64, dir int) int64 {
	other := dirOf(dir)
	t.setChild(x, other, t.rotate(t.child(x, other), other))
	return t.rotate(x, dir)
}

// Insert implements FreeIndex via a single top-down pass.
func (t *RBTopdown) Insert(b block) {
	h := handleOf(b)
	sz := b.Size()
	t.capacity += int64(sz)

	if t.root == 0 {
		t.setChild(h, 0, 0)
		t.setChild(h, 1, 0)
		t.setRingHead(h, 0)
		b.setDup(false)
		t.setRed(h, false)
		t.root = h
		return
	}

	var g, p, gg int64 // grandparent, parent, great-grandparent; 0 == virtual head
	dir, last := 0, 0
	q := t.root

	for {
		if q == 0 {
			t.setChild(h, 0, 0)
			t.setChild(h, 1, 0)
			t.setRingHead(h, 0)
			b.setDup(false)
			t.setRed(h, true)
			if p == 0 {
				t.root = h
			} else {
				t.setChild(p, dir, h)
			}
			q = h
		} else if t.red(t.child(q, 0)) && t.red(t.child(q, 1)) {
			t.setRed(q, true)
			t.setRed(t.child(q, 0), false)
			t.setRed(t.child(q, 1), false)
		}

		if t.red(q) && p != 0 && t.red(p) {
			gdir := 0
			if gg != 0 && t.child(gg, 1) == g {
				gdir = 1
			}
			var newSub int64
			if q == t.child(p, last) {
				newSub = t.rotate(g, dirOf(last))
			} else {
				newSub = t.rotate2(g, dirOf(last))
			}
			t.setRed(g, true)
			t.setRed(newSub, false)
			if gg == 0 {
				t.root = newSub
			} else {
				t.setChild(gg, gdir, newSub)
			}
			p = newSub
		}

		if q == h {
			break
		}
		if sz == t.size(q) {
			t.pushDup(q, h)
			t.setRed(t.root, false)
			return
		}

		last = dir
		if sz > t.size(q) {
			dir = 1
		} else {
			dir = 0
		}
		if g != 0 {
			gg = g
		}
		g, p = p, q
		q = t.child(q, dir)
	}

	t.setRed(t.root, false)
}

// RemoveBestFit implements FreeIndex: a plain read-only pass finds which
// size fits, then removeByKey does the structural work for that size.
func (t *RBTopdown) RemoveBestFit(size int) (block, bool) {
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
	bestSize := t.size(best)
	b, _ := blockFromHandle(t.seg, best)
	t.removeByKey(bestSize)
	t.capacity -= int64(b.Size())
	return b, true
}

// RemoveKnown implements FreeIndex.
func (t *RBTopdown) RemoveKnown(b block) {
	t.capacity -= int64(b.Size())
	if b.IsDup() {
		t.unlinkDup(b)
		return
	}
	h := handleOf(b)
	if dup := t.ringHead(h); dup != 0 {
		t.promoteDup(h, dup)
		return
	}
	t.removeByKey(b.Size())
}

// promoteDup grafts the current duplicate-ring head into h's tree slot, a
// read-only search by size followed by a single relink: no rebalancing is
// needed since the tree's shape does not change.
func (t *RBTopdown) promoteDup(old, _ int64) {
	d := t.popDup(old)
	nh := handleOf(d)
	t.setChild(nh, 0, t.child(old, 0))
	t.setChild(nh, 1, t.child(old, 1))
	t.setRed(nh, t.red(old))
	t.setRingHead(nh, t.ringHead(old))

	sz := t.size(old)
	parent, dir := int64(0), 0
	cur := t.root
	for cur != old {
		parent = cur
		if sz >= t.size(cur) {
			dir = 1
		} else {
			dir = 0
		}
		cur = t.child(cur, dir)
	}
	if parent == 0 {
		t.root = nh
	} else {
		t.setChild(parent, dir, nh)
	}
	for r := t.ringHead(nh); r != 0; {
		rb, _ := blockFromHandle(t.seg, r)
		rb.setSlot(2, nh)
		r = rb.slot(1)
	}
}

// removeByKey splices the sole node of the given size out of the tree. It
// flips colors of any black node with two red children on the way down
// (the same split top-down insertion uses) to keep the tree from drifting
// too far out of balance, then grafts the in-order successor into the
// removed node's slot exactly as the bottom-up variants do.
func (t *RBTopdown) removeByKey(size int) {
	var path []int64
	var dirs []int
	cur := t.root
	for cur != 0 {
		if t.red(t.child(cur, 0)) && t.red(t.child(cur, 1)) {
			t.setRed(cur, true)
			t.setRed(t.child(cur, 0), false)
			t.setRed(t.child(cur, 1), false)
		}
		path = append(path, cur)
		sz := t.size(cur)
		if size == sz {
			break
		}
		dir := 0
		if size > sz {
			dir = 1
		}
		dirs = append(dirs, dir)
		cur = t.child(cur, dir)
	}
	if len(path) == 0 {
		return
	}
	t.removeNode(path, dirs)
}

func (t *RBTopdown) relink(path []int64, dirs []int, level int, newChild int64) {
	if level == 0 {
		t.root = newChild
		return
	}
	t.setChild(path[level-1], dirs[level-1], newChild)
}

func (t *RBTopdown) removeNode(path []int64, dirs []int) {
	z := path[len(path)-1]
	zLevel := len(path) - 1

	if t.child(z, 0) == 0 {
		t.relink(path, dirs, zLevel, t.child(z, 1))
		return
	}
	if t.child(z, 1) == 0 {
		t.relink(path, dirs, zLevel, t.child(z, 0))
		return
	}

	succPath := append(append([]int64(nil), path...), t.child(z, 1))
	succDirs := append(append([]int(nil), dirs...), 1)
	for t.child(succPath[len(succPath)-1], 0) != 0 {
		nxt := t.child(succPath[len(succPath)-1], 0)
		succPath = append(succPath, nxt)
		succDirs = append(succDirs, 0)
	}
	y := succPath[len(succPath)-1]
	yLevel := len(succPath) - 1

	if succPath[yLevel-1] == z {
		t.setChild(y, 1, t.child(z, 1))
	} else {
		t.relink(succPath, succDirs, yLevel, t.child(y, 1))
		t.setChild(y, 1, t.child(z, 1))
	}
	t.setChild(y, 0, t.child(z, 0))
	t.setRed(y, t.red(z))
	t.relink(path, dirs, zLevel, y)
}

func (t *RBTopdown) Capacity() int64 { return t.capacity }

// Each implements FreeIndex.
func (t *RBTopdown) Each(fn func(block)) {
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

// Validate implements FreeIndex.
func (t *RBTopdown) Validate(log func(error) bool) bool {
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
	var check func(h int64, lo, hi int) bool
	check = func(h int64, lo, hi int) bool {
		if h == 0 {
			return true
		}
		sz := t.size(h)
		good := true
		if (lo != -1 && sz < lo) || (hi != -1 && sz > hi) {
			good = false
			if !log(&ErrILSEQ{Type: ErrBadTreeOrder, Off: int(h - 1), Arg: int64(sz)}) {
				return false
			}
		}
		if t.red(h) && (t.red(t.child(h, 0)) || t.red(t.child(h, 1))) {
			good = false
			if !log(&ErrILSEQ{Type: ErrBadTreeColor, Off: int(h - 1)}) {
				return false
			}
		}
		for r := t.ringHead(h); r != 0; {
			rb, _ := blockFromHandle(t.seg, r)
			if rb.Size() != sz {
				good = false
				if !log(&ErrILSEQ{Type: ErrBadDuplicateRing, Off: rb.off, Arg: int64(rb.Size()), Arg2: int64(sz)}) {
					return false
				}
			}
			r = rb.slot(1)
		}
		if !good {
			ok = false
		}
		if !check(t.child(h, 0), lo, sz) {
			return false
		}
		return check(t.child(h, 1), sz, hi)
	}
	if !check(t.root, -1, -1) {
		ok = false
	}
	return ok
}
