// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// SplayTopdown is the Sleator-Tarjan top-down splay: a single descending
// pass that peels nodes greater than the search key onto a "right tree"
// and nodes less than it onto a "left tree" as it goes, then reassembles
// both around the node the walk lands on. Unlike SplayStack it needs no
// recorded path at all — the two partial trees are built entirely out of
// local handle variables pointing at nodes already in the tree.
//
// Node layout: slot 0/1 = child[0]/child[1], slot 2 = duplicate ring head.
// Duplicate-ring members reuse slot 0/1/2 as prev/next/owner and carry
// flagDup, matching every other tree variant.
type SplayTopdown struct {
	seg                    *Segment
	root                   int64
	capacity               int64
	SplayOnDuplicateInsert bool
}

func NewSplayTopdown(seg *Segment) *SplayTopdown {
	return &SplayTopdown{seg: seg, SplayOnDuplicateInsert: true}
}

func (*SplayTopdown) MinPayload() int { return minPayloadTree }

func (t *SplayTopdown) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *SplayTopdown) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *SplayTopdown) ringHead(h int64) int64 { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *SplayTopdown) setRingHead(h, v int64) { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *SplayTopdown) size(h int64) int       { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *SplayTopdown) pushDup(owner, dup int64) {
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

func (t *SplayTopdown) popDup(owner int64) block {
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

func (t *SplayTopdown) unlinkDup(dup block) {
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

func (t *SplayTopdown) rotate(x int64, dir int) int64 {
	other := dirOf(dir)
	y := t.child(x, other)
	t.setChild(x, other, t.child(y, dir))
	t.setChild(y, dir, x)
	return y
}

// splay brings the tree node closest to key to the root: an exact match if
// one is present, otherwise its in-order predecessor or successor.
func (t *SplayTopdown) splay(key int) {
	if t.root == 0 {
		return
	}
	var leftMax, rightMin, leftRoot, rightRoot int64
	cur := t.root

	for {
		sz := t.size(cur)
		switch {
		case key < sz:
			if t.child(cur, 0) == 0 {
				goto done
			}
			if key < t.size(t.child(cur, 0)) {
				cur = t.rotate(cur, 1) // bring left child up (rotate right)
				if t.child(cur, 0) == 0 {
					goto done
				}
			}
			if rightRoot == 0 {
				rightRoot = cur
			} else {
				t.setChild(rightMin, 0, cur)
			}
			rightMin = cur
			cur = t.child(cur, 0)
		case key > sz:
			if t.child(cur, 1) == 0 {
				goto done
			}
			if key > t.size(t.child(cur, 1)) {
				cur = t.rotate(cur, 0) // bring right child up (rotate left)
				if t.child(cur, 1) == 0 {
					goto done
				}
			}
			if leftRoot == 0 {
				leftRoot = cur
			} else {
				t.setChild(leftMax, 1, cur)
			}
			leftMax = cur
			cur = t.child(cur, 1)
		default:
			goto done
		}
	}

done:
	if leftRoot != 0 {
		t.setChild(leftMax, 1, t.child(cur, 0))
		t.setChild(cur, 0, leftRoot)
	}
	if rightRoot != 0 {
		t.setChild(rightMin, 0, t.child(cur, 1))
		t.setChild(cur, 1, rightRoot)
	}
	t.root = cur
}

// Insert implements FreeIndex.
func (t *SplayTopdown) Insert(b block) {
	h := handleOf(b)
	sz := b.Size()
	t.capacity += int64(sz)

	t.setChild(h, 0, 0)
	t.setChild(h, 1, 0)
	t.setRingHead(h, 0)
	b.setDup(false)

	if t.root == 0 {
		t.root = h
		return
	}

	t.splay(sz)
	rootSize := t.size(t.root)
	if rootSize == sz {
		t.pushDup(t.root, h)
		if !t.SplayOnDuplicateInsert {
			// nothing further: the splay above already ran once, which
			// is unavoidable since Insert must locate the size class
			// before it can tell whether this is a duplicate.
			return
		}
		return
	}
	if sz < rootSize {
		t.setChild(h, 1, t.root)
		t.setChild(h, 0, t.child(t.root, 0))
		t.setChild(t.root, 0, 0)
	} else {
		t.setChild(h, 0, t.root)
		t.setChild(h, 1, t.child(t.root, 1))
		t.setChild(t.root, 1, 0)
	}
	t.root = h
}

// RemoveBestFit implements FreeIndex.
func (t *SplayTopdown) RemoveBestFit(size int) (block, bool) {
	if t.root == 0 {
		return nullBlock, false
	}
	t.splay(size)
	if t.size(t.root) < size {
		right := t.child(t.root, 1)
		if right == 0 {
			return nullBlock, false
		}
		savedRoot := t.root
		t.root = right
		t.splay(size)
		newRight := t.root
		t.setChild(savedRoot, 1, newRight)
		t.root = t.rotate(savedRoot, 0)
	}
	best := t.root
	if t.ringHead(best) != 0 {
		d := t.popDup(best)
		t.capacity -= int64(d.Size())
		return d, true
	}
	b, _ := blockFromHandle(t.seg, best)
	t.removeRoot()
	t.capacity -= int64(b.Size())
	return b, true
}

// RemoveKnown implements FreeIndex.
func (t *SplayTopdown) RemoveKnown(b block) {
	t.capacity -= int64(b.Size())
	if b.IsDup() {
		t.unlinkDup(b)
		return
	}
	h := handleOf(b)
	t.splay(b.Size())
	if dup := t.ringHead(t.root); dup != 0 && t.root == h {
		t.promoteDup(h, dup)
		return
	}
	t.removeRoot()
}

func (t *SplayTopdown) promoteDup(old, _ int64) {
	d := t.popDup(old)
	nh := handleOf(d)
	t.setChild(nh, 0, t.child(old, 0))
	t.setChild(nh, 1, t.child(old, 1))
	t.setRingHead(nh, t.ringHead(old))
	t.root = nh
	for r := t.ringHead(nh); r != 0; {
		rb, _ := blockFromHandle(t.seg, r)
		rb.setSlot(2, nh)
		r = rb.slot(1)
	}
}

// removeRoot deletes the current root (which must carry no duplicates) by
// splaying the root's left subtree so its maximum becomes that subtree's
// root, then hanging the original right subtree off it.
func (t *SplayTopdown) removeRoot() {
	left := t.child(t.root, 0)
	right := t.child(t.root, 1)
	if left == 0 {
		t.root = right
		return
	}
	t.root = left
	t.splay(1<<62 - 1) // splay for a key greater than anything present to surface the maximum
	t.setChild(t.root, 1, right)
}

func (t *SplayTopdown) Capacity() int64 { return t.capacity }

// Each implements FreeIndex.
func (t *SplayTopdown) Each(fn func(block)) {
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
func (t *SplayTopdown) Validate(log func(error) bool) bool {
	if log == nil {
		log = nolog
	}
	ok := true
	var check func(h int64, lo, hi int)
	check = func(h int64, lo, hi int) {
		if h == 0 {
			return
		}
		sz := t.size(h)
		if (lo != -1 && sz < lo) || (hi != -1 && sz > hi) {
			ok = false
			log(&ErrILSEQ{Type: ErrBadTreeOrder, Off: int(h - 1), Arg: int64(sz)})
		}
		for r := t.ringHead(h); r != 0; {
			rb, _ := blockFromHandle(t.seg, r)
			if rb.Size() != sz {
				ok = false
				log(&ErrILSEQ{Type: ErrBadDuplicateRing, Off: rb.off, Arg: int64(rb.Size()), Arg2: int64(sz)})
			}
			r = rb.slot(1)
		}
		check(t.child(h, 0), lo, sz)
		check(t.child(h, 1), sz, hi)
	}
	check(t.root, -1, -1)
	return ok
}
