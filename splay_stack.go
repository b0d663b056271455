// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// SplayStack is a bottom-up splay tree: every search records its
// root-to-node path into a transient slice, then walks that slice back up
// performing zig, zig-zig and zig-zag rotations until the accessed node
// sits at the root. Splaying happens on every lookup, not only on insert,
// so blocks that are repeatedly probed migrate toward the root and later
// probes for nearby sizes get cheaper.
//
// Node layout: slot 0/1 = child[0]/child[1], slot 2 = duplicate ring head.
// There is no parent field; duplicate-ring members reuse slot 0/1/2 as
// prev/next/owner and carry flagDup, matching the red-black variants.
//
// SplayOnDuplicateInsert controls whether inserting a size that already
// has a tree node still splays that node to the root (true, the default)
// or leaves the tree shape untouched and only links the new block into the
// ring (false). Leaving it untouched avoids rotation cost on a hot size
// class that is being inserted into far more often than it is searched.
type SplayStack struct {
	seg                    *Segment
	root                   int64
	capacity               int64
	SplayOnDuplicateInsert bool
}

func NewSplayStack(seg *Segment) *SplayStack {
	return &SplayStack{seg: seg, SplayOnDuplicateInsert: true}
}

func (*SplayStack) MinPayload() int { return minPayloadTree }

func (t *SplayStack) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *SplayStack) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *SplayStack) ringHead(h int64) int64 { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *SplayStack) setRingHead(h, v int64) { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *SplayStack) size(h int64) int       { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *SplayStack) pushDup(owner, dup int64) {
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

func (t *SplayStack) popDup(owner int64) block {
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

func (t *SplayStack) unlinkDup(dup block) {
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

func (t *SplayStack) rotate(x int64, dir int) int64 {
	other := dirOf(dir)
	y := t.child(x, other)
	t.setChild(x, other, t.child(y, dir))
	t.setChild(y, dir, x)
	return y
}

func (t *SplayStack) relink(path []int64, dirs []int, level int, newChild int64) {
	if level == 0 {
		t.root = newChild
		return
	}
	t.setChild(path[level-1], dirs[level-1], newChild)
}

// splay walks path/dirs (root-to-accessed-node, dirs[i] is the direction
// taken from path[i] to path[i+1]) bottom-up, rotating the accessed node
// to the root.
func (t *SplayStack) splay(path []int64, dirs []int) {
	for len(path) >= 3 {
		g := path[len(path)-3]
		gdir := dirs[len(dirs)-2]
		pdir := dirs[len(dirs)-1]
		z := path[len(path)-1]
		p := path[len(path)-2]

		var newSub int64
		if gdir == pdir {
			mid := t.rotate(g, dirOf(gdir))
			_ = mid // mid == p, already wired as child of z below
			newSub = t.rotate(p, dirOf(pdir))
		} else {
			newSub = t.rotate(p, dirOf(pdir))
			t.setChild(g, gdir, newSub)
			newSub = t.rotate(g, dirOf(gdir))
		}
		t.relink(path, dirs, len(path)-3, newSub)
		path[len(path)-3] = z
		path = path[:len(path)-2]
		dirs = dirs[:len(dirs)-2]
	}
	if len(path) == 2 {
		g := path[0]
		gdir := dirs[0]
		newSub := t.rotate(g, dirOf(gdir))
		t.root = newSub
	}
}

// find descends keyed on size and returns the path to either the matching
// node or the point where it would be inserted.
func (t *SplayStack) find(size int) (path []int64, dirs []int) {
	cur := t.root
	for cur != 0 {
		path = append(path, cur)
		sz := t.size(cur)
		if size == sz {
			return path, dirs
		}
		dir := 0
		if size > sz {
			dir = 1
		}
		dirs = append(dirs, dir)
		cur = t.child(cur, dir)
	}
	return path, dirs
}

func (t *SplayStack) findHandle(h int64) (path []int64, dirs []int) {
	sz := t.size(h)
	cur := t.root
	for cur != 0 {
		path = append(path, cur)
		if cur == h {
			return path, dirs
		}
		dir := 0
		if sz >= t.size(cur) {
			dir = 1
		}
		dirs = append(dirs, dir)
		cur = t.child(cur, dir)
	}
	return path, dirs
}

// Insert implements FreeIndex.
func (t *SplayStack) Insert(b block) {
	h := handleOf(b)
	sz := b.Size()
	t.capacity += int64(sz)

	path, dirs := t.find(sz)
	if len(path) > 0 && t.size(path[len(path)-1]) == sz {
		owner := path[len(path)-1]
		t.pushDup(owner, h)
		if t.SplayOnDuplicateInsert {
			t.splay(path, dirs)
		}
		return
	}

	t.setChild(h, 0, 0)
	t.setChild(h, 1, 0)
	t.setRingHead(h, 0)
	b.setDup(false)

	if len(path) == 0 {
		t.root = h
		return
	}
	parent := path[len(path)-1]
	dir := 0
	if sz >= t.size(parent) {
		dir = 1
	}
	t.setChild(parent, dir, h)
	path = append(path, h)
	t.splay(path, dirs)
}

// RemoveBestFit implements FreeIndex: descend recording the best-fit
// candidate's path, splay it to the root once found, then remove the root.
func (t *SplayStack) RemoveBestFit(size int) (block, bool) {
	var bestPath []int64
	var bestDirs []int
	var path []int64
	var dirs []int
	cur := t.root
	for cur != 0 {
		path = append(path, cur)
		if t.size(cur) >= size {
			bestPath = append([]int64(nil), path...)
			bestDirs = append([]int(nil), dirs...)
			dirs = append(dirs, 0)
			cur = t.child(cur, 0)
		} else {
			dirs = append(dirs, 1)
			cur = t.child(cur, 1)
		}
	}
	if bestPath == nil {
		return nullBlock, false
	}
	t.splay(bestPath, bestDirs)
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
func (t *SplayStack) RemoveKnown(b block) {
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
	path, dirs := t.findHandle(h)
	t.splay(path, dirs)
	t.removeRoot()
}

func (t *SplayStack) promoteDup(old, _ int64) {
	d := t.popDup(old)
	nh := handleOf(d)
	t.setChild(nh, 0, t.child(old, 0))
	t.setChild(nh, 1, t.child(old, 1))
	t.setRingHead(nh, t.ringHead(old))
	path, dirs := t.findHandle(old)
	t.relink(path, dirs, len(path)-1, nh)
	for r := t.ringHead(nh); r != 0; {
		rb, _ := blockFromHandle(t.seg, r)
		rb.setSlot(2, nh)
		r = rb.slot(1)
	}
}

// removeRoot deletes the current root, which must hold no duplicates. The
// larger of its two subtrees absorbs the smaller by splaying the smaller
// subtree's max (if the left subtree exists) to its own root and hanging
// the right subtree off it.
func (t *SplayStack) removeRoot() {
	left := t.child(t.root, 0)
	right := t.child(t.root, 1)
	if left == 0 {
		t.root = right
		return
	}
	var path []int64
	var dirs []int
	cur := left
	for t.child(cur, 1) != 0 {
		path = append(path, cur)
		dirs = append(dirs, 1)
		cur = t.child(cur, 1)
	}
	path = append(path, cur)
	// splay cur (max of left subtree) to be the root of `left`'s subtree
	savedRoot := t.root
	t.root = left
	t.splay(path, dirs)
	newLeftRoot := t.root
	t.setChild(newLeftRoot, 1, right)
	t.root = newLeftRoot
	_ = savedRoot
}

func (t *SplayStack) Capacity() int64 { return t.capacity }

// Each implements FreeIndex.
func (t *SplayStack) Each(fn func(block)) {
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

// Validate implements FreeIndex, checking BST key order and duplicate-ring
// consistency (splay trees carry no color invariant to check).
func (t *SplayStack) Validate(log func(error) bool) bool {
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
