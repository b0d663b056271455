// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// RBStack drops the parent field entirely: every operation rebuilds the
// root-to-node path into an explicit stack (a plain Go slice local to the
// call) on its way down, and fixups walk that stack back up instead of
// following node.parent links. This trades one word of node state for a
// small transient allocation per call.
//
// Tree node layout: slot 0/1 = child[0]/child[1], slot 2 = duplicate ring
// head (0 if none). There is no parent slot. Ring members reuse the same
// slot 0/1/2 meaning as RBLinked (prev/next/owner) and are tagged with
// flagDup; a ring member's stored owner handle stands in for the parent
// back-reference that a tree node would otherwise need.
type RBStack struct {
	seg      *Segment
	root     int64
	capacity int64
}

func NewRBStack(seg *Segment) *RBStack { return &RBStack{seg: seg} }

func (*RBStack) MinPayload() int { return minPayloadTree }

func (t *RBStack) child(h int64, dir int) int64 {
	b, _ := blockFromHandle(t.seg, h)
	return b.slot(dir)
}
func (t *RBStack) setChild(h int64, dir int, v int64) {
	b, _ := blockFromHandle(t.seg, h)
	b.setSlot(dir, v)
}
func (t *RBStack) ringHead(h int64) int64   { b, _ := blockFromHandle(t.seg, h); return b.slot(2) }
func (t *RBStack) setRingHead(h, v int64)   { b, _ := blockFromHandle(t.seg, h); b.setSlot(2, v) }
func (t *RBStack) red(h int64) bool         { b, ok := blockFromHandle(t.seg, h); return ok && b.Color() }
func (t *RBStack) setRed(h int64, r bool)   { b, _ := blockFromHandle(t.seg, h); b.setColor(r) }
func (t *RBStack) size(h int64) int         { b, _ := blockFromHandle(t.seg, h); return b.Size() }

func (t *RBStack) pushDup(owner, dup int64) {
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

func (t *RBStack) popDup(owner int64) block {
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

func (t *RBStack) unlinkDup(dup block) {
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

// rotate performs a local rotation around x and returns the handle that
// now roots x's former subtree. The caller is responsible for relinking
// that new root into whatever pointed at x.
func (t *RBStack) rotate(x int64, dir int) int64 {
	other := dirOf(dir)
	y := t.child(x, other)
	t.setChild(x, other, t.child(y, dir))
	t.setChild(y, dir, x)
	return y
}

func (t *RBStack) relink(path []int64, dirs []int, level int, newChild int64) {
	if level == 0 {
		t.root = newChild
		return
	}
	t.setChild(path[level-1], dirs[level-1], newChild)
}

// Insert implements FreeIndex.
func (t *RBStack) Insert(b block) {
	h := handleOf(b)
	t.capacity += int64(b.Size())

	var path []int64
	var dirs []int
	cur := t.root
	for cur != 0 {
		path = append(path, cur)
		if b.Size() == t.size(cur) {
			t.pushDup(cur, h)
			return
		}
		dir := 0
		if b.Size() >= t.size(cur) {
			dir = 1
		}
		dirs = append(dirs, dir)
		cur = t.child(cur, dir)
	}

	t.setChild(h, 0, 0)
	t.setChild(h, 1, 0)
	t.setRingHead(h, 0)
	b.setDup(false)
	t.setRed(h, true)
	path = append(path, h)
	if len(path) == 1 {
		t.root = h
	} else {
		t.setChild(path[len(path)-2], dirs[len(dirs)-1], h)
	}

	t.insertFixup(path, dirs)
}

func (t *RBStack) insertFixup(path []int64, dirs []int) {
	for len(path) >= 3 && t.red(path[len(path)-2]) {
		g := path[len(path)-3]
		p := path[len(path)-2]
		z := path[len(path)-1]
		gdir := dirs[len(dirs)-2]
		pdir := dirs[len(dirs)-1]
		other := dirOf(gdir)
		u := t.child(g, other)
		if u != 0 && t.red(u) {
			t.setRed(p, false)
			t.setRed(u, false)
			t.setRed(g, true)
			path = path[:len(path)-2]
			dirs = dirs[:len(dirs)-2]
			continue
		}
		if pdir != gdir {
			newSub := t.rotate(p, gdir) // newSub == z
			t.setChild(g, gdir, newSub)
			path[len(path)-2] = z
			path[len(path)-1] = p
			dirs[len(dirs)-1] = gdir
			p, z = z, p
			pdir = gdir
		}
		t.setRed(p, false)
		t.setRed(g, true)
		newSub2 := t.rotate(g, dirOf(gdir))
		t.relink(path, dirs, len(path)-3, newSub2)
		break
	}
	t.setRed(t.root, false)
}

// find descends keyed on size, recording the path. It stops either at an
// exact-size node or at the nil slot where such a node would be inserted.
func (t *RBStack) find(size int) (path []int64, dirs []int) {
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

// findHandle rebuilds the path down to the tree node holding handle h by
// descending on h's own size, relying on size ordering to reach it (h is
// assumed to currently be in the tree, not a ring member).
func (t *RBStack) findHandle(h int64) (path []int64, dirs []int) {
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

// RemoveBestFit implements FreeIndex.
func (t *RBStack) RemoveBestFit(size int) (block, bool) {
	var bestPath []int64
	var bestDirs []int
	cur := t.root
	var path []int64
	var dirs []int
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
	best := bestPath[len(bestPath)-1]
	if t.ringHead(best) != 0 {
		d := t.popDup(best)
		t.capacity -= int64(d.Size())
		return d, true
	}
	b, _ := blockFromHandle(t.seg, best)
	t.removeNode(bestPath, bestDirs)
	t.capacity -= int64(b.Size())
	return b, true
}

// RemoveKnown implements FreeIndex.
func (t *RBStack) RemoveKnown(b block) {
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
	t.removeNode(path, dirs)
}

func (t *RBStack) promoteDup(old, _ int64) {
	d := t.popDup(old)
	nh := handleOf(d)
	t.setChild(nh, 0, t.child(old, 0))
	t.setChild(nh, 1, t.child(old, 1))
	t.setRed(nh, t.red(old))
	t.setRingHead(nh, t.ringHead(old))
	path, dirs := t.findHandle(old)
	t.relink(path, dirs, len(path)-1, nh)
	for r := t.ringHead(nh); r != 0; {
		rb, _ := blockFromHandle(t.seg, r)
		rb.setSlot(2, nh)
		r = rb.slot(1)
	}
}

func (t *RBStack) minimumPath(path []int64, dirs []int) ([]int64, []int) {
	cur := path[len(path)-1]
	for t.child(cur, 0) != 0 {
		path = append(path, t.child(cur, 0))
		dirs = append(dirs, 0)
		cur = t.child(cur, 0)
	}
	return path, dirs
}

// removeNode deletes the tree node at the end of path (z), given the full
// root-to-z path and the directions taken to reach it.
func (t *RBStack) removeNode(path []int64, dirs []int) {
	z := path[len(path)-1]
	zLevel := len(path) - 1
	yOriginalRed := t.red(z)
	var x, xparent int64
	var xLevel int
	var fixupPath []int64
	var fixupDirs []int

	switch {
	case t.child(z, 0) == 0:
		x = t.child(z, 1)
		t.relink(path, dirs, zLevel, x)
		fixupPath = append(append([]int64(nil), path[:zLevel]...))
		fixupDirs = append(append([]int(nil), dirs[:zLevel]...))
		if x != 0 {
			fixupPath = append(fixupPath, x)
		}
		xparent = 0
		if zLevel > 0 {
			xparent = path[zLevel-1]
		}
		xLevel = zLevel
	case t.child(z, 1) == 0:
		x = t.child(z, 0)
		t.relink(path, dirs, zLevel, x)
		fixupPath = append(append([]int64(nil), path[:zLevel]...))
		fixupDirs = append(append([]int(nil), dirs[:zLevel]...))
		if x != 0 {
			fixupPath = append(fixupPath, x)
		}
		xparent = 0
		if zLevel > 0 {
			xparent = path[zLevel-1]
		}
		xLevel = zLevel
	default:
		succPath := append(append([]int64(nil), path...), t.child(z, 1))
		succDirs := append(append([]int(nil), dirs...), 1)
		succPath, succDirs = t.minimumPath(succPath, succDirs)
		y := succPath[len(succPath)-1]
		yOriginalRed = t.red(y)
		x = t.child(y, 1)
		yLevel := len(succPath) - 1

		if succPath[yLevel-1] == z {
			xparent = y
		} else {
			xparent = succPath[yLevel-1]
			t.relink(succPath, succDirs, yLevel, x)
			t.setChild(y, 1, t.child(z, 1))
		}
		t.setChild(y, 0, t.child(z, 0))
		t.setRed(y, t.red(z))
		t.relink(path, dirs, zLevel, y)

		fixupPath = append(append(append([]int64(nil), path[:zLevel]...), y), succPath[zLevel+1:yLevel]...)
		fixupDirs = append([]int(nil), succDirs[:yLevel]...)
		if x != 0 {
			fixupPath = append(fixupPath, x)
		}
		xLevel = len(fixupPath) - 1
		if x == 0 {
			xLevel = len(fixupPath)
		}
		_ = xparent
	}

	if !yOriginalRed {
		t.deleteFixup(fixupPath, fixupDirs, x, xLevel)
	}
}

func (t *RBStack) deleteFixup(path []int64, dirs []int, x int64, xLevel int) {
	for x != t.root && !t.red(x) {
		if xLevel == 0 || xLevel > len(path) {
			break
		}
		p := path[xLevel-1]
		dir := dirs[xLevel-1]
		other := dirOf(dir)
		w := t.child(p, other)
		if t.red(w) {
			t.setRed(w, false)
			t.setRed(p, true)
			newSub := t.rotate(p, dir)
			t.relink(path, dirs, xLevel-1, newSub)
			path[xLevel-1] = newSub
			dirs = append(dirs[:xLevel-1], dir)
			path = append(path[:xLevel], p)
			dirs = append(dirs, dir)
			xLevel++
			w = t.child(p, other)
		}
		if !t.red(t.child(w, dir)) && !t.red(t.child(w, other)) {
			t.setRed(w, true)
			x = p
			xLevel--
			continue
		}
		if !t.red(t.child(w, other)) {
			t.setRed(t.child(w, dir), false)
			t.setRed(w, true)
			newSub := t.rotate(w, other)
			t.setChild(p, other, newSub)
			w = newSub
		}
		t.setRed(w, t.red(p))
		t.setRed(p, false)
		t.setRed(t.child(w, other), false)
		newSub := t.rotate(p, dir)
		t.relink(path, dirs, xLevel-1, newSub)
		x = t.root
	}
	if x != 0 {
		t.setRed(x, false)
	}
}

func (t *RBStack) Capacity() int64 { return t.capacity }

// Each implements FreeIndex.
func (t *RBStack) Each(fn func(block)) {
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
func (t *RBStack) Validate(log func(error) bool) bool {
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
