// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

// Variants lists every free-index implementation by the name the CLI
// drivers accept on their -variant flag, in the order section 4 of the
// design introduces them.
var Variants = []string{
	"freelist",
	"rb-canonical",
	"rb-unified",
	"rb-linked",
	"rb-stack",
	"rb-topdown",
	"splay-stack",
	"splay-topdown",
}

// NewIndexFactory resolves a variant name to the IndexFactory Allocator
// needs. It is the single place a CLI driver has to know the set of
// names at all.
func NewIndexFactory(name string) (IndexFactory, bool) {
	switch name {
	case "freelist":
		return func(seg *Segment) FreeIndex { return NewFreeList(seg) }, true
	case "rb-canonical":
		return func(seg *Segment) FreeIndex { return NewRBCanonical(seg) }, true
	case "rb-unified":
		return func(seg *Segment) FreeIndex { return NewRBUnified(seg) }, true
	case "rb-linked":
		return func(seg *Segment) FreeIndex { return NewRBLinked(seg) }, true
	case "rb-stack":
		return func(seg *Segment) FreeIndex { return NewRBStack(seg) }, true
	case "rb-topdown":
		return func(seg *Segment) FreeIndex { return NewRBTopdown(seg) }, true
	case "splay-stack":
		return func(seg *Segment) FreeIndex { return NewSplayStack(seg) }, true
	case "splay-topdown":
		return func(seg *Segment) FreeIndex { return NewSplayTopdown(seg) }, true
	default:
		return nil, false
	}
}
