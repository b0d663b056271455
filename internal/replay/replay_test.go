// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replay

import (
	"strings"
	"testing"

	"modernc.org/heapfit"
	"modernc.org/heapfit/internal/script"
)

func mustParse(t *testing.T, src string) []script.Request {
	t.Helper()
	reqs, err := script.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return reqs
}

func newAllocator(t *testing.T) *heapfit.Allocator {
	t.Helper()
	a := heapfit.NewAllocator(func(seg *heapfit.Segment) heapfit.FreeIndex {
		return heapfit.NewRBUnified(seg)
	})
	if err := a.Init(4096); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRunCleanScript(t *testing.T) {
	reqs := mustParse(t, `
a 0 64
a 1 128
r 0 256
f 1
f 0
`)
	res := Run(newAllocator(t), reqs)
	if !res.OK() {
		t.Fatalf("Run failed: %v (at line %d)", res.Err, res.FailedAt)
	}
	if res.Requests != len(reqs) {
		t.Fatalf("Requests = %d, want %d", res.Requests, len(reqs))
	}
}

func TestRunFreeUnknownID(t *testing.T) {
	reqs := mustParse(t, "f 7\n")
	res := Run(newAllocator(t), reqs)
	if res.OK() {
		t.Fatal("Run succeeded on a free of an unknown id")
	}
}

func TestCheckDetectsStompedPayload(t *testing.T) {
	p := make([]byte, 16)
	stamp(p, 5)
	if m := check(p, 5); m != nil {
		t.Fatalf("check reported a mismatch on a freshly stamped buffer: %v", m)
	}

	p[9] = ^p[9] // simulate a neighboring write stomping this payload
	m := check(p, 5)
	if m == nil {
		t.Fatal("check did not detect the stomped byte")
	}
	if m.Offset != 9 {
		t.Fatalf("Mismatch.Offset = %d, want 9", m.Offset)
	}
}
