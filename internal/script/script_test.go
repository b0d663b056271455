// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package script

import (
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	src := `
# a comment
a 0 64

r 0 128
f 0
a 1 32
`
	reqs, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	want := []Request{
		{Verb: Alloc, ID: 0, Size: 64, Line: 3},
		{Verb: Realloc, ID: 0, Size: 128, Line: 5},
		{Verb: Free, ID: 0, Line: 6},
		{Verb: Alloc, ID: 1, Size: 32, Line: 7},
	}
	if len(reqs) != len(want) {
		t.Fatalf("got %d requests, want %d", len(reqs), len(want))
	}
	for i, w := range want {
		if reqs[i] != w {
			t.Fatalf("request %d = %+v, want %+v", i, reqs[i], w)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"x 0 1",
		"a 0",
		"a 0 1 2",
		"f",
		"a -1 1",
		"a 0 -1",
	} {
		if _, err := Parse(strings.NewReader(src)); err == nil {
			t.Errorf("Parse(%q) succeeded, want an error", src)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	reqs, err := Parse(strings.NewReader("# only comments\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 0 {
		t.Fatalf("got %d requests, want 0", len(reqs))
	}
}
