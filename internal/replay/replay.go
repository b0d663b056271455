// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package replay drives a heapfit.Allocator through a parsed script,
// the correctness driver's core loop: apply each request, stamp and
// re-verify block contents, and validate the whole segment after every
// single one.
package replay

import (
	"fmt"

	"modernc.org/heapfit"
	"modernc.org/heapfit/internal/script"
)

// Mismatch describes a single stamp that didn't read back the way it
// was written, the signature of a coalesce or split that clobbered a
// live payload.
type Mismatch struct {
	ID     int
	Offset int
	Want   byte
	Got    byte
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("id %d: payload[%d]: want 0x%02x, got 0x%02x", m.ID, m.Offset, m.Want, m.Got)
}

// Result is the outcome of replaying one script against one allocator.
type Result struct {
	Requests int
	// FailedAt is the 1-based script line of the first failure, or 0
	// if every request and every validation succeeded.
	FailedAt int
	Err      error
}

// OK reports whether the whole script replayed cleanly.
func (r Result) OK() bool { return r.Err == nil }

// stamp fills p with byte(id & 0xff), the pattern the correctness driver
// uses to detect a payload corrupted by a bug elsewhere in the segment.
func stamp(p []byte, id int) {
	b := byte(id & 0xff)
	for i := range p {
		p[i] = b
	}
}

// check verifies p still holds the stamp for id, returning the first
// mismatch found.
func check(p []byte, id int) *Mismatch {
	want := byte(id & 0xff)
	for i, got := range p {
		if got != want {
			return &Mismatch{ID: id, Offset: i, Want: want, Got: got}
		}
	}
	return nil
}

// Run replays reqs against a, which must already be Init'd. It returns
// as soon as a request, a content check or a.Validate fails.
func Run(a *heapfit.Allocator, reqs []script.Request) Result {
	live := map[int][]byte{}
	res := Result{}

	validate := func(line int) bool {
		if !a.Validate(nil) {
			res.FailedAt = line
			res.Err = fmt.Errorf("line %d: validate failed", line)
			return false
		}
		return true
	}

	for _, req := range reqs {
		res.Requests++
		switch req.Verb {
		case script.Alloc:
			p, err := a.Malloc(req.Size)
			if err != nil {
				res.FailedAt = req.Line
				res.Err = fmt.Errorf("line %d: malloc(%d): %w", req.Line, req.Size, err)
				return res
			}
			stamp(p, req.ID)
			live[req.ID] = p

		case script.Realloc:
			old, ok := live[req.ID]
			if ok {
				if m := check(old, req.ID); m != nil {
					res.FailedAt = req.Line
					res.Err = fmt.Errorf("line %d: %w", req.Line, m)
					return res
				}
			}
			p, err := a.Realloc(old, req.Size)
			if err != nil {
				res.FailedAt = req.Line
				res.Err = fmt.Errorf("line %d: realloc(%d, %d): %w", req.Line, req.ID, req.Size, err)
				return res
			}
			if req.Size == 0 {
				delete(live, req.ID)
			} else {
				stamp(p, req.ID)
				live[req.ID] = p
			}

		case script.Free:
			p, ok := live[req.ID]
			if !ok {
				res.FailedAt = req.Line
				res.Err = fmt.Errorf("line %d: free of unknown id %d", req.Line, req.ID)
				return res
			}
			if m := check(p, req.ID); m != nil {
				res.FailedAt = req.Line
				res.Err = fmt.Errorf("line %d: %w", req.Line, m)
				return res
			}
			if err := a.Free(p); err != nil {
				res.FailedAt = req.Line
				res.Err = fmt.Errorf("line %d: free(%d): %w", req.Line, req.ID, err)
				return res
			}
			delete(live, req.ID)
		}

		if !validate(req.Line) {
			return res
		}
	}
	return res
}
