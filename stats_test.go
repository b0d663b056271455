// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapfit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsTrackMallocFreeRealloc(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewFreeList(seg) })
	require.NoError(t, a.Init(4096))

	p, err := a.Malloc(40)
	require.NoError(t, err)
	require.Equal(t, a.Align(40), len(p))

	stats := a.Stats()
	require.EqualValues(t, 1, stats.Mallocs)
	require.EqualValues(t, 40, stats.BytesRequested)
	require.EqualValues(t, a.Align(40), stats.BytesGranted)
	require.Greater(t, stats.Utilization(), 0.0)
	require.LessOrEqual(t, stats.Utilization(), 1.0)

	p, err = a.Realloc(p, 200)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(p), 200)

	stats = a.Stats()
	require.EqualValues(t, 1, stats.Reallocs)

	require.NoError(t, a.Free(p))
	stats = a.Stats()
	require.EqualValues(t, 1, stats.Frees)
}

func TestStatsUtilizationIsOneWithNothingGranted(t *testing.T) {
	var s AllocStats
	require.Equal(t, 1.0, s.Utilization())
}

func TestCapacityTracksFreedBytes(t *testing.T) {
	a := NewAllocator(func(seg *Segment) FreeIndex { return NewRBCanonical(seg) })
	require.NoError(t, a.Init(4096))

	before := a.Capacity()
	p, err := a.Malloc(128)
	require.NoError(t, err)
	require.Less(t, a.Capacity(), before)

	require.NoError(t, a.Free(p))
	require.Equal(t, before, a.Capacity())
}
