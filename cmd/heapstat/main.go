// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command heapstat is the stats driver: it replays a single script
// against a chosen free-index variant, timing caller-specified ranges
// of request indices, and reports one interval/average line per range
// plus a final utilization percentage.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"modernc.org/heapfit"
	"modernc.org/heapfit/internal/replay"
	"modernc.org/heapfit/internal/script"
)

// reqRange is a half-open [start, end) span of request indices to time,
// given on the command line as "-r start:end".
type reqRange struct{ start, end int }

type rangeList struct{ ranges []reqRange }

func (l *rangeList) String() string {
	parts := make([]string, len(l.ranges))
	for i, r := range l.ranges {
		parts[i] = fmt.Sprintf("%d:%d", r.start, r.end)
	}
	return strings.Join(parts, ",")
}

func (l *rangeList) Set(s string) error {
	start, end, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("range %q: want \"start:end\"", s)
	}
	a, err := strconv.Atoi(start)
	if err != nil {
		return fmt.Errorf("range %q: %w", s, err)
	}
	b, err := strconv.Atoi(end)
	if err != nil {
		return fmt.Errorf("range %q: %w", s, err)
	}
	if a < 0 || b < a {
		return fmt.Errorf("range %q: start must be >= 0 and end >= start", s)
	}
	l.ranges = append(l.ranges, reqRange{a, b})
	return nil
}

func (l *rangeList) Type() string { return "start:end" }

var (
	flagVariant     string
	flagSegmentSize int
	flagRanges      rangeList
)

var rootCmd = &cobra.Command{
	Use:   "heapstat [-r start:end]... script",
	Short: "Time request-index ranges of a script replay and report heap utilization",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	rootCmd.Flags().StringVarP(&flagVariant, "variant", "t", "rb-unified", "free-index variant to exercise")
	rootCmd.Flags().IntVarP(&flagSegmentSize, "size", "s", 1<<20, "segment size in bytes")
	rootCmd.Flags().VarP(&flagRanges, "range", "r", "request-index range to time, half-open, repeatable")
}

func runStat(cmd *cobra.Command, args []string) error {
	newIndex, ok := heapfit.NewIndexFactory(flagVariant)
	if !ok {
		return fmt.Errorf("unknown variant %q, want one of %v", flagVariant, heapfit.Variants)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	reqs, err := script.Parse(f)
	if err != nil {
		return err
	}

	a := heapfit.NewAllocator(newIndex)
	if err := a.Init(flagSegmentSize); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	elapsed := make([]time.Duration, len(flagRanges.ranges))
	for i := 0; i < len(reqs); {
		rangeIdx := rangeContaining(i)
		if rangeIdx < 0 {
			if res := replay.Run(a, reqs[i:i+1]); !res.OK() {
				return res.Err
			}
			i++
			continue
		}
		r := flagRanges.ranges[rangeIdx]
		end := r.end
		if end > len(reqs) {
			end = len(reqs)
		}
		start := time.Now()
		res := replay.Run(a, reqs[i:end])
		elapsed[rangeIdx] += time.Since(start)
		if !res.OK() {
			return res.Err
		}
		i = end
	}

	for i, r := range flagRanges.ranges {
		n := r.end - r.start
		if n <= 0 {
			n = 1
		}
		intervalMs := float64(elapsed[i]) / float64(time.Millisecond)
		avgMs := intervalMs / float64(n)
		fmt.Printf("%g %g\n", intervalMs, avgMs)
	}
	fmt.Printf("%g\n", a.Stats().Utilization()*100)
	return nil
}

func rangeContaining(i int) int {
	for idx, r := range flagRanges.ranges {
		if i >= r.start && i < r.end {
			return idx
		}
	}
	return -1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
