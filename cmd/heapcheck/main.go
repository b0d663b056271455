// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command heapcheck is the correctness driver: it replays one or more
// scripts against a chosen free-index variant, validating the segment
// after every request and re-verifying stamped block contents, and
// prints a single pass/fail character per script.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"modernc.org/heapfit"
	"modernc.org/heapfit/internal/logx"
	"modernc.org/heapfit/internal/replay"
	"modernc.org/heapfit/internal/script"
)

var (
	flagVariant     string
	flagSegmentSize int
	flagVerbose     bool
	flagNoColor     bool

	log = &logx.CLI{}
)

var rootCmd = &cobra.Command{
	Use:   "heapcheck [script...]",
	Short: "Replay allocator scripts and validate the resulting heap after every request",
	RunE:  runCheck,
}

func init() {
	rootCmd.Flags().StringVarP(&flagVariant, "variant", "t", "rb-unified",
		fmt.Sprintf("free-index variant to exercise (%v)", heapfit.Variants))
	rootCmd.Flags().IntVarP(&flagSegmentSize, "size", "s", 1<<20, "segment size in bytes")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.Verbose = flagVerbose
		log.DisableColors = flagNoColor
		log.Init()
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	newIndex, ok := heapfit.NewIndexFactory(flagVariant)
	if !ok {
		return fmt.Errorf("unknown variant %q, want one of %v", flagVariant, heapfit.Variants)
	}
	if len(args) == 0 {
		return fmt.Errorf("at least one script file is required")
	}

	failed := false
	for _, path := range args {
		ok := runOne(newIndex, path)
		if ok {
			log.Pass(".")
		} else {
			log.Fail("F")
			failed = true
		}
	}
	fmt.Fprintln(os.Stdout)
	if failed {
		os.Exit(1)
	}
	return nil
}

func runOne(newIndex heapfit.IndexFactory, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}
	defer f.Close()

	reqs, err := script.Parse(f)
	if err != nil {
		log.Errorf("%s: %v", path, err)
		return false
	}

	a := heapfit.NewAllocator(newIndex)
	if err := a.Init(flagSegmentSize); err != nil {
		log.Errorf("%s: init: %v", path, err)
		return false
	}

	res := replay.Run(a, reqs)
	if !res.OK() {
		log.Errorf("%s: %v", path, res.Err)
		return false
	}
	logrus.Debugf("%s: %d requests replayed cleanly", path, res.Requests)
	return true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
