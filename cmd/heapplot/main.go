// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command heapplot runs heapstat as a subprocess once per free-index
// variant against a single script and tabulates the utilization
// percentage each run reports last. It imports the core package only for
// its list of variant names; all allocation work happens in the heapstat
// processes it launches.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"modernc.org/heapfit"
)

var (
	flagScript  string
	flagStatBin string
	flagRelease bool
)

var rootCmd = &cobra.Command{
	Use:   "heapplot script",
	Short: "Run heapstat once per free-index variant and tabulate the results",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	rootCmd.Flags().StringVar(&flagStatBin, "stat-bin", "", "path to the heapstat binary (default: look up heapstat/heapstat-release on PATH)")
	rootCmd.Flags().BoolVar(&flagRelease, "release", false, "prefer a heapstat-release binary over the debug build")
}

// statBinary resolves which heapstat binary to invoke. The stats driver
// itself has no notion of debug vs release; that distinction lives here,
// at the orchestration layer, as a choice of which compiled binary to
// exec — HEAPFIT_STAT_BIN overrides both the flag and the PATH lookup.
func statBinary() (string, error) {
	if env := os.Getenv("HEAPFIT_STAT_BIN"); env != "" {
		return env, nil
	}
	if flagStatBin != "" {
		return flagStatBin, nil
	}
	name := "heapstat"
	if flagRelease {
		name = "heapstat-release"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w (set --stat-bin or HEAPFIT_STAT_BIN)", name, err)
	}
	return path, nil
}

func runPlot(cmd *cobra.Command, args []string) error {
	bin, err := statBinary()
	if err != nil {
		return err
	}
	script := args[0]

	fmt.Printf("%-16s %12s\n", "variant", "utilization%")
	for _, variant := range heapfit.Variants {
		pct, err := runVariant(bin, variant, script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", variant, err)
			continue
		}
		fmt.Printf("%-16s %12.2f\n", variant, pct)
	}
	return nil
}

// runVariant execs the stats binary against one variant and parses its
// last line (the utilization percentage) from standard output.
func runVariant(bin, variant, script string) (float64, error) {
	c := exec.Command(bin, "-t", variant, script)
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 {
		return 0, fmt.Errorf("no output")
	}
	return strconv.ParseFloat(lines[len(lines)-1], 64)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
