// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx is the colored, leveled logging the CLI drivers use to
// report script replay results: a pass/fail mark per script plus
// contextual error output when a validation or parse failure needs to
// explain itself.
package logx

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// CLI is a trimmed-down terminal logger: no progress bars, since the
// drivers here run a script to completion and report a result, they
// never show incremental progress the way a build tool does.
type CLI struct {
	DisableColors bool
	Verbose       bool
}

// Init installs c as logrus's formatter and sets the level implied by
// Verbose. Call once per process, typically from a cobra PersistentPreRunE.
func (c *CLI) Init() {
	logrus.SetFormatter(c)
	if c.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Format implements logrus.Formatter with the same palette the rest of
// the pack uses: faint for trace/debug, plain for info, yellow for warn,
// red for error.
func (c *CLI) Format(entry *logrus.Entry) ([]byte, error) {
	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	x := entry.Message
	if !c.DisableColors {
		switch entry.Level {
		case logrus.TraceLevel, logrus.DebugLevel:
			x = faint(x)
		case logrus.InfoLevel:
			// no color: this is the default pass/status channel
		case logrus.WarnLevel:
			x = yellow(x)
		case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
			x = red(x)
		}
	}
	return []byte(x + "\n"), nil
}

// Pass prints a single success mark with no trailing newline, the
// correctness driver's per-script status character.
func (c *CLI) Pass(mark string) {
	if c.DisableColors {
		fmt.Fprint(os.Stdout, mark)
		return
	}
	color.New(color.FgGreen).Fprint(os.Stdout, mark)
}

// Fail prints a single failure mark the same way Pass does, in red.
func (c *CLI) Fail(mark string) {
	if c.DisableColors {
		fmt.Fprint(os.Stdout, mark)
		return
	}
	color.New(color.FgRed).Fprint(os.Stdout, mark)
}

// Errorf reports a script or validation error to standard error, used
// for the diagnostics the script format's parser errors require.
func (c *CLI) Errorf(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
}
