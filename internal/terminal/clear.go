// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides small terminal helpers for interactive prompts.
package terminal

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// ClearPreviousLines erases a prompt and the user's answer from stdout so
// secrets such as a DSN do not stay on screen. textLength is the number of
// characters printed (prompt plus input). Nothing happens when stdout is not a
// terminal.
func ClearPreviousLines(textLength int) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	width := defaultWidth
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		width = w
	}
	clearLines(os.Stdout, LinesUsed(textLength, width))
}

// LinesUsed returns how many terminal rows a line of textLength characters
// occupies at the given width, plus the empty row the cursor sits on after the
// user pressed Enter.
func LinesUsed(textLength, width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	rows := (textLength + width - 1) / width
	return max(rows, 1) + 1
}

// clearLines clears n rows ending at the cursor's row, leaving the cursor at
// the start of the topmost one.
func clearLines(w io.Writer, n int) {
	for i := 0; i < n; i++ {
		fmt.Fprint(w, "\r\x1b[2K") // Move to start and clear entire line
		if i < n-1 {
			fmt.Fprint(w, "\x1b[1A") // Move up one line (don't move up on last iteration)
		}
	}
}
