// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/pipeline"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner draws frames followed by text on a single line of w until
// the returned function is called, which clears the line. Nothing is drawn when
// w is not a terminal.
func startInlineSpinner(w io.Writer, text string) func() {
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}

	cursor.Hide()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], text)
				i++
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const maxCellWidth = 60

// formatCell renders a result value for a terminal table.
func formatCell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return pterm.FgGray.Sprint("NULL")
	case string:
		s = x
	case bool, int64, float64:
		s = fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			s = fmt.Sprint(x)
		} else {
			s = string(b)
		}
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > maxCellWidth {
		s = string([]rune(s)[:maxCellWidth-1]) + "…"
	}
	return s
}

// renderEnvelope prints an envelope for humans: the SQL, a result table and a
// summary, or the failure with a hint.
func renderEnvelope(env pipeline.Envelope) {
	if !env.OK() {
		pterm.Println(logging.FormatFailure(string(env.Stage), env.Message))
		return
	}

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL")).
		WithPadding(1).
		Println(env.SQL)

	if len(env.Rows) > 0 {
		data := pterm.TableData{env.Columns}
		for _, row := range env.Rows {
			vals := row.Values()
			cells := make([]string, len(vals))
			for i, v := range vals {
				cells[i] = formatCell(v)
			}
			data = append(data, cells)
		}
		_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
	}

	noun := "rows"
	if env.Metadata.RowCount == 1 {
		noun = "row"
	}
	pterm.Println(pterm.FgGray.Sprint(fmt.Sprintf("%d %s in %d ms (max_rows %d)", env.Metadata.RowCount, noun, env.ExecutionMS, env.Metadata.MaxRows)))
}
