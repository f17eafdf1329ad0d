// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently asked questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("query history is disabled (history.enabled is false)")
		}
		defer store.Close()

		entries, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeJSON(os.Stdout, entries)
		}
		if len(entries) == 0 {
			pterm.Println("No questions recorded yet.")
			return nil
		}

		data := pterm.TableData{{"When", "Status", "Rows", "Question"}}
		for _, e := range entries {
			status := pterm.FgGreen.Sprint(e.Status)
			rows := fmt.Sprint(e.RowCount)
			if e.Status != "ok" {
				status = pterm.FgRed.Sprintf("%s (%s)", e.Status, e.Stage)
				rows = "-"
			}
			data = append(data, []string{e.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, rows, formatCell(e.Question)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print entries as JSON")
}
