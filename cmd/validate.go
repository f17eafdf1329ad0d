// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"querycraft/cli/internal/sqlguard"
)

var (
	validateMaxRows int
	validateJSON    bool
)

type validateResult struct {
	Accepted  bool   `json:"accepted"`
	SQL       string `json:"sql,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Rewritten bool   `json:"rewritten,omitempty"`
	Rule      string `json:"rule,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Position  *int   `json:"position,omitempty"`
	Message   string `json:"message,omitempty"`
}

// validateCmd checks SQL against the read-only policy without running it.
var validateCmd = &cobra.Command{
	Use:   "validate [sql]",
	Short: "Check SQL against the read-only policy without running it",
	Long: `The validate command applies the same policy used for generated SQL: a single
SELECT statement, no write or DDL keywords, no comments that could hide keywords,
and a row limit no larger than --max-rows. Accepted SQL is printed with its
enforced limit. With no argument the SQL is read from stdin.

No database connection is needed.`,
	Example: `  querycraft validate "SELECT * FROM core_order"
  echo "DELETE FROM core_order" | querycraft validate`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = string(b)
		}

		maxRows := limits().Clamp(0)
		if cmd.Flags().Changed("max-rows") {
			if validateMaxRows <= 0 {
				return errors.New("--max-rows must be greater than zero")
			}
			maxRows = limits().Clamp(validateMaxRows)
		}

		res := checkSQL(text, maxRows)
		if validateJSON {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else if res.Accepted {
			fmt.Fprintln(cmd.OutOrStdout(), res.SQL)
			if res.Rewritten {
				fmt.Fprintln(os.Stderr, pterm.FgGray.Sprintf("row limit enforced: %d", res.Limit))
			}
		} else {
			pterm.Error.WithWriter(os.Stderr).Println(res.Message)
		}

		if !res.Accepted {
			return presented(errors.New(res.Message))
		}
		return nil
	},
}

func checkSQL(text string, maxRows int) validateResult {
	accepted, err := sqlguard.Validate(text, maxRows)
	if err == nil {
		return validateResult{Accepted: true, SQL: accepted.SQL, Limit: accepted.Limit, Rewritten: accepted.Rewritten}
	}
	res := validateResult{Message: sqlguard.Explain(err)}
	var v *sqlguard.Violation
	if errors.As(err, &v) {
		pos := v.Pos
		res.Rule = string(v.Kind)
		res.Keyword = v.Keyword
		res.Position = &pos
	}
	return res
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVarP(&validateMaxRows, "max-rows", "n", 0, "Maximum row limit to enforce (default from config)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the result as JSON")
}
