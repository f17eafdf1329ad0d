// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/pipeline"
)

var (
	askLanguage string
	askMaxRows  int
	askJSON     bool
	askNoSave   bool
)

// askCmd runs one question through the pipeline against the configured database.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with a read-only SQL query",
	Long: `The ask command sends the question and the schema description to the SQL
generation endpoint, validates the returned SQL against the read-only policy, runs
it in a read-only transaction and prints the rows.

With --json the response envelope is printed exactly as the HTTP API returns it.`,
	Example: `  querycraft ask "How many orders were refunded last month?"
  querycraft ask --max-rows 5 --json "Top products by revenue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var maxRows *int
		if cmd.Flags().Changed("max-rows") {
			maxRows = &askMaxRows
		}
		req, err := pipeline.NewRequest(strings.Join(args, " "), askLanguage, maxRows, limits())
		if err != nil {
			return showEnvelope(pipeline.Format(pipeline.Failure{Stage: qerrors.KindOf(err), Message: qerrors.MessageOf(err), Err: err}))
		}
		req.ID = uuid.NewString()

		a, err := newApp(cmd.Context(), appOptions{history: !askNoSave})
		if err != nil {
			return err
		}
		defer a.Close()

		stop := startInlineSpinner(os.Stderr, "Thinking")
		env := a.pipeline.Run(cmd.Context(), req)
		stop()

		return showEnvelope(env)
	},
}

// showEnvelope prints env in the selected format and turns a failure into a
// non-zero exit.
func showEnvelope(env pipeline.Envelope) error {
	if askJSON {
		if err := writeJSON(os.Stdout, env); err != nil {
			return err
		}
	} else {
		renderEnvelope(env)
	}
	if !env.OK() {
		return presented(qerrors.New(env.Stage, env.Message))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askLanguage, "language", "l", "en", "Language of the question (BCP 47 tag)")
	askCmd.Flags().IntVarP(&askMaxRows, "max-rows", "n", 0, "Maximum number of rows to return (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the JSON response envelope")
	askCmd.Flags().BoolVar(&askNoSave, "no-history", false, "Do not record this question in the local history")
}
