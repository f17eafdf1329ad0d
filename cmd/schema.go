// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"querycraft/cli/internal/sqlexec"
)

var schemaIntrospect bool

// schemaCmd prints the schema description sent to the SQL generation endpoint.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema description given to the SQL generator",
	Long: `The schema command prints the description of tables and columns that accompanies
every question sent to the SQL generation endpoint. It comes from the schema file
in the config, the live database catalog (--introspect or schema.introspect), or
the built-in default.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if schemaIntrospect {
			cfg.Schema.Introspect = true
		}

		var db *sqlexec.DB
		if cfg.Schema.Introspect {
			var err error
			if db, err = openDatabase(cmd.Context(), false); err != nil {
				return err
			}
			defer db.Close()
		}

		provider, _, closeSchema, err := buildSchema(db)
		if err != nil {
			return err
		}
		defer closeSchema()

		desc, err := provider.Describe(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), desc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaIntrospect, "introspect", false, "Read the schema from the connected database")
}
