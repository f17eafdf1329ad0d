// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"querycraft/cli/internal/keychain"
)

var logoutKeepDB bool

// logoutCmd removes stored secrets from the OS keychain.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove saved credentials from the OS keychain",
	Long: `The logout command removes the SQL generation API key and, unless --keep-db is
given, the database DSN from the OS keychain. Secrets provided through environment
variables are not affected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		if logoutKeepDB {
			_ = km.ClearLLM()
			fmt.Println("✅ API key removed")
			return nil
		}
		_ = km.ClearAll()
		fmt.Println("✅ All saved credentials have been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutKeepDB, "keep-db", false, "Keep the saved database connection")
}
