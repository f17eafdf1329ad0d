// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"querycraft/cli/internal/keychain"
)

// loginCmd stores the SQL generation endpoint's API key in the OS keychain.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Store the SQL generation API key in the OS keychain",
	Long: `The login command prompts for the API key of the SQL generation endpoint
(generation.base_url in the config, OpenAI-compatible) and stores it in the OS
keychain. Input is hidden when reading from a terminal.

QUERYCRAFT_LLM_API_KEY or OPENAI_API_KEY take precedence over the stored key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := readSecret("API key: ")
		if err != nil {
			return err
		}
		if key == "" {
			return errors.New("API key is required")
		}

		km, err := keychain.GetManager()
		if err != nil {
			printLines(
				"❌ Secure storage is not available on this system.",
				"   Export QUERYCRAFT_LLM_API_KEY instead.",
			)
			return presented(err)
		}
		if err := km.SaveLLMAPIKey(key); err != nil {
			fmt.Println("❌ Failed to save the API key securely.")
			return presented(err)
		}

		fmt.Println("✅ API key saved")
		if cfg.Generation.APIKey != "" {
			fmt.Println("   Note: an API key in the environment still takes precedence.")
		}
		return nil
	},
}

// readSecret reads one line without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
