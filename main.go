// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the querycraft CLI.
// It answers natural-language questions with validated, read-only SQL.
package main

import (
	"querycraft/cli/cmd"
)

func main() {
	cmd.Execute()
}
