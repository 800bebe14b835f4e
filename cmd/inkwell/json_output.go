package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	// Themes and titles may carry & or <; keep them readable on a terminal.
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
