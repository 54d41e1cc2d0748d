package main

import (
	"encoding/json"
	"reflect"

	"github.com/spf13/cobra"
)

// writeJSON prints v to the command's stdout, indented on a terminal and as
// a single line otherwise. A nil slice prints as [] so scripts never see null.
func writeJSON(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		v = []any{}
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if isTerminal(out) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
