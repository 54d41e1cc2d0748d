package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func TestWriteJSON(t *testing.T) {
	type row struct {
		Path string `json:"path"`
	}
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil slice", []row(nil), "[]\n"},
		{"empty slice", []row{}, "[]\n"},
		{"html left alone", []row{{Path: "/captures/a&b<1>.jpg"}}, `[{"path":"/captures/a&b<1>.jpg"}]` + "\n"},
		{"object on one line", map[string]int{"cameras": 2}, `{"cameras":2}` + "\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&buf)
			if err := writeJSON(cmd, tc.value); err != nil {
				t.Fatalf("writeJSON: %v", err)
			}
			if got := buf.String(); got != tc.want {
				t.Fatalf("writeJSON = %q, want %q", got, tc.want)
			}
		})
	}
}
