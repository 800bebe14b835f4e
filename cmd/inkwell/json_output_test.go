package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestWriteJSONKeepsHTMLCharacters(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := writeJSON(cmd, map[string]string{"theme": "sharks & rays <at night>"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(out.String(), `"sharks & rays <at night>"`) {
		t.Fatalf("expected unescaped output, got %q", out.String())
	}
}
