package assembler

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"inkwell/internal/services"
)

func TestWriteProducesBundleDirectory(t *testing.T) {
	asm := New(t.TempDir())

	path, err := asm.Write(Bundle{
		JobID:       "job-1",
		Title:       "Tidepools",
		Document:    "# Tidepools\n\nBody.",
		Companion:   "Reading notes.",
		CoverImage:  []byte{0x89, 0x50},
		CoverFormat: "png",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, name := range []string{"document.md", "companion.md", "cover.png", "manifest.json"} {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(path, "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Title != "Tidepools" || len(manifest.Files) != 3 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
}

func TestWriteRejectsEmptyDocument(t *testing.T) {
	asm := New(t.TempDir())
	if _, err := asm.Write(Bundle{JobID: "job-1"}); !errors.Is(err, services.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestWriteReplacesPriorBundle(t *testing.T) {
	asm := New(t.TempDir())
	bundle := Bundle{JobID: "job-1", Document: "first"}
	if _, err := asm.Write(bundle); err != nil {
		t.Fatalf("Write: %v", err)
	}
	bundle.Document = "second"
	path, err := asm.Write(bundle)
	if err != nil {
		t.Fatalf("Write (second): %v", err)
	}
	content, err := os.ReadFile(filepath.Join(path, "document.md"))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if string(content) != "second" {
		t.Fatalf("document = %q, want second", content)
	}
}
