package assembler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inkwell/internal/services"
)

// Bundle describes the material assembled into a final artifact directory.
type Bundle struct {
	JobID       string
	Title       string
	Document    string
	Companion   string
	CoverImage  []byte
	CoverFormat string
	Placeholder bool
	Metadata    map[string]any
}

// Manifest is the machine-readable index written alongside the artifacts.
type Manifest struct {
	JobID       string         `json:"job_id"`
	Title       string         `json:"title"`
	Files       []string       `json:"files"`
	Placeholder bool           `json:"placeholder_cover"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	AssembledAt time.Time      `json:"assembled_at"`
}

// Assembler writes finished bundles beneath a root artifact directory.
type Assembler struct {
	root string
}

// New constructs an assembler rooted at dir.
func New(dir string) *Assembler {
	return &Assembler{root: dir}
}

// Write lays the bundle down as a per-job directory and returns its path.
// The directory is written under a temporary name and renamed into place so
// a crash mid-write never leaves a partial bundle at the final path.
func (a *Assembler) Write(bundle Bundle) (string, error) {
	if strings.TrimSpace(bundle.JobID) == "" {
		return "", services.Wrap(services.ErrValidation, "assembler", "write", "bundle requires a job id", nil)
	}
	if strings.TrimSpace(bundle.Document) == "" {
		return "", services.Wrap(services.ErrFatal, "assembler", "write", "bundle has no document content", nil)
	}

	finalDir := filepath.Join(a.root, bundle.JobID)
	stagingDir := finalDir + ".partial"
	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	files := []string{"document.md"}
	if err := os.WriteFile(filepath.Join(stagingDir, "document.md"), []byte(bundle.Document), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	if strings.TrimSpace(bundle.Companion) != "" {
		if err := os.WriteFile(filepath.Join(stagingDir, "companion.md"), []byte(bundle.Companion), 0o644); err != nil {
			return "", fmt.Errorf("write companion: %w", err)
		}
		files = append(files, "companion.md")
	}
	if len(bundle.CoverImage) > 0 {
		coverName := "cover." + coverExtension(bundle.CoverFormat)
		if err := os.WriteFile(filepath.Join(stagingDir, coverName), bundle.CoverImage, 0o644); err != nil {
			return "", fmt.Errorf("write cover: %w", err)
		}
		files = append(files, coverName)
	}

	manifest := Manifest{
		JobID:       bundle.JobID,
		Title:       bundle.Title,
		Files:       files,
		Placeholder: bundle.Placeholder,
		Metadata:    bundle.Metadata,
		AssembledAt: time.Now().UTC(),
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stagingDir, "manifest.json"), encoded, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return "", fmt.Errorf("clear final dir: %w", err)
	}
	if err := os.Rename(stagingDir, finalDir); err != nil {
		return "", fmt.Errorf("move bundle into place: %w", err)
	}
	return finalDir, nil
}

func coverExtension(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "jpg"
	case "svg":
		return "svg"
	default:
		return "png"
	}
}
