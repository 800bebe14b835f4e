package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "inkwell.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestWithContextStampsFields(t *testing.T) {
	ctx := services.WithJobID(t.Context(), "job-1")
	ctx = services.WithStage(ctx, "curation")

	fields := logging.ContextFields(ctx)
	keys := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		keys[f.Key] = struct{}{}
	}
	if _, ok := keys[logging.FieldJobID]; !ok {
		t.Fatal("expected job_id field")
	}
	if _, ok := keys[logging.FieldStage]; !ok {
		t.Fatal("expected stage field")
	}
}

func TestWithContextNilLoggerReturnsNop(t *testing.T) {
	logger := logging.WithContext(t.Context(), nil)
	// Must not panic and must swallow output.
	logger.Info("ignored")
}
