package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("log format default = %q", cfg.Log.Format)
	}
	if cfg.Admin.Port != 9091 {
		t.Errorf("admin port default = %d", cfg.Admin.Port)
	}
	if cfg.OCR.Provider != "tesseract" || cfg.OCR.Language != "eng" {
		t.Errorf("ocr defaults = %q/%q", cfg.OCR.Provider, cfg.OCR.Language)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.Local.Path != "./storage" {
		t.Errorf("storage defaults = %q/%q", cfg.Storage.Backend, cfg.Storage.Local.Path)
	}
	if cfg.Storage.Firestore.Collection != "documents" {
		t.Errorf("firestore collection default = %q", cfg.Storage.Firestore.Collection)
	}
	if cfg.Processing.MaxFileSizeMB != 50 || cfg.Processing.Concurrency != 5 {
		t.Errorf("processing defaults = %+v", cfg.Processing)
	}
	if cfg.Processing.JobTimeout != 5*time.Minute || cfg.Processing.JobAttempts != 3 || cfg.Processing.BackoffBase != 2*time.Second {
		t.Errorf("job defaults = %+v", cfg.Processing)
	}
	if len(cfg.Processing.SupportedFormats) == 0 {
		t.Errorf("supported formats default empty")
	}
	if cfg.AI.Provider != "ollama" || cfg.AI.TokenBudget != 3000 {
		t.Errorf("ai defaults = %q/%d", cfg.AI.Provider, cfg.AI.TokenBudget)
	}
	if cfg.AI.Ollama.BaseURL != "http://localhost:11434" || cfg.AI.Ollama.Model != "llama3:8b" {
		t.Errorf("ollama defaults = %+v", cfg.AI.Ollama)
	}
}

func TestLoad_DevFlag(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Runtime.Dev {
		t.Errorf("dev flag not carried into runtime config")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "postgres backend without url",
			body: "storage:\n  backend: postgres\n",
			want: "storage.postgres.url",
		},
		{
			name: "firestore backend without project",
			body: "storage:\n  backend: firestore\n",
			want: "storage.firestore.project_id",
		},
		{
			name: "gemini enabled without key",
			body: "ai:\n  provider: gemini\n  enabled: true\n",
			want: "ai.gemini.api_key",
		},
		{
			name: "openai enabled without key",
			body: "ai:\n  provider: openai\n  enabled: true\n",
			want: "ai.openai.api_key",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := Load(path, false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Errorf("want error for missing file")
	}
}
