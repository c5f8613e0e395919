package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Policy != PolicyLocalFirst {
		t.Errorf("Policy = %q, want local_first", cfg.Policy)
	}
	if cfg.ExternalProvider != ProviderDisabled {
		t.Errorf("ExternalProvider = %q, want disabled", cfg.ExternalProvider)
	}
	if cfg.Region != DefaultRegion {
		t.Errorf("Region = %q, want %q", cfg.Region, DefaultRegion)
	}
	if cfg.LocalTimeout != 10*time.Second {
		t.Errorf("LocalTimeout = %v, want 10s", cfg.LocalTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PASSERELLE_POLICY", "fallback")
	t.Setenv("PASSERELLE_EXTERNAL_ON_FALLBACK", "true")
	t.Setenv("PASSERELLE_LOCAL_TIMEOUT", "3s")
	t.Setenv("PASSERELLE_EVENTS_RETAINED", "42")
	t.Setenv("PASSERELLE_LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Policy != PolicyFallback {
		t.Errorf("Policy = %q, want fallback", cfg.Policy)
	}
	if !cfg.ExternalOnFallback {
		t.Error("ExternalOnFallback = false, want true")
	}
	if cfg.LocalTimeout != 3*time.Second {
		t.Errorf("LocalTimeout = %v, want 3s", cfg.LocalTimeout)
	}
	if cfg.EventsRetained != 42 {
		t.Errorf("EventsRetained = %d, want 42", cfg.EventsRetained)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestApplyFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passerelle.yaml")
	content := `
policy: always
external_provider: anthropic
external_on_fallback: true
region: "Région Grand Est"
log_level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}

	if cfg.Policy != PolicyAlways {
		t.Errorf("Policy = %q, want always", cfg.Policy)
	}
	if cfg.ExternalProvider != ProviderAnthropic {
		t.Errorf("ExternalProvider = %q, want anthropic", cfg.ExternalProvider)
	}
	if !cfg.ExternalOnFallback {
		t.Error("ExternalOnFallback = false, want true")
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	// Untouched fields keep their environment defaults
	if cfg.LocalModel == "" {
		t.Error("LocalModel cleared by overlay")
	}
}

func TestApplyFile_Errors(t *testing.T) {
	cfg := Load()

	if err := cfg.ApplyFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("ApplyFile(missing) error = nil, want error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("policy: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := cfg.ApplyFile(bad); err == nil {
		t.Error("ApplyFile(invalid yaml) error = nil, want error")
	}
}

func TestExternalEnabled(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"", false},
		{"disabled", false},
		{"none", false},
		{"local", false},
		{"DISABLED", false},
		{"openai", true},
		{"anthropic", true},
	}
	for _, tt := range tests {
		cfg := Config{ExternalProvider: tt.tag}
		if got := cfg.ExternalEnabled(); got != tt.want {
			t.Errorf("ExternalEnabled(%q) = %t, want %t", tt.tag, got, tt.want)
		}
	}
}

func TestStorageFilePaths(t *testing.T) {
	cfg := Config{DataDir: "/srv/passerelle"}

	if got := cfg.IndexFile(); got != "/srv/passerelle/vector_index/index.json" {
		t.Errorf("IndexFile() = %q", got)
	}
	if got := cfg.MemoryFile(); got != "/srv/passerelle/memory/conversation_state.json" {
		t.Errorf("MemoryFile() = %q", got)
	}
}
