package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const registryYAML = `
models:
  capabilities:
    planning:
      description: plans
      preferred: [local]
      fallback: [hosted]
    answering:
      preferred: [hosted]
  endpoints:
    local:
      provider: ollama
      url: http://localhost:11434/v1
      model: qwen2.5:14b
    hosted:
      provider: gemini
      model: gemini-2.5-flash
      max_tokens: 2048
  defaults:
    model: hosted
`

func TestLoadFromYAML(t *testing.T) {
	r, err := LoadFromYAML([]byte(registryYAML))
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}

	if got := r.Resolve(CapabilityPlanning); got != "local" {
		t.Errorf("Resolve(planning) = %q", got)
	}
	if got := r.Resolve(CapabilityExtraction); got != "hosted" {
		t.Errorf("Resolve(extraction) = %q, want default", got)
	}
	ep := r.GetEndpoint("hosted")
	if ep == nil || ep.MaxTokens != 2048 || ep.Provider != "gemini" {
		t.Errorf("hosted endpoint = %+v", ep)
	}
}

func TestLoadFromJSON(t *testing.T) {
	data := []byte(`{"capabilities":{"answering":{"preferred":["a"]}},"endpoints":{"a":{"provider":"openai","model":"gpt-4o-mini"}}}`)
	r, err := LoadFromJSON(data)
	if err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	if got := r.Resolve(CapabilityAnswering); got != "a" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown endpoint",
			yaml:    "capabilities:\n  planning:\n    preferred: [ghost]\nendpoints:\n  real:\n    provider: ollama\n    model: x\n",
			wantErr: `unknown endpoint "ghost"`,
		},
		{
			name:    "unknown capability",
			yaml:    "capabilities:\n  coding:\n    preferred: [real]\nendpoints:\n  real:\n    provider: ollama\n    model: x\n",
			wantErr: `unknown capability "coding"`,
		},
		{
			name:    "endpoint without model",
			yaml:    "endpoints:\n  real:\n    provider: ollama\n",
			wantErr: "requires provider and model",
		},
		{
			name:    "empty",
			yaml:    "{}",
			wantErr: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromYAML([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(r.ListEndpoints()) != 2 {
		t.Errorf("endpoints = %v", r.ListEndpoints())
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMergeFromConfig(t *testing.T) {
	r := NewDefaultRegistry()
	r.MergeFromConfig(&RegistryConfig{
		Capabilities: map[string]*CapabilityConfig{"planning": {Preferred: []string{"qwen"}}},
		Endpoints:    map[string]*EndpointConfig{"qwen": {Provider: "ollama", Model: "qwen2.5:32b"}},
	})

	if got := r.Resolve(CapabilityPlanning); got != "qwen" {
		t.Errorf("Resolve = %q", got)
	}
	if got := r.GetEndpoint("qwen").Model; got != "qwen2.5:32b" {
		t.Errorf("model = %q", got)
	}
	// Untouched entries survive.
	if r.GetEndpoint("gemini-flash") == nil {
		t.Error("expected gemini-flash to survive merge")
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewDefaultRegistry()
	w := NewWatcher(path, r, nil)
	if !w.Reload() {
		t.Fatal("expected reload to succeed")
	}
	if got := r.Resolve(CapabilityPlanning); got != "local" {
		t.Errorf("Resolve after reload = %q", got)
	}

	if err := os.WriteFile(path, []byte("capabilities: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w.Reload() {
		t.Fatal("expected invalid file to be rejected")
	}
	if got := r.Resolve(CapabilityPlanning); got != "local" {
		t.Errorf("registry changed after invalid reload: %q", got)
	}
}

func TestWatcherRunPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewDefaultRegistry()
	w := NewWatcher(path, r, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(registryYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && r.Resolve(CapabilityPlanning) != "local" {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := r.Resolve(CapabilityPlanning); got != "local" {
		t.Errorf("Resolve = %q, want local", got)
	}
}
