package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func noEnv(string) string { return "" }

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	want := defaultConfig()
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("loadConfig() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
backendURL: https://api.example.nl
siteURL: https://vraagmijnoverheid.nl
greeting: ""
typingSpeed: 20ms
viewTTL: 1m
storePath: /tmp/woo.db
documentHosts:
  - open.overheid.nl
  - " "
log:
  level: debug
  format: JSON
`)

	cfg, err := loadConfig(path, noEnv)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	want := config{
		Port:          "9000",
		BackendURL:    "https://api.example.nl",
		SiteURL:       "https://vraagmijnoverheid.nl",
		Greeting:      "",
		TypingSpeed:   20 * time.Millisecond,
		ViewTTL:       time.Minute,
		StorePath:     "/tmp/woo.db",
		DocumentHosts: []string{"open.overheid.nl"},
		Log:           logConfig{Level: slog.LevelDebug, Format: "json"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("loadConfig() = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "port: \"9000\"\nbackendURL: http://file:8000\n")
	env := map[string]string{
		"WOO_BACKEND_URL": "http://env:8000",
		"PORT":            "7000",
	}

	cfg, err := loadConfig(path, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.BackendURL != "http://env:8000" || cfg.Port != "7000" {
		t.Errorf("loadConfig() = %+v, want env overrides", cfg)
	}
	if cfg.Greeting != defaultGreeting {
		t.Errorf("Greeting = %q, want default", cfg.Greeting)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad duration", content: "typingSpeed: fast\n"},
		{name: "negative duration", content: "viewTTL: -1s\n"},
		{name: "bad level", content: "log:\n  level: loud\n"},
		{name: "bad format", content: "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfig(t, tt.content), noEnv); err == nil {
				t.Error("loadConfig() error = nil, want error")
			}
		})
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""), noEnv)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, defaultConfig()) {
		t.Errorf("loadConfig() = %+v, want defaults", cfg)
	}
}

func TestConfigDocumentHosts(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
		want []string
	}{
		{
			name: "Backend and configured hosts",
			cfg:  config{BackendURL: "https://api.example.nl:8443", DocumentHosts: []string{"open.overheid.nl"}},
			want: []string{"api.example.nl", "open.overheid.nl"},
		},
		{
			name: "Invalid backend url",
			cfg:  config{BackendURL: "://", DocumentHosts: []string{"open.overheid.nl"}},
			want: []string{"open.overheid.nl"},
		},
		{
			name: "Nothing configured",
			cfg:  config{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.documentHosts(); !slices.Equal(got, tt.want) {
				t.Errorf("documentHosts() = %v, want %v", got, tt.want)
			}
		})
	}
}
