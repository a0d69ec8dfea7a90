package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type logConfig struct {
	Level  slog.Level `yaml:"level"`
	Format string     `yaml:"format"`
}

type config struct {
	Port        string        `yaml:"port"`
	BackendURL  string        `yaml:"backendURL"`
	SiteURL     string        `yaml:"siteURL"`
	Greeting    string        `yaml:"greeting"`
	TypingSpeed time.Duration `yaml:"typingSpeed"`
	ViewTTL     time.Duration `yaml:"viewTTL"`
	StorePath   string        `yaml:"storePath"`
	Log         logConfig     `yaml:"log"`

	// DocumentHosts are the hosts source documents may be fetched from, besides the backend.
	DocumentHosts []string `yaml:"documentHosts"`
}

const defaultGreeting = "Hallo! Ik help u graag bij het vinden van overheidsinformatie. " +
	"Waar bent u naar op zoek?"

func defaultConfig() config {
	return config{
		Port:        "8080",
		BackendURL:  "http://localhost:8000",
		Greeting:    defaultGreeting,
		TypingSpeed: 5 * time.Millisecond,
		ViewTTL:     2 * time.Minute,
		Log:         logConfig{Level: slog.LevelInfo, Format: "text"},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port          string   `yaml:"port"`
		BackendURL    string   `yaml:"backendURL"`
		SiteURL       string   `yaml:"siteURL"`
		Greeting      *string  `yaml:"greeting"`
		TypingSpeed   string   `yaml:"typingSpeed"`
		ViewTTL       string   `yaml:"viewTTL"`
		StorePath     string   `yaml:"storePath"`
		DocumentHosts []string `yaml:"documentHosts"`
		Log           struct {
			Level  string `yaml:"level"`
			Format string `yaml:"format"`
		} `yaml:"log"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.BackendURL != "" {
		c.BackendURL = rawConfig.BackendURL
	}
	if rawConfig.SiteURL != "" {
		c.SiteURL = rawConfig.SiteURL
	}
	if rawConfig.Greeting != nil {
		c.Greeting = *rawConfig.Greeting
	}
	if rawConfig.StorePath != "" {
		c.StorePath = rawConfig.StorePath
	}
	for _, h := range rawConfig.DocumentHosts {
		if h = strings.TrimSpace(h); h != "" {
			c.DocumentHosts = append(c.DocumentHosts, h)
		}
	}

	var err error
	if c.TypingSpeed, err = parseDuration("typingSpeed", rawConfig.TypingSpeed, c.TypingSpeed); err != nil {
		return err
	}
	if c.ViewTTL, err = parseDuration("viewTTL", rawConfig.ViewTTL, c.ViewTTL); err != nil {
		return err
	}

	if rawConfig.Log.Level != "" {
		if err := c.Log.Level.UnmarshalText([]byte(rawConfig.Log.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", rawConfig.Log.Level, err)
		}
	}
	switch format := strings.ToLower(rawConfig.Log.Format); format {
	case "":
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("unknown log format: %s", rawConfig.Log.Format)
	}

	return nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return d, nil
}

// loadConfig reads the config file at path on top of the defaults. A missing file is not an error.
// WOO_BACKEND_URL and PORT override the file.
func loadConfig(path string, getenv func(string) string) (config, error) {
	cfg := defaultConfig()

	cfgFile, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer cfgFile.Close()
		if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if v := getenv("WOO_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	return cfg, nil
}

// documentHosts returns the hosts the document viewer may download from: the backend host and the
// configured document hosts.
func (c config) documentHosts() []string {
	var hosts []string
	if u, err := url.Parse(c.BackendURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	return append(hosts, c.DocumentHosts...)
}

func (c config) logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Log.Level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
