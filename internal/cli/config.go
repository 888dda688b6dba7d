package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds CLI settings. Flags override ASSASSIN_* environment variables.
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
}

// DefaultConfig reads defaults from the environment
func DefaultConfig() *Config {
	return &Config{
		ServerURL: envOr("ASSASSIN_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("ASSASSIN_TOKEN"),
		TokenFile: envOr("ASSASSIN_TOKEN_FILE", defaultTokenFile()),
		Output:    envOr("ASSASSIN_OUTPUT", OutputText),
	}
}

// Validate checks the output format and server URL
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", c.Output, OutputText, OutputJSON)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q", c.ServerURL)
	}
	return nil
}

// LoadToken reads the token file unless a token was given directly.
// A missing file is not an error: public commands work without one.
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}
	data, err := os.ReadFile(c.TokenFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken writes the token file, readable by the owner only
func (c *Config) SaveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.TokenFile), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(c.TokenFile, []byte(token), 0o600); err != nil {
		return err
	}
	c.Token = token
	return nil
}

// ClearToken removes the token file. Removing a missing file succeeds.
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".assassin", "token")
	}
	return filepath.Join(home, ".assassin", "token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
