package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for the demo command: which PC/SC
// reader to open, the RP ID to request an assertion for, and where to
// find the large-blob decryption key.
type Config struct {
	Reader         int    `yaml:"reader"`
	RelyingPartyID string `yaml:"relying_party_id"`

	// LargeBlobKeyFile, if set, contains a 64-character hex-encoded
	// 32-byte key that overrides whatever largeBlobKey the assertion
	// itself reports. If unset but PromptLargeBlobKey is true, the key
	// is read interactively instead.
	LargeBlobKeyFile *string `yaml:"large_blob_key_file"`

	// PromptLargeBlobKey, when true and LargeBlobKeyFile is unset, reads
	// the override key from the terminal instead of trusting the
	// assertion's largeBlobKey extension.
	PromptLargeBlobKey *bool `yaml:"prompt_large_blob_key"`

	// RequireUV demands user verification in addition to user presence.
	RequireUV *bool `yaml:"require_uv"`

	baseDir string
}

// LoadConfig reads and validates a YAML config file, resolving any
// relative paths against the file's own directory.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.baseDir = filepath.Dir(path)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths() {
	if c.LargeBlobKeyFile != nil && !filepath.IsAbs(*c.LargeBlobKeyFile) {
		resolved := filepath.Join(c.baseDir, *c.LargeBlobKeyFile)
		c.LargeBlobKeyFile = &resolved
	}
}

// Validate checks required fields and basic value sanity.
func (c *Config) Validate() error {
	if c.RelyingPartyID == "" {
		return fmt.Errorf("relying_party_id is required")
	}
	if c.Reader < 0 {
		return fmt.Errorf("reader index must be >= 0")
	}
	return nil
}

func (c *Config) requireUV() bool {
	return c.RequireUV != nil && *c.RequireUV
}

func (c *Config) promptLargeBlobKey() bool {
	return c.PromptLargeBlobKey != nil && *c.PromptLargeBlobKey
}
