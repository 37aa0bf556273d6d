package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# scaley configuration
# Every key can be overridden with a SCALEY_ environment variable,
# e.g. SCALEY_AUTH_JWT_SECRET or SCALEY_SERVER_PORT.

`

const redacted = "********"

// WriteDefaultConfig writes the default configuration to a YAML file. An
// existing file is only replaced when force is set.
func WriteDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := Default()
	cfg.Database.DSN = ""
	data, err := cfg.YAML(false)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, append([]byte(fileHeader), data...), 0600)
}

// YAML renders c as YAML. With redact set the JWT secret and database DSN
// are masked.
func (c *Config) YAML(redact bool) ([]byte, error) {
	out := *c
	if redact {
		if out.Auth.JWTSecret != "" {
			out.Auth.JWTSecret = redacted
		}
		if out.Database.DSN != "" && out.Database.Driver != "sqlite" {
			out.Database.DSN = redacted
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
