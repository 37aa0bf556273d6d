package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs Load against an empty working directory with no stray
// SCALEY_ variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Port != 4000 || cfg.RateLimit.Max != 100 || cfg.RateLimit.Window != 15*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.Database.DSN, "scaley.db") {
		t.Errorf("sqlite dsn = %q", cfg.Database.DSN)
	}
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Errorf("env = %q", cfg.Env)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTExpiry != time.Hour || cfg.Auth.Issuer != "scaley" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.DataDir != filepath.Join(dir, ".scaley") {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Database.DSN != filepath.Join(cfg.DataDir, "scaley.db") {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Server.TrustProxy {
		t.Error("trust_proxy should default to false")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
env: test
data_dir: /var/lib/scaley
server:
  port: 5000
  cors_origins: ["https://app.example.com"]
auth:
  jwt_expiry: 30m
database:
  driver: MariaDB
  dsn: user:pw@tcp(localhost:3306)/scaley
`)
	t.Setenv("SCALEY_SERVER_PORT", "6000")
	t.Setenv("SCALEY_RATE_LIMIT_ENABLED", "false")
	t.Setenv("SCALEY_SERVER_IP_ALLOWLIST", "10.0.0.0/8,127.0.0.1")
	t.Setenv("SCALEY_SERVER_TRUST_PROXY", "true")

	cfg, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != EnvTest {
		t.Errorf("env = %q", cfg.Env)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("port = %d, want env override 6000", cfg.Server.Port)
	}
	if cfg.RateLimit.Enabled {
		t.Error("rate limit should be disabled by env")
	}
	if len(cfg.Server.IPAllowlist) != 2 || cfg.Server.IPAllowlist[0] != "10.0.0.0/8" {
		t.Errorf("ip_allowlist = %v", cfg.Server.IPAllowlist)
	}
	if !cfg.Server.TrustProxy {
		t.Error("trust_proxy should be enabled by env")
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("cors_origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Auth.JWTExpiry != 30*time.Minute {
		t.Errorf("jwt_expiry = %v", cfg.Auth.JWTExpiry)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver = %q, want normalized mysql", cfg.Database.Driver)
	}
	opts := cfg.StoreOptions()
	if opts.DSN != "user:pw@tcp(localhost:3306)/scaley" || opts.MaxOpenConns != 10 {
		t.Errorf("store options = %+v", opts)
	}
}

func TestLoadFindsFileInWorkingDir(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "scaley.yaml"), "server:\n  port: 4100\n")

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("port = %d, want 4100", cfg.Server.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "SCALEY_AUTH_ISSUER=from-dotenv\nSCALEY_LOGGING_FORMAT=json\n")
	t.Setenv("SCALEY_LOGGING_FORMAT", "text")
	t.Cleanup(func() { os.Unsetenv("SCALEY_AUTH_ISSUER") })

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Issuer != "from-dotenv" {
		t.Errorf("issuer = %q", cfg.Auth.Issuer)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("format = %q, process env should win over dotenv", cfg.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad env", func(c *Config) { c.Env = "staging" }, "env must be"},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"missing dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }, "database.dsn"},
		{"default secret in production", func(c *Config) { c.Env = EnvProduction }, "jwt_secret must be changed"},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret is required"},
		{"zero expiry", func(c *Config) { c.Auth.JWTExpiry = 0 }, "jwt_expiry"},
		{"rate limit without max", func(c *Config) { c.RateLimit.Max = 0 }, "rate_limit"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"empty queue", func(c *Config) { c.Activity.QueueSize = 0 }, "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("production with custom secret", func(t *testing.T) {
		cfg := Default()
		cfg.Env = EnvProduction
		cfg.Auth.JWTSecret = "a-real-secret"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})
}

func TestSlogLevel(t *testing.T) {
	level, err := LoggingConfig{Level: "warn"}.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("SlogLevel = %v, %v", level, err)
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "scaley.yaml")

	if err := WriteDefaultConfig(path, false); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	if err := WriteDefaultConfig(path, false); err == nil {
		t.Error("expected error when file exists without force")
	}
	if err := WriteDefaultConfig(path, true); err != nil {
		t.Errorf("WriteDefaultConfig(force): %v", err)
	}

	cfg, err := Load(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load written file: %v", err)
	}
	def := Default()
	if cfg.Server.ShutdownTimeout != def.Server.ShutdownTimeout || cfg.Activity.Retention != def.Activity.Retention {
		t.Errorf("durations did not round trip: %+v", cfg)
	}
	if cfg.Database.DSN != filepath.Join(cfg.DataDir, "scaley.db") {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
}

func TestYAMLRedacts(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://u:secretpw@db/scaley"

	out, err := cfg.YAML(true)
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	s := string(out)
	if strings.Contains(s, DefaultJWTSecret) || strings.Contains(s, "secretpw") {
		t.Errorf("secrets not redacted:\n%s", s)
	}
	if !strings.Contains(s, "jwt_secret: '********'") && !strings.Contains(s, `jwt_secret: "********"`) {
		t.Errorf("jwt_secret not masked:\n%s", s)
	}
}
