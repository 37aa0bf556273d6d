package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/getscaley/scaley/internal/config"
	"github.com/getscaley/scaley/internal/service"
	"github.com/getscaley/scaley/internal/store"
)

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// services bundles the domain services built from one store.
type services struct {
	store  *store.Store
	hasher *service.Hasher
	tokens *service.TokenService
	auth   *service.AuthService
	admins *service.AdminService
	seeder *service.Seeder
}

func newServices(st *store.Store, cfg *config.Config, logger *slog.Logger) *services {
	hasher := service.NewHasher(cfg.Auth.BcryptCost)
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.JWTExpiry)
	return &services{
		store:  st,
		hasher: hasher,
		tokens: tokens,
		auth:   service.NewAuthService(st, tokens, hasher),
		admins: service.NewAdminService(st, hasher),
		seeder: service.NewSeeder(st, hasher, logger),
	}
}

// withServices loads the configuration, opens the store and runs fn. Log
// output of CLI commands goes to stderr at warn level and above.
func (a *app) withServices(ctx context.Context, fn func(cfg *config.Config, svc *services) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, newServices(st, cfg, logger))
}

// promptPassword reads a password from the terminal twice without echo.
func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password is required when stdin is not a terminal")
	}

	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(pw) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pw), nil
}

// --- PID file management ---

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "scaley.pid")
}

func writePID(cfg *config.Config, pid int) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(cfg), []byte(strconv.Itoa(pid)), 0644)
}

func readPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(pidFilePath(cfg))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID(cfg *config.Config) {
	os.Remove(pidFilePath(cfg))
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "scaley.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
