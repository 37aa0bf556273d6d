package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getscaley/scaley/internal/config"
)

var appVersion string // set in Execute, shown by serve

// rootOptions holds the persistent flag values.
type rootOptions struct {
	cfgFile string
	envFile string
	dataDir string
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	return newRootCmd(version, commit, date).Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	opts := &rootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "scaley",
		Short: "Admin dashboard API server",
		Long: `scaley serves the admin dashboard API: admin accounts, roles and
permissions, bearer-token authentication and a per-request activity log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
				v.Set("data_dir", opts.dataDir)
			}
			return config.Prepare(v, config.LoadOptions{
				ConfigFile: opts.cfgFile,
				EnvFile:    opts.envFile,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./scaley.yaml or ~/.scaley/scaley.yaml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory for the SQLite database and PID file (default: ~/.scaley)")

	app := &app{viper: v}
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newAdminCmd(app))
	cmd.AddCommand(newRoleCmd(app))
	cmd.AddCommand(newLogsCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newStopCmd(app))
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

// app is the state shared by subcommands once flags are parsed.
type app struct {
	viper *viper.Viper
}

// config decodes and validates the effective configuration.
func (a *app) config() (*config.Config, error) {
	return config.FromViper(a.viper)
}

// newLogger builds the process logger. dev forces debug level.
func newLogger(cfg *config.Config, dev bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}
	if dev {
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level}
	switch cfg.Logging.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}
}
