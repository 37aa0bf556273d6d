package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStopCmd(a *app) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background scaley server",
		Long:  "Stop a server started with 'scaley serve', waiting for in-flight requests to drain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			pid, err := readPID(cfg)
			if err != nil {
				return fmt.Errorf("no running server found (missing PID file at %s)", pidFilePath(cfg))
			}
			if !isProcessRunning(pid) {
				removePID(cfg)
				return fmt.Errorf("server (PID %d) is not running (stale PID file removed)", pid)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stopping scaley server (PID %d)...\n", pid)
			if err := stopProcess(pid); err != nil {
				return fmt.Errorf("failed to stop server: %w", err)
			}

			deadline := time.Now().Add(wait)
			for time.Now().Before(deadline) {
				time.Sleep(100 * time.Millisecond)
				if !isProcessRunning(pid) {
					removePID(cfg)
					fmt.Fprintln(cmd.OutOrStdout(), "Server stopped.")
					return nil
				}
			}
			return fmt.Errorf("server (PID %d) did not stop within %s; it may still be draining connections", pid, wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 35*time.Second, "How long to wait for the server to exit")
	return cmd
}
