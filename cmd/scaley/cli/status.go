package cli

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the scaley server is running",
		Long:  "Check the status of the background server, including process state and HTTP health.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			pid, err := readPID(cfg)
			if err != nil {
				fmt.Fprintln(out, "Server is not running (no PID file found).")
				return nil
			}
			if !isProcessRunning(pid) {
				removePID(cfg)
				fmt.Fprintln(out, "Server is not running (stale PID file removed).")
				return nil
			}

			host := cfg.Server.Host
			if host == "" || host == "0.0.0.0" || host == "::" {
				host = "127.0.0.1"
			}
			healthAddr := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)) + "/api/health"
			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Get(healthAddr)
			if err != nil {
				fmt.Fprintf(out, "Server process is running (PID %d) but not responding to HTTP.\n", pid)
				fmt.Fprintf(out, "  Logs: %s\n", logFilePath(cfg))
				return nil
			}
			resp.Body.Close()

			fmt.Fprintf(out, "Server is running (PID %d)\n", pid)
			fmt.Fprintf(out, "  Health:  %s (%d)\n", healthAddr, resp.StatusCode)
			fmt.Fprintf(out, "  Logs:    %s\n", logFilePath(cfg))
			return nil
		},
	}
}
