package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// Flags bound in newRootCmd().
var (
	flagAddr    string
	flagEnvFile string
	flagJSON    bool
	flagVerbose bool
	flagQuiet   bool
)

// httpClientTimeout bounds every outbound Graph request so a hung remote
// call cannot block a handler indefinitely.
const httpClientTimeout = 30 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds the root command. The root command runs the web server;
// there are no subcommands beyond cobra's built-ins.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onedrive-console",
		Short: "Browser-based OneDrive admin console",
		Long: "A web console for a OneDrive account: list, upload, download, delete, " +
			"and create folders, authenticated via device-code or app-only OAuth.",
		Version: version,
		// Silence cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(flagVerbose, flagQuiet, flagJSON)
			slog.SetDefault(logger)

			return runServe(cmd.Context(), logger)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "env file to load before reading configuration")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "log in JSON format")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational logging")

	return cmd
}

// newLogger constructs the process logger. Verbose wins over quiet. JSON
// output is used when requested or when stderr is not a terminal.
func newLogger(verbose, quiet, json bool) *slog.Logger {
	level := slog.LevelInfo

	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if json || !isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
