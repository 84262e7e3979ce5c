// Package cli wires the engine's cobra command tree together, the way
// neilberkman-ccrider/internal/interface/cli's root.go does: one
// rootCmd that runs the engine's stdio loop directly; it has no
// subcommands.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Marabii/fatfile/internal/config"
	"github.com/Marabii/fatfile/internal/logging"
	"github.com/Marabii/fatfile/internal/protocol"
)

var (
	configPath  string
	versionInfo string
)

// SetVersion sets the version string reported by `fatfile --version`.
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fatfile",
	Short: "Line-oriented viewer engine for very large text files",
	Long: `fatfile is the back-end engine behind a large-file viewer: it speaks a
newline-delimited JSON protocol over stdin/stdout, indexing, watching, and
searching files far larger than comfortably fit in memory.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (defaults to XDG config dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Dir:        cfg.Logging.Dir,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logging.Shutdown()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := protocol.New(cfg, os.Stdout)
	return d.Run(ctx, os.Stdin)
}
