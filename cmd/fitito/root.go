package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/claude/fitito/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "fitito",
	Short:         "fitito records training sessions and syncs them when the server is reachable",
	Long:          "fitito is an offline-first workout logger. Sessions live on this device until they are completed; completed sessions are written to the server, or queued and synced later.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "fitito", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "fitito.yaml", "Path to client config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.AddCommand(versionCmd)
}

// withApp loads the config, opens the local state and runs fn. Logs go to
// stderr so command output on stdout stays machine-readable.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}
	a, err := openApp(cfg.Client, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}

func readJSON(path string, v any) error {
	if path == "" {
		return fmt.Errorf("a JSON file is required")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
