package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/recoverd/internal/control"
)

var clearSafeMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recovery service",
	Run:   runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&clearSafeMode, "clear-safe-mode", false, "discard a persisted safe-mode marker before starting")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := control.NewSupervisor(cfg, slog.Default())
	if clearSafeMode {
		if err := sup.ClearSafeMode(ctx); err != nil {
			slog.Error("Failed to clear safe mode", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Starting recoverd", "config", cfgPath, "port", cfg.Server.Port)

	if err := sup.Run(ctx); err != nil {
		slog.Error("recoverd stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
