package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/recoverd/internal/control"
)

var resetSafeModeCmd = &cobra.Command{
	Use:   "reset-safe-mode",
	Short: "Remove the persisted safe-mode marker so the next start runs normally",
	Args:  cobra.NoArgs,
	Run:   runResetSafeMode,
}

func init() {
	rootCmd.AddCommand(resetSafeModeCmd)
}

func runResetSafeMode(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if cfg.Redis.URL == "" {
		fmt.Println("No Redis configured, safe-mode marker lives in process memory only")
		return
	}

	ctx := context.Background()
	sup := control.NewSupervisor(cfg, slog.Default())
	defer sup.Close()

	m, err := sup.Markers().Get(ctx)
	if err != nil {
		slog.Error("Failed to read safe-mode marker", "error", err)
		os.Exit(1)
	}
	if m == nil {
		fmt.Println("No safe-mode marker set")
		return
	}

	if err := sup.ClearSafeMode(ctx); err != nil {
		slog.Error("Failed to reset safe mode", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Cleared safe-mode marker (reason: %s, error: %s)\n", m.Reason, m.ErrorID)
}
