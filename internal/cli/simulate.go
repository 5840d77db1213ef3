package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/health"
	"github.com/vietddude/recoverd/internal/recovery"
)

var (
	simType     string
	simSeverity string
	simCount    int
	simMessage  string
	simRealTime bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Feed synthetic errors through an in-process orchestrator and print the statistics",
	Args:  cobra.NoArgs,
	Run:   runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simType, "type", string(domain.ErrorTypeNetwork), "error type")
	simulateCmd.Flags().StringVar(&simSeverity, "severity", string(domain.SeverityMedium), "error severity")
	simulateCmd.Flags().IntVarP(&simCount, "count", "n", 1, "number of errors to send")
	simulateCmd.Flags().StringVar(&simMessage, "message", "simulated failure", "error message")
	simulateCmd.Flags().BoolVar(&simRealTime, "real-time", false, "honour retry delays instead of skipping them")
	rootCmd.AddCommand(simulateCmd)
}

type simulation struct {
	Statistics  health.Statistics `json:"statistics"`
	Degradation degrade.State     `json:"degradation"`
}

func runSimulate(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	errType, err := domain.ParseErrorType(simType)
	if err != nil {
		slog.Error("Invalid --type", "error", err)
		os.Exit(1)
	}
	severity, err := domain.ParseSeverity(simSeverity)
	if err != nil {
		slog.Error("Invalid --severity", "error", err)
		os.Exit(1)
	}

	controller := degrade.NewController(nil, slog.Default())
	controller.SetReloadHook(func(m degrade.Marker) {
		slog.Warn("Safe reload requested (simulated)", "reason", m.Reason, "error_id", m.ErrorID)
	})

	overrides, err := cfg.StrategyOverrides()
	if err != nil {
		slog.Error("Invalid strategy overrides", "error", err)
		os.Exit(1)
	}
	strategies, err := recovery.ApplyOverrides(recovery.DefaultStrategies(controller, nil), overrides)
	if err != nil {
		slog.Error("Invalid strategy overrides", "error", err)
		os.Exit(1)
	}
	registry, err := recovery.NewRegistry(strategies...)
	if err != nil {
		slog.Error("Failed to build registry", "error", err)
		os.Exit(1)
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		slog.Error("Invalid health tier", "error", err)
		os.Exit(1)
	}

	opts := []recovery.Option{
		recovery.WithLogger(slog.Default()),
		recovery.WithThresholds(thresholds),
		recovery.WithHistoryCapacity(cfg.Recovery.MaxHistory),
		recovery.WithDegrader(controller),
	}
	if !simRealTime {
		opts = append(opts, recovery.WithSleep(func(context.Context, time.Duration) error { return nil }))
	}
	o := recovery.New(registry, opts...)
	defer o.Cleanup()

	ctx := context.Background()
	for i := 0; i < simCount; i++ {
		o.HandleError(ctx, domain.ErrorInput{
			Type:     errType,
			Severity: severity,
			Message:  simMessage,
			Source:   "simulate",
		})
	}
	o.Wait()

	out := simulation{Statistics: o.Statistics(), Degradation: controller.Snapshot()}
	out.Statistics.RecentErrors = nil

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
