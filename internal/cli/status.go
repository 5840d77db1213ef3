package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/recoverd/internal/core/config"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/health"
	"github.com/vietddude/recoverd/internal/infra/storage/postgres"
	"github.com/vietddude/recoverd/internal/reporting"
)

var (
	statusURL   string
	eventWindow time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health, degradation switches and recent reporting events",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "base URL of a running recoverd (default http://localhost:<server.port>)")
	statusCmd.Flags().DurationVar(&eventWindow, "since", 24*time.Hour, "window for stored event counts")
	rootCmd.AddCommand(statusCmd)
}

type detailedStatus struct {
	Status       health.SystemStatus `json:"status"`
	TotalErrors  int                 `json:"total_errors"`
	RecoveryRate float64             `json:"recovery_rate"`
	Recent       int                 `json:"recent_errors"`
	Degradation  *degrade.State      `json:"degradation"`
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	base := statusURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := fetchStatus(ctx, base)
	if err != nil {
		slog.Error("Failed to query service", "url", base, "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tERRORS\tRECENT\tRECOVERY RATE")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", report.Status, report.TotalErrors, report.Recent, report.RecoveryRate)
	_ = w.Flush()

	if d := report.Degradation; d != nil {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "SWITCH\tON")
		for _, row := range []struct {
			name string
			on   bool
		}{
			{"safe_mode", d.SafeMode},
			{"optimizations_disabled", d.OptimizationsDisabled},
			{"basic_performance", d.BasicPerformance},
			{"local_analytics", d.LocalAnalytics},
			{"control_variant", d.ControlVariant},
			{"cache_bypassed", d.CacheBypassed},
			{"simple_interactions", d.SimpleInteractions},
			{"compatibility_mode", d.CompatibilityMode},
		} {
			_, _ = fmt.Fprintf(w, "%s\t%t\n", row.name, row.on)
		}
		_ = w.Flush()
	}

	if cfg.Reporting.Postgres {
		printEventCounts(ctx, cfg)
	}
}

func fetchStatus(ctx context.Context, base string) (*detailedStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health/detailed", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var report detailedStatus
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

func printEventCounts(ctx context.Context, cfg *config.AppConfig) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Warn("Failed to connect to database", "error", err)
		return
	}
	defer func() {
		_ = db.Close()
	}()

	counts, err := postgres.NewEventRepo(db).CountByKind(ctx, time.Now().Add(-eventWindow))
	if err != nil {
		slog.Warn("Failed to count events", "error", err)
		return
	}

	kinds := make([]reporting.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "EVENT (last %s)\tCOUNT\n", eventWindow)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", k, counts[k])
	}
	_ = w.Flush()
}
