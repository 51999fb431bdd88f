// Package main provides the go-dash-emulator CLI entry point.
//
// go-dash-emulator is a headless DASH client that downloads real segments
// from a real origin, simulates playback, and reports the quality-of-
// experience a viewer would have had: bitrate, switches, stalls, startup.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/streamtools/go-dash-emulator/internal/config"
	"github.com/streamtools/go-dash-emulator/internal/logging"
	"github.com/streamtools/go-dash-emulator/internal/metrics"
	"github.com/streamtools/go-dash-emulator/internal/scheduler"
	"github.com/streamtools/go-dash-emulator/internal/stats"
	"github.com/streamtools/go-dash-emulator/internal/transport"
	"github.com/streamtools/go-dash-emulator/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-dash-emulator
var version = "dev"

const serverShutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-dash-emulator %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	logger.Info("starting",
		"version", version,
		"manifest", cfg.ManifestURL,
		"abr", cfg.ABRAlgorithm,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	// Cancel the session on Ctrl+C; a second signal kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transport.NewHTTPClient(transport.HTTPConfig{
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
	})
	recorder := stats.NewRecorder()

	var observers scheduler.MultiObserver

	session, err := scheduler.New(scheduler.Options{
		Config:    cfg,
		Logger:    logger,
		Manifests: client,
		Segments:  client,
		Recorder:  recorder,
		Observer:  &observers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Prometheus endpoint (optional)
	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector(cfg.ManifestURL, cfg.ABRAlgorithm, session.Estimator())
		observers = append(observers, collector)

		server := metrics.NewServer(cfg.MetricsAddr, collector.Registry(), logger)
		if err := server.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	// Run the session, with the dashboard on top when requested.
	var runErr error
	if cfg.TUIEnabled {
		runErr = runWithTUI(ctx, stop, cfg, session, &observers)
	} else {
		runErr = session.Run(ctx)
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Error("session_failed", "error", runErr)
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}

	summary := recorder.Summarize()

	if cfg.ReportPath != "" {
		if err := writeReport(recorder, cfg.ReportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			return 1
		}
		logger.Info("report_written", "path", cfg.ReportPath)
	}

	fmt.Println(stats.FormatExitSummary(summary, stats.SummaryConfig{
		ManifestURL: cfg.ManifestURL,
		Algorithm:   cfg.ABRAlgorithm,
		MetricsAddr: cfg.MetricsAddr,
	}))

	return 0
}

// runWithTUI runs the session in a goroutine underneath the dashboard.
// The dashboard owns the terminal; the session drives a Tracker the
// dashboard polls.
func runWithTUI(ctx context.Context, stop context.CancelFunc, cfg *config.Config, session *scheduler.Session, observers *scheduler.MultiObserver) error {
	tracker := tui.NewTracker()
	*observers = append(*observers, tracker)

	program := tea.NewProgram(tui.New(tui.Config{
		ManifestURL: cfg.ManifestURL,
		Algorithm:   cfg.ABRAlgorithm,
		MetricsAddr: cfg.MetricsAddr,
		Tracker:     tracker,
		Recorder:    session.Recorder(),
		Estimator:   session.Estimator(),
	}))

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
		program.Send(tui.QuitMsg{})
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	// The user quit the TUI; cancel the session and wait for it.
	stop()
	return <-done
}

func writeReport(recorder *stats.Recorder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	report := recorder.BuildReport()
	if err := report.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        go-dash-emulator                           ║")
	fmt.Println("║           Headless DASH Playback and QoE Measurement              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Manifest:    %s\n", cfg.ManifestURL)
	fmt.Printf("  Algorithm:   %s\n", cfg.ABRAlgorithm)
	if cfg.Duration > 0 {
		fmt.Printf("  Duration:    %s\n", cfg.Duration)
	}
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.ReportPath != "" {
		fmt.Printf("  Report:      %s\n", cfg.ReportPath)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
