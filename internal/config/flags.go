package config

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses command-line flags and returns a Config.
// The manifest URL is the single positional argument.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-dash-emulator - headless DASH client emulation for ABR experiments

Usage:
  go-dash-emulator [flags] <MPD_URL>

The emulator fetches the manifest, then repeatedly decides which
representation to download next, downloads it, and simulates the player's
buffer and playback clock. No media is decoded or rendered.

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # On-demand manifest with the hybrid rule
  go-dash-emulator https://example.com/vod/manifest.mpd

  # Pure throughput rule with a conservative margin, JSON report
  go-dash-emulator -abr throughput -safety-margin 0.8 -report out.json https://example.com/vod/manifest.mpd

  # Live dashboard
  go-dash-emulator -tui https://example.com/live/manifest.mpd

`)
	}

	// Session
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Maximum session duration (0 = until manifest end)")

	// ABR
	flag.StringVar(&cfg.ABRAlgorithm, "abr", cfg.ABRAlgorithm, `ABR algorithm: "throughput", "buffer", "hybrid"`)
	flag.Float64Var(&cfg.SafetyMargin, "safety-margin", cfg.SafetyMargin, "Throughput safety margin, fraction below 1.0")
	flag.Int64Var(&cfg.CapBitrate, "cap-bitrate", cfg.CapBitrate, "Bitrate cap in bits/sec (0 = uncapped)")

	// Player buffer
	flag.DurationVar(&cfg.StartupBufferThreshold, "startup-buffer", cfg.StartupBufferThreshold, "Buffered duration required before playback starts")
	flag.DurationVar(&cfg.ReservoirThreshold, "reservoir", cfg.ReservoirThreshold, "Buffer level below which the buffer rule pins the lowest bitrate")
	flag.DurationVar(&cfg.MaxBuffer, "max-buffer", cfg.MaxBuffer, "Buffer level above which downloads pause")

	// Estimator
	flag.IntVar(&cfg.EstimatorWindowSize, "estimator-window", cfg.EstimatorWindowSize, "Throughput estimator window (samples)")
	flag.DurationVar(&cfg.EstimatorHalfLife, "estimator-half-life", cfg.EstimatorHalfLife, "Exponential decay half-life for older samples")

	// Transport
	flag.IntVar(&cfg.SegmentRetryLimit, "seg-retry", cfg.SegmentRetryLimit, "Retries per failed segment before recording the cycle as failed")
	flag.DurationVar(&cfg.SegmentRetryBackoff, "seg-retry-backoff", cfg.SegmentRetryBackoff, "Initial backoff between segment retries")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout")
	flag.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent")

	// Live
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "Live manifest refresh interval (0 = MPD minimumUpdatePeriod)")

	// Output
	flag.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "Write JSON session report to this path")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics listen address (empty = disabled)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose (debug) logging")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Live terminal dashboard")

	flag.Parse()

	if flag.NArg() > 1 {
		return nil, fmt.Errorf("expected one MPD URL, got %d arguments", flag.NArg())
	}
	if flag.NArg() == 1 {
		cfg.ManifestURL = flag.Arg(0)
	}
	return cfg, nil
}
