// Package config provides configuration management for go-dash-emulator.
package config

import "time"

// Config holds all configuration options for an emulation session.
type Config struct {
	// Session
	ManifestURL string        `json:"manifest_url"`
	Duration    time.Duration `json:"duration"` // 0 = until manifest end

	// ABR
	ABRAlgorithm string  `json:"abr_algorithm"` // throughput, buffer, hybrid
	SafetyMargin float64 `json:"safety_margin"` // fraction < 1.0
	CapBitrate   int64   `json:"cap_bitrate"`   // bits/sec, 0 = uncapped

	// Player buffer
	StartupBufferThreshold time.Duration `json:"startup_buffer_threshold"`
	ReservoirThreshold     time.Duration `json:"reservoir_threshold"`
	MaxBuffer              time.Duration `json:"max_buffer"` // pause downloads above this level

	// Throughput estimator
	EstimatorWindowSize int           `json:"estimator_window_size"`
	EstimatorHalfLife   time.Duration `json:"estimator_half_life"`

	// Transport / retry
	SegmentRetryLimit   int           `json:"segment_retry_limit"`
	SegmentRetryBackoff time.Duration `json:"segment_retry_backoff"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	UserAgent           string        `json:"user_agent"`

	// Live manifests
	RefreshInterval time.Duration `json:"refresh_interval"` // 0 = MPD minimumUpdatePeriod

	// Output
	ReportPath string `json:"report_path"` // JSON session report, "" = none

	// Observability
	MetricsAddr string `json:"metrics_addr"` // "" = no metrics server
	LogFormat   string `json:"log_format"`   // json, text
	Verbose     bool   `json:"verbose"`
	TUIEnabled  bool   `json:"tui"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// ABR
		ABRAlgorithm: "hybrid",
		SafetyMargin: 0.9,

		// Player buffer
		StartupBufferThreshold: 4 * time.Second,
		ReservoirThreshold:     8 * time.Second,
		MaxBuffer:              30 * time.Second,

		// Estimator
		EstimatorWindowSize: 10,
		EstimatorHalfLife:   8 * time.Second,

		// Transport
		SegmentRetryLimit:   3,
		SegmentRetryBackoff: 500 * time.Millisecond,
		RequestTimeout:      15 * time.Second,
		UserAgent:           "go-dash-emulator/1.0",

		// Observability
		MetricsAddr: "",
		LogFormat:   "json",
	}
}
