package config

import (
	"errors"
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and contradictory option
// combinations. Returns nil if valid, or an error joining every problem
// found. A validation failure is fatal at session start.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ManifestURL == "" {
		errs = append(errs, ValidationError{
			Field:   "manifest_url",
			Message: "MPD manifest URL is required",
		})
	} else if err := validateURL(cfg.ManifestURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "manifest_url",
			Message: err.Error(),
		})
	}

	switch cfg.ABRAlgorithm {
	case "throughput", "buffer", "hybrid":
	default:
		errs = append(errs, ValidationError{
			Field:   "abr",
			Message: fmt.Sprintf("must be one of: throughput, buffer, hybrid (got %q)", cfg.ABRAlgorithm),
		})
	}

	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin >= 1.0 {
		errs = append(errs, ValidationError{
			Field:   "safety_margin",
			Message: fmt.Sprintf("must be a fraction in (0, 1), got %g", cfg.SafetyMargin),
		})
	}

	if cfg.StartupBufferThreshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "startup_buffer",
			Message: "must be positive",
		})
	}
	if cfg.ReservoirThreshold < cfg.StartupBufferThreshold {
		errs = append(errs, ValidationError{
			Field:   "reservoir",
			Message: "must not be below the startup buffer threshold",
		})
	}
	if cfg.MaxBuffer > 0 && cfg.MaxBuffer < cfg.ReservoirThreshold {
		errs = append(errs, ValidationError{
			Field:   "max_buffer",
			Message: "must not be below the reservoir threshold",
		})
	}

	if cfg.EstimatorWindowSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "estimator_window",
			Message: "must be at least 1",
		})
	}
	if cfg.EstimatorHalfLife < 0 {
		errs = append(errs, ValidationError{
			Field:   "estimator_half_life",
			Message: "must not be negative",
		})
	}

	if cfg.SegmentRetryLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "seg_retry",
			Message: "must not be negative",
		})
	}
	if cfg.SegmentRetryBackoff < 0 {
		errs = append(errs, ValidationError{
			Field:   "seg_retry_backoff",
			Message: "must not be negative",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be positive",
		})
	}
	if cfg.CapBitrate < 0 {
		errs = append(errs, ValidationError{
			Field:   "cap_bitrate",
			Message: "must not be negative",
		})
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf(`must be "json" or "text" (got %q)`, cfg.LogFormat),
		})
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL missing host")
	}
	return nil
}
