// Exit summary formatter, displayed when a session ends.
package stats

import (
	"fmt"
	"strings"
	"time"
)

// SummaryConfig holds display context for the exit summary.
type SummaryConfig struct {
	ManifestURL string
	Algorithm   string
	MetricsAddr string
}

// FormatExitSummary renders the final session statistics for the terminal.
func FormatExitSummary(s Summary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")
	b.WriteString("                   go-dash-emulator Session Summary\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Manifest:               %s\n", cfg.ManifestURL)
	fmt.Fprintf(&b, "ABR Algorithm:          %s\n", cfg.Algorithm)
	fmt.Fprintf(&b, "Session Duration:       %s\n\n", FormatDuration(s.Duration))

	b.WriteString("Segments:\n")
	fmt.Fprintf(&b, "  Downloaded:           %d\n", s.SegmentsDownloaded)
	if s.SegmentsFailed > 0 {
		fmt.Fprintf(&b, "  Failed:               %d\n", s.SegmentsFailed)
	}
	fmt.Fprintf(&b, "  Total Bytes:          %s\n", FormatBytes(s.TotalBytes))
	if s.SegmentsDownloaded > 0 {
		fmt.Fprintf(&b, "  Download P50/P95/P99: %v / %v / %v\n",
			s.DownloadP50.Round(time.Millisecond),
			s.DownloadP95.Round(time.Millisecond),
			s.DownloadP99.Round(time.Millisecond),
		)
	}
	b.WriteString("\n")

	b.WriteString("Quality of Experience:\n")
	fmt.Fprintf(&b, "  Average Bitrate:      %.0f kbps\n", s.AverageBitrate/1000)
	fmt.Fprintf(&b, "  Quality Switches:     %d\n", s.QualitySwitches)
	fmt.Fprintf(&b, "  Startup Delay:        %v\n", s.StartupDelay.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Stalls:               %d (%.2fs total)\n", s.StallCount, s.StallSeconds)
	b.WriteString("\n")

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString("═══════════════════════════════════════════════════════════════════\n")
	return b.String()
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatBytes formats a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
