package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/streamtools/go-dash-emulator/internal/stats"
)

// bufferBarScale is the buffer level that renders as a full bar.
const bufferBarScale = 30 * time.Second

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.renderPlayback(),
		m.renderQuality(),
		m.renderDownloads(),
		m.renderFooter(),
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	_, snap, _ := m.tracker.Latest()

	header := fmt.Sprintf(
		" go-dash-emulator │ %s │ %s │ Elapsed: %s ",
		m.algorithm,
		snap.State,
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Playback Section
// =============================================================================

func (m Model) renderPlayback() string {
	_, snap, ok := m.tracker.Latest()

	var lines []string
	lines = append(lines, sectionHeaderStyle.Render("Playback"))

	if !ok {
		lines = append(lines, dimStyle.Render("  waiting for first segment..."))
		return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	barWidth := m.width - 40
	if barWidth < 20 {
		barWidth = 20
	}
	ratio := float64(snap.Level) / float64(bufferBarScale)
	bar := RenderProgressBar(ratio, barWidth)

	lines = append(lines, fmt.Sprintf("  %s  Buffer: %s %s",
		RenderStateLabel(snap.State),
		bar,
		boldStyle.Render(fmt.Sprintf("%5.1fs", snap.Level.Seconds())),
	))
	lines = append(lines, fmt.Sprintf("  Position: %s   Stalls: %s   Stalled for: %s",
		baseStyle.Render(stats.FormatDuration(snap.PlaybackTime)),
		renderStallCount(snap.StallCount),
		mutedStyle.Render(fmt.Sprintf("%.1fs", snap.StallDuration.Seconds())),
	))

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderStallCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return statusError.Render(s)
	}
	return statusOK.Render(s)
}

// =============================================================================
// Quality Section
// =============================================================================

func (m Model) renderQuality() string {
	rec, _, ok := m.tracker.Latest()
	summary := m.recorder.Summarize()

	var lines []string
	lines = append(lines, sectionHeaderStyle.Render("Quality"))

	current := dimStyle.Render("-")
	if ok {
		current = boldStyle.Render(fmt.Sprintf("%s (%s)", rec.RepresentationID, formatBits(float64(rec.Bitrate))))
	}

	estimate := dimStyle.Render("warming up")
	if bps, err := m.estimator.Estimate(); err == nil {
		estimate = baseStyle.Render(formatBits(bps))
	}

	lines = append(lines, fmt.Sprintf("  Current: %s   Throughput: %s", current, estimate))
	lines = append(lines, fmt.Sprintf("  Switches: %s   Avg bitrate: %s",
		baseStyle.Render(fmt.Sprintf("%d", summary.QualitySwitches)),
		mutedStyle.Render(formatBits(summary.AverageBitrate)),
	))

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// =============================================================================
// Downloads Section
// =============================================================================

func (m Model) renderDownloads() string {
	summary := m.recorder.Summarize()

	var lines []string
	lines = append(lines, sectionHeaderStyle.Render("Downloads"))

	failed := fmt.Sprintf("%d", summary.SegmentsFailed)
	if summary.SegmentsFailed > 0 {
		failed = statusError.Render(failed)
	} else {
		failed = statusOK.Render(failed)
	}

	lines = append(lines, fmt.Sprintf("  Segments: %s ok / %s failed   Bytes: %s",
		boldStyle.Render(fmt.Sprintf("%d", summary.SegmentsDownloaded)),
		failed,
		baseStyle.Render(stats.FormatBytes(summary.TotalBytes)),
	))
	lines = append(lines, fmt.Sprintf("  Latency p50/p95/p99: %s / %s / %s",
		baseStyle.Render(formatMs(summary.DownloadP50)),
		mutedStyle.Render(formatMs(summary.DownloadP95)),
		mutedStyle.Render(formatMs(summary.DownloadP99)),
	))

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	footer := fmt.Sprintf("  %s   metrics: %s   press q to quit", m.manifestURL, m.metricsAddr)
	if m.metricsAddr == "" {
		footer = fmt.Sprintf("  %s   press q to quit", m.manifestURL)
	}
	return footerStyle.Render(footer)
}
