package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/stats"
	"github.com/streamtools/go-dash-emulator/internal/throughput"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

const tickInterval = 250 * time.Millisecond

// =============================================================================
// Tracker
// =============================================================================

// Tracker receives per-cycle updates from the playback session and holds
// the most recent state for the display. It is safe for concurrent use:
// the session goroutine writes, the TUI goroutine reads.
type Tracker struct {
	mu       sync.Mutex
	last     stats.CycleRecord
	snap     buffer.Snapshot
	hasCycle bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// OnCycle records the outcome of a scheduler cycle.
func (t *Tracker) OnCycle(rec stats.CycleRecord, snap buffer.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = rec
	t.snap = snap
	t.hasCycle = true
}

// Latest returns the most recent cycle record and buffer snapshot.
// The boolean reports whether any cycle has completed yet.
func (t *Tracker) Latest() (stats.CycleRecord, buffer.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.snap, t.hasCycle
}

// =============================================================================
// Model
// =============================================================================

// Model is the Bubble Tea model for the live session dashboard.
type Model struct {
	manifestURL string
	algorithm   string
	metricsAddr string

	tracker   *Tracker
	recorder  *stats.Recorder
	estimator *throughput.Estimator

	startTime time.Time

	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	ManifestURL string
	Algorithm   string
	MetricsAddr string
	Tracker     *Tracker
	Recorder    *stats.Recorder
	Estimator   *throughput.Estimator
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		manifestURL: cfg.ManifestURL,
		algorithm:   cfg.Algorithm,
		metricsAddr: cfg.MetricsAddr,
		tracker:     cfg.Tracker,
		recorder:    cfg.Recorder,
		estimator:   cfg.Estimator,
		startTime:   time.Now(),
		width:       80,
		height:      24,
	}
}

// Init starts the tick loop.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// Elapsed returns wall time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}
