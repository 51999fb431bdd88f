// Package scheduler drives an emulation session: one control loop that
// asks the ABR rule for the next representation, downloads the segment
// through the transport collaborator, feeds the throughput estimator and
// buffer model, and emits every cycle to the statistics recorder.
//
// All simulation state is updated sequentially inside the loop; the only
// blocking operation is the transport fetch. Cancellation is cooperative
// and takes effect at cycle boundaries only, so statistics are never
// recorded from a torn-down cycle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamtools/go-dash-emulator/internal/abr"
	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/config"
	"github.com/streamtools/go-dash-emulator/internal/mpd"
	"github.com/streamtools/go-dash-emulator/internal/stats"
	"github.com/streamtools/go-dash-emulator/internal/throughput"
	"github.com/streamtools/go-dash-emulator/internal/transport"
)

// updateInterval is how long the loop idles when the buffer is full or a
// live manifest has no new segments yet.
const updateInterval = 500 * time.Millisecond

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Sleeper abstracts waiting so tests can run without wall-clock delays.
type Sleeper interface {
	// Sleep waits for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Observer is notified after every completed cycle. Used by the metrics
// collector and the TUI; a nil observer is valid.
type Observer interface {
	OnCycle(rec stats.CycleRecord, snap buffer.Snapshot)
}

// Session owns one emulation run. Create with New, drive with Run.
// Sessions share no mutable state, so independent sessions may run in
// parallel for batch experiments.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	manifests transport.ManifestFetcher
	segments  transport.SegmentFetcher

	rule      abr.Rule
	estimator *throughput.Estimator
	buf       *buffer.Model
	recorder  *stats.Recorder
	observer  Observer

	clock   Clock
	sleeper Sleeper

	manifest *mpd.Manifest

	// period indexes the period currently playing; periods play in
	// document order and never rewind.
	period int

	// Per adaptation set progress, keyed by "periodID/setID": the same
	// set id may legally recur in every period.
	nextIndex map[string]int
	previous  map[string]*mpd.Representation
	initDone  map[string]bool // "repID/initURL"

	nextRefresh time.Time
}

// Options carries the collaborators a Session is built from. Zero-value
// Clock/Sleeper/Observer fields get production defaults.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Manifests transport.ManifestFetcher
	Segments  transport.SegmentFetcher
	Recorder  *stats.Recorder
	Observer  Observer
	Clock     Clock
	Sleeper   Sleeper
}

// New builds a session from validated configuration. Fails on an
// unknown ABR algorithm; everything else is wired from the config.
func New(opts Options) (*Session, error) {
	rule, err := abr.NewRule(abr.Config{
		Algorithm:    opts.Config.ABRAlgorithm,
		SafetyMargin: opts.Config.SafetyMargin,
		Reservoir:    opts.Config.ReservoirThreshold,
		CapBitrate:   opts.Config.CapBitrate,
	})
	if err != nil {
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = stats.NewRecorder()
	}

	return &Session{
		cfg:       opts.Config,
		logger:    opts.Logger,
		manifests: opts.Manifests,
		segments:  opts.Segments,
		rule:      rule,
		estimator: throughput.New(throughput.Config{
			WindowSize: opts.Config.EstimatorWindowSize,
			HalfLife:   opts.Config.EstimatorHalfLife,
		}),
		recorder:  recorder,
		observer:  opts.Observer,
		clock:     clock,
		sleeper:   sleeper,
		nextIndex: make(map[string]int),
		previous:  make(map[string]*mpd.Representation),
		initDone:  make(map[string]bool),
	}, nil
}

// Recorder exposes the session's statistics recorder.
func (s *Session) Recorder() *stats.Recorder { return s.recorder }

// Estimator exposes the throughput estimator for read-only observation.
func (s *Session) Estimator() *throughput.Estimator { return s.estimator }

// Manifest returns the parsed manifest, nil before Run loads it.
func (s *Session) Manifest() *mpd.Manifest { return s.manifest }

// Run executes the session: loads the manifest, then cycles until the
// manifest is exhausted, the configured duration elapses, or ctx is
// cancelled. A manifest or configuration failure is returned as-is; the
// partial statistics recorded up to an abort remain available through
// Recorder.
func (s *Session) Run(ctx context.Context) error {
	raw, err := s.manifests.FetchManifest(ctx, s.cfg.ManifestURL)
	if err != nil {
		return fmt.Errorf("initial manifest fetch: %w", err)
	}
	manifest, err := mpd.ParseWithBase(raw, s.cfg.ManifestURL)
	if err != nil {
		return err
	}
	s.manifest = manifest

	total, _ := manifest.TotalDuration()
	s.buf = buffer.New(buffer.Config{
		StartupThreshold: s.cfg.StartupBufferThreshold,
		TotalDuration:    total,
	})

	s.logger.Info("session_starting",
		"manifest", s.cfg.ManifestURL,
		"type", manifest.Type,
		"adaptation_sets", len(manifest.AdaptationSets()),
		"abr", s.rule.Name(),
	)

	if manifest.Live() {
		s.nextRefresh = s.clock.Now().Add(s.refreshInterval())
	}

	start := s.clock.Now()
	for {
		// Cooperative cancellation, cycle boundaries only.
		select {
		case <-ctx.Done():
			s.logger.Info("session_cancelled")
			return nil
		default:
		}

		if s.cfg.Duration > 0 && s.clock.Now().Sub(start) >= s.cfg.Duration {
			s.logger.Info("session_duration_elapsed", "duration", s.cfg.Duration.String())
			return nil
		}

		if s.manifest.Live() && !s.clock.Now().Before(s.nextRefresh) {
			s.refreshManifest(ctx)
		}

		// Pause new downloads while the buffer is comfortably full;
		// playback continues to drain in simulated time.
		if snap := s.buf.Snapshot(); s.cfg.MaxBuffer > 0 && snap.Level > s.cfg.MaxBuffer {
			if err := s.sleeper.Sleep(ctx, updateInterval); err != nil {
				return nil
			}
			s.buf.Advance(updateInterval)
			continue
		}

		attempted, exhausted := s.runCycle(ctx)
		if exhausted {
			if s.manifest.Live() {
				// Live edge: wait for new segments to be advertised.
				if err := s.sleeper.Sleep(ctx, updateInterval); err != nil {
					return nil
				}
				s.buf.Advance(updateInterval)
				continue
			}
			s.buf.Finish()
			s.logger.Info("session_complete", "segments", s.recorder.Summarize().SegmentsDownloaded)
			return nil
		}
		if !attempted {
			// Open timelines with no new segment advertised yet: idle
			// until the next refresh instead of spinning.
			if err := s.sleeper.Sleep(ctx, updateInterval); err != nil {
				return nil
			}
			s.buf.Advance(updateInterval)
		}
	}
}

// runCycle plays the presentation period by period: the current period's
// sets are serviced until every one is exhausted, then the next period
// starts within the same cycle. attempted reports whether any download was
// started; exhausted is true once all periods are done (finite timelines
// only).
func (s *Session) runCycle(ctx context.Context) (attempted, exhausted bool) {
	for s.period < len(s.manifest.Periods) {
		p := s.manifest.Periods[s.period]
		att, done := s.periodCycle(ctx, p)
		if !done {
			return att, false
		}
		s.logger.Debug("period_complete", "period", p.ID)
		s.period++
	}
	return false, true
}

// segmentBound returns the common segment count for a set, taking the
// first representation as reference (representations within a set are
// interchangeable and aligned).
func segmentBound(set *mpd.AdaptationSet) (int, bool) {
	if len(set.Representations) == 0 {
		return 0, false
	}
	return set.Representations[0].SegmentCount()
}

func progressKey(p *mpd.Period, set *mpd.AdaptationSet) string {
	return p.ID + "/" + set.ID
}

// cycleResult is one adaptation set's outcome within a cycle.
type cycleResult struct {
	decision   abr.Decision
	sample     throughput.Sample
	duration   time.Duration
	spent      time.Duration
	downloaded bool
}

// periodCycle downloads the next segment for every adaptation set in p
// that still has one. The buffer is fed once per cycle no matter how many
// sets were fetched: a player needs all streams of an index before it can
// present that span of media, so media time is counted once, not per set.
func (s *Session) periodCycle(ctx context.Context, p *mpd.Period) (attempted, exhausted bool) {
	exhausted = true

	var results []cycleResult
	var enqueue, advance time.Duration
	for _, set := range p.AdaptationSets {
		key := progressKey(p, set)
		index := s.nextIndex[key]
		n, open := segmentBound(set)
		if !open && index >= n {
			continue
		}
		exhausted = false
		if open && index >= n {
			// Not advertised yet on the live timeline.
			continue
		}

		res, ok := s.downloadNext(ctx, key, set, index)
		if !ok {
			continue
		}
		attempted = true
		s.nextIndex[key] = index + 1
		s.previous[key] = res.decision.Representation
		advance += res.spent
		if res.downloaded && res.duration > enqueue {
			enqueue = res.duration
		}
		results = append(results, res)
	}

	if enqueue > 0 {
		s.buf.Enqueue(enqueue)
	}
	// The simulated clock advances by the time actually spent, including
	// failed fetches, so it never silently drifts.
	if advance > 0 {
		s.buf.Advance(advance)
	}
	if len(results) == 0 {
		return attempted, exhausted
	}

	snap := s.buf.Snapshot()
	for _, res := range results {
		if res.downloaded {
			s.record(func() { s.recorder.Record(res.decision, snap, res.sample, res.duration) })
		} else {
			s.record(func() { s.recorder.RecordFailure(res.decision, snap, res.spent) })
			s.logger.Warn("segment_failed",
				"adaptation_set", res.decision.AdaptationSetID,
				"segment", res.decision.SegmentIndex,
				"representation", res.decision.Representation.ID,
				"spent", res.spent.String(),
			)
		}
		s.notify(snap)
	}
	return attempted, exhausted
}

// downloadNext decides and fetches segment index for one adaptation set.
// ok is false when no decision or segment is available; otherwise the
// result carries the outcome for periodCycle to account and record.
func (s *Session) downloadNext(ctx context.Context, key string, set *mpd.AdaptationSet, index int) (res cycleResult, ok bool) {
	decision, err := s.decide(key, set, index)
	if err != nil {
		// Only an empty adaptation set reaches here, which parsing rejects.
		s.logger.Error("decision_failed", "adaptation_set", set.ID, "error", err)
		return cycleResult{}, false
	}
	rep := decision.Representation

	seg, err := rep.SegmentAt(index)
	if err != nil {
		// Open-ended timeline without this index yet; treated as "no
		// segment available" rather than a failure.
		return cycleResult{}, false
	}

	spent, sample, downloaded := s.fetchWithRetry(ctx, rep, seg)
	if downloaded {
		s.estimator.Observe(sample)
	}
	return cycleResult{
		decision:   decision,
		sample:     sample,
		duration:   seg.Duration,
		spent:      spent,
		downloaded: downloaded,
	}, true
}

// decide builds the ABR context and produces this cycle's decision.
func (s *Session) decide(key string, set *mpd.AdaptationSet, index int) (abr.Decision, error) {
	estimate, err := s.estimator.Estimate()
	known := err == nil

	rep, err := s.rule.Decide(abr.Context{
		Buffer:          s.buf.Snapshot(),
		Throughput:      estimate,
		ThroughputKnown: known,
		Previous:        s.previous[key],
		AdaptationSet:   set,
	})
	if err != nil {
		return abr.Decision{}, err
	}
	return abr.Decision{
		AdaptationSetID: set.ID,
		SegmentIndex:    index,
		Representation:  rep,
		DecidedAt:       s.clock.Now(),
	}, nil
}

// fetchWithRetry downloads the init segment (once per representation) and
// the media segment, retrying transport failures with backoff. It returns
// the total wall time spent, the download sample for the successful media
// transfer, and whether the segment completed.
func (s *Session) fetchWithRetry(ctx context.Context, rep *mpd.Representation, seg mpd.Segment) (time.Duration, throughput.Sample, bool) {
	var spent time.Duration

	if rep.InitURL != "" {
		key := seg.RepresentationID + "/" + rep.InitURL
		if !s.initDone[key] {
			if _, elapsed, err := s.segments.FetchSegment(ctx, rep.InitURL, ""); err == nil {
				s.initDone[key] = true
				spent += elapsed
			} else {
				spent += elapsed
				s.logger.Warn("init_segment_failed", "url", rep.InitURL, "error", err)
			}
		}
	}

	backoff := NewBackoff(int64(seg.Index), BackoffConfig{
		Initial:    s.cfg.SegmentRetryBackoff,
		Max:        10 * s.cfg.SegmentRetryBackoff,
		Multiplier: DefaultBackoffConfig().Multiplier,
		JitterPct:  DefaultBackoffConfig().JitterPct,
	})

	attempts := s.cfg.SegmentRetryLimit + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoff.Next()
			if err := s.sleeper.Sleep(ctx, delay); err != nil {
				return spent, throughput.Sample{}, false
			}
			spent += delay
		}

		bytes, elapsed, err := s.segments.FetchSegment(ctx, seg.URL, seg.ByteRange)
		spent += elapsed
		if err == nil {
			return spent, throughput.Sample{
				Bytes:     bytes,
				Elapsed:   elapsed,
				Timestamp: s.clock.Now(),
			}, true
		}

		s.logger.Debug("segment_attempt_failed",
			"url", seg.URL,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return spent, throughput.Sample{}, false
}

// refreshManifest re-fetches and merges a live manifest. Refresh failures
// are logged and retried on the next interval; the session keeps playing
// from the segments it already knows.
func (s *Session) refreshManifest(ctx context.Context) {
	s.nextRefresh = s.clock.Now().Add(s.refreshInterval())

	raw, err := s.manifests.FetchManifest(ctx, s.cfg.ManifestURL)
	if err != nil {
		s.logger.Warn("manifest_refresh_fetch_failed", "error", err)
		return
	}
	fresh, err := mpd.ParseWithBase(raw, s.cfg.ManifestURL)
	if err != nil {
		s.logger.Warn("manifest_refresh_parse_failed", "error", err)
		return
	}
	if err := s.manifest.Merge(fresh); err != nil {
		s.logger.Warn("manifest_refresh_merge_failed", "error", err)
	}
}

func (s *Session) refreshInterval() time.Duration {
	if s.cfg.RefreshInterval > 0 {
		return s.cfg.RefreshInterval
	}
	if s.manifest != nil && s.manifest.MinimumUpdatePeriod > 0 {
		return s.manifest.MinimumUpdatePeriod
	}
	return 2 * time.Second
}

// record invokes a recorder call, isolating the loop from recording
// failures.
func (s *Session) record(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recorder_panic", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *Session) notify(snap buffer.Snapshot) {
	if s.observer == nil {
		return
	}
	if rec, ok := s.recorder.LastRecord(); ok {
		s.observer.OnCycle(rec, snap)
	}
}
