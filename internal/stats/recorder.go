// Package stats records per-cycle session history and QoE aggregates.
//
// The recorder is a pure consumer: the scheduler emits one record per
// cycle and the recorder never mutates its inputs. Aggregates (switches,
// stalls, time-weighted bitrate, startup delay) are updated incrementally;
// the full ordered history is retained for post-hoc analysis. Download
// time percentiles use a T-Digest for constant memory.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/streamtools/go-dash-emulator/internal/abr"
	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/throughput"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CycleRecord is one row of the session report.
type CycleRecord struct {
	SegmentIndex     int           `json:"segmentIndex"`
	AdaptationSetID  string        `json:"adaptationSetId"`
	RepresentationID string        `json:"chosenRepresentationId"`
	Bitrate          int64         `json:"bitrate"`
	DownloadElapsed  time.Duration `json:"-"`
	DownloadMs       float64       `json:"downloadElapsedMs"`
	Bytes            int64         `json:"bytes"`
	BufferLevel      time.Duration `json:"-"`
	BufferLevelSec   float64       `json:"bufferLevelAtDecision"`
	Stalled          bool          `json:"stalled"`
	Failed           bool          `json:"failed"`
}

// Summary is the finalized session statistics.
type Summary struct {
	Duration time.Duration `json:"-"`

	SegmentsDownloaded int `json:"segmentsDownloaded"`
	SegmentsFailed     int `json:"segmentsFailed"`
	QualitySwitches    int `json:"qualitySwitches"`

	StallCount    int           `json:"stallCount"`
	StallDuration time.Duration `json:"-"`
	StallSeconds  float64       `json:"stallSeconds"`

	// AverageBitrate is time-weighted by media duration downloaded.
	AverageBitrate float64 `json:"averageBitrate"`

	// StartupDelay is the wall time from session start to the first
	// transition into Playing. Zero if playback never started.
	StartupDelay   time.Duration `json:"-"`
	StartupSeconds float64       `json:"startupDelaySeconds"`

	TotalBytes int64 `json:"totalBytes"`

	DownloadP50 time.Duration `json:"-"`
	DownloadP95 time.Duration `json:"-"`
	DownloadP99 time.Duration `json:"-"`
}

// Recorder accumulates cycle records for one session.
type Recorder struct {
	mu    sync.Mutex
	clock Clock

	startTime time.Time
	history   []CycleRecord

	segments int
	failures int
	switches int
	lastRep  map[string]string // adaptation set id -> representation id

	weightedBitrate float64 // sum of bitrate * media seconds
	mediaSeconds    float64

	startupDelay time.Duration
	startupSeen  bool

	totalBytes int64

	lastSnapshot buffer.Snapshot

	digest *tdigest.TDigest // download elapsed, milliseconds
}

// NewRecorder creates a recorder; session start is taken from the clock
// at creation time.
func NewRecorder() *Recorder {
	return NewRecorderWithClock(realClock{})
}

// NewRecorderWithClock creates a recorder with a custom clock for testing.
func NewRecorderWithClock(clock Clock) *Recorder {
	return &Recorder{
		clock:     clock,
		startTime: clock.Now(),
		lastRep:   make(map[string]string),
		digest:    tdigest.NewWithCompression(100),
	}
}

// Record archives one successful cycle: the decision, the buffer snapshot
// taken after the download was applied, the download sample, and the
// media duration enqueued.
func (r *Recorder) Record(d abr.Decision, snap buffer.Snapshot, sample throughput.Sample, mediaDuration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := CycleRecord{
		SegmentIndex:     d.SegmentIndex,
		AdaptationSetID:  d.AdaptationSetID,
		RepresentationID: d.Representation.ID,
		Bitrate:          d.Representation.Bitrate,
		DownloadElapsed:  sample.Elapsed,
		DownloadMs:       float64(sample.Elapsed) / float64(time.Millisecond),
		Bytes:            sample.Bytes,
		BufferLevel:      snap.Level,
		BufferLevelSec:   snap.Level.Seconds(),
		Stalled:          snap.Stalled(),
	}
	r.history = append(r.history, rec)

	r.segments++
	r.totalBytes += sample.Bytes
	r.weightedBitrate += float64(d.Representation.Bitrate) * mediaDuration.Seconds()
	r.mediaSeconds += mediaDuration.Seconds()
	r.digest.Add(rec.DownloadMs, 1)

	r.observe(d, snap)
}

// RecordFailure archives a cycle whose segment fetch exhausted its
// retries. spent is the cumulative wall time of all attempts.
func (r *Recorder) RecordFailure(d abr.Decision, snap buffer.Snapshot, spent time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, CycleRecord{
		SegmentIndex:     d.SegmentIndex,
		AdaptationSetID:  d.AdaptationSetID,
		RepresentationID: d.Representation.ID,
		Bitrate:          d.Representation.Bitrate,
		DownloadElapsed:  spent,
		DownloadMs:       float64(spent) / float64(time.Millisecond),
		BufferLevel:      snap.Level,
		BufferLevelSec:   snap.Level.Seconds(),
		Stalled:          snap.Stalled(),
		Failed:           true,
	})
	r.failures++
	r.observe(d, snap)
}

// observe updates switch counting, startup delay, and the last snapshot.
// Caller holds r.mu.
func (r *Recorder) observe(d abr.Decision, snap buffer.Snapshot) {
	if last, ok := r.lastRep[d.AdaptationSetID]; ok && last != d.Representation.ID {
		r.switches++
	}
	r.lastRep[d.AdaptationSetID] = d.Representation.ID

	if !r.startupSeen && snap.State != buffer.PreStart {
		r.startupSeen = true
		r.startupDelay = r.clock.Now().Sub(r.startTime)
	}
	r.lastSnapshot = snap
}

// History returns a copy of all cycle records in order.
func (r *Recorder) History() []CycleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CycleRecord, len(r.history))
	copy(out, r.history)
	return out
}

// Summarize finalizes the session statistics. Safe to call at any point;
// a fatal abort still gets whatever was recorded so far.
func (r *Recorder) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Duration:           r.clock.Now().Sub(r.startTime),
		SegmentsDownloaded: r.segments,
		SegmentsFailed:     r.failures,
		QualitySwitches:    r.switches,
		StallCount:         r.lastSnapshot.StallCount,
		StallDuration:      r.lastSnapshot.StallDuration,
		StallSeconds:       r.lastSnapshot.StallDuration.Seconds(),
		StartupDelay:       r.startupDelay,
		StartupSeconds:     r.startupDelay.Seconds(),
		TotalBytes:         r.totalBytes,
	}
	if r.mediaSeconds > 0 {
		s.AverageBitrate = r.weightedBitrate / r.mediaSeconds
	}
	if r.segments > 0 {
		s.DownloadP50 = time.Duration(r.digest.Quantile(0.50) * float64(time.Millisecond))
		s.DownloadP95 = time.Duration(r.digest.Quantile(0.95) * float64(time.Millisecond))
		s.DownloadP99 = time.Duration(r.digest.Quantile(0.99) * float64(time.Millisecond))
	}
	return s
}

// Snapshot returns the most recent buffer snapshot seen by the recorder.
// Used by the TUI and metrics outside the scheduler loop.
func (r *Recorder) Snapshot() buffer.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSnapshot
}

// LastRecord returns the most recent cycle record, if any.
func (r *Recorder) LastRecord() (CycleRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return CycleRecord{}, false
	}
	return r.history[len(r.history)-1], true
}
