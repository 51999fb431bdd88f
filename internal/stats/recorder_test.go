package stats

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/streamtools/go-dash-emulator/internal/abr"
	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/mpd"
	"github.com/streamtools/go-dash-emulator/internal/throughput"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func decision(repID string, bitrate int64, index int) abr.Decision {
	return abr.Decision{
		AdaptationSetID: "video",
		SegmentIndex:    index,
		Representation:  &mpd.Representation{ID: repID, Bitrate: bitrate},
	}
}

func playingSnap(level time.Duration) buffer.Snapshot {
	return buffer.Snapshot{State: buffer.Playing, Level: level}
}

func TestRecorder_Aggregates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewRecorderWithClock(clock)

	clock.advance(2 * time.Second)
	r.Record(decision("v-low", 1_000_000, 0), playingSnap(4*time.Second),
		throughput.Sample{Bytes: 500_000, Elapsed: 800 * time.Millisecond}, 4*time.Second)

	clock.advance(1 * time.Second)
	r.Record(decision("v-high", 3_000_000, 1), playingSnap(6*time.Second),
		throughput.Sample{Bytes: 1_500_000, Elapsed: 1200 * time.Millisecond}, 4*time.Second)

	s := r.Summarize()

	if s.SegmentsDownloaded != 2 {
		t.Errorf("SegmentsDownloaded = %d, want 2", s.SegmentsDownloaded)
	}
	if s.SegmentsFailed != 0 {
		t.Errorf("SegmentsFailed = %d, want 0", s.SegmentsFailed)
	}
	if s.QualitySwitches != 1 {
		t.Errorf("QualitySwitches = %d, want 1", s.QualitySwitches)
	}
	if s.TotalBytes != 2_000_000 {
		t.Errorf("TotalBytes = %d, want 2000000", s.TotalBytes)
	}

	// Time-weighted by media duration: equal 4s weights here.
	if math.Abs(s.AverageBitrate-2_000_000) > 1 {
		t.Errorf("AverageBitrate = %g, want 2e6", s.AverageBitrate)
	}

	// Startup seen at the first non-PreStart snapshot, 2s after creation.
	if s.StartupDelay != 2*time.Second {
		t.Errorf("StartupDelay = %v, want 2s", s.StartupDelay)
	}

	if s.DownloadP50 <= 0 {
		t.Errorf("DownloadP50 = %v, want positive", s.DownloadP50)
	}
}

func TestRecorder_AverageBitrateWeighting(t *testing.T) {
	r := NewRecorder()

	// 2s at 1 Mbps, 6s at 3 Mbps: average is 2.5 Mbps, not the
	// unweighted 2 Mbps.
	r.Record(decision("a", 1_000_000, 0), playingSnap(time.Second),
		throughput.Sample{Bytes: 1, Elapsed: time.Millisecond}, 2*time.Second)
	r.Record(decision("b", 3_000_000, 1), playingSnap(time.Second),
		throughput.Sample{Bytes: 1, Elapsed: time.Millisecond}, 6*time.Second)

	s := r.Summarize()
	if math.Abs(s.AverageBitrate-2_500_000) > 1 {
		t.Errorf("AverageBitrate = %g, want 2.5e6", s.AverageBitrate)
	}
}

func TestRecorder_SwitchCounting(t *testing.T) {
	r := NewRecorder()
	sample := throughput.Sample{Bytes: 1, Elapsed: time.Millisecond}

	seq := []string{"low", "low", "high", "high", "low"}
	for i, id := range seq {
		r.Record(decision(id, 1_000_000, i), playingSnap(time.Second), sample, 4*time.Second)
	}

	if s := r.Summarize(); s.QualitySwitches != 2 {
		t.Errorf("QualitySwitches = %d, want 2", s.QualitySwitches)
	}
}

func TestRecorder_Failure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewRecorderWithClock(clock)

	r.RecordFailure(decision("v", 1_000_000, 3),
		buffer.Snapshot{State: buffer.Stalled, StallCount: 1, StallDuration: 2 * time.Second},
		5*time.Second)

	s := r.Summarize()
	if s.SegmentsDownloaded != 0 || s.SegmentsFailed != 1 {
		t.Errorf("downloaded/failed = %d/%d, want 0/1", s.SegmentsDownloaded, s.SegmentsFailed)
	}
	if s.StallCount != 1 || s.StallDuration != 2*time.Second {
		t.Errorf("stalls = %d/%v", s.StallCount, s.StallDuration)
	}

	rec, ok := r.LastRecord()
	if !ok {
		t.Fatal("LastRecord() not found")
	}
	if !rec.Failed {
		t.Error("record not marked failed")
	}
	if rec.DownloadElapsed != 5*time.Second {
		t.Errorf("DownloadElapsed = %v, want 5s", rec.DownloadElapsed)
	}
}

func TestRecorder_StartupNotSeenInPreStart(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewRecorderWithClock(clock)

	clock.advance(time.Second)
	r.Record(decision("v", 1_000_000, 0), buffer.Snapshot{State: buffer.PreStart, Level: 2 * time.Second},
		throughput.Sample{Bytes: 1, Elapsed: time.Millisecond}, 2*time.Second)

	if s := r.Summarize(); s.StartupDelay != 0 {
		t.Errorf("StartupDelay = %v before playback, want 0", s.StartupDelay)
	}

	clock.advance(time.Second)
	r.Record(decision("v", 1_000_000, 1), playingSnap(4*time.Second),
		throughput.Sample{Bytes: 1, Elapsed: time.Millisecond}, 2*time.Second)

	if s := r.Summarize(); s.StartupDelay != 2*time.Second {
		t.Errorf("StartupDelay = %v, want 2s", s.StartupDelay)
	}
}

func TestRecorder_History(t *testing.T) {
	r := NewRecorder()
	sample := throughput.Sample{Bytes: 100, Elapsed: time.Millisecond}

	for i := 0; i < 3; i++ {
		r.Record(decision("v", 1_000_000, i), playingSnap(time.Second), sample, 4*time.Second)
	}

	h := r.History()
	if len(h) != 3 {
		t.Fatalf("History() len = %d, want 3", len(h))
	}
	for i, rec := range h {
		if rec.SegmentIndex != i {
			t.Errorf("history[%d].SegmentIndex = %d", i, rec.SegmentIndex)
		}
	}

	// The returned slice is a copy.
	h[0].SegmentIndex = 99
	if r.History()[0].SegmentIndex == 99 {
		t.Error("History() exposes internal storage")
	}
}

func TestReport_WriteJSON(t *testing.T) {
	r := NewRecorder()
	r.Record(decision("video-720", 1_500_000, 0), playingSnap(4*time.Second),
		throughput.Sample{Bytes: 750_000, Elapsed: 500 * time.Millisecond}, 4*time.Second)

	var buf bytes.Buffer
	if err := r.BuildReport().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}

	var decoded struct {
		Segments []struct {
			SegmentIndex     int    `json:"segmentIndex"`
			RepresentationID string `json:"chosenRepresentationId"`
			Bitrate          int64  `json:"bitrate"`
		} `json:"segments"`
		Summary struct {
			SegmentsDownloaded int   `json:"segmentsDownloaded"`
			TotalBytes         int64 `json:"totalBytes"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}

	if len(decoded.Segments) != 1 {
		t.Fatalf("segments len = %d, want 1", len(decoded.Segments))
	}
	if decoded.Segments[0].RepresentationID != "video-720" {
		t.Errorf("representation = %q", decoded.Segments[0].RepresentationID)
	}
	if decoded.Summary.SegmentsDownloaded != 1 || decoded.Summary.TotalBytes != 750_000 {
		t.Errorf("summary = %+v", decoded.Summary)
	}
}

func TestFormatExitSummary(t *testing.T) {
	r := NewRecorder()
	r.Record(decision("v", 2_000_000, 0), playingSnap(4*time.Second),
		throughput.Sample{Bytes: 1_000_000, Elapsed: time.Second}, 4*time.Second)

	out := FormatExitSummary(r.Summarize(), SummaryConfig{
		ManifestURL: "http://origin.example/a.mpd",
		Algorithm:   "hybrid",
	})

	for _, want := range []string{"hybrid", "http://origin.example/a.mpd"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatDuration(90 * time.Second); got != "00:01:30" {
		t.Errorf("FormatDuration = %q, want 00:01:30", got)
	}
	if got := FormatBytes(2 * 1024 * 1024); got != "2.0 MiB" {
		t.Errorf("FormatBytes = %q, want 2.0 MiB", got)
	}
}
