package mpd

import (
	"fmt"
	"testing"
	"time"
)

func liveManifest(t *testing.T, segments int) *Manifest {
	t.Helper()
	doc := fmt.Sprintf(`<?xml version="1.0"?>
<MPD type="dynamic" minimumUpdatePeriod="PT2S">
  <Period id="p0">
    <AdaptationSet id="video" contentType="video">
      <Representation id="v1" bandwidth="1000000">
        <SegmentTemplate timescale="1" media="seg-$Number$.m4s">
          <SegmentTimeline>
            <S t="0" d="4" r="%d"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`, segments-1)

	m, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return m
}

func TestMerge_ExtendsTimeline(t *testing.T) {
	m := liveManifest(t, 2)
	rep := m.AdaptationSets()[0].Representations[0]

	if err := m.Merge(liveManifest(t, 4)); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	// Same object, longer timeline.
	if got := m.AdaptationSets()[0].Representations[0]; got != rep {
		t.Error("Merge replaced the representation object")
	}
	n, open := rep.SegmentCount()
	if n != 4 || !open {
		t.Errorf("SegmentCount() = (%d, %v), want (4, true)", n, open)
	}

	// Indexes are stable across the refresh.
	seg, err := rep.SegmentAt(1)
	if err != nil {
		t.Fatalf("SegmentAt(1) error: %v", err)
	}
	if seg.URL != "seg-2.m4s" {
		t.Errorf("URL = %q, want seg-2.m4s", seg.URL)
	}
}

func TestMerge_IgnoresShrinkingTimeline(t *testing.T) {
	m := liveManifest(t, 4)
	rep := m.AdaptationSets()[0].Representations[0]

	if err := m.Merge(liveManifest(t, 2)); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	n, _ := rep.SegmentCount()
	if n != 4 {
		t.Errorf("SegmentCount() = %d after shrinking refresh, want 4", n)
	}
}

func TestMerge_LiveSettlesToStatic(t *testing.T) {
	m := liveManifest(t, 4)

	closed := `<?xml version="1.0"?>
<MPD type="static" mediaPresentationDuration="PT16S">
  <Period id="p0">
    <AdaptationSet id="video" contentType="video">
      <Representation id="v1" bandwidth="1000000">
        <SegmentTemplate timescale="1" media="seg-$Number$.m4s">
          <SegmentTimeline>
            <S t="0" d="4" r="3"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`
	fresh, err := Parse([]byte(closed))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if err := m.Merge(fresh); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	if m.Live() {
		t.Error("Live() = true after merging static manifest")
	}
	total, known := m.TotalDuration()
	if !known || total != 16*time.Second {
		t.Errorf("TotalDuration() = (%v, %v), want (16s, true)", total, known)
	}

	// Same known length, but the timeline closed.
	n, open := m.AdaptationSets()[0].Representations[0].SegmentCount()
	if n != 4 || open {
		t.Errorf("SegmentCount() = (%d, %v), want (4, false)", n, open)
	}
}

// A flat-duration live timeline has no advertised count; the closing
// refresh must still be adopted.
func TestMerge_FlatDurationSettlesToStatic(t *testing.T) {
	live := `<?xml version="1.0"?>
<MPD type="dynamic" minimumUpdatePeriod="PT2S">
  <Period id="p0">
    <AdaptationSet id="video" contentType="video">
      <Representation id="v1" bandwidth="1000000">
        <SegmentTemplate timescale="1" duration="4" media="seg-$Number$.m4s"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`
	closed := `<?xml version="1.0"?>
<MPD type="static" mediaPresentationDuration="PT16S">
  <Period id="p0">
    <AdaptationSet id="video" contentType="video">
      <Representation id="v1" bandwidth="1000000">
        <SegmentTemplate timescale="1" duration="4" media="seg-$Number$.m4s"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	m, err := Parse([]byte(live))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	fresh, err := Parse([]byte(closed))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if err := m.Merge(fresh); err != nil {
		t.Fatalf("Merge error: %v", err)
	}
	n, open := m.AdaptationSets()[0].Representations[0].SegmentCount()
	if n != 4 || open {
		t.Errorf("SegmentCount() = (%d, %v), want (4, false)", n, open)
	}
}

func TestMerge_AddsNewRepresentation(t *testing.T) {
	m := liveManifest(t, 2)

	withExtra := `<?xml version="1.0"?>
<MPD type="dynamic" minimumUpdatePeriod="PT2S">
  <Period id="p0">
    <AdaptationSet id="video" contentType="video">
      <Representation id="v1" bandwidth="1000000">
        <SegmentTemplate timescale="1" media="seg-$Number$.m4s">
          <SegmentTimeline><S t="0" d="4" r="1"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
      <Representation id="v2" bandwidth="2000000">
        <SegmentTemplate timescale="1" media="hi/seg-$Number$.m4s">
          <SegmentTimeline><S t="0" d="4" r="1"/></SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`
	fresh, err := Parse([]byte(withExtra))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if err := m.Merge(fresh); err != nil {
		t.Fatalf("Merge error: %v", err)
	}

	as := m.AdaptationSets()[0]
	if len(as.Representations) != 2 {
		t.Fatalf("representations = %d, want 2", len(as.Representations))
	}
	if as.ByID("v2") == nil {
		t.Error("missing new representation v2")
	}
}

func TestMerge_Nil(t *testing.T) {
	m := liveManifest(t, 2)
	if err := m.Merge(nil); err == nil {
		t.Error("Merge(nil) = nil error, want failure")
	}
}
