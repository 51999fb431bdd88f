package mpd

import "math"

// Merge reconciles a freshly parsed manifest into this one. Identity is
// stable keys: Periods, AdaptationSets and Representations are matched by
// id and kept as the same objects, so Decision history referencing them
// survives a live refresh. Segment timelines only ever grow; a refresh
// that advertises fewer segments than already known is ignored for those
// representations rather than destroying history.
func (m *Manifest) Merge(fresh *Manifest) error {
	if fresh == nil {
		return &ManifestError{Reason: "merge with nil manifest"}
	}

	// A live manifest may settle into static at the end of the event.
	m.Type = fresh.Type
	if fresh.MediaPresentationDuration > 0 {
		m.MediaPresentationDuration = fresh.MediaPresentationDuration
	}
	if fresh.MinimumUpdatePeriod > 0 {
		m.MinimumUpdatePeriod = fresh.MinimumUpdatePeriod
	}

	for _, fp := range fresh.Periods {
		p := m.periodByID(fp.ID)
		if p == nil {
			m.Periods = append(m.Periods, fp)
			continue
		}
		if fp.Duration > 0 {
			p.Duration = fp.Duration
		}
		mergeAdaptationSets(p, fp)
	}
	return nil
}

func (m *Manifest) periodByID(id string) *Period {
	for _, p := range m.Periods {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func mergeAdaptationSets(p, fp *Period) {
	for _, fas := range fp.AdaptationSets {
		var as *AdaptationSet
		for _, candidate := range p.AdaptationSets {
			if candidate.ID == fas.ID {
				as = candidate
				break
			}
		}
		if as == nil {
			p.AdaptationSets = append(p.AdaptationSets, fas)
			continue
		}
		mergeRepresentations(as, fas)
	}
}

func mergeRepresentations(as, fas *AdaptationSet) {
	for _, frep := range fas.Representations {
		rep := as.ByID(frep.ID)
		if rep == nil {
			as.Representations = append(as.Representations, frep)
			continue
		}
		rep.mergeTimeline(frep)
	}
}

// mergeTimeline adopts the fresh representation's timeline when it extends
// the known one. Segments already addressed keep their identity: indexes
// are never re-numbered by a refresh.
func (r *Representation) mergeTimeline(fresh *Representation) {
	curN, curOpen := r.SegmentCount()
	freshN, freshOpen := fresh.SegmentCount()

	switch {
	case curOpen && curN == math.MaxInt:
		// Flat-duration live timeline: no explicit count to compare,
		// adopt whatever the refresh advertises (including a close to
		// static at the end of the event).
		r.timeline = fresh.timeline
	case freshN > curN:
		r.timeline = fresh.timeline
	case freshN == curN && curOpen && !freshOpen:
		// Same length but the timeline closed: the presentation ended.
		r.timeline = fresh.timeline
	}
}
