package scheduler

import (
	"github.com/streamtools/go-dash-emulator/internal/buffer"
	"github.com/streamtools/go-dash-emulator/internal/stats"
)

// MultiObserver fans cycle notifications out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnCycle(rec stats.CycleRecord, snap buffer.Snapshot) {
	for _, o := range m {
		if o != nil {
			o.OnCycle(rec, snap)
		}
	}
}
