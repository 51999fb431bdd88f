// Session report serialization for post-hoc analysis.
package stats

import (
	"encoding/json"
	"io"
)

// Report is the persisted session layout: ordered cycle records plus the
// final summary. The core produces it; where it is stored is the host's
// concern.
type Report struct {
	Segments []CycleRecord `json:"segments"`
	Summary  Summary       `json:"summary"`
}

// BuildReport assembles the report from the recorder's current state.
func (r *Recorder) BuildReport() Report {
	return Report{
		Segments: r.History(),
		Summary:  r.Summarize(),
	}
}

// WriteJSON serializes the report to w, indented for human inspection.
func (rep Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
