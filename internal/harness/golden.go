package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden form of a run: the trace plus final counts.
// Positions and sizes are left out so the files only change when the order
// or timing of events does.
type TraceSnapshot struct {
	Scenario string  `json:"scenario"`
	Trace    []Event `json:"trace"`
	Final    Final   `json:"final"`
}

// Final summarises the pond after the last step.
type Final struct {
	Fish   int   `json:"fish"`
	Food   int   `json:"food"`
	NextID int64 `json:"nextId"`
}

// Snapshot builds the golden form of r.
func (r *Result) Snapshot(name string) TraceSnapshot {
	return TraceSnapshot{
		Scenario: name,
		Trace:    r.Trace,
		Final: Final{
			Fish:   len(r.State.Fish),
			Food:   len(r.State.Food),
			NextID: r.State.NextID,
		},
	}
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing
// newline.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs the scenario, fails t on any assertion error, and
// compares the trace snapshot with testdata/golden/<name>.golden.
//
// Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	res, err := Run(sc)
	if err != nil {
		return nil, err
	}
	for _, msg := range res.Errors {
		t.Errorf("%s: %s", sc.Name, msg)
	}

	data, err := MarshalSnapshot(res.Snapshot(sc.Name))
	if err != nil {
		return nil, err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
	return res, nil
}
