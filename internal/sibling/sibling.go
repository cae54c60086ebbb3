// Package sibling indexes the frames of one (subject, trial) by absolute
// frame number so temporally adjacent occurrences of a landmark can be found
// across event boundaries.
package sibling

import "github.com/kinetrace/labeller/internal/catalog"

// Entry is one occurrence of an absolute frame in the catalog.
type Entry struct {
	Event         string
	CamID         string
	RelativeFrame int
	AbsoluteFrame uint
}

// Index maps absolute frame -> occurrences, and (relative frame, event) ->
// absolute frame. Built once per (subject, trial) scope and never mutated
// afterwards.
type Index struct {
	byAbs map[uint][]Entry
	byRel map[int]map[string]uint
}

// Build constructs the index from the trial's full frame list.
func Build(frames []catalog.Frame) *Index {
	ix := &Index{
		byAbs: make(map[uint][]Entry),
		byRel: make(map[int]map[string]uint),
	}

	for _, f := range frames {
		ix.byAbs[f.AbsoluteFrame] = append(ix.byAbs[f.AbsoluteFrame], Entry{
			Event:         f.Event,
			CamID:         f.CamID,
			RelativeFrame: f.RelativeFrame,
			AbsoluteFrame: f.AbsoluteFrame,
		})

		events, ok := ix.byRel[f.RelativeFrame]
		if !ok {
			events = make(map[string]uint)
			ix.byRel[f.RelativeFrame] = events
		}
		// last write wins on collision
		events[f.Event] = f.AbsoluteFrame
	}

	return ix
}

// ByAbsoluteFrame returns all occurrences of an absolute frame, nil if none.
func (ix *Index) ByAbsoluteFrame(frame uint) []Entry {
	return ix.byAbs[frame]
}

// ByRelativeFrame resolves (event, relative frame) to the absolute frame
// counter, false when the combination never occurs.
func (ix *Index) ByRelativeFrame(event string, relFrame int) (uint, bool) {
	events, ok := ix.byRel[relFrame]
	if !ok {
		return 0, false
	}
	abs, ok := events[event]
	return abs, ok
}
