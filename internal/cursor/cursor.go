// Package cursor holds the four-axis navigation state of an annotation
// session and the probe that advances it to the next labelable position.
package cursor

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned when no labelable position is reachable within
// the probe budget. The cursor is left unchanged.
var ErrExhausted = errors.New("no labelable position reachable")

// maxProbes bounds one ProbeNext call. Exceeding it means the catalog is
// empty or inconsistent for this trial.
const maxProbes = 1000

// Axis selects one of the four navigation rings.
type Axis int

const (
	AxisLandmark Axis = iota
	AxisEvent
	AxisFrame
	AxisCamera
)

func (a Axis) String() string {
	switch a {
	case AxisLandmark:
		return "landmark"
	case AxisEvent:
		return "event"
	case AxisFrame:
		return "frame"
	case AxisCamera:
		return "camera"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// FrameSource answers per-event frame questions, already scoped to one
// (subject, trial).
type FrameSource interface {
	// RelativeFrames returns the ordered relative-frame list of an event.
	RelativeFrames(event string) []int
	// HasFrame reports whether source imagery exists at the position.
	HasFrame(event string, relFrame int) bool
}

// State is the position on the four rings. All indices are zero-based and
// kept in bounds by modular wraparound.
type State struct {
	Landmark int
	Event    int
	Frame    int
	Camera   int
}

// Cursor navigates the (landmark, event, frame, camera) rings. The frame
// ring size depends on the current event, every event having its own
// relative-frame list.
type Cursor struct {
	landmarks []string
	events    []string
	cameras   []string
	frames    FrameSource
	state     State
}

// New creates a cursor at the zero position.
func New(landmarks, events, cameras []string, frames FrameSource) *Cursor {
	return &Cursor{
		landmarks: landmarks,
		events:    events,
		cameras:   cameras,
		frames:    frames,
	}
}

// mod wraps i into [0, n), handling negative i.
func mod(i, n int) int {
	return ((i % n) + n) % n
}

// State returns the current position.
func (c *Cursor) State() State {
	return c.state
}

// Restore places the cursor at a previously saved position, wrapping each
// index into its current ring size. Frame lists may have changed since the
// position was saved.
func (c *Cursor) Restore(s State) {
	c.state.Landmark = mod(s.Landmark, len(c.landmarks))
	c.state.Event = mod(s.Event, len(c.events))
	c.state.Camera = mod(s.Camera, len(c.cameras))
	if n := c.frameCount(c.state.Event); n > 0 {
		c.state.Frame = mod(s.Frame, n)
	} else {
		c.state.Frame = 0
	}
}

// Step moves one axis by delta, wrapping rather than clamping. Stepping the
// event axis re-derives the frame ring size for the new event.
func (c *Cursor) Step(axis Axis, delta int) {
	switch axis {
	case AxisLandmark:
		c.state.Landmark = mod(c.state.Landmark+delta, len(c.landmarks))
	case AxisEvent:
		c.state.Event = mod(c.state.Event+delta, len(c.events))
		if n := c.frameCount(c.state.Event); n > 0 {
			c.state.Frame = mod(c.state.Frame, n)
		} else {
			c.state.Frame = 0
		}
	case AxisFrame:
		if n := c.frameCount(c.state.Event); n > 0 {
			c.state.Frame = mod(c.state.Frame+delta, n)
		}
	case AxisCamera:
		c.state.Camera = mod(c.state.Camera+delta, len(c.cameras))
	}
}

// LandmarkName returns the landmark at the current position.
func (c *Cursor) LandmarkName() string {
	return c.landmarks[c.state.Landmark]
}

// EventName returns the event at the current position.
func (c *Cursor) EventName() string {
	return c.events[c.state.Event]
}

// CameraID returns the camera at the current position.
func (c *Cursor) CameraID() string {
	return c.cameras[c.state.Camera]
}

// RelativeFrame resolves the frame index into the current event's
// relative-frame list.
func (c *Cursor) RelativeFrame() (int, error) {
	rels := c.frames.RelativeFrames(c.events[c.state.Event])
	if c.state.Frame >= len(rels) {
		return 0, fmt.Errorf("frame index %d out of range for event %s (%d frames)",
			c.state.Frame, c.events[c.state.Event], len(rels))
	}
	return rels[c.state.Frame], nil
}

func (c *Cursor) frameCount(eventIdx int) int {
	return len(c.frames.RelativeFrames(c.events[eventIdx]))
}

// advance is one odometer step over (frame, event, landmark, camera) in that
// significance order: a carry propagates only when the lower ring wraps to 0.
func (c *Cursor) advance(s State) State {
	if n := c.frameCount(s.Event); n > 0 {
		s.Frame = (s.Frame + 1) % n
		if s.Frame != 0 {
			return s
		}
	} else {
		s.Frame = 0
	}

	s.Event = (s.Event + 1) % len(c.events)
	if s.Event != 0 {
		return s
	}

	s.Landmark = (s.Landmark + 1) % len(c.landmarks)
	if s.Landmark != 0 {
		return s
	}

	s.Camera = (s.Camera + 1) % len(c.cameras)
	return s
}

// hasFrame reports whether a candidate position points at existing imagery.
func (c *Cursor) hasFrame(s State) bool {
	rels := c.frames.RelativeFrames(c.events[s.Event])
	if s.Frame >= len(rels) {
		return false
	}
	return c.frames.HasFrame(c.events[s.Event], rels[s.Frame])
}

// ProbeNext advances the odometer until a position with source imagery is
// found and moves the cursor there. Candidates are computed off to the side:
// on ErrExhausted the cursor is exactly where it was before the call.
func (c *Cursor) ProbeNext() (State, error) {
	s := c.state
	for i := 0; i < maxProbes; i++ {
		s = c.advance(s)
		if c.hasFrame(s) {
			c.state = s
			return s, nil
		}
	}
	return c.state, fmt.Errorf("%w within %d probes", ErrExhausted, maxProbes)
}
