// Package session orchestrates one annotation session over a single
// (subject, trial): it owns the marker store handle, the sibling index and
// the navigation cursor, and exposes the operations the frontend drives.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetrace/labeller/internal/catalog"
	"github.com/kinetrace/labeller/internal/cursor"
	"github.com/kinetrace/labeller/internal/metrics"
	"github.com/kinetrace/labeller/internal/model"
	"github.com/kinetrace/labeller/internal/sibling"
	"github.com/kinetrace/labeller/internal/store"
	"github.com/kinetrace/labeller/internal/telemetry"
)

var (
	// ErrBusy is returned when a navigate or commit arrives while a previous
	// one is still completing. The caller retries after the current action
	// finishes; nothing is queued.
	ErrBusy = errors.New("session busy")

	// ErrNoLandmarks is returned at construction when the landmark
	// configuration is empty.
	ErrNoLandmarks = errors.New("no landmarks configured")

	// ErrNoEvents is returned at construction when the trial has no events.
	ErrNoEvents = errors.New("no events in trial")

	// ErrNoCameras is returned at construction when the frame log names no cameras.
	ErrNoCameras = errors.New("no cameras in frame log")
)

// Position is a fully resolved cursor position.
type Position struct {
	SubjectID     string `json:"subjectId"`
	TrialID       int    `json:"trialId"`
	Event         string `json:"event"`
	RelativeFrame int    `json:"relativeFrame"`
	CamID         string `json:"camId"`
	Landmark      string `json:"landmark"`
}

// frameSource adapts the catalog to the cursor's per-event view,
// pre-scoped to the session's (subject, trial).
type frameSource struct {
	catalog *catalog.Catalog
	subject string
	trial   int
}

func (f frameSource) RelativeFrames(event string) []int {
	rels, err := f.catalog.RelativeFrames(f.subject, f.trial, event, "")
	if err != nil {
		return nil
	}
	return rels
}

func (f frameSource) HasFrame(event string, relFrame int) bool {
	return f.catalog.HasFrame(f.subject, f.trial, event, relFrame)
}

// Config carries the session dependencies. Metrics and Telemetry are
// optional; a nil value disables them.
type Config struct {
	Subject   string
	Trial     int
	Store     *store.Store
	Catalog   *catalog.Catalog
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Telemetry *telemetry.Manager
}

// Session is the annotation engine for one (subject, trial).
type Session struct {
	id        uuid.UUID
	subject   string
	trial     int
	store     *store.Store
	catalog   *catalog.Catalog
	siblings  *sibling.Index
	cur       *cursor.Cursor
	landmarks []string
	events    []string
	cameras   []string
	working   []model.Marker
	log       *slog.Logger
	metrics   *metrics.Recorder
	telemetry *telemetry.Manager

	// mu rejects re-entrant actions: marker writes and cursor moves must
	// never interleave.
	mu sync.Mutex
}

// New constructs a session, restoring the saved resume point when one
// exists, and loads the initial working set. Configuration problems
// (unknown subject/trial, empty landmark set) fail here, not later.
func New(cfg Config) (*Session, error) {
	events, err := cfg.Catalog.Events(cfg.Subject, cfg.Trial)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrNoEvents, cfg.Subject, cfg.Trial)
	}

	landmarks, err := cfg.Store.AvailableLandmarks()
	if err != nil {
		return nil, err
	}
	if len(landmarks) == 0 {
		return nil, ErrNoLandmarks
	}

	cameras := cfg.Catalog.Cameras()
	if len(cameras) == 0 {
		return nil, ErrNoCameras
	}

	frames, err := cfg.Catalog.AllFrames(cfg.Subject, cfg.Trial)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		id:        uuid.New(),
		subject:   cfg.Subject,
		trial:     cfg.Trial,
		store:     cfg.Store,
		catalog:   cfg.Catalog,
		siblings:  sibling.Build(frames),
		landmarks: landmarks,
		events:    events,
		cameras:   cameras,
		metrics:   cfg.Metrics,
		telemetry: cfg.Telemetry,
	}
	s.log = logger.With("session", s.id.String(), "subject", cfg.Subject, "trial", cfg.Trial)
	s.cur = cursor.New(landmarks, events, cameras, frameSource{
		catalog: cfg.Catalog,
		subject: cfg.Subject,
		trial:   cfg.Trial,
	})

	saved, found, err := cfg.Store.LoadResume(cfg.Subject, cfg.Trial)
	if err != nil {
		return nil, err
	}
	if found {
		s.cur.Restore(cursor.State{
			Landmark: saved.LandmarkIndex,
			Event:    saved.EventIndex,
			Frame:    saved.FrameIndex,
			Camera:   saved.CameraIndex,
		})
		s.log.Info("Restored resume point", "state", s.cur.State())
	}

	if err := s.loadMarkers(); err != nil {
		return nil, err
	}

	s.log.Info("Session ready", "landmarks", len(landmarks), "events", len(events), "cameras", len(cameras))
	return s, nil
}

// ID returns the session identifier used in logs and telemetry.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// AvailableLandmarks returns the configured landmark order.
func (s *Session) AvailableLandmarks() []string {
	out := make([]string, len(s.landmarks))
	copy(out, s.landmarks)
	return out
}

// Position resolves the cursor indices into the current
// (subject, trial, event, relative frame, camera, landmark).
func (s *Session) Position() (Position, error) {
	return s.position()
}

func (s *Session) position() (Position, error) {
	relFrame, err := s.cur.RelativeFrame()
	if err != nil {
		return Position{}, err
	}
	return Position{
		SubjectID:     s.subject,
		TrialID:       s.trial,
		Event:         s.cur.EventName(),
		RelativeFrame: relFrame,
		CamID:         s.cur.CameraID(),
		Landmark:      s.cur.LandmarkName(),
	}, nil
}

// loadMarkers refreshes the working set: every marker of the trial at the
// current relative frame, across events, cameras and landmarks.
func (s *Session) loadMarkers() error {
	relFrame, err := s.cur.RelativeFrame()
	if err != nil {
		return err
	}
	markers, err := s.store.MarkersAt(s.subject, s.trial, relFrame)
	if err != nil {
		return err
	}
	s.working = markers
	return nil
}

// LoadMarkers refreshes the working set from the store.
func (s *Session) LoadMarkers() error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()
	return s.loadMarkers()
}

// CurrentMarker returns the working-set marker matching the current
// (camera, event, landmark), if one exists. The store's uniqueness
// invariant guarantees at most one match.
func (s *Session) CurrentMarker() (model.Marker, bool) {
	return s.currentMarker()
}

func (s *Session) currentMarker() (model.Marker, bool) {
	camID := s.cur.CameraID()
	event := s.cur.EventName()
	landmark := s.cur.LandmarkName()
	for _, m := range s.working {
		if m.CamID == camID && m.Event == event && m.Landmark == landmark {
			return m, true
		}
	}
	return model.Marker{}, false
}

// FrameMarkers returns every working-set marker of the current
// (camera, event), keyed by landmark. This is what a renderer paints onto
// the current frame.
func (s *Session) FrameMarkers() map[string]model.Marker {
	camID := s.cur.CameraID()
	event := s.cur.EventName()

	out := make(map[string]model.Marker)
	for _, m := range s.working {
		if m.CamID == camID && m.Event == event {
			out[m.Landmark] = m
		}
	}
	return out
}

// siblingProbes is the fixed search pattern: nearest offset first, per
// direction. Larger gaps mean no sibling.
var siblingProbes = []struct {
	dir    string
	offset int
}{
	{"prev", -1},
	{"next", +1},
	{"prev", -2},
	{"next", +2},
}

// Siblings finds the temporally nearest persisted marker of the current
// landmark/camera before and after the current position, crossing event
// boundaries via the absolute frame counter. Keys are "prev" and "next";
// a direction with no sibling is simply absent.
func (s *Session) Siblings() (map[string]model.Marker, error) {
	pos, err := s.position()
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.Marker)

	abs, ok := s.siblings.ByRelativeFrame(pos.Event, pos.RelativeFrame)
	if !ok {
		return out, nil
	}

	// a direction answered at offset 1 is never overwritten at offset 2,
	// even when the nearer frame holds no matching marker
	found := make(map[string]bool, 2)

	for _, probe := range siblingProbes {
		if found[probe.dir] {
			continue
		}

		target, ok := offsetAbsolute(abs, probe.offset)
		if !ok {
			continue
		}
		entries := s.siblings.ByAbsoluteFrame(target)
		if len(entries) == 0 {
			continue
		}
		found[probe.dir] = true

		for _, entry := range entries {
			markers, err := s.store.MarkersAt(s.subject, s.trial, entry.RelativeFrame)
			if err != nil {
				return nil, err
			}
			for _, m := range markers {
				if m.CamID != pos.CamID || m.Landmark != pos.Landmark || m.Event != entry.Event {
					continue
				}
				if _, exists := out[probe.dir]; !exists {
					out[probe.dir] = m
				}
			}
		}
	}

	return out, nil
}

// offsetAbsolute applies a signed offset to the unsigned frame counter.
func offsetAbsolute(abs uint, offset int) (uint, bool) {
	if offset < 0 && uint(-offset) > abs {
		return 0, false
	}
	return uint(int(abs) + offset), true
}

// Navigate steps one axis and reloads the working set.
func (s *Session) Navigate(axis cursor.Axis, delta int) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	s.cur.Step(axis, delta)
	if err := s.loadMarkers(); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.Navigation(context.Background(), axis.String())
	}
	s.log.Debug("Navigated", "axis", axis.String(), "delta", delta, "state", s.cur.State())
	return nil
}

// Commit persists the point at the current position, advances the cursor to
// the next labelable position and reloads the working set. An existing
// marker at the position is moved in place, never duplicated. On failure
// the error is surfaced and no further stage runs.
func (s *Session) Commit(x, y float64) (model.Marker, error) {
	if !s.mu.TryLock() {
		return model.Marker{}, ErrBusy
	}
	defer s.mu.Unlock()

	start := time.Now()

	pos, err := s.position()
	if err != nil {
		return model.Marker{}, err
	}

	op := "insert"
	identity := pos
	if existing, ok := s.currentMarker(); ok {
		op = "update"
		identity = Position{
			SubjectID:     existing.SubjectID,
			TrialID:       existing.TrialID,
			Event:         existing.Event,
			RelativeFrame: existing.RelativeFrame,
			CamID:         existing.CamID,
			Landmark:      existing.Landmark,
		}
	}

	marker, err := s.store.Upsert(identity.SubjectID, identity.TrialID, identity.Event,
		identity.RelativeFrame, identity.CamID, identity.Landmark, x, y)
	if err != nil {
		return model.Marker{}, err
	}

	if _, err := s.cur.ProbeNext(); err != nil {
		if s.metrics != nil {
			s.metrics.ProbeExhausted(context.Background())
		}
		return model.Marker{}, err
	}

	if err := s.loadMarkers(); err != nil {
		return model.Marker{}, err
	}

	if s.metrics != nil {
		s.metrics.Commit(context.Background(), op)
	}
	if s.telemetry != nil {
		s.telemetry.WriteCommit(identity.SubjectID, identity.TrialID, identity.Event,
			identity.RelativeFrame, identity.CamID, identity.Landmark, op, x, y, time.Since(start))
	}

	s.log.Info("Marker committed",
		"op", op,
		"landmark", identity.Landmark,
		"event", identity.Event,
		"relFrame", identity.RelativeFrame,
		"cam", identity.CamID,
		"x", x, "y", y,
	)
	return marker, nil
}

// ImagePaths returns the image paths of the current frame ordered with the
// current camera first, the way the two view panes are laid out.
func (s *Session) ImagePaths() ([]string, error) {
	pos, err := s.position()
	if err != nil {
		return nil, err
	}

	img, ok := s.catalog.ResolveFrame(pos.SubjectID, pos.TrialID, pos.Event, pos.RelativeFrame)
	if !ok {
		return nil, fmt.Errorf("no imagery at %s/%d %s frame %d", pos.SubjectID, pos.TrialID, pos.Event, pos.RelativeFrame)
	}

	ordered := make([]string, 0, len(s.cameras))
	if path, ok := img.PathsByCam[pos.CamID]; ok {
		ordered = append(ordered, path)
	}
	for _, cam := range s.cameras {
		if cam == pos.CamID {
			continue
		}
		if path, ok := img.PathsByCam[cam]; ok {
			ordered = append(ordered, path)
		}
	}
	return ordered, nil
}

// Close saves the resume point. The working set stays valid until then.
func (s *Session) Close() error {
	state := s.cur.State()

	var snapshot []byte
	if pos, err := s.position(); err == nil {
		snapshot, _ = json.Marshal(pos)
	}

	err := s.store.SaveResume(model.SessionState{
		SubjectID:     s.subject,
		TrialID:       s.trial,
		LandmarkIndex: state.Landmark,
		EventIndex:    state.Event,
		FrameIndex:    state.Frame,
		CameraIndex:   state.Camera,
		Position:      snapshot,
	})
	if err != nil {
		return err
	}

	s.log.Info("Session closed", "state", state)
	return nil
}
