// Package catalog loads the frame log produced by the capture pipeline and
// answers which (subject, trial, event, relative frame, camera) combinations
// have source imagery. The log is immutable; the catalog is read-only after
// construction.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/spf13/viper"
)

var (
	// ErrUnknownSubject is returned when the subject does not appear in the frame log.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrUnknownTrial is returned when the trial does not appear for the subject.
	ErrUnknownTrial = errors.New("unknown trial")
)

// eventPriority is the canonical display order for the event axis. Events
// not listed sort after all listed events, in source order among themselves.
var eventPriority = []string{"rltd", "bltd0", "bltd", "release"}

// Frame is one row of the frame log.
type Frame struct {
	SubjectID     string
	TrialID       int
	Event         string
	CamID         string
	RelativeFrame int
	AbsoluteFrame uint
}

// FrameImage is a resolved frame with one image path per camera.
type FrameImage struct {
	SubjectID     string
	TrialID       int
	Event         string
	RelativeFrame int
	PathsByCam    map[string]string
}

// trialData groups the frames of one trial by event, preserving the order
// events first appear in the log.
type trialData struct {
	eventOrder []string
	byEvent    map[string][]Frame
}

// Catalog is the in-memory frame lookup built from one frame log CSV.
type Catalog struct {
	csvPath  string
	frameDir string
	cameras  []string
	subjects map[string]map[int]*trialData
	resolved *gocache.Cache
}

// Load reads the frame log at csvPath. The log is `;` separated with a
// header naming at least subject_id, throw_id, cam_id, event_name,
// rel_frame and frame.
func Load(csvPath string) (*Catalog, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame log: %w", err)
	}
	defer f.Close()

	c, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame log %s: %w", csvPath, err)
	}
	c.csvPath = csvPath

	c.frameDir = viper.GetString("catalog.frameDirName")
	if c.frameDir == "" {
		c.frameDir = "frames"
	}

	ttl, err := time.ParseDuration(viper.GetString("catalog.resolveCacheTTL"))
	if err != nil || ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c.resolved = gocache.New(ttl, 2*ttl)

	return c, nil
}

func parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}

	col := make(map[string]int, len(head))
	for i, name := range head {
		col[name] = i
	}
	for _, required := range []string{"subject_id", "throw_id", "cam_id", "event_name", "rel_frame", "frame"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("header lacks column %q", required)
		}
	}

	c := &Catalog{subjects: make(map[string]map[int]*trialData)}
	seenCams := make(map[string]bool)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		trialID, err := strconv.Atoi(row[col["throw_id"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad throw_id %q", line, row[col["throw_id"]])
		}
		relFrame, err := strconv.Atoi(row[col["rel_frame"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad rel_frame %q", line, row[col["rel_frame"]])
		}
		absFrame, err := strconv.ParseUint(row[col["frame"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad frame %q", line, row[col["frame"]])
		}

		frame := Frame{
			SubjectID:     row[col["subject_id"]],
			TrialID:       trialID,
			Event:         row[col["event_name"]],
			CamID:         row[col["cam_id"]],
			RelativeFrame: relFrame,
			AbsoluteFrame: uint(absFrame),
		}

		trials, ok := c.subjects[frame.SubjectID]
		if !ok {
			trials = make(map[int]*trialData)
			c.subjects[frame.SubjectID] = trials
		}
		td, ok := trials[frame.TrialID]
		if !ok {
			td = &trialData{byEvent: make(map[string][]Frame)}
			trials[frame.TrialID] = td
		}
		if _, ok := td.byEvent[frame.Event]; !ok {
			td.eventOrder = append(td.eventOrder, frame.Event)
		}
		td.byEvent[frame.Event] = append(td.byEvent[frame.Event], frame)

		if !seenCams[frame.CamID] {
			seenCams[frame.CamID] = true
			c.cameras = append(c.cameras, frame.CamID)
		}
	}

	return c, nil
}

// Cameras returns the camera ids in the order they first appear in the log.
// The first entry is the documented default camera.
func (c *Catalog) Cameras() []string {
	out := make([]string, len(c.cameras))
	copy(out, c.cameras)
	return out
}

// Subjects returns all subject ids, sorted.
func (c *Catalog) Subjects() []string {
	out := make([]string, 0, len(c.subjects))
	for id := range c.subjects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Trials returns the trial ids of a subject, sorted.
func (c *Catalog) Trials(subject string) ([]int, error) {
	trials, ok := c.subjects[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubject, subject)
	}
	out := make([]int, 0, len(trials))
	for id := range trials {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

func (c *Catalog) trial(subject string, trialID int) (*trialData, error) {
	trials, ok := c.subjects[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubject, subject)
	}
	td, ok := trials[trialID]
	if !ok {
		return nil, fmt.Errorf("%w: %q/%d", ErrUnknownTrial, subject, trialID)
	}
	return td, nil
}

// eventKey maps an event name to its sort rank. Unknown events rank after
// all known ones.
func eventKey(event string) int {
	for i, name := range eventPriority {
		if name == event {
			return i
		}
	}
	return len(eventPriority)
}

// Events returns the event names of a trial in canonical display order:
// the fixed priority list first, then unknown events in source order.
func (c *Catalog) Events(subject string, trialID int) ([]string, error) {
	td, err := c.trial(subject, trialID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(td.eventOrder))
	copy(out, td.eventOrder)
	sort.SliceStable(out, func(i, j int) bool {
		return eventKey(out[i]) < eventKey(out[j])
	})
	return out, nil
}

// RelativeFrames returns the sorted relative-frame offsets of one event as
// seen by one camera. An empty camera selects the event's first camera in
// source order. An event with no rows yields an empty list.
func (c *Catalog) RelativeFrames(subject string, trialID int, event, camID string) ([]int, error) {
	td, err := c.trial(subject, trialID)
	if err != nil {
		return nil, err
	}

	rows := td.byEvent[event]
	if len(rows) == 0 {
		return nil, nil
	}

	if camID == "" {
		camID = rows[0].CamID
	}

	var out []int
	for _, f := range rows {
		if f.CamID == camID {
			out = append(out, f.RelativeFrame)
		}
	}
	sort.Ints(out)
	return out, nil
}

// AllFrames returns every frame of a trial across all events and cameras.
func (c *Catalog) AllFrames(subject string, trialID int) ([]Frame, error) {
	td, err := c.trial(subject, trialID)
	if err != nil {
		return nil, err
	}
	var out []Frame
	for _, event := range td.eventOrder {
		out = append(out, td.byEvent[event]...)
	}
	return out, nil
}

// formatRelFrame renders a relative frame the way the capture pipeline names
// image files: positive offsets carry an explicit plus sign.
func formatRelFrame(relFrame int) string {
	if relFrame > 0 {
		return fmt.Sprintf("+%d", relFrame)
	}
	return strconv.Itoa(relFrame)
}

// ResolveFrame returns the per-camera image paths of one frame, or false when
// the catalog holds no row for the position. Results are memoized: the
// navigation odometer probes the same positions repeatedly.
func (c *Catalog) ResolveFrame(subject string, trialID int, event string, relFrame int) (*FrameImage, bool) {
	key := fmt.Sprintf("%s|%d|%s|%d", subject, trialID, event, relFrame)
	if cached, ok := c.resolved.Get(key); ok {
		img := cached.(*FrameImage)
		return img, img != nil
	}

	img := c.resolveFrame(subject, trialID, event, relFrame)
	c.resolved.Set(key, img, gocache.DefaultExpiration)
	return img, img != nil
}

func (c *Catalog) resolveFrame(subject string, trialID int, event string, relFrame int) *FrameImage {
	td, err := c.trial(subject, trialID)
	if err != nil {
		return nil
	}

	paths := make(map[string]string)
	for _, f := range td.byEvent[event] {
		if f.RelativeFrame != relFrame {
			continue
		}
		name := fmt.Sprintf("%s_%d_%s_%s_%s.png",
			subject, trialID, f.CamID, event, formatRelFrame(relFrame))
		paths[f.CamID] = filepath.Join(filepath.Dir(c.csvPath), c.frameDir, name)
	}

	if len(paths) == 0 {
		return nil
	}

	return &FrameImage{
		SubjectID:     subject,
		TrialID:       trialID,
		Event:         event,
		RelativeFrame: relFrame,
		PathsByCam:    paths,
	}
}

// HasFrame reports whether source imagery exists for the position.
func (c *Catalog) HasFrame(subject string, trialID int, event string, relFrame int) bool {
	_, ok := c.ResolveFrame(subject, trialID, event, relFrame)
	return ok
}
