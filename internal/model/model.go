package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Landmark{},
	&Event{},
	&Camera{},
	&Marker{},
	&SessionState{},
}

// DefaultEvents seeds the events reference table on first migration.
// Order matters: it is the canonical display priority for the event axis.
var DefaultEvents = []Event{
	{Name: "rltd", Ordinal: 0},
	{Name: "bltd0", Ordinal: 1},
	{Name: "bltd", Ordinal: 2},
	{Name: "release", Ordinal: 3},
}

// DefaultLandmarks seeds the landmarks reference table on first migration.
var DefaultLandmarks = []Landmark{
	{Name: "RElbow", Ordinal: 0},
	{Name: "LElbow", Ordinal: 1},
	{Name: "RMidFinger", Ordinal: 2},
	{Name: "LMidFinger", Ordinal: 3},
	{Name: "RShoulder", Ordinal: 4},
	{Name: "LShoulder", Ordinal: 5},
	{Name: "RWrist", Ordinal: 6},
	{Name: "LWrist", Ordinal: 7},
}

// DefaultCameras seeds the cameras reference table on first migration.
var DefaultCameras = []Camera{
	{ID: "oe", Ordinal: 0},
	{ID: "ot", Ordinal: 1},
}

////////////////////////
// REFERENCE TABLES
////////////////////////

// Landmark is one anatomical point the operator annotates per frame/camera.
// The set is fixed configuration, read once at session startup.
type Landmark struct {
	Name    string `json:"name" gorm:"primaryKey;size:63"`
	Ordinal int    `json:"ordinal" gorm:"not null"`
}

func (*Landmark) TableName() string {
	return "landmarks"
}

// Event is a named phase of a trial (e.g. release) anchoring a relative-frame axis.
type Event struct {
	Name    string `json:"name" gorm:"primaryKey;size:63"`
	Ordinal int    `json:"ordinal" gorm:"not null"`
}

func (*Event) TableName() string {
	return "events"
}

// Camera identifies one of the capture views.
type Camera struct {
	ID      string `json:"id" gorm:"primaryKey;size:15"`
	Ordinal int    `json:"ordinal" gorm:"not null"`
}

func (*Camera) TableName() string {
	return "cameras"
}

////////////////////////
// ANNOTATION DATA
////////////////////////

// Marker is one persisted 2-D pixel annotation. The composite unique index
// guarantees at most one row per (subject, trial, event, relative frame,
// camera, landmark); repeated commits at the same position move the point
// instead of duplicating it.
type Marker struct {
	ID            uint    `json:"id" gorm:"primarykey"`
	SubjectID     string  `json:"subjectId" gorm:"size:63;not null;uniqueIndex:idx_marker_identity"`
	TrialID       int     `json:"trialId" gorm:"not null;uniqueIndex:idx_marker_identity"`
	Event         string  `json:"event" gorm:"size:63;not null;uniqueIndex:idx_marker_identity"`
	RelativeFrame int     `json:"relativeFrame" gorm:"not null;uniqueIndex:idx_marker_identity"`
	CamID         string  `json:"camId" gorm:"size:15;not null;uniqueIndex:idx_marker_identity"`
	Landmark      string  `json:"landmark" gorm:"size:63;not null;uniqueIndex:idx_marker_identity"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
}

func (*Marker) TableName() string {
	return "markers"
}

// SessionState is the persisted resume point of an annotation session,
// one row per (subject, trial). Position holds a JSON snapshot of the
// resolved position for inspection; the indices are authoritative.
type SessionState struct {
	ID            uint           `json:"id" gorm:"primarykey"`
	SubjectID     string         `json:"subjectId" gorm:"size:63;not null;uniqueIndex:idx_session_scope"`
	TrialID       int            `json:"trialId" gorm:"not null;uniqueIndex:idx_session_scope"`
	LandmarkIndex int            `json:"landmarkIndex"`
	EventIndex    int            `json:"eventIndex"`
	FrameIndex    int            `json:"frameIndex"`
	CameraIndex   int            `json:"cameraIndex"`
	Position      datatypes.JSON `json:"position"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (*SessionState) TableName() string {
	return "session_states"
}
