// Package store persists markers and session resume state. It owns the only
// write path to the markers table and guarantees at most one row per
// (subject, trial, event, relative frame, camera, landmark).
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kinetrace/labeller/internal/model"
)

// ErrStorage wraps every persistence failure. Callers check it with
// errors.Is; the commit that triggered it fails without any state change.
var ErrStorage = errors.New("marker storage failure")

// markerIdentity are the columns of the composite unique index on markers.
var markerIdentity = []clause.Column{
	{Name: "subject_id"},
	{Name: "trial_id"},
	{Name: "event"},
	{Name: "relative_frame"},
	{Name: "cam_id"},
	{Name: "landmark"},
}

// Store wraps the gorm handle for marker reads and writes.
type Store struct {
	db *gorm.DB
}

// New creates a store over an already migrated database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AvailableLandmarks returns the configured landmark names in seeded order.
func (s *Store) AvailableLandmarks() ([]string, error) {
	var landmarks []model.Landmark
	if err := s.db.Order("ordinal").Find(&landmarks).Error; err != nil {
		return nil, fmt.Errorf("%w: list landmarks: %v", ErrStorage, err)
	}
	names := make([]string, len(landmarks))
	for i, lm := range landmarks {
		names[i] = lm.Name
	}
	return names, nil
}

// MarkersAt returns every marker of the trial sharing the relative-frame
// value, regardless of event, camera or landmark. Relative frames are not
// unique across events, so callers filter the result further.
func (s *Store) MarkersAt(subject string, trialID, relFrame int) ([]model.Marker, error) {
	var markers []model.Marker
	err := s.db.
		Where("subject_id = ? AND trial_id = ? AND relative_frame = ?", subject, trialID, relFrame).
		Find(&markers).Error
	if err != nil {
		return nil, fmt.Errorf("%w: markers at frame %d: %v", ErrStorage, relFrame, err)
	}
	return markers, nil
}

// Upsert writes the point at the identity tuple: an existing row has its
// coordinates moved in place, otherwise a new row is inserted. The conflict
// target is the unique index, so two upserts for the same tuple can never
// produce two rows.
func (s *Store) Upsert(subject string, trialID int, event string, relFrame int, camID, landmark string, x, y float64) (model.Marker, error) {
	marker := model.Marker{
		SubjectID:     subject,
		TrialID:       trialID,
		Event:         event,
		RelativeFrame: relFrame,
		CamID:         camID,
		Landmark:      landmark,
		X:             x,
		Y:             y,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   markerIdentity,
			DoUpdates: clause.AssignmentColumns([]string{"x", "y"}),
		}).Create(&marker).Error
		if err != nil {
			return err
		}

		// the update path does not report the surviving row's id; re-read it
		return tx.
			Where("subject_id = ? AND trial_id = ? AND event = ? AND relative_frame = ? AND cam_id = ? AND landmark = ?",
				subject, trialID, event, relFrame, camID, landmark).
			First(&marker).Error
	})
	if err != nil {
		return model.Marker{}, fmt.Errorf("%w: upsert %s at (%s/%d, %s, frame %d, cam %s): %v",
			ErrStorage, landmark, subject, trialID, event, relFrame, camID, err)
	}

	return marker, nil
}

// SaveResume persists the session resume point, one row per (subject, trial).
func (s *Store) SaveResume(state model.SessionState) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}, {Name: "trial_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"landmark_index", "event_index", "frame_index", "camera_index", "position", "updated_at",
		}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("%w: save resume point for %s/%d: %v", ErrStorage, state.SubjectID, state.TrialID, err)
	}
	return nil
}

// LoadResume returns the saved resume point of a (subject, trial). A missing
// row is a valid empty result, not an error.
func (s *Store) LoadResume(subject string, trialID int) (model.SessionState, bool, error) {
	var state model.SessionState
	err := s.db.
		Where("subject_id = ? AND trial_id = ?", subject, trialID).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SessionState{}, false, nil
	}
	if err != nil {
		return model.SessionState{}, false, fmt.Errorf("%w: load resume point for %s/%d: %v", ErrStorage, subject, trialID, err)
	}
	return state, true, nil
}
