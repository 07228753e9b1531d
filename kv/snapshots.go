// ABOUTME: Latest score snapshot per user, contact and model
// ABOUTME: Each save overwrites the previous snapshot; no history is kept
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/kith/models"
)

const scorePrefix = "score:"

// ScoreSnapshots persists models.ScoreRecord values in a Store.
type ScoreSnapshots struct {
	store *Store
}

func NewScoreSnapshots(store *Store) *ScoreSnapshots {
	return &ScoreSnapshots{store: store}
}

func snapshotKey(model, userID, contactID string) []byte {
	return []byte(scorePrefix + model + ":" + userID + ":" + contactID)
}

// SaveScore overwrites the latest snapshot for the record's model and contact.
func (s *ScoreSnapshots) SaveScore(_ context.Context, userID string, rec models.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode score snapshot: %w", err)
	}
	if err := s.store.Set(snapshotKey(rec.Model, userID, rec.ContactID), data); err != nil {
		return fmt.Errorf("failed to save score snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot, or nil when none exists.
func (s *ScoreSnapshots) Latest(_ context.Context, model, userID, contactID string) (*models.ScoreRecord, error) {
	data, err := s.store.Get(snapshotKey(model, userID, contactID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load score snapshot: %w", err)
	}
	var rec models.ScoreRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode score snapshot: %w", err)
	}
	return &rec, nil
}

// ListForUser returns every snapshot of one model for a user.
func (s *ScoreSnapshots) ListForUser(_ context.Context, model, userID string) ([]models.ScoreRecord, error) {
	var out []models.ScoreRecord
	prefix := []byte(scorePrefix + model + ":" + userID + ":")
	err := s.store.ScanPrefix(prefix, func(_, value []byte) error {
		var rec models.ScoreRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("failed to decode score snapshot: %w", err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteForContact removes every model's snapshot for a contact.
func (s *ScoreSnapshots) DeleteForContact(_ context.Context, userID, contactID string) error {
	for _, model := range []string{models.ModelRHS, models.ModelContact} {
		if err := s.store.Delete(snapshotKey(model, userID, contactID)); err != nil {
			return fmt.Errorf("failed to delete score snapshot: %w", err)
		}
	}
	return nil
}
