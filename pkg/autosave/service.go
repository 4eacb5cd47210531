package autosave

import (
	"fmt"
	"time"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/jmoiron/monet/db"
)

// DefaultKeep is how many autosaves are kept per piece of content.
const DefaultKeep = 10

const selectAutosave = `SELECT id, content_type, content_id, content, title, created_at FROM autosaves`

// Service handles autosave operations
type Service struct {
	db   db.DB
	keep int
}

// NewService creates a new autosave service
func NewService(database db.DB) *Service {
	return &Service{db: database, keep: DefaultKeep}
}

// WithKeep sets how many versions Save retains per piece of content.
func (s *Service) WithKeep(n int) *Service {
	if n > 0 {
		s.keep = n
	}
	return s
}

// Save records a new autosave, trims the oldest versions beyond the keep
// limit and returns the new autosave's id.
func (s *Service) Save(contentType string, contentID int, content, title string) (int, error) {
	res, err := s.db.Exec(`
		INSERT INTO autosaves (content_type, content_id, content, title, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		contentType, contentID, content, title, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), s.DeleteOldVersions(contentType, contentID, s.keep)
}

// List returns all autosaves for a specific piece of content, newest first.
func (s *Service) List(contentType string, contentID int) ([]Autosave, error) {
	var autosaves []Autosave
	err := s.db.Select(&autosaves, selectAutosave+`
		WHERE content_type = ? AND content_id = ?
		ORDER BY created_at DESC, id DESC`,
		contentType, contentID)
	return autosaves, err
}

// Count returns how many autosaves a piece of content has.
func (s *Service) Count(contentType string, contentID int) (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT count(*) FROM autosaves WHERE content_type = ? AND content_id = ?`,
		contentType, contentID)
	return n, err
}

// Get retrieves a specific autosave by ID
func (s *Service) Get(id int) (*Autosave, error) {
	var autosave Autosave
	if err := s.db.Get(&autosave, selectAutosave+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &autosave, nil
}

// LoadWithDiffs returns all autosaves for a piece of content with a unified diff
// pre-computed for each against savedContent (the current saved state of the parent).
func (s *Service) LoadWithDiffs(contentType string, contentID int, savedContent string) ([]AutosaveWithDiff, error) {
	autosaves, err := s.List(contentType, contentID)
	if err != nil {
		return nil, err
	}
	result := make([]AutosaveWithDiff, len(autosaves))
	for i, as := range autosaves {
		result[i] = AutosaveWithDiff{Autosave: as, Diff: Diff(savedContent, as.Content)}
	}
	return result, nil
}

// Diff returns a unified diff from saved to autosaved, or "" if they match.
func Diff(saved, autosaved string) string {
	edits := myers.ComputeEdits(span.URIFromPath("saved"), saved, autosaved)
	return fmt.Sprint(gotextdiff.ToUnified("saved", "autosave", saved, edits))
}

// Delete removes a single autosave by ID.
func (s *Service) Delete(id int) error {
	_, err := s.db.Exec(`DELETE FROM autosaves WHERE id = ?`, id)
	return err
}

// ClearIdentical removes every autosave of a piece of content whose content
// matches savedContent, returning how many were removed.
func (s *Service) ClearIdentical(contentType string, contentID int, savedContent string) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM autosaves
		WHERE content_type = ? AND content_id = ? AND content = ?`,
		contentType, contentID, savedContent)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteOldVersions removes old autosaves, keeping only the most recent keepCount versions
func (s *Service) DeleteOldVersions(contentType string, contentID int, keepCount int) error {
	_, err := s.db.Exec(`
		DELETE FROM autosaves
		WHERE content_type = ? AND content_id = ?
		AND id NOT IN (
			SELECT id FROM autosaves
			WHERE content_type = ? AND content_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		contentType, contentID, contentType, contentID, keepCount)
	return err
}
