// Package docs stores the canonical, saved copies of editable documents.
// Autosaves are always taken of, and restored into, a document.
package docs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/monet/db"
	"github.com/jmoiron/monet/db/monarch"
)

// ContentType is what autosaves of documents are filed under.
const ContentType = "doc"

var docMigrations = monarch.Set{
	Name: "document",
	Migrations: []monarch.Migration{
		{
			Up: `CREATE TABLE IF NOT EXISTS document (
				id integer PRIMARY KEY,
				title text NOT NULL DEFAULT '',
				content text NOT NULL DEFAULT '',
				created_at datetime NOT NULL,
				updated_at datetime NOT NULL
			);`,
			Down: `DROP TABLE document;`,
		},
	},
}

// A Document is a titled body of text.
type Document struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Service struct {
	db db.DB
}

func NewService(db db.DB) *Service {
	return &Service{db: db}
}

// Create inserts d, filling in its id and timestamps.
func (s *Service) Create(d *Document) error {
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	res, err := s.db.Exec(`INSERT INTO document (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		d.Title, d.Content, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	d.ID = int(id)
	return err
}

// Get a document by its id.
func (s *Service) Get(id int) (*Document, error) {
	var d Document
	err := s.db.Get(&d, `SELECT id, title, content, created_at, updated_at FROM document WHERE id=?`, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the title and content of an existing document.
func (s *Service) Save(d *Document) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE document SET title=?, content=?, updated_at=? WHERE id=?`,
		d.Title, d.Content, d.UpdatedAt, d.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %d: %w", d.ID, sql.ErrNoRows)
	}
	return nil
}

// Saved returns the saved title and content of document id.
func (s *Service) Saved(id int) (title, content string, err error) {
	d, err := s.Get(id)
	if err != nil {
		return "", "", err
	}
	return d.Title, d.Content, nil
}

// Restore overwrites document id with an earlier title and content.
func (s *Service) Restore(id int, title, content string) error {
	return s.Save(&Document{ID: id, Title: title, Content: content})
}
