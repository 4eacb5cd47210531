package autosave

import (
	"time"

	"github.com/jmoiron/monet/pkg/autosave/api"
)

// Autosave is an automatically saved version of some content.
type Autosave struct {
	ID          int       `db:"id" json:"id"`
	ContentType string    `db:"content_type" json:"content_type"`
	ContentID   int       `db:"content_id" json:"content_id"`
	Content     string    `db:"content" json:"content"`
	Title       string    `db:"title" json:"title"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AutosaveWithDiff is an autosave with a unified diff against the saved
// content it belongs to.  Diff is empty when the two are identical.
type AutosaveWithDiff struct {
	Autosave
	Diff string `json:"diff"`
}

// Record converts to the list endpoint's representation.
func (a AutosaveWithDiff) Record() api.Record {
	return api.Record{
		ID:        a.ID,
		CreatedAt: a.CreatedAt,
		Title:     a.Title,
		Diff:      a.Diff,
	}
}

// Source is the canonical, saved copy of a type of content that autosaves
// are taken of.  Saved must return an error wrapping sql.ErrNoRows for
// content that does not exist.
type Source interface {
	Saved(id int) (title, content string, err error)
	Restore(id int, title, content string) error
}
