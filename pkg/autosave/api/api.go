// Package api is the wire protocol between the autosave server endpoints and
// the clients that drive them (the save scheduler and the version browser).
//
// Every mutating endpoint answers with a JSON object carrying a boolean
// "success" member; anything else in the object is passed through to the
// caller untouched.  The list endpoint answers with a bare array of records.
package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/jmoiron/jsonq"
)

// RequestIDHeader carries a client-generated id for a save request so that
// both sides can log it.
const RequestIDHeader = "X-Request-Id"

// A Record is one autosaved version as the list endpoint describes it.
type Record struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// Title is empty for untitled versions.
	Title string `json:"title,omitempty"`
	// Diff is a unified diff against the saved document; empty means the
	// version is identical to it.
	Diff string `json:"diff,omitempty"`
}

// DisplayTitle returns the title, or a placeholder for untitled records.
func (r Record) DisplayTitle() string {
	if len(strings.TrimSpace(r.Title)) == 0 {
		return "(untitled)"
	}
	return r.Title
}

// A Payload is a decoded JSON response object.
type Payload map[string]any

func (p Payload) query() *jsonq.JsonQuery {
	return jsonq.NewQuery(map[string]interface{}(p))
}

// Success reports whether the payload's "success" member is true.
func (p Payload) Success() bool {
	ok, err := p.query().Bool("success")
	return err == nil && ok
}

// Reason returns the payload's "error" member, if it has one.
func (p Payload) Reason() string {
	s, _ := p.query().String("error")
	return s
}

// String returns the string at the path, or "" if it is missing.
func (p Payload) String(path ...string) string {
	s, _ := p.query().String(path...)
	return s
}

// Int returns the integer at the path.
func (p Payload) Int(path ...string) (int, error) {
	return p.query().Int(path...)
}

// Strings returns the array of strings at the path.
func (p Payload) Strings(path ...string) ([]string, error) {
	return p.query().ArrayOfStrings(path...)
}

// A Field is a single named form value.
type Field struct {
	Name  string
	Value string
}

// EncodeForm writes fields as a multipart/form-data body and returns it
// along with its content type.  Fields without a name are skipped.
func EncodeForm(fields []Field) (body *bytes.Buffer, contentType string, err error) {
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range fields {
		if len(f.Name) == 0 {
			continue
		}
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

// Endpoints are the URLs for one document's autosaves.
type Endpoints struct {
	Save      string
	List      string
	AutoClear string

	base string
}

// NewEndpoints returns the endpoints for a document served under base, which
// is the mount point of the autosave handler (eg. "http://host/admin/autosave").
func NewEndpoints(base, contentType string, contentID int) Endpoints {
	base = strings.TrimRight(base, "/")
	doc := fmt.Sprintf("%s/%s/%d/", base, contentType, contentID)
	return Endpoints{
		Save:      doc,
		List:      doc,
		AutoClear: doc + "clear",
		base:      base,
	}
}

// Delete returns the URL that deletes record id.
func (e Endpoints) Delete(id int) string {
	return fmt.Sprintf("%s/versions/%d", e.base, id)
}

// Restore returns the URL that restores record id.
func (e Endpoints) Restore(id int) string {
	return fmt.Sprintf("%s/versions/%d/restore", e.base, id)
}
