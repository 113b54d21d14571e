// Package models defines the core data types for the note store.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Error taxonomy surfaced by the service layer. Operation failures wrap one of
// the *Failed sentinels together with the underlying cause.
var (
	ErrQueryFailed  = errors.New("query failed")
	ErrCreateFailed = errors.New("create failed")
	ErrUpdateFailed = errors.New("update failed")
	ErrDeleteFailed = errors.New("delete failed")

	ErrNotFound     = errors.New("note not found")
	ErrInvalidColor = errors.New("invalid color")
)

// Palette lists the accepted note colors in display order.
var Palette = []string{"red", "orange", "yellow", "green", "blue", "purple", "gray"}

// SavedAtLayout formats the local save confirmation shown by the editor.
const SavedAtLayout = "Jan 2, 2006 at 3:04 PM"

// Note is a persisted note.
type Note struct {
	ID        string
	Title     string
	Content   string
	Color     string // "" when unset; otherwise one of Palette
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasColor reports whether the note carries a palette color.
func (n *Note) HasColor() bool { return n.Color != "" }

// NoteFields is the caller-supplied payload for creating a note.
// Unset fields default to empty strings.
type NoteFields struct {
	Title   string
	Content string
	Color   string // optional
}

// UpdateInput carries the full field set for an update.
// Revision 0 applies unconditionally; a positive Revision is applied only when
// it is greater than the stored one.
type UpdateInput struct {
	ID       string
	Title    string
	Content  string
	Color    string
	Revision int64
}

// UpdateResult is returned from Service.Update.
type UpdateResult struct {
	Note    *Note
	Applied bool // false when the update was older than the stored revision
	SavedAt time.Time
}

// ReindexResult is returned from Service.Reindex.
type ReindexResult struct {
	Count int
	Dim   int
	Model string
}

// NewNote constructs a Note from fields, assigning a new UUID and stamping
// creation/update times. The color is normalised; callers validate it first.
func NewNote(f NoteFields) *Note {
	now := time.Now().UTC()
	return &Note{
		ID:        uuid.NewString(),
		Title:     f.Title,
		Content:   f.Content,
		Color:     NormalizeColor(f.Color),
		Revision:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeColor lowercases and trims a color name. "none" maps to "".
func NormalizeColor(color string) string {
	c := strings.ToLower(strings.TrimSpace(color))
	if c == "none" {
		return ""
	}
	return c
}

// ValidateColor returns ErrInvalidColor unless color is empty or in Palette.
func ValidateColor(color string) error {
	c := NormalizeColor(color)
	if c == "" {
		return nil
	}
	for _, p := range Palette {
		if p == c {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidColor, color, strings.Join(Palette, ", "))
}

// NextColor returns the palette color after current, cycling through "" (no
// color) between the last and first entries.
func NextColor(current string) string {
	c := NormalizeColor(current)
	if c == "" {
		return Palette[0]
	}
	for i, p := range Palette {
		if p == c {
			if i == len(Palette)-1 {
				return ""
			}
			return Palette[i+1]
		}
	}
	return ""
}

// FormatSavedAt renders t in the local time zone for save confirmations.
func FormatSavedAt(t time.Time) string {
	return "Saved " + t.Local().Format(SavedAtLayout)
}

// ShortID returns the first eight characters of id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a title to a lowercase hyphenated file-name stem.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
