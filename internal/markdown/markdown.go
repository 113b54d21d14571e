// Package markdown converts notes to and from Obsidian-compatible markdown
// files with YAML front-matter.
package markdown

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/notevault/internal/models"
)

// frontMatter is the YAML header written above each note body.
type frontMatter struct {
	ID      string   `yaml:"id,omitempty"`
	Title   string   `yaml:"title,omitempty"`
	Color   string   `yaml:"color,omitempty"`
	Created string   `yaml:"created,omitempty"`
	Updated string   `yaml:"updated,omitempty"`
	Tags    []string `yaml:"tags,omitempty"`
}

// FileName returns the export file name for n: <slug>-<id8>.md.
func FileName(n *models.Note) string {
	return models.Slug(n.Title) + "-" + models.ShortID(n.ID) + ".md"
}

// Render produces the full markdown document for a note.
func Render(n *models.Note) (string, error) {
	fm := frontMatter{
		ID:      n.ID,
		Title:   n.Title,
		Color:   n.Color,
		Created: n.CreatedAt.UTC().Format(time.RFC3339),
		Updated: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if n.Color != "" {
		fm.Tags = []string{"color/" + n.Color}
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("markdown.Render: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n")
	if n.Title != "" {
		sb.WriteString("\n# ")
		sb.WriteString(n.Title)
		sb.WriteString("\n")
	}
	if body := strings.TrimRight(n.Content, "\n"); body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Export writes one file per note into dir, creating dir if needed, and
// returns the written paths in file-name order.
func Export(dir string, notes []models.Note) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("markdown.Export: %w", err)
	}
	paths := make([]string, 0, len(notes))
	for i := range notes {
		n := &notes[i]
		doc, err := Render(n)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, FileName(n))
		if err := os.WriteFile(p, []byte(doc), 0o644); err != nil { // #nosec G306 -- exported notes are meant to be read by other tools
			return nil, fmt.Errorf("markdown.Export %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// Parsed is a note read back from a markdown document.
type Parsed struct {
	ID     string // empty when the file carried no id
	Fields models.NoteFields
}

// Parse reads a markdown document. Front-matter is optional; without a title
// in the front-matter a leading "# " heading is used and removed from the
// body, and failing that fallbackTitle.
func Parse(content, fallbackTitle string) (Parsed, error) {
	header, body := splitFrontmatter(content)

	var fm frontMatter
	if header != "" {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return Parsed{}, fmt.Errorf("markdown.Parse front-matter: %w", err)
		}
	}

	body = strings.TrimLeft(body, "\n")
	title := fm.Title
	if first, rest, _ := strings.Cut(body, "\n"); strings.HasPrefix(first, "# ") {
		if title == "" || strings.TrimSpace(strings.TrimPrefix(first, "# ")) == title {
			title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
			body = strings.TrimLeft(rest, "\n")
		}
	}
	if title == "" {
		title = fallbackTitle
	}

	color := models.NormalizeColor(fm.Color)
	if err := models.ValidateColor(color); err != nil {
		color = ""
	}
	return Parsed{
		ID: fm.ID,
		Fields: models.NoteFields{
			Title:   title,
			Content: strings.TrimRight(body, "\n"),
			Color:   color,
		},
	}, nil
}

// ParseFile reads and parses a single markdown file. The file name without
// extension is the fallback title.
func ParseFile(path string) (Parsed, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the user on the command line
	if err != nil {
		return Parsed{}, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(string(data), stem)
}

// splitFrontmatter splits YAML front-matter from the body.
// Returns ("", content) when no front-matter is detected.
func splitFrontmatter(content string) (frontmatter, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	parts := strings.SplitN(content, "---\n", 3)
	if len(parts) >= 3 {
		return parts[1], parts[2]
	}
	return "", content
}
