// Package redaction masks secrets in note text before it leaves the process
// (MCP responses, exports).
package redaction

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-ports/notevault/internal/models"
)

// IgnoreFile is the per-home file holding extra patterns, one regexp per line.
const IgnoreFile = ".notesignore"

const replacement = "[REDACTED]"

// builtinPatterns cover well-known credential shapes: Stripe, OpenAI, GitHub,
// AWS, Slack, PEM private keys, JWTs and key=value assignments.
var builtinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sk_(?:live|test)_[a-zA-Z0-9]+`),
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`xox[abpr]-[a-zA-Z0-9-]+`),
	regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)(?:password|passwd|secret|api[_-]?key|token)\s*[:=]\s*["']?\S+`),
}

// privateTagRe matches explicit <private>…</private> spans, across lines.
var privateTagRe = regexp.MustCompile(`(?s)<private>.*?</private>`)

// Redactor applies built-in and user-supplied patterns.
type Redactor struct {
	extra []*regexp.Regexp
}

// New returns a Redactor using the built-in patterns plus extra.
func New(extra ...*regexp.Regexp) *Redactor {
	return &Redactor{extra: extra}
}

// Load builds a Redactor from <home>/.notesignore. A missing file is not an
// error.
func Load(home string) (*Redactor, error) {
	extra, err := loadIgnore(filepath.Join(home, IgnoreFile))
	if err != nil {
		return nil, err
	}
	return New(extra...), nil
}

// Text masks secrets in s:
//
//  1. <private>…</private> spans become [REDACTED]; stray tags are dropped.
//  2. Built-in credential patterns.
//  3. Patterns from the ignore file.
func (r *Redactor) Text(s string) string {
	s = privateTagRe.ReplaceAllString(s, replacement)
	s = strings.ReplaceAll(s, "<private>", "")
	s = strings.ReplaceAll(s, "</private>", "")

	for _, re := range builtinPatterns {
		s = re.ReplaceAllString(s, replacement)
	}
	if r != nil {
		for _, re := range r.extra {
			s = re.ReplaceAllString(s, replacement)
		}
	}
	return s
}

// Note returns a copy of n with title and content masked.
func (r *Redactor) Note(n models.Note) models.Note {
	n.Title = r.Text(n.Title)
	n.Content = r.Text(n.Content)
	return n
}

// loadIgnore compiles each non-blank, non-comment line of path.
func loadIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path) // #nosec G304 -- path is derived from the notes home
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
