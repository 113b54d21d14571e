// Package setup registers the notes MCP server with supported coding agents
// (Claude Code, Cursor, Codex, OpenCode) and removes it again.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ServerName is the key the MCP server is registered under.
const ServerName = "notevault"

// Result is the return value from all Setup/Uninstall functions.
type Result struct {
	Status  string // always "ok"
	Message string
}

func ok(msg string) Result          { return Result{Status: "ok", Message: msg} }
func okf(f string, a ...any) Result { return ok(fmt.Sprintf(f, a...)) }

func mcpEntry() map[string]any {
	return map[string]any{
		"command": "notes",
		"args":    []any{"mcp"},
		"type":    "stdio",
	}
}

func opencodeEntry() map[string]any {
	return map[string]any{
		"type":    "local",
		"command": []any{"notes", "mcp"},
	}
}

// ---------------------------------------------------------------------------
// Default path helpers
// ---------------------------------------------------------------------------

// DefaultClaudeHome returns the default ~/.claude directory.
func DefaultClaudeHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// DefaultCursorHome returns the default ~/.cursor directory.
func DefaultCursorHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cursor")
}

// DefaultCodexHome returns the default ~/.codex directory.
func DefaultCodexHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex")
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func readJSON(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]any)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return make(map[string]any)
	}
	return m
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- agent MCP entries carry no secrets
}

// addEntry stores entry under data[section][ServerName] unless present.
func addEntry(path, section string, entry map[string]any) (bool, error) {
	data := readJSON(path)
	servers, _ := data[section].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data[section] = servers
	}
	if _, exists := servers[ServerName]; exists {
		return false, nil
	}
	servers[ServerName] = entry
	return true, writeJSON(path, data)
}

// removeEntry deletes data[section][ServerName], pruning empty containers and
// removing the file when nothing else is left in it.
func removeEntry(path, section string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data := readJSON(path)
	servers, _ := data[section].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, section)
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// ---------------------------------------------------------------------------
// TOML helpers (text-based; only handles the [mcp_servers.notevault] table)
// ---------------------------------------------------------------------------

const tomlHeader = "[mcp_servers." + ServerName + "]"

const tomlMCPSection = "\n" + tomlHeader + "\ncommand = \"notes\"\nargs = [\"mcp\"]\n"

func hasTOMLMCPSection(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), tomlHeader)
}

func appendTOMLMCPSection(path string) (bool, error) {
	if hasTOMLMCPSection(path) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.WriteString(tomlMCPSection)
	return err == nil, err
}

func removeTOMLMCPSection(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(data)
	if !strings.Contains(content, tomlHeader) {
		return false, nil
	}
	// Drop the header and its key-value pairs up to the next table or EOF.
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == tomlHeader {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(trimmed, "[") {
			inSection = false
		}
		if !inSection {
			kept = append(kept, line)
		}
	}
	cleaned := strings.TrimRight(strings.Join(kept, "\n"), "\n") + "\n"
	if strings.TrimSpace(cleaned) == "" {
		return true, os.Remove(path)
	}
	return true, os.WriteFile(path, []byte(cleaned), 0o644) // #nosec G306 -- agent TOML config is not a credential file
}

// ---------------------------------------------------------------------------
// Claude Code
// ---------------------------------------------------------------------------

//revive:disable:flag-parameter
func claudeMCPPath(claudeHome string, project bool) string {
	if project {
		return filepath.Join(filepath.Dir(claudeHome), ".mcp.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude.json")
}

func claudeScope(project bool) string {
	if project {
		return ".mcp.json"
	}
	return "~/.claude.json"
}

// SetupClaudeCode registers the MCP server with Claude Code, either in the
// project's .mcp.json or the user's ~/.claude.json.
// claudeHome defaults to ~/.claude when empty.
func SetupClaudeCode(claudeHome string, project bool) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	added, err := addEntry(claudeMCPPath(claudeHome, project), "mcpServers", mcpEntry())
	if err != nil {
		return okf("Could not install: %v", err)
	}
	if added {
		return okf("Installed: mcpServers in %s", claudeScope(project))
	}
	return ok("Already installed")
}

// UninstallClaudeCode removes the MCP server from Claude Code.
func UninstallClaudeCode(claudeHome string, project bool) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	if done, err := removeEntry(claudeMCPPath(claudeHome, project), "mcpServers"); err == nil && done {
		return okf("Removed: mcpServers from %s", claudeScope(project))
	}
	return ok("Nothing to remove")
}

//revive:enable:flag-parameter

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

// SetupCursor registers the MCP server in Cursor's mcp.json.
// cursorHome defaults to ~/.cursor when empty.
func SetupCursor(cursorHome string) Result {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	added, err := addEntry(filepath.Join(cursorHome, "mcp.json"), "mcpServers", mcpEntry())
	if err != nil {
		return okf("Could not install: %v", err)
	}
	if added {
		return ok("Installed: mcpServers")
	}
	return ok("Already installed")
}

// UninstallCursor removes the MCP server from Cursor.
func UninstallCursor(cursorHome string) Result {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	if done, err := removeEntry(filepath.Join(cursorHome, "mcp.json"), "mcpServers"); err == nil && done {
		return ok("Removed: mcpServers")
	}
	return ok("Nothing to remove")
}

// ---------------------------------------------------------------------------
// Codex
// ---------------------------------------------------------------------------

const agentsHeading = "## Notes"

const codexAgentsMDSection = `
` + agentsHeading + `

The user keeps personal notes you can read and write through the ` + "`" + ServerName + "`" + ` MCP tools:

- ` + "`note_search`" + ` finds notes by keyword; an empty query lists recent ones.
- ` + "`note_get`" + ` returns one note in full.
- ` + "`note_create`" + ` and ` + "`note_update`" + ` write notes when the user asks you to remember something.
- ` + "`note_delete`" + ` only when the user explicitly asks.

Never put API keys, secrets, or credentials in a note.
`

// SetupCodex registers the MCP server in Codex's config.toml and adds a short
// notes section to AGENTS.md.
// codexHome defaults to ~/.codex when empty.
func SetupCodex(codexHome string) Result {
	if codexHome == "" {
		codexHome = DefaultCodexHome()
	}
	var installed []string

	agentsPath := filepath.Join(codexHome, "AGENTS.md")
	existing, _ := os.ReadFile(agentsPath)
	if !strings.Contains(string(existing), agentsHeading+"\n") {
		if err := os.MkdirAll(codexHome, 0o755); err == nil {
			content := strings.TrimRight(string(existing), "\n") + "\n" + codexAgentsMDSection
			if err := os.WriteFile(agentsPath, []byte(content), 0o644); err == nil { // #nosec G306 -- AGENTS.md does not contain secrets
				installed = append(installed, "AGENTS.md")
			}
		}
	}

	if added, err := appendTOMLMCPSection(filepath.Join(codexHome, "config.toml")); err == nil && added {
		installed = append(installed, "config.toml")
	}

	if len(installed) == 0 {
		return ok("Already installed")
	}
	return okf("Installed: %s", strings.Join(installed, ", "))
}

var agentsSectionRe = regexp.MustCompile(`(?s)\n*` + agentsHeading + `\n.*?(\n## |\z)`)

// removeCodexAgentsSection strips the notes block from AGENTS.md content,
// keeping any heading that follows it.
func removeCodexAgentsSection(content string) (string, bool) {
	if !strings.Contains(content, agentsHeading+"\n") {
		return content, false
	}
	cleaned := agentsSectionRe.ReplaceAllStringFunc(content, func(m string) string {
		if strings.HasSuffix(m, "\n## ") {
			return "\n\n## "
		}
		return ""
	})
	return strings.TrimRight(cleaned, "\n") + "\n", true
}

// UninstallCodex removes the MCP server and the AGENTS.md section from Codex.
func UninstallCodex(codexHome string) Result {
	if codexHome == "" {
		codexHome = DefaultCodexHome()
	}
	var removed []string

	agentsPath := filepath.Join(codexHome, "AGENTS.md")
	if data, err := os.ReadFile(agentsPath); err == nil {
		if cleaned, changed := removeCodexAgentsSection(string(data)); changed {
			_ = os.WriteFile(agentsPath, []byte(cleaned), 0o644) // #nosec G306 -- AGENTS.md does not contain secrets
			removed = append(removed, "AGENTS.md")
		}
	}

	if done, err := removeTOMLMCPSection(filepath.Join(codexHome, "config.toml")); err == nil && done {
		removed = append(removed, "config.toml")
	}

	if len(removed) > 0 {
		return okf("Removed: %s", strings.Join(removed, ", "))
	}
	return ok("Nothing to remove")
}

// ---------------------------------------------------------------------------
// OpenCode
// ---------------------------------------------------------------------------

//revive:disable:flag-parameter
func opencodeMCPPath(project bool) string {
	if project {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, "opencode.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "opencode", "opencode.json")
}

func opencodeScope(project bool) string {
	if project {
		return "opencode.json"
	}
	return "~/.config/opencode/opencode.json"
}

// SetupOpencode registers the MCP server with OpenCode.
func SetupOpencode(project bool) Result {
	if added, err := addEntry(opencodeMCPPath(project), "mcp", opencodeEntry()); err == nil && added {
		return okf("Installed: mcp in %s", opencodeScope(project))
	}
	return ok("Already installed")
}

// UninstallOpencode removes the MCP server from OpenCode.
func UninstallOpencode(project bool) Result {
	if done, err := removeEntry(opencodeMCPPath(project), "mcp"); err == nil && done {
		return okf("Removed: mcp from %s", opencodeScope(project))
	}
	return ok("Nothing to remove")
}

//revive:enable:flag-parameter
