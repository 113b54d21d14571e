package checkers_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/checkers"
)

func TestJSONPathEquals(t *testing.T) {
	c := qt.New(t)
	doc := []byte(`{"mcpServers":{"notevault":{"command":"notes","args":["mcp"]}},"n":3}`)

	c.Assert(doc, checkers.JSONPathEquals("$.mcpServers.notevault.command"), "notes")
	c.Assert(string(doc), checkers.JSONPathEquals("$.n"), float64(3))
	c.Assert(doc, checkers.JSONPathEquals("$.mcpServers.notevault.args[0]"), "mcp")
	c.Assert(doc, qt.Not(checkers.JSONPathEquals("$.mcpServers.notevault.command")), "memory")
	c.Assert(doc, qt.Not(checkers.JSONPathEquals("$.missing")), "x")
	c.Assert([]byte("{"), qt.Not(checkers.JSONPathEquals("$.a")), "x")
}
