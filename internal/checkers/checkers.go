// Package checkers holds quicktest checkers shared by the test suites.
package checkers

import (
	"encoding/json"
	"fmt"
	"reflect"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker that decodes the obtained JSON document
// (a []byte or string), reads path from it and compares the value with the
// expected argument using reflect.DeepEqual. Numbers decode as float64.
//
//	c.Assert(data, checkers.JSONPathEquals("$.mcpServers.notevault.command"), "notes")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{
		argNames: []string{"got", "want"},
		path:     path,
	}
}

type jsonPathChecker struct {
	argNames []string
	path     string
}

func (c *jsonPathChecker) ArgNames() []string { return c.argNames }

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var raw []byte
	switch v := got.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return qt.BadCheckf("got must be []byte or string, not %T", got)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("cannot read path: %w", err)
	}
	if !reflect.DeepEqual(value, args[0]) {
		note("path", c.path)
		note("value at path", value)
		return fmt.Errorf("values are not equal")
	}
	return nil
}
