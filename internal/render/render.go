// Package render builds template contexts for exchanges, webhooks and
// exports and renders them with a Jinja-compatible engine.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Template failures. Both wrap the engine's error message.
var (
	ErrSyntax    = errors.New("template syntax error")
	ErrExecution = errors.New("template execution error")
)

// Context is the variable set passed to a template.
type Context map[string]any

var autoescapeOnce sync.Once

// String renders text against ctx. On error no output is returned.
func String(text string, ctx Context) (string, error) {
	// Router configuration is not HTML.
	autoescapeOnce.Do(func() { pongo2.SetAutoescape(false) })

	tpl, err := pongo2.FromString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	out, err := tpl.Execute(pongo2.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return out, nil
}

// Check parses text without executing it.
func Check(text string) error {
	if _, err := pongo2.FromString(text); err != nil {
		return fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return nil
}

// Value converts v to the generic maps and slices templates iterate over,
// using v's JSON field names. Whole numbers become int64 so they print
// without a fractional part.
func Value(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode template value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode template value: %w", err)
	}
	return integers(out), nil
}

func integers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integers(e)
		}
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
	}
	return v
}
