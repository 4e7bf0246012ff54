// Package query turns list-endpoint query strings into parameterised SQL
// WHERE clauses and paginated responses.
//
// Every list endpoint accepts limit/offset, a free-text q parameter searched
// case-insensitively over the entity's search columns, and exact filters on
// selected fields. Repeating a filter parameter matches any of the values.
package query

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/peeringmanager/internal/store"
)

// Pagination bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// ErrInvalid wraps every parameter parse failure.
var ErrInvalid = errors.New("invalid query parameter")

// Kind selects how a filter value is parsed and compared.
type Kind int

const (
	Exact Kind = iota // string equality
	Int               // integer equality
	Bool              // true/false/1/0
	After             // column >= timestamp
	Before            // column <= timestamp
	Null              // true matches NULL, false matches NOT NULL
)

// Filter binds a query parameter to a column.
type Filter struct {
	Param  string
	Column string
	Kind   Kind
}

// FilterSet describes the filters of one list endpoint.
type FilterSet struct {
	Filters []Filter
	// Search lists the columns matched by q.
	Search []string
}

// Params is a parsed list request.
type Params struct {
	Limit  int
	Offset int
	Where  string // never empty; "1=1" when unfiltered
	Args   []any
}

// Parse builds Params from values according to fs.
func Parse(values url.Values, fs FilterSet) (Params, error) {
	p := Params{Limit: DefaultLimit}

	var err error
	if p.Limit, err = intParam(values, "limit", DefaultLimit); err != nil {
		return Params{}, err
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset, err = intParam(values, "offset", 0); err != nil {
		return Params{}, err
	}
	if p.Offset < 0 {
		return Params{}, fmt.Errorf("%w: offset must not be negative", ErrInvalid)
	}

	clauses := []string{"1=1"}

	if q := strings.TrimSpace(values.Get("q")); q != "" && len(fs.Search) > 0 {
		pattern := "%" + escapeLike(fold(q)) + "%"
		ors := make([]string, len(fs.Search))
		for i, col := range fs.Search {
			ors[i] = foldFunc + "(COALESCE(" + col + ", '')) LIKE ? ESCAPE '\\'"
			p.Args = append(p.Args, pattern)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	for _, f := range fs.Filters {
		raw, ok := values[f.Param]
		if !ok || len(raw) == 0 {
			continue
		}
		clause, args, err := f.build(raw)
		if err != nil {
			return Params{}, err
		}
		clauses = append(clauses, clause)
		p.Args = append(p.Args, args...)
	}

	p.Where = strings.Join(clauses, " AND ")
	return p, nil
}

func (f Filter) build(raw []string) (string, []any, error) {
	switch f.Kind {
	case After, Before:
		t, err := parseTime(raw[len(raw)-1])
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalid, f.Param, err)
		}
		op := ">="
		if f.Kind == Before {
			op = "<="
		}
		return f.Column + " " + op + " ?", []any{store.FormatTime(t)}, nil
	case Null:
		b, err := parseBool(raw[len(raw)-1])
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalid, f.Param, err)
		}
		if b {
			return f.Column + " IS NULL", nil, nil
		}
		return f.Column + " IS NOT NULL", nil, nil
	}

	args := make([]any, 0, len(raw))
	for _, v := range raw {
		switch f.Kind {
		case Int:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s must be an integer", ErrInvalid, f.Param)
			}
			args = append(args, n)
		case Bool:
			b, err := parseBool(v)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalid, f.Param, err)
			}
			args = append(args, b)
		default:
			args = append(args, v)
		}
	}
	if len(args) == 1 {
		return f.Column + " = ?", args, nil
	}
	return f.Column + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(args)), ",") + ")", args, nil
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count" example:"120"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage builds the envelope for one page of results, deriving next and
// previous links from the request URL.
func NewPage[T any](r *http.Request, p Params, total int, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: total, Results: results}
	if p.Offset+p.Limit < total {
		next := pageURL(r.URL, p.Limit, p.Offset+p.Limit)
		page.Next = &next
	}
	if p.Offset > 0 {
		prev := pageURL(r.URL, p.Limit, max(p.Offset-p.Limit, 0))
		page.Previous = &prev
	}
	return page
}

func pageURL(u *url.URL, limit, offset int) string {
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	out := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return out.String()
}

func intParam(values url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(values.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalid, name)
	}
	return n, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", v)
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a timestamp", v)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
