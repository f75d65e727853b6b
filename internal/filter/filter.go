package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"

	"proxylog/internal/model"
)

// fieldRef matches "$.path" or "$.headers.content-type" style references.
var fieldRef = regexp.MustCompile(`\$\.([A-Za-z_]\w*(?:\.[A-Za-z_][\w-]*)*)`)

var functions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, errors.New("contains(text, substr) takes two arguments")
		}
		return strings.Contains(toString(args[0]), toString(args[1])), nil
	},
	"lower": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("lower(text) takes one argument")
		}
		return strings.ToLower(toString(args[0])), nil
	},
	"matches": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, errors.New("matches(text, pattern) takes two arguments")
		}
		re, err := regexp.Compile(toString(args[1]))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toString(args[0])), nil
	},
}

// Filter is a compiled filter expression. The zero expression matches
// everything.
type Filter struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// Compile parses expr. Field references use the "$.field" form; header names
// are lower-case under "$.headers.", JSON bodies are exposed under "$.json.".
func Compile(expr string) (*Filter, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return &Filter{}, nil
	}
	translated := fieldRef.ReplaceAllString(src, "[$1]")
	e, err := govaluate.NewEvaluableExpressionWithFunctions(translated, functions)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", src, err)
	}
	return &Filter{src: src, expr: e}, nil
}

func (f *Filter) String() string { return f.src }

// Match reports whether rec satisfies the filter. Evaluation errors and
// non-boolean results count as no match.
func (f *Filter) Match(rec model.Record) bool {
	if f == nil || f.expr == nil {
		return true
	}
	result, err := f.expr.Eval(params(rec.Fields()))
	if err != nil {
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

// params resolves missing fields to nil so an absent header compares unequal
// instead of failing the whole expression.
type params map[string]any

func (p params) Get(name string) (any, error) {
	return p[name], nil
}

// Search is a free-text query over the summary and body of a record: plain
// case-insensitive contains, or a regular expression when written as /.../.
type Search struct {
	query string
	re    *regexp.Regexp
}

func NewSearch(q string) (*Search, error) {
	q = strings.TrimSpace(q)
	s := &Search{query: strings.ToLower(q)}
	if len(q) >= 2 && strings.HasPrefix(q, "/") && strings.HasSuffix(q, "/") {
		re, err := regexp.Compile(q[1 : len(q)-1])
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", q, err)
		}
		s.re = re
	}
	return s, nil
}

func (s *Search) Empty() bool { return s == nil || (s.query == "" && s.re == nil) }

// Match tests the given texts; any match wins.
func (s *Search) Match(texts ...string) bool {
	if s.Empty() {
		return true
	}
	for _, t := range texts {
		if s.re != nil {
			if s.re.MatchString(t) {
				return true
			}
			continue
		}
		if strings.Contains(strings.ToLower(t), s.query) {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
