package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"sshwatch/internal/parser"
)

// ErrInvalidExpression is wrapped by compile failures.
var ErrInvalidExpression = errors.New("invalid filter expression")

// Env is the environment a filter expression is evaluated against.
type Env struct {
	Date   string
	Time   string
	User   string
	IP     string
	Port   string
	Status string
	Line   string // the raw log line
}

// Filter decides which events are emitted. A nil *Filter accepts all.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile builds a filter. An empty expression yields a nil filter.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &Filter{source: source, program: program}, nil
}

// String returns the expression source.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether evt passes the filter.
func (f *Filter) Match(evt *parser.AuthEvent, line string) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, Env{
		Date:   evt.Date,
		Time:   evt.Time,
		User:   evt.User,
		IP:     evt.SourceIP,
		Port:   evt.Port,
		Status: string(evt.Status),
		Line:   line,
	})
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", f.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
