// Package tagfilter evaluates the optional per-tag filter expression. Tags for
// which the expression is false are skipped without being packaged.
package tagfilter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env is the evaluation environment exposed to filter expressions.
type Env struct {
	Tag        string `expr:"tag"`
	Name       string `expr:"name"`
	Numbers    []int  `expr:"numbers"`
	Prerelease bool   `expr:"prerelease"`
}

// NewEnv builds the environment for tag. numbers holds every digit run of the
// tag in order ("v1.10.2-rc3" -> [1 10 2 3]); prerelease is true when the tag
// has a '-' suffix after its first digit run.
func NewEnv(project, tag string) Env {
	env := Env{Tag: tag, Name: project, Numbers: []int{}}
	for _, f := range strings.FieldsFunc(tag, func(r rune) bool { return !unicode.IsDigit(r) }) {
		if n, err := strconv.Atoi(f); err == nil {
			env.Numbers = append(env.Numbers, n)
		}
	}
	if i := strings.IndexFunc(tag, unicode.IsDigit); i >= 0 {
		env.Prerelease = strings.Contains(tag[i:], "-")
	}
	return env
}

// Filter is a compiled filter expression. The zero value and a nil *Filter
// accept every tag.
type Filter struct {
	source  string
	program *vm.Program
}

// Compile parses src. An empty or blank src yields a filter that accepts all tags.
func Compile(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile tag filter %q: %w", src, err)
	}
	return &Filter{source: src, program: program}, nil
}

// Source returns the expression text.
func (f *Filter) Source() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Allow reports whether tag passes the filter.
func (f *Filter) Allow(project, tag string) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, NewEnv(project, tag))
	if err != nil {
		return false, fmt.Errorf("evaluate tag filter for %s: %w", tag, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("tag filter returned %T, want bool", out)
	}
	return ok, nil
}
