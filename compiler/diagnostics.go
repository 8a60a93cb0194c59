package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic is one compile-time error.
type Diagnostic struct {
	File    string
	Line    int
	Message string
}

func (d Diagnostic) Error() string {
	if d.File != "" {
		return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// Diagnostics is the error returned when compilation fails.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// errStrict unwinds a compilation once strict mode has recorded its first
// diagnostic.
var errStrict = errors.New("compilation stopped at first error")

// Context is the shared compilation context. Every stage reports into it;
// the error flag decides whether output is produced at the end.
type Context struct {
	Strict      bool
	diagnostics Diagnostics
}

// NewContext creates a compilation context.
func NewContext(strict bool) *Context {
	return &Context{Strict: strict}
}

// Errorf records a diagnostic at the token's position. In strict mode it
// panics with errStrict; Compile recovers it.
func (c *Context) Errorf(tok Token, format string, args ...interface{}) {
	c.diagnostics = append(c.diagnostics, Diagnostic{
		File:    tok.File,
		Line:    tok.Line,
		Message: fmt.Sprintf(format, args...),
	})
	if c.Strict {
		panic(errStrict)
	}
}

// Failed reports whether any diagnostic has been recorded.
func (c *Context) Failed() bool {
	return len(c.diagnostics) > 0
}

// Diagnostics returns the recorded diagnostics.
func (c *Context) Diagnostics() Diagnostics {
	return c.diagnostics
}

// Err returns the diagnostics as an error, or nil.
func (c *Context) Err() error {
	if len(c.diagnostics) == 0 {
		return nil
	}
	return c.diagnostics
}
