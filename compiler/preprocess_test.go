package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// memFS serves include files from a map keyed by absolute path.
func memFS(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		abs, _ := filepath.Abs(path)
		if s, ok := files[abs]; ok {
			return []byte(s), nil
		}
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
}

func texts(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

func TestPreprocessDefine(t *testing.T) {
	ctx := NewContext(false)
	pp := NewPreprocessor(ctx, nil)
	tokens := pp.Process("main.bar", "#define LIMIT 10\nint x = LIMIT;\nstring s = \"LIMIT\";")
	if ctx.Failed() {
		t.Fatal(ctx.Err())
	}
	if got, want := texts(tokens), `int x = 10 ; string s = " LIMIT " ;`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if tokens[3].Line != 2 {
		t.Errorf("replacement line = %d, want 2", tokens[3].Line)
	}
	if tokens[0].File != "main.bar" {
		t.Errorf("file = %q", tokens[0].File)
	}
}

func TestPreprocessUndefAndNestedDefine(t *testing.T) {
	ctx := NewContext(false)
	pp := NewPreprocessor(ctx, nil)
	tokens := pp.Process("", "#define A 1\n#define B A + A\nB;\n#undef B\nB;")
	if got, want := texts(tokens), "1 + 1 ; B ;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPreprocessInclude(t *testing.T) {
	dir, _ := filepath.Abs("proj")
	libDir, _ := filepath.Abs("libs")
	files := map[string]string{
		filepath.Join(dir, "util.bar"):      "#include \"common.bar\"\nint util;",
		filepath.Join(libDir, "common.bar"): "int common;",
	}

	ctx := NewContext(false)
	pp := NewPreprocessor(ctx, []string{libDir})
	pp.ReadFile = memFS(files)
	main := filepath.Join(dir, "main.bar")
	tokens := pp.Process(main, "#include \"util.bar\"\n#include \"common.bar\"\nint main;")
	if ctx.Failed() {
		t.Fatal(ctx.Err())
	}
	if got, want := texts(tokens), "int common ; int util ; int main ;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	deps := pp.Dependencies()
	if len(deps) != 2 || filepath.Base(deps[0]) != "util.bar" || filepath.Base(deps[1]) != "common.bar" {
		t.Errorf("dependencies = %v", deps)
	}
	if tokens[0].File != filepath.Join(libDir, "common.bar") {
		t.Errorf("included token file = %q", tokens[0].File)
	}
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"#include \"missing.bar\"", "not found"},
		{"#include missing.bar", "quoted path"},
		{"#define", "macro name"},
		{"#pragma once", "unknown preprocessor directive"},
		{"#", "empty preprocessor directive"},
	}

	for _, tc := range tests {
		ctx := NewContext(false)
		pp := NewPreprocessor(ctx, nil)
		pp.ReadFile = memFS(nil)
		pp.Process("main.bar", tc.source)
		if !ctx.Failed() {
			t.Errorf("%q: expected an error", tc.source)
			continue
		}
		if !strings.Contains(ctx.Err().Error(), tc.want) {
			t.Errorf("%q: error = %q, want it to contain %q", tc.source, ctx.Err(), tc.want)
		}
	}
}
