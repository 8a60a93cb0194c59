package server

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/chazu/baranium/compiler"
	"github.com/chazu/baranium/manifest"
)

// SymbolKind classifies a declaration found in a document.
type SymbolKind int

const (
	SymbolField SymbolKind = iota
	SymbolVariable
	SymbolFunction
	SymbolParameter
	SymbolLocal
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolField:
		return "field"
	case SymbolVariable:
		return "variable"
	case SymbolFunction:
		return "function"
	case SymbolParameter:
		return "parameter"
	case SymbolLocal:
		return "local"
	}
	return "symbol"
}

// Symbol is one declaration visible to editor features.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Detail string // rendered declaration, shown on hover
	File   string
	Line   int    // 1-based
	Scope  string // enclosing function, empty for top-level symbols
}

// Analysis is the result of compiling one open document.
type Analysis struct {
	Path        string
	Diagnostics compiler.Diagnostics
	Symbols     []Symbol
}

// Analyze compiles text as the file at path. Include paths come from the
// nearest baranium.toml above the file, when there is one, followed by
// the environment. Compilation never stops early so every diagnostic is
// reported.
func Analyze(path, text string) *Analysis {
	a := &Analysis{Path: path}

	opts := compiler.Options{}
	if m, err := manifest.FindAndLoad(filepath.Dir(path)); err != nil {
		log.Warningf("loading manifest for %s: %v", path, err)
	} else if m != nil {
		opts.IncludePaths = m.IncludePaths()
	}
	if env, err := manifest.EnvIncludePaths(); err != nil {
		log.Warningf("%v", err)
	} else {
		opts.IncludePaths = append(opts.IncludePaths, env...)
	}

	res, _ := compiler.Compile(path, text, opts)
	if res == nil {
		return a
	}
	a.Diagnostics = res.Diagnostics
	for _, s := range res.Program {
		a.collect(s, "")
	}
	return a
}

// collect records the declarations in s. Function bodies are walked so
// parameters and locals are found too.
func (a *Analysis) collect(s compiler.Stmt, scope string) {
	switch n := s.(type) {
	case *compiler.FieldDecl:
		a.add(n.Name(), SymbolField, fmt.Sprintf("field %s %s", n.Type, n.Name()), n.Tok, scope)
	case *compiler.VarDecl:
		kind := SymbolVariable
		if scope != "" {
			kind = SymbolLocal
		}
		a.add(n.Name(), kind, fmt.Sprintf("%s %s", n.Type, n.Name()), n.Tok, scope)
	case *compiler.FuncDecl:
		a.add(n.Name(), SymbolFunction, n.Signature(), n.Tok, scope)
		for _, p := range n.Params {
			a.add(p.Name, SymbolParameter, fmt.Sprintf("%s %s", p.Type, p.Name), p.Tok, n.Name())
		}
		for _, b := range n.Body {
			a.collect(b, n.Name())
		}
	case *compiler.IfElse:
		for _, b := range n.Body {
			a.collect(b, scope)
		}
		for _, alt := range n.Alternatives {
			a.collect(alt, scope)
		}
	case *compiler.Loop:
		if n.StartVar != nil {
			a.collect(n.StartVar, scope)
		}
		for _, b := range n.Body {
			a.collect(b, scope)
		}
	}
}

func (a *Analysis) add(name string, kind SymbolKind, detail string, tok compiler.Token, scope string) {
	if name == "" {
		return
	}
	a.Symbols = append(a.Symbols, Symbol{
		Name:   name,
		Kind:   kind,
		Detail: detail,
		File:   tok.File,
		Line:   tok.Line,
		Scope:  scope,
	})
}

// Lookup finds the declaration of name as seen from line. Among several
// candidates the closest preceding declaration in this file wins, so a
// local shadows a global of the same name; otherwise the first top-level
// declaration is returned.
func (a *Analysis) Lookup(name string, line int) (Symbol, bool) {
	scope := a.ScopeAt(line)
	var best *Symbol
	for i := range a.Symbols {
		s := &a.Symbols[i]
		if s.Name != name || s.File != a.Path || s.Line > line {
			continue
		}
		if s.Scope != "" && s.Scope != scope {
			continue
		}
		if best == nil || s.Line >= best.Line {
			best = s
		}
	}
	if best != nil {
		return *best, true
	}
	for _, s := range a.Symbols {
		if s.Name == name && s.Scope == "" {
			return s, true
		}
	}
	return Symbol{}, false
}

// Complete returns the keywords and top-level symbols starting with prefix.
// Symbols local to a function are offered only inside that function's
// scope name.
func (a *Analysis) Complete(prefix, scope string) []Symbol {
	lower := strings.ToLower(prefix)
	seen := make(map[string]bool)
	var out []Symbol
	for _, s := range a.Symbols {
		if s.Scope != "" && s.Scope != scope {
			continue
		}
		if seen[s.Name] || !strings.HasPrefix(strings.ToLower(s.Name), lower) {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}

// ScopeAt returns the function whose declaration most closely precedes
// line in this file, or "" when line is before every function.
func (a *Analysis) ScopeAt(line int) string {
	scope, at := "", 0
	for _, s := range a.Symbols {
		if s.Kind == SymbolFunction && s.File == a.Path && s.Line <= line && s.Line >= at {
			scope, at = s.Name, s.Line
		}
	}
	return scope
}

// References returns the 1-based line and 0-based column of every
// identifier token in text spelled word. Tokens carry no column, so the
// column is recovered by scanning the line for whole-word matches.
func References(text, word string) [][2]int {
	lines := strings.Split(text, "\n")
	found := make(map[int]bool)
	var refs [][2]int
	inString := false
	for _, tok := range compiler.Tokenize(text) {
		if tok.Is(compiler.TokenQuote) {
			inString = !inString
			continue
		}
		if inString || !tok.Is(compiler.TokenText) || tok.Text != word || found[tok.Line] {
			continue
		}
		found[tok.Line] = true
		if tok.Line < 1 || tok.Line > len(lines) {
			continue
		}
		for _, col := range wordColumns(lines[tok.Line-1], word) {
			refs = append(refs, [2]int{tok.Line, col})
		}
	}
	return refs
}

// wordColumns returns the byte offsets of whole-word occurrences of word
// in line.
func wordColumns(line, word string) []int {
	var cols []int
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], word)
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(word)
		if (start == 0 || !isWordByte(line[start-1])) && (end == len(line) || !isWordByte(line[end])) {
			cols = append(cols, start)
		}
		off = end
	}
	return cols
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// uriPath converts a file:// document URI to a filesystem path.
func uriPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
