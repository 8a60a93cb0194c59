package compiler

import (
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Preprocessor: #include / #define / #undef
// ---------------------------------------------------------------------------

// Preprocessor expands directives line by line. Directive lines start with
// '#'; every other line has its macro names replaced before its tokens are
// appended to the output.
type Preprocessor struct {
	IncludePaths []string
	ReadFile     func(path string) ([]byte, error)

	ctx      *Context
	defines  map[string][]Token
	included map[string]bool
	deps     []string
}

// NewPreprocessor creates a preprocessor reporting into ctx.
func NewPreprocessor(ctx *Context, includePaths []string) *Preprocessor {
	return &Preprocessor{
		IncludePaths: includePaths,
		ReadFile:     os.ReadFile,
		ctx:          ctx,
		defines:      make(map[string][]Token),
		included:     make(map[string]bool),
	}
}

// Define registers a macro before processing, as if by #define.
func (p *Preprocessor) Define(name string, replacement []Token) {
	p.defines[name] = replacement
}

// Dependencies lists the files pulled in by #include, in order.
func (p *Preprocessor) Dependencies() []string {
	return p.deps
}

// Process tokenizes and expands one source file.
func (p *Preprocessor) Process(file, source string) []Token {
	if file != "" {
		if abs, err := filepath.Abs(file); err == nil {
			p.included[abs] = true
		}
	}

	tz := NewTokenizer()
	var out []Token
	for i, line := range strings.Split(source, "\n") {
		tokens := tz.TokenizeLine(line, i+1)
		for j := range tokens {
			tokens[j].File = file
		}
		if len(tokens) > 0 && tokens[0].Is(TokenHash) {
			out = append(out, p.directive(file, tokens)...)
			continue
		}
		out = append(out, p.expand(tokens)...)
	}
	return out
}

// directive handles one '#' line and returns the tokens it contributes.
func (p *Preprocessor) directive(file string, tokens []Token) []Token {
	hash := tokens[0]
	if len(tokens) < 2 {
		p.ctx.Errorf(hash, "empty preprocessor directive")
		return nil
	}

	switch {
	case tokens[1].Is(TokenDefine):
		if len(tokens) < 3 || !tokens[2].Is(TokenText) || !isIdentifier(tokens[2].Text) {
			p.ctx.Errorf(hash, "#define requires a macro name")
			return nil
		}
		p.defines[tokens[2].Text] = p.expand(tokens[3:])
		return nil

	case tokens[1].Is(TokenText) && strings.EqualFold(tokens[1].Text, "undef"):
		if len(tokens) < 3 {
			p.ctx.Errorf(hash, "#undef requires a macro name")
			return nil
		}
		delete(p.defines, tokens[2].Text)
		return nil

	case tokens[1].Is(TokenText) && strings.EqualFold(tokens[1].Text, "include"):
		if len(tokens) != 5 || !tokens[2].Is(TokenQuote) || !tokens[3].Is(TokenText) || !tokens[4].Is(TokenQuote) {
			p.ctx.Errorf(hash, "#include expects a quoted path")
			return nil
		}
		return p.include(file, tokens[3])
	}

	p.ctx.Errorf(hash, "unknown preprocessor directive %q", tokens[1].Text)
	return nil
}

func (p *Preprocessor) include(from string, pathTok Token) []Token {
	path, ok := p.resolve(from, pathTok.Text)
	if !ok {
		p.ctx.Errorf(pathTok, "include file %q not found", pathTok.Text)
		return nil
	}
	if p.included[path] {
		return nil
	}
	data, err := p.ReadFile(path)
	if err != nil {
		p.ctx.Errorf(pathTok, "cannot read include %q: %v", pathTok.Text, err)
		return nil
	}
	p.included[path] = true
	p.deps = append(p.deps, path)
	return p.Process(path, string(data))
}

// resolve finds an include file next to the including file first, then on
// the search path.
func (p *Preprocessor) resolve(from, name string) (string, bool) {
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = append(candidates, name)
	} else {
		if from != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(from), name))
		}
		for _, dir := range p.IncludePaths {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	for _, c := range candidates {
		if _, err := p.ReadFile(c); err == nil {
			if abs, err := filepath.Abs(c); err == nil {
				return abs, true
			}
			return c, true
		}
	}
	return "", false
}

// expand substitutes macro names in a token list.
func (p *Preprocessor) expand(tokens []Token) []Token {
	if len(p.defines) == 0 {
		return tokens
	}
	out := make([]Token, 0, len(tokens))
	inString := false
	for _, tok := range tokens {
		if tok.Is(TokenQuote) {
			inString = !inString
		}
		repl, ok := p.defines[tok.Text]
		if !ok || inString || !tok.Is(TokenText) {
			out = append(out, tok)
			continue
		}
		for _, r := range repl {
			r.Line = tok.Line
			r.File = tok.File
			out = append(out, r)
		}
	}
	return out
}
