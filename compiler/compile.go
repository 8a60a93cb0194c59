package compiler

import (
	"fmt"
	"os"

	"github.com/chazu/baranium/pkg/bytecode"
)

// Options control a compilation.
type Options struct {
	// Strict stops at the first diagnostic instead of collecting them all.
	Strict bool

	// IncludePaths are searched for #include files not found next to the
	// including file.
	IncludePaths []string

	// Library produces a library binary with an export table.
	Library bool

	// ReadFile replaces os.ReadFile for includes; used by tests.
	ReadFile func(path string) ([]byte, error)
}

// Source is one named input text.
type Source struct {
	Name string
	Text string
}

// Result is the output of a compilation.
type Result struct {
	Script       *bytecode.Script
	Program      []Stmt
	Names        map[int64]string
	Dependencies []string
	Diagnostics  Diagnostics
}

// Compile compiles a single source text.
func Compile(name, text string, opts Options) (*Result, error) {
	return CompileSources([]Source{{Name: name, Text: text}}, opts)
}

// CompileFiles reads and compiles files as one compilation unit.
func CompileFiles(paths []string, opts Options) (*Result, error) {
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		data, err := read(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		sources = append(sources, Source{Name: path, Text: string(data)})
	}
	return CompileSources(sources, opts)
}

// CompileSources runs the whole pipeline over the sources in order. The
// returned error is the Diagnostics when any stage reported a problem;
// the partial Result is still returned so callers can show what was
// parsed.
func CompileSources(sources []Source, opts Options) (res *Result, err error) {
	ctx := NewContext(opts.Strict)
	res = &Result{}

	defer func() {
		if r := recover(); r != nil {
			if r != errStrict {
				panic(r)
			}
			res.Diagnostics = ctx.Diagnostics()
			res.Script = nil
			err = ctx.Err()
		}
	}()

	pp := NewPreprocessor(ctx, opts.IncludePaths)
	if opts.ReadFile != nil {
		pp.ReadFile = opts.ReadFile
	}
	var tokens []Token
	for _, src := range sources {
		tokens = append(tokens, pp.Process(src.Name, src.Text)...)
	}
	res.Dependencies = pp.Dependencies()

	parser := NewParser(ctx, NewParserContext(), tokens)
	res.Program = parser.ParseProgram()

	gen := NewGenerator(ctx)
	script := gen.Generate(res.Program)
	res.Names = gen.Names()
	res.Diagnostics = ctx.Diagnostics()

	if ctx.Failed() {
		log.Debugf("compilation failed with %d diagnostics", len(res.Diagnostics))
		return res, ctx.Err()
	}

	if opts.Library {
		script.Library = exportTable(res.Program, res.Dependencies)
	}
	res.Script = script
	return res, nil
}

// exportTable lists every top-level declaration that produced a section.
func exportTable(program []Stmt, deps []string) *bytecode.LibraryInfo {
	info := &bytecode.LibraryInfo{Exports: []bytecode.Export{}, Dependencies: deps}
	if info.Dependencies == nil {
		info.Dependencies = []string{}
	}
	for _, s := range program {
		var kind bytecode.SectionKind
		switch n := s.(type) {
		case *FieldDecl:
			kind = bytecode.SectionField
		case *VarDecl:
			kind = bytecode.SectionVariable
		case *FuncDecl:
			if !n.HasBody {
				continue
			}
			kind = bytecode.SectionFunction
		default:
			continue
		}
		info.Exports = append(info.Exports, bytecode.Export{Name: s.Name(), ID: s.ID(), Kind: kind})
	}
	return info
}
