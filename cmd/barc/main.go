// barc compiles Baranium sources into a binary script or library.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora/v3"
	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/baranium/compiler"
	"github.com/chazu/baranium/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0"

var log = commonlog.GetLogger("baranium.barc")

// Exit codes.
const (
	exitOK = iota
	exitCompile
	exitUsage
	exitIO
)

type options struct {
	output      string
	includeFile string
	debug       bool
	help        bool
	showVersion bool
	library     bool
	strict      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("barc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.output, "o", "", "Write the binary to `path`")
	fs.StringVar(&o.output, "output", "", "Write the binary to `path`")
	fs.StringVar(&o.includeFile, "I", "", "Read include directories from the path-list `file`")
	fs.StringVar(&o.includeFile, "include", "", "Read include directories from the path-list `file`")
	fs.BoolVar(&o.debug, "d", false, "Dump parse trees and disassembly")
	fs.BoolVar(&o.debug, "debug", false, "Dump parse trees and disassembly")
	fs.BoolVar(&o.help, "h", false, "Show this help")
	fs.BoolVar(&o.help, "help", false, "Show this help")
	fs.BoolVar(&o.showVersion, "v", false, "Print the version")
	fs.BoolVar(&o.showVersion, "version", false, "Print the version")
	fs.BoolVar(&o.library, "library", false, "Produce a library with an export table")
	fs.BoolVar(&o.strict, "strict", false, "Stop at the first error")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: barc [options] files...\n\n")
		fmt.Fprintf(stderr, "Compiles Baranium sources. Without files, builds the project\n")
		fmt.Fprintf(stderr, "described by the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  %s         extra include directories (path list)\n", manifest.EnvInclude)
		fmt.Fprintf(stderr, "  %s  file listing extra include directories\n", manifest.EnvIncludeConfig)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if o.help {
		fs.Usage()
		return exitOK
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "barc %s\n", version)
		return exitOK
	}

	au := aurora.NewAurora(isTerminal(stderr))

	b, err := newBuild(o, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%s %v\n", au.Red("error:"), err)
		return exitUsage
	}

	verbosity := b.verbosity
	if o.debug && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	log.Infof("compiling %d files", len(b.files))
	res, err := compiler.CompileFiles(b.files, b.opts)
	if res != nil && o.debug {
		dump(stdout, au, res)
	}
	if err != nil {
		var diags compiler.Diagnostics
		if !errors.As(err, &diags) {
			fmt.Fprintf(stderr, "%s %v\n", au.Red("error:"), err)
			return exitIO
		}
		for _, d := range diags {
			printDiagnostic(stderr, au, d)
		}
		fmt.Fprintf(stderr, "%d errors, no output written\n", len(diags))
		return exitCompile
	}

	data, err := res.Script.Encode()
	if err != nil {
		fmt.Fprintf(stderr, "%s encoding %s: %v\n", au.Red("error:"), b.output, err)
		return exitIO
	}
	if dir := filepath.Dir(b.output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(stderr, "%s %v\n", au.Red("error:"), err)
			return exitIO
		}
	}
	if err := os.WriteFile(b.output, data, 0644); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", au.Red("error:"), err)
		return exitIO
	}
	log.Infof("wrote %s (%d bytes, %d sections)", b.output, len(data), len(res.Script.Sections))
	return exitOK
}

// build is a resolved compilation: what to read, how, and where to write.
type build struct {
	files     []string
	output    string
	opts      compiler.Options
	verbosity int
}

// newBuild combines flags, the project manifest and the environment.
// Files named on the command line bypass the manifest's source list but
// still use its include directories and dependencies.
func newBuild(o options, files []string) (*build, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}

	b := &build{
		files:  files,
		output: o.output,
		opts:   compiler.Options{Strict: o.strict, Library: o.library},
	}

	if o.includeFile != "" {
		paths, err := manifest.ReadPathList(o.includeFile)
		if err != nil {
			return nil, fmt.Errorf("include list: %w", err)
		}
		b.opts.IncludePaths = append(b.opts.IncludePaths, paths...)
	}

	if m != nil {
		log.Debugf("using manifest in %s", m.Dir)
		if len(b.files) == 0 {
			if b.files, err = m.SourceFiles(); err != nil {
				return nil, err
			}
			if b.output == "" {
				b.output = m.OutputPath()
			}
			b.opts.Library = b.opts.Library || m.Build.Library
		}
		b.opts.Strict = b.opts.Strict || m.Build.Strict
		b.verbosity = m.Build.Verbosity
		b.opts.IncludePaths = append(b.opts.IncludePaths, m.IncludePaths()...)

		deps, err := manifest.NewResolver(m).IncludePaths()
		if err != nil {
			return nil, err
		}
		b.opts.IncludePaths = append(b.opts.IncludePaths, deps...)
	}

	env, err := manifest.EnvIncludePaths()
	if err != nil {
		return nil, err
	}
	b.opts.IncludePaths = append(b.opts.IncludePaths, env...)

	if len(b.files) == 0 {
		return nil, fmt.Errorf("no input files and no %s found", manifest.FileName)
	}
	if b.output == "" {
		b.output = defaultOutput(b.files[0], b.opts.Library)
	}
	return b, nil
}

// defaultOutput names the binary after the first source file.
func defaultOutput(source string, library bool) string {
	ext := ".bin"
	if library {
		ext = ".lib"
	}
	return strings.TrimSuffix(source, filepath.Ext(source)) + ext
}

func printDiagnostic(w io.Writer, au aurora.Aurora, d compiler.Diagnostic) {
	pos := fmt.Sprintf("line %d", d.Line)
	if d.File != "" {
		pos = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	fmt.Fprintf(w, "%s: %s %s\n", au.Bold(pos), au.Red("error:"), d.Message)
}

// dump prints the parse tree and, when code was produced, its disassembly.
func dump(w io.Writer, au aurora.Aurora, res *compiler.Result) {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
	fmt.Fprintln(w, au.Cyan("; parse tree"))
	cfg.Fdump(w, res.Program)
	if res.Script == nil {
		return
	}
	fmt.Fprintln(w, au.Cyan("; disassembly"))
	fmt.Fprint(w, res.Script.Disassemble(res.Names))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
