// barvm loads compiled Baranium binaries and runs an entry function.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/logrusorgru/aurora/v3"
	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/baranium/manifest"
	"github.com/chazu/baranium/pkg/asm"
	"github.com/chazu/baranium/pkg/bytecode"
	"github.com/chazu/baranium/vm"

	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0"

var log = commonlog.GetLogger("baranium.barvm")

// Exit codes. A finished entry function returning an integer exits with
// that integer instead of exitOK.
const (
	exitOK = iota
	exitLoad
	exitUsage
	exitKilled
)

type options struct {
	entry   string
	budget  int
	timeout time.Duration
	dis     bool
	asm     bool
	trace   bool
	verbose bool
	version bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("barvm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.entry, "entry", "", "Function to call (default from manifest, else main)")
	fs.StringVar(&o.entry, "e", "", "Function to call (shorthand)")
	fs.IntVar(&o.budget, "budget", 0, "Instructions per tick (default from manifest, else 256)")
	fs.DurationVar(&o.timeout, "timeout", 0, "Stop the script after this long")
	fs.BoolVar(&o.dis, "dis", false, "Print the loaded program as an assembly listing and exit")
	fs.BoolVar(&o.asm, "asm", false, "Inputs are assembly listings, not binaries")
	fs.BoolVar(&o.trace, "trace", false, "Log every instruction")
	fs.BoolVar(&o.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&o.version, "version", false, "Print the version")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: barvm [options] files... [-- args...]\n\n")
		fmt.Fprintf(stderr, "Loads every file into one program and calls the entry function.\n")
		fmt.Fprintf(stderr, "Arguments after -- are passed to it: integers, floats, true/false,\n")
		fmt.Fprintf(stderr, "anything else as a string.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if o.version {
		fmt.Fprintf(stdout, "barvm %s\n", version)
		return exitOK
	}

	au := aurora.NewAurora(isTerminal(stderr))
	fail := func(code int, format string, args ...any) int {
		fmt.Fprintf(stderr, "%s %s\n", au.Red("error:"), fmt.Sprintf(format, args...))
		return code
	}

	files, scriptArgs := splitArgs(fs.Args())
	if len(files) == 0 {
		fs.Usage()
		return exitUsage
	}

	verbosity := 0
	if o.verbose || o.trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	applyManifest(&o)

	p := vm.NewProgram()
	scripts := make([]*bytecode.Script, 0, len(files))
	for _, path := range files {
		s, names, err := load(path, o.asm)
		if err != nil {
			return fail(exitLoad, "%v", err)
		}
		if err := p.Load(s); err != nil {
			return fail(exitLoad, "%s: %v", path, err)
		}
		p.AddNames(names)
		scripts = append(scripts, s)
		log.Debugf("loaded %s: %d sections", path, len(s.Sections))
	}

	if o.dis {
		for _, s := range scripts {
			listing, err := asm.Format(s, p.Names)
			if err != nil {
				return fail(exitLoad, "%v", err)
			}
			fmt.Fprint(stdout, listing)
		}
		return exitOK
	}

	m := vm.New(p)
	m.Budget = o.budget
	m.Trace = o.trace
	registerNatives(m, stdout)

	if err := m.Call(o.entry, parseArgs(scriptArgs)...); err != nil {
		return fail(exitUsage, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result, err := m.Run(ctx)
	log.Infof("%s ran for %d ticks", o.entry, m.Ticks())
	if err != nil {
		var kill *vm.KillError
		if errors.As(err, &kill) {
			return fail(exitKilled, "%s: %v", o.entry, err)
		}
		m.Kill(vm.CodeNativeFailure)
		return fail(exitKilled, "%s: stopped: %v", o.entry, err)
	}

	switch result.Type {
	case bytecode.TypeInt, bytecode.TypeUint:
		return int(result.Int())
	case bytecode.TypeVoid:
		return exitOK
	}
	fmt.Fprintln(stdout, result.String())
	return exitOK
}

// applyManifest fills the entry and budget from the project manifest when
// they were not given on the command line.
func applyManifest(o *options) {
	if cwd, err := os.Getwd(); err == nil {
		if m, err := manifest.FindAndLoad(cwd); err != nil {
			log.Warningf("ignoring manifest: %v", err)
		} else if m != nil {
			if o.entry == "" {
				o.entry = m.Run.Entry
			}
			if o.budget == 0 {
				o.budget = m.Run.Budget
			}
		}
	}
	if o.entry == "" {
		o.entry = "main"
	}
}

// load reads a binary, or assembles a listing.
func load(path string, listing bool) (*bytecode.Script, map[int64]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if listing {
		res, err := asm.Assemble(path, string(data))
		if err != nil {
			return nil, nil, err
		}
		return res.Script, res.Names, nil
	}
	s, err := bytecode.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil, nil
}

// registerNatives installs the runner's host functions.
func registerNatives(m *vm.Machine, stdout io.Writer) {
	m.RegisterNative("print", 1, func(_ *vm.Machine, args []bytecode.Value) (*bytecode.Value, bool, error) {
		fmt.Fprintln(stdout, args[0].String())
		return nil, true, nil
	})
	m.RegisterNative("ticks", 0, func(m *vm.Machine, _ []bytecode.Value) (*bytecode.Value, bool, error) {
		v := bytecode.UintValue(m.Ticks())
		return &v, true, nil
	})
}

// splitArgs separates input files from the arguments after --.
func splitArgs(args []string) (files, rest []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func parseArgs(args []string) []bytecode.Value {
	values := make([]bytecode.Value, len(args))
	for i, a := range args {
		if n, err := strconv.ParseInt(a, 0, 32); err == nil {
			values[i] = bytecode.IntValue(n)
		} else if f, err := strconv.ParseFloat(a, 32); err == nil {
			values[i] = bytecode.FloatValue(f)
		} else if b, err := strconv.ParseBool(a); err == nil && (a == "true" || a == "false") {
			values[i] = bytecode.BoolValue(b)
		} else {
			values[i] = bytecode.StringValue(a)
		}
	}
	return values
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
