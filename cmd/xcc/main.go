// Command xcc drives the compiler pipeline end to end: read one or more
// already-preprocessed C translation units, elaborate and lower each to
// the three-address IR, allocate registers, and lower to the target
// selected by -arch. It sequences components A-H per translation unit the
// way the teacher's own main.go sequences frontend.Parse through
// backend.GenerateAssembler, adapted to this module's thread-per-TU
// concurrency model (section 5) and error-threshold policy (section 7)
// rather than the teacher's first-error abort.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/backend/arm64"
	"github.com/ijsf/xcc/internal/backend/llvmir"
	"github.com/ijsf/xcc/internal/backend/riscv64"
	"github.com/ijsf/xcc/internal/backend/wasm"
	"github.com/ijsf/xcc/internal/cliopts"
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/diag"
	"github.com/ijsf/xcc/internal/elaborate"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/inline"
	"github.com/ijsf/xcc/internal/lir"
	"github.com/ijsf/xcc/internal/reach"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opt, err := cliopts.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "xcc: %v\n", err)
		return 1
	}

	srcs := opt.Srcs
	if len(srcs) == 0 {
		srcs = []string{"-"}
	}

	results := make([]*tuResult, len(srcs))
	sem := make(chan struct{}, jobs(opt.Jobs))
	var wg sync.WaitGroup
	for i, name := range srcs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = compileUnit(name, opt)
		}(i, name)
	}
	wg.Wait()

	failed := false
	for i, res := range results {
		res.diag.WriteTo(stderr)
		if res.diag.ErrorCount() > 0 {
			failed = true
			continue
		}
		if opt.Werror && hasWarnings(res.diag) {
			failed = true
			continue
		}
		if res.err != nil {
			fmt.Fprintf(stderr, "xcc: %s: %v\n", srcs[i], res.err)
			failed = true
			continue
		}
		outPath := outputPath(opt, srcs[i], len(srcs))
		if err := writeOutput(outPath, res.out, stdout); err != nil {
			fmt.Fprintf(stderr, "xcc: %s: %v\n", outPath, err)
			failed = true
			continue
		}
		if opt.Verbose || opt.VeryVerbose {
			fmt.Fprintf(stderr, "xcc: %s -> %s (%d bytes)\n", srcs[i], outPath, len(res.out))
		}
	}
	if failed {
		return 1
	}
	return 0
}

func jobs(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func hasWarnings(d *diag.Sink) bool {
	for _, dd := range d.Diagnostics() {
		if dd.Sev == diag.Warning {
			return true
		}
	}
	return false
}

// tuResult is one translation unit's compiled output, collected back from
// its own goroutine for the main goroutine to write out and tally in a
// deterministic, input-file order regardless of completion order.
type tuResult struct {
	diag *diag.Sink
	out  []byte
	err  error
}

// compileUnit runs the full component A-H pipeline over one translation
// unit: parse, elaborate every function, inline-expand, reachability
// check, lower to lir, then lower to opt.Arch's target form. Every
// resource it touches (scope cursor, function pointer, loop context,
// error counter) is local to this call, matching spec section 5's
// thread-per-TU model.
func compileUnit(name string, opt cliopts.Options) *tuResult {
	d := diag.NewSink()
	res := &tuResult{diag: d}

	src, err := readSource(name)
	if err != nil {
		res.err = err
		return res
	}

	tu, err := parseSource(src, displayName(name), d)
	if err != nil {
		res.err = err
		return res
	}

	mod := lir.NewModule()
	for _, v := range tu.Decls {
		if v.Type == nil || v.Type.Kind != ctype.Function || v.Func == nil {
			continue
		}
		fn := v.Func
		elaborate.New(d).Function(fn)
		inline.New(d).Function(fn)
		reach.New(d).Function(fn)

		if d.ErrorCount() > 0 {
			continue
		}

		lf := lir.NewBuilder(mod, d).Function(fn)
		lf.Static = v.HasFlag(ast.FlagStatic)
	}
	if d.ErrorCount() > 0 {
		return res
	}

	out, err := lower(mod, opt, displayName(name))
	if err != nil {
		res.err = err
		return res
	}
	res.out = out
	return res
}

// lower runs component F (register allocation, internal to each target's
// Emit) and G (target lowering) over mod, selecting the backend opt.Arch
// names. wasm.Emit returns a finished binary module directly since a wasm
// module has no assembler-text form to route through internal/emitio; the
// other three targets write through an emitio.Writer the way the teacher's
// own GenArm/GenLLVM do.
func lower(mod *lir.Module, opt cliopts.Options, srcName string) ([]byte, error) {
	if opt.Arch == cliopts.ArchWasm {
		return wasm.Emit(mod, wasm.Options{StackSize: opt.StackSize, Exports: opt.Export})
	}

	var buf bytes.Buffer
	w := emitio.New(&buf)
	var err error
	switch opt.Arch {
	case cliopts.ArchRiscv64:
		err = riscv64.Emit(mod, srcName, w)
	case cliopts.ArchLLVM:
		err = llvmir.Emit(mod, srcName, w)
	default:
		err = arm64.Emit(mod, srcName, w)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readSource(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func displayName(name string) string {
	if name == "-" {
		return "<stdin>"
	}
	return name
}

// outputPath resolves where one translation unit's lowered output goes.
// -o names an explicit path and only makes sense for a single-source
// invocation, matching the conventional cc behavior this is grounded on;
// with multiple sources (or no -o at all) each unit is written next to its
// input with an extension picked for opt.Arch.
func outputPath(opt cliopts.Options, src string, nsrcs int) string {
	if opt.Out != "" && nsrcs == 1 {
		return opt.Out
	}
	if src == "-" {
		return "-"
	}
	base := strings.TrimSuffix(src, filepath.Ext(src))
	return base + extFor(opt.Arch)
}

func extFor(a cliopts.Arch) string {
	switch a {
	case cliopts.ArchLLVM:
		return ".ll"
	case cliopts.ArchWasm:
		return ".wasm"
	default:
		return ".s"
	}
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
