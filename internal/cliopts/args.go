// Package cliopts parses command-line arguments into compiler options.
// No third-party flag library appears anywhere in the example corpus
// (the teacher and every other pack repo hand-roll their own os.Args
// scan), so this follows suit rather than reaching for one.
package cliopts

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Arch identifies the target backend selected by -arch.
type Arch int

const (
	ArchAarch64 Arch = iota
	ArchRiscv64
	ArchLLVM
	ArchWasm
)

const appVersion = "xcc 1.0"
const maxJobs = 64

// Options holds one invocation's parsed flags.
type Options struct {
	Srcs      []string // Positional input files; stdin if empty.
	Out       string   // -o output path.
	Arch      Arch     // -arch target selection.
	Export    []string // -export comma-separated symbol list (wasm/module targets).
	StackSize int      // -stack-size, bytes, 0 means target default.
	Werror    bool     // -Werror: any warning fails the translation unit; warnings are not counted toward the error threshold.
	Verbose   bool     // Not set by Parse: -v/-version prints the version and exits.
	VeryVerbose bool   // -vb
	Jobs      int      // -j translation-unit concurrency, default 1.
}

// Parse parses args (typically os.Args[1:]) into Options. Unknown flags and
// malformed values are reported as errors rather than panicking or
// exiting directly, so cmd/xcc controls the process exit code.
func Parse(args []string) (Options, error) {
	opt := Options{Jobs: 1}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "-h", "--h", "-help", "--help":
			printHelp()
			os.Exit(0)
		case "-v", "--v", "-version", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			opt.VeryVerbose = true
		case "-Werror":
			opt.Werror = true
		case "-o":
			v, err := argValue(args, &i)
			if err != nil {
				return opt, err
			}
			opt.Out = v
		case "-arch":
			v, err := argValue(args, &i)
			if err != nil {
				return opt, err
			}
			switch v {
			case "arm64", "aarch64":
				opt.Arch = ArchAarch64
			case "riscv64":
				opt.Arch = ArchRiscv64
			case "llvm":
				opt.Arch = ArchLLVM
			case "wasm":
				opt.Arch = ArchWasm
			default:
				return opt, fmt.Errorf("unexpected -arch value: %s", v)
			}
		case "-export":
			v, err := argValue(args, &i)
			if err != nil {
				return opt, err
			}
			opt.Export = strings.Split(v, ",")
		case "-stack-size":
			v, err := argValue(args, &i)
			if err != nil {
				return opt, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return opt, fmt.Errorf("-stack-size expects a positive integer, got %q", v)
			}
			opt.StackSize = n
		case "-j":
			v, err := argValue(args, &i)
			if err != nil {
				return opt, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxJobs {
				return opt, fmt.Errorf("-j must be an integer in range [1, %d], got %q", maxJobs, v)
			}
			opt.Jobs = n
		default:
			if strings.HasPrefix(a, "-") {
				return opt, fmt.Errorf("unexpected flag: %s", a)
			}
			opt.Srcs = append(opt.Srcs, a)
		}
	}
	return opt, nil
}

func argValue(args []string, i *int) (string, error) {
	if *i+1 >= len(args) {
		return "", fmt.Errorf("flag %s expects an argument", args[*i])
	}
	if strings.HasPrefix(args[*i+1], "-") {
		return "", fmt.Errorf("flag %s expects an argument, got new flag %s", args[*i], args[*i+1])
	}
	*i++
	return args[*i], nil
}

func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	fmt.Fprintln(w, "-h, -help\tPrints this help message and exits.")
	fmt.Fprintln(w, "-o\tPath of the output file.")
	fmt.Fprintln(w, "-arch\tTarget: arm64, riscv64, llvm, wasm. Defaults to arm64.")
	fmt.Fprintln(w, "-export\tComma-separated symbol export list (wasm/module targets).")
	fmt.Fprintln(w, "-stack-size\tDefault stack reservation in bytes.")
	fmt.Fprintln(w, "-Werror\tTreat warnings as errors.")
	fmt.Fprintln(w, "-j\tNumber of translation units to compile concurrently.")
	fmt.Fprintln(w, "-v, -version\tPrints the version and exits.")
	fmt.Fprintln(w, "-vb\tVerbose mode.")
	w.Flush()
}
