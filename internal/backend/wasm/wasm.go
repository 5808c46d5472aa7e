// Package wasm lowers a pre-register-allocation internal/lir.Module to a
// binary WebAssembly module, selected by `-arch wasm`. Grounded on
// `original_source/wasm/src/wcc.c` for the module/section layout (magic,
// Type/Function/Global/Export/Code/Data section order, signature
// deduplication, and the OP_I32_CONST/OP_F64_CONST-style global
// initializer encoding) — that file stops at the function-body boundary,
// so the per-instruction opcode encoder in instr.go has no corpus example
// to ground on and is built from the WebAssembly core binary format
// instead (documented in DESIGN.md).
//
// Like internal/backend/llvmir, this backend skips internal/regalloc:
// WASM has no finite register file to color against, only an unbounded
// local-variable space, so every lir.Register simply becomes its own wasm
// local (or, for a register whose address is taken via Bofs, a slot in the
// function's linear-memory stack frame — the same bofs-map idiom
// internal/backend/arm64/riscv64 use for the identical reason).
package wasm

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
)

const (
	secType     = 1
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secElement  = 9
	secCode     = 10
	secData     = 11

	valI32 = 0x7f
	valI64 = 0x7e
	valF32 = 0x7d
	valF64 = 0x7c

	exportFunc   = 0x00
	exportMemory = 0x02
	exportGlobal = 0x03

	// defaultStackSize is the linear-stack region reserved above the data
	// segment when -stack-size isn't given, matching the module's native
	// backends' own default frame generosity.
	defaultStackSize = 64 * 1024

	wasmPageSize = 64 * 1024
)

// Options configures wasm module emission; the zero value picks sensible
// defaults.
type Options struct {
	StackSize int
	Exports   []string
}

// Emit lowers mod to a complete binary WebAssembly module.
func Emit(mod *lir.Module, opts Options) ([]byte, error) {
	if opts.StackSize <= 0 {
		opts.StackSize = defaultStackSize
	}

	mc := newModCtx(mod, opts)
	mc.layoutGlobals()

	for _, fn := range mod.Funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		if err := mc.genFunc(fn); err != nil {
			return nil, fmt.Errorf("wasm: %s: %w", fn.Name, err)
		}
	}

	mc.dataEnd = align(mc.bumpPos, 16)
	mc.stackTop = mc.dataEnd + int64(opts.StackSize)

	return mc.assemble(), nil
}

// modCtx holds module-wide state shared across every function, the wasm
// analog of internal/backend/llvmir's modCtx and internal/backend/riscv64's
// pool: type-section dedup, the function index space, and the linear
// memory layout computed once up front.
type modCtx struct {
	mod  *lir.Module
	opts Options

	types    []wasmFuncType
	funcIdx  map[string]uint32 // function name -> index in the function index space
	funcSig  []uint32          // per function index space entry, its type index
	funcDecl []*lir.Function   // parallel to funcIdx, in index order

	memBase map[string]int64 // global/string name -> linear memory address
	bumpPos int64            // next free linear-memory address

	dataEnd  int64
	stackTop int64 // initial __stack_pointer value

	// extraSegments holds rodata the backend itself allocates after
	// layoutGlobals runs — currently just genTjmp's per-function jump
	// tables, discovered during codegen rather than up front.
	extraSegments []segment

	code []funcBody
}

type segment struct {
	addr int64
	data []byte
}

type wasmFuncType struct {
	params, results []byte
}

type funcBody struct {
	bytes []byte
}

func newModCtx(mod *lir.Module, opts Options) *modCtx {
	mc := &modCtx{
		mod:     mod,
		opts:    opts,
		funcIdx: make(map[string]uint32, len(mod.Funcs)),
		memBase: make(map[string]int64, len(mod.Globals)+len(mod.Strings)),
	}
	for _, fn := range mod.Funcs {
		idx := uint32(len(mc.funcDecl))
		mc.funcIdx[fn.Name] = idx
		mc.funcDecl = append(mc.funcDecl, fn)
		mc.funcSig = append(mc.funcSig, mc.internType(fn.Type))
	}
	return mc
}

// valtype maps a ctype.Type to its wasm value type. Pointers and any
// fixnum/array/struct value wider than 32 bits that still needs to fit a
// single wasm local is intentionally narrowed to i32: this backend targets
// wasm32 addressing throughout (see SPEC_FULL.md's bit-field/wasm Open
// Question decision), so "pointer-or-address-sized" always means i32 here
// even though the native arm64/riscv64 backends are LP64.
func valtype(t *ctype.Type) byte {
	if t == nil {
		return valI32
	}
	switch t.Kind {
	case ctype.Flonum:
		if ctype.TypeSize(t) == 4 {
			return valF32
		}
		return valF64
	case ctype.Pointer, ctype.Array, ctype.Struct:
		return valI32
	default:
		if ctype.TypeSize(t) > 4 {
			return valI64
		}
		return valI32
	}
}

// internType returns t's (possibly newly created) entry in the type
// section, deduplicating by linear scan the way the teacher's emit_wasm
// scans existing entries before appending a new WT_FUNC signature.
func (mc *modCtx) internType(t *ctype.Type) uint32 {
	var params []byte
	for _, p := range t.Params {
		params = append(params, valtype(p))
	}
	var results []byte
	if t.Ret != nil && t.Ret.Kind != ctype.Void {
		results = []byte{valtype(t.Ret)}
	}
	for i, ft := range mc.types {
		if sameSig(ft.params, params) && sameSig(ft.results, results) {
			return uint32(i)
		}
	}
	mc.types = append(mc.types, wasmFuncType{params: params, results: results})
	return uint32(len(mc.types) - 1)
}

func sameSig(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// align rounds up n to the given power-of-two alignment.
func align(n, a int64) int64 {
	if r := n % a; r != 0 {
		n += a - r
	}
	return n
}
