// Package llvmir lowers a pre-register-allocation internal/lir.Module to
// LLVM textual IR, selected by `-arch llvm` as an alternate to
// internal/backend/arm64/internal/backend/riscv64. Unlike those two
// targets, this backend skips internal/regalloc entirely — LLVM's own
// mem2reg/SSA construction takes over the job the colorer does for the
// native targets, so every virtual register here lowers to a stack
// `alloca` the optimizer is expected to promote, the same shape the
// teacher's own `ir/llvm/transform.go` produces for a VSL local variable.
package llvmir

import (
	"fmt"
	"path/filepath"

	"tinygo.org/x/go-llvm"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
)

// modCtx holds the pieces shared across every function in one module
// translation, mirroring the teacher's own package-level `globals`/`ctx`/
// `b`/`m` quartet as instance fields instead of globals so nothing leaks
// across separate Emit calls.
type modCtx struct {
	ctx     llvm.Context
	builder llvm.Builder
	mod     llvm.Module
	globals map[string]llvm.Value
	funcs   map[string]llvm.Value
}

// Emit builds an LLVM module from mod and writes its textual IR to w.
func Emit(mod *lir.Module, srcName string, w *emitio.Writer) error {
	mc := &modCtx{
		ctx:     llvm.NewContext(),
		globals: make(map[string]llvm.Value, len(mod.Globals)+len(mod.Strings)),
		funcs:   make(map[string]llvm.Value, len(mod.Funcs)),
	}
	defer mc.ctx.Dispose()

	mc.builder = mc.ctx.NewBuilder()
	defer mc.builder.Dispose()

	mc.mod = mc.ctx.NewModule(filepath.Base(srcName))
	defer mc.mod.Dispose()

	for _, g := range mod.Globals {
		mc.declareGlobal(g)
	}
	for _, g := range mod.Strings {
		mc.declareGlobal(g)
	}
	for _, g := range mod.Globals {
		mc.initGlobal(g)
	}
	for _, g := range mod.Strings {
		mc.initGlobal(g)
	}

	for _, fn := range mod.Funcs {
		mc.declareFunc(fn)
	}
	for _, fn := range mod.Funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		if err := mc.genFunc(fn); err != nil {
			return fmt.Errorf("llvmir: %s: %w", fn.Name, err)
		}
	}

	if ok := llvm.VerifyModule(mc.mod, llvm.PrintMessageAction); !ok {
		// VerifyModule already printed diagnostics to stderr; still emit
		// the module text so a caller can inspect what was produced.
	}
	w.Write("%s\n", mc.mod.String())
	return w.Flush()
}

// llvmType maps a ctype.Type to its LLVM representation, generalizing the
// teacher's own fixed "i is int64, f is double" pair (chosen once per
// compilation from a single VSL numeric type) to this module's full
// fixnum/flonum/pointer/array/struct/function type system.
func (mc *modCtx) llvmType(t *ctype.Type) llvm.Type {
	if t == nil {
		return mc.ctx.VoidType()
	}
	switch t.Kind {
	case ctype.Void:
		return mc.ctx.VoidType()
	case ctype.Fixnum:
		return mc.ctx.IntType(ctype.TypeSize(t) * 8)
	case ctype.Flonum:
		if ctype.TypeSize(t) == 4 {
			return mc.ctx.FloatType()
		}
		return mc.ctx.DoubleType()
	case ctype.Pointer:
		return llvm.PointerType(mc.llvmType(t.Pointee), 0)
	case ctype.Array:
		return llvm.ArrayType(mc.llvmType(t.Elem), t.Len)
	case ctype.Struct:
		fields := make([]llvm.Type, len(t.Struct.Members))
		for i, m := range t.Struct.Members {
			fields[i] = mc.llvmType(m.Type)
		}
		return mc.ctx.StructType(fields, false)
	case ctype.Function:
		params := make([]llvm.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = mc.llvmType(p)
		}
		return llvm.FunctionType(mc.llvmType(t.Ret), params, t.VaArgs)
	default:
		return mc.ctx.Int64Type()
	}
}

// declareGlobal creates the llvm.Value for g without an initializer yet —
// split from initGlobal so a global's initializer (for a Reloc) can
// reference another global declared later in iteration order.
func (mc *modCtx) declareGlobal(g *lir.Global) {
	mc.globals[g.Name] = llvm.AddGlobal(mc.mod, mc.llvmType(g.Type), g.Name)
}

// initGlobal sets g's initializer: a packed byte-constant array when g has
// no relocations, or a packed struct of byte-array chunks interleaved with
// pointer constants at each Reloc site — the same "data blob with typed
// holes patched by the linker" shape internal/dataemit's own native-target
// emission produces, rebuilt here as LLVM constant-folding input instead
// of assembler directives.
func (mc *modCtx) initGlobal(g *lir.Global) {
	gv := mc.globals[g.Name]
	if g.Data == nil {
		gv.SetInitializer(llvm.ConstNull(mc.llvmType(g.Type)))
		gv.SetLinkage(llvm.CommonLinkage)
		return
	}
	if g.Static {
		gv.SetLinkage(llvm.InternalLinkage)
	}
	if len(g.Relocs) == 0 {
		gv.SetInitializer(mc.ctx.ConstString(string(g.Data), false))
		return
	}

	var chunks []llvm.Value
	pos := 0
	for _, r := range g.Relocs {
		if r.At > pos {
			chunks = append(chunks, mc.ctx.ConstString(string(g.Data[pos:r.At]), false))
		}
		target, ok := mc.globals[r.Symbol]
		if !ok {
			target, ok = mc.funcs[r.Symbol]
		}
		var ptr llvm.Value
		if ok {
			ptr = target
		} else {
			ptr = llvm.ConstNull(llvm.PointerType(mc.ctx.Int8Type(), 0))
		}
		if r.Offset != 0 {
			idx := llvm.ConstInt(mc.ctx.Int64Type(), uint64(r.Offset), true)
			ptr = llvm.ConstGEP(ptr, []llvm.Value{idx})
		}
		chunks = append(chunks, llvm.ConstBitCast(ptr, llvm.PointerType(mc.ctx.Int8Type(), 0)))
		pos = r.At + 8
	}
	if pos < len(g.Data) {
		chunks = append(chunks, mc.ctx.ConstString(string(g.Data[pos:]), false))
	}
	gv.SetInitializer(mc.ctx.ConstStruct(chunks, true))
}

// declareFunc adds fn's signature to the module; bodies are filled in by
// genFunc in a second pass so forward calls resolve.
func (mc *modCtx) declareFunc(fn *lir.Function) {
	f := llvm.AddFunction(mc.mod, fn.Name, mc.llvmType(fn.Type))
	if fn.Static {
		f.SetLinkage(llvm.InternalLinkage)
	}
	mc.funcs[fn.Name] = f
}

// funcCtx carries one function's per-register alloca table and its block
// label → llvm.BasicBlock mapping, the per-function analog of modCtx.
type funcCtx struct {
	*modCtx
	fn      *lir.Function
	llfn    llvm.Value
	allocas map[*lir.Register]llvm.Value
	blocks  map[*lir.Block]llvm.BasicBlock
	// cond caches the i1 comparison result each Cond computes, keyed by
	// its Dst, for the Jmp that consumes it: LLVM IR has no flags register,
	// so the comparison value is an ordinary i1 SSA value, but this
	// module's lir.Cond/Jmp pair still splits producing it from consuming it.
	cond map[*lir.Register]llvm.Value

	// pendingArgs/lastCall buffer a Precall/Pusharg/Call/Result sequence
	// the same way the native backends' ctx.pendingArgs does.
	pendingArgs []lir.Value
	lastCall    llvm.Value
}

// regName is the alloca-naming hint for r, a purely cosmetic label carried
// into the textual IR for readability.
func regName(r *lir.Register) string {
	return fmt.Sprintf("r%d", r.ID)
}

func (mc *modCtx) genFunc(fn *lir.Function) error {
	f := mc.funcs[fn.Name]
	fc := &funcCtx{
		modCtx:  mc,
		fn:      fn,
		llfn:    f,
		allocas: make(map[*lir.Register]llvm.Value, len(fn.Registers)),
		blocks:  make(map[*lir.Block]llvm.BasicBlock, len(fn.Blocks)),
		cond:    make(map[*lir.Register]llvm.Value),
	}
	for _, b := range fn.Blocks {
		fc.blocks[b] = llvm.AddBasicBlock(f, b.Label)
	}

	entry := fc.blocks[fn.Entry]
	mc.builder.SetInsertPointAtEnd(entry)
	for i, p := range fn.Params {
		a := mc.builder.CreateAlloca(mc.llvmType(p.Typ), regName(p))
		mc.builder.CreateStore(f.Param(i), a)
		fc.allocas[p] = a
	}
	for _, r := range fn.Registers {
		if _, ok := fc.allocas[r]; ok {
			continue
		}
		fc.allocas[r] = mc.builder.CreateAlloca(mc.llvmType(r.Typ), regName(r))
	}

	for _, b := range fn.Blocks {
		mc.builder.SetInsertPointAtEnd(fc.blocks[b])
		for _, in := range b.Instr {
			if err := fc.genInstr(in); err != nil {
				return err
			}
		}
	}
	return nil
}
