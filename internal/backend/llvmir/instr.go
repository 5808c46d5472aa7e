package llvmir

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// genInstr dispatches one lir.Instruction the same way
// internal/backend/arm64/opcodes.go and internal/backend/riscv64/opcodes.go
// do, lowering each case to the LLVM builder call(s) the teacher's own
// genExpression/genStatement pair makes for the equivalent VSL tree node.
func (fc *funcCtx) genInstr(in *lir.Instruction) error {
	switch in.Op {
	case lirtypes.Bofs:
		fc.define(in.Dst, fc.allocas[in.Args[0].(*lir.Register)])
		return nil
	case lirtypes.Iofs, lirtypes.Sofs:
		fc.define(in.Dst, fc.globals[in.Sym.Name])
		return nil
	case lirtypes.Load, lirtypes.LoadS:
		return fc.genLoad(in)
	case lirtypes.Store, lirtypes.StoreS:
		return fc.genStore(in)
	case lirtypes.Add, lirtypes.Sub, lirtypes.Mul, lirtypes.Div, lirtypes.Mod,
		lirtypes.BitAnd, lirtypes.BitOr, lirtypes.BitXor, lirtypes.Lshift, lirtypes.Rshift:
		return fc.genBinary(in)
	case lirtypes.Neg, lirtypes.BitNot:
		return fc.genUnary(in)
	case lirtypes.Cond:
		return fc.genCond(in)
	case lirtypes.Jmp:
		return fc.genJmp(in)
	case lirtypes.Tjmp:
		return fc.genTjmp(in)
	case lirtypes.Precall:
		fc.pendingArgs = fc.pendingArgs[:0]
		return nil
	case lirtypes.Pusharg:
		fc.pendingArgs = append(fc.pendingArgs, in.Args[0])
		return nil
	case lirtypes.Call:
		return fc.genCall(in)
	case lirtypes.Result:
		if in.Dst != nil {
			fc.define(in.Dst, fc.lastCall)
		}
		return nil
	case lirtypes.Subsp:
		// Stack depth is not a first-class concept in LLVM IR — alloca
		// handles every VLA-style allocation the native backends use Subsp
		// for, so this op is a no-op lowering here.
		return nil
	case lirtypes.Cast:
		return fc.genCast(in)
	case lirtypes.Mov:
		v := fc.value(in.Args[0])
		fc.define(in.Dst, v)
		return nil
	case lirtypes.Asm:
		// Inline target assembly has no LLVM IR equivalent this module
		// generates; skip it rather than fail the whole module, since the
		// only current producer (internal/lir's lowering of asm statements)
		// carries native-target text, not LLVM IR.
		return nil
	default:
		return fmt.Errorf("llvmir: unexpected opcode %s", in.Op)
	}
}

func (fc *funcCtx) define(r *lir.Register, v llvm.Value) {
	if r == nil {
		return
	}
	fc.builder.CreateStore(v, fc.allocaFor(r))
}

// allocaFor returns r's stack slot, allocating a fresh one for a register
// genFunc's pre-pass didn't see (Bofs's synthetic address registers reuse
// an existing alloca directly instead).
func (fc *funcCtx) allocaFor(r *lir.Register) llvm.Value {
	if a, ok := fc.allocas[r]; ok {
		return a
	}
	a := fc.builder.CreateAlloca(fc.llvmType(r.Typ), regName(r))
	fc.allocas[r] = a
	return a
}

// value materializes v as an SSA value: a register's alloca is loaded, a
// constant becomes ConstInt/ConstFloat, a GlobalRef resolves through the
// module's global/function table.
func (fc *funcCtx) value(v lir.Value) llvm.Value {
	switch val := v.(type) {
	case *lir.Register:
		return fc.builder.CreateLoad(fc.allocaFor(val), "")
	case *lir.Constant:
		if ctype.IsFlonum(val.Typ) {
			return llvm.ConstFloat(fc.llvmType(val.Typ), val.FVal)
		}
		return llvm.ConstInt(fc.llvmType(val.Typ), uint64(val.IVal), !val.Typ.Unsigned)
	case *lir.GlobalRef:
		if g, ok := fc.globals[val.Name]; ok {
			return g
		}
		return fc.funcs[val.Name]
	default:
		return llvm.ConstNull(fc.ctx.Int64Type())
	}
}

func (fc *funcCtx) genLoad(in *lir.Instruction) error {
	addr := fc.value(in.Args[0])
	ptrTy := llvm.PointerType(fc.llvmType(in.Dst.Typ), 0)
	if addr.Type() != ptrTy {
		addr = fc.builder.CreateBitCast(addr, ptrTy, "")
	}
	v := fc.builder.CreateLoad(addr, "")
	fc.define(in.Dst, v)
	return nil
}

func (fc *funcCtx) genStore(in *lir.Instruction) error {
	addr := fc.value(in.Args[0])
	val := fc.value(in.Args[1])
	ptrTy := llvm.PointerType(val.Type(), 0)
	if addr.Type() != ptrTy {
		addr = fc.builder.CreateBitCast(addr, ptrTy, "")
	}
	fc.builder.CreateStore(val, addr)
	return nil
}

func (fc *funcCtx) genBinary(in *lir.Instruction) error {
	flonum := ctype.IsFlonum(in.Dst.Typ)
	unsigned := !flonum && in.Dst.Typ.Unsigned
	op1 := fc.value(in.Args[0])
	op2 := fc.value(in.Args[1])
	var r llvm.Value
	b := fc.builder
	switch in.Op {
	case lirtypes.Add:
		if flonum {
			r = b.CreateFAdd(op1, op2, "")
		} else {
			r = b.CreateAdd(op1, op2, "")
		}
	case lirtypes.Sub:
		if flonum {
			r = b.CreateFSub(op1, op2, "")
		} else {
			r = b.CreateSub(op1, op2, "")
		}
	case lirtypes.Mul:
		if flonum {
			r = b.CreateFMul(op1, op2, "")
		} else {
			r = b.CreateMul(op1, op2, "")
		}
	case lirtypes.Div:
		switch {
		case flonum:
			r = b.CreateFDiv(op1, op2, "")
		case unsigned:
			r = b.CreateUDiv(op1, op2, "")
		default:
			r = b.CreateSDiv(op1, op2, "")
		}
	case lirtypes.Mod:
		if flonum {
			return fmt.Errorf("llvmir: mod has no floating-point form")
		}
		if unsigned {
			r = b.CreateURem(op1, op2, "")
		} else {
			r = b.CreateSRem(op1, op2, "")
		}
	case lirtypes.BitAnd:
		r = b.CreateAnd(op1, op2, "")
	case lirtypes.BitOr:
		r = b.CreateOr(op1, op2, "")
	case lirtypes.BitXor:
		r = b.CreateXor(op1, op2, "")
	case lirtypes.Lshift:
		r = b.CreateShl(op1, op2, "")
	case lirtypes.Rshift:
		if unsigned {
			r = b.CreateLShr(op1, op2, "")
		} else {
			r = b.CreateAShr(op1, op2, "")
		}
	default:
		return fmt.Errorf("llvmir: unexpected binary operator %s", in.Op)
	}
	fc.define(in.Dst, r)
	return nil
}

func (fc *funcCtx) genUnary(in *lir.Instruction) error {
	flonum := ctype.IsFlonum(in.Dst.Typ)
	op1 := fc.value(in.Args[0])
	var r llvm.Value
	switch in.Op {
	case lirtypes.Neg:
		if flonum {
			r = fc.builder.CreateFNeg(op1, "")
		} else {
			r = fc.builder.CreateNeg(op1, "")
		}
	case lirtypes.BitNot:
		r = fc.builder.CreateNot(op1, "")
	default:
		return fmt.Errorf("llvmir: unexpected unary operator %s", in.Op)
	}
	fc.define(in.Dst, r)
	return nil
}

var intPred = map[lirtypes.Cc]llvm.IntPredicate{
	lirtypes.CcEq: llvm.IntEQ, lirtypes.CcNe: llvm.IntNE,
	lirtypes.CcLt: llvm.IntSLT, lirtypes.CcLe: llvm.IntSLE,
	lirtypes.CcGt: llvm.IntSGT, lirtypes.CcGe: llvm.IntSGE,
}

var uintPred = map[lirtypes.Cc]llvm.IntPredicate{
	lirtypes.CcEq: llvm.IntEQ, lirtypes.CcNe: llvm.IntNE,
	lirtypes.CcLt: llvm.IntULT, lirtypes.CcLe: llvm.IntULE,
	lirtypes.CcGt: llvm.IntUGT, lirtypes.CcGe: llvm.IntUGE,
}

var floatPred = map[lirtypes.Cc]llvm.FloatPredicate{
	lirtypes.CcEq: llvm.FloatOEQ, lirtypes.CcNe: llvm.FloatONE,
	lirtypes.CcLt: llvm.FloatOLT, lirtypes.CcLe: llvm.FloatOLE,
	lirtypes.CcGt: llvm.FloatOGT, lirtypes.CcGe: llvm.FloatOGE,
}

// genCond computes the i1 comparison result eagerly and caches it for the
// following Jmp — LLVM IR has no flags register to defer to, so unlike the
// native backends' bare Cc bookkeeping, Cond here does the real
// CreateICmp/CreateFCmp work up front.
func (fc *funcCtx) genCond(in *lir.Instruction) error {
	if in.Dst == nil {
		return nil
	}
	flonum := ctype.IsFlonum(in.Args[0].Type())
	op1 := fc.value(in.Args[0])
	op2 := fc.value(in.Args[1])
	var cmp llvm.Value
	if flonum {
		cmp = fc.builder.CreateFCmp(floatPred[in.Cc], op1, op2, "")
	} else if in.Args[0].Type().Unsigned {
		cmp = fc.builder.CreateICmp(uintPred[in.Cc], op1, op2, "")
	} else {
		cmp = fc.builder.CreateICmp(intPred[in.Cc], op1, op2, "")
	}
	fc.cond[in.Dst] = cmp
	return nil
}

func (fc *funcCtx) genJmp(in *lir.Instruction) error {
	if in.Dst == nil {
		fc.builder.CreateBr(fc.blocks[in.Target])
		return nil
	}
	cmp, ok := fc.cond[in.Dst]
	if !ok {
		return fmt.Errorf("llvmir: jmp references a condition with no preceding cond")
	}
	if in.TargetF == nil {
		return fmt.Errorf("llvmir: conditional jmp with no fall-through target")
	}
	fc.builder.CreateCondBr(cmp, fc.blocks[in.Target], fc.blocks[in.TargetF])
	return nil
}

// genTjmp lowers a dense switch to LLVM's native `switch` instruction — a
// much closer fit than the address-table tricks internal/backend/arm64/
// riscv64 need, since LLVM already has a first-class multi-way branch.
func (fc *funcCtx) genTjmp(in *lir.Instruction) error {
	v := fc.value(in.Args[0])
	lo := in.Args[1].(*lir.Constant).IVal
	sw := fc.builder.CreateSwitch(v, fc.blocks[in.Default], len(in.Table))
	for i, b := range in.Table {
		c := llvm.ConstInt(v.Type(), uint64(lo+int64(i)), true)
		sw.AddCase(c, fc.blocks[b])
	}
	return nil
}

func (fc *funcCtx) genCall(in *lir.Instruction) error {
	callee := fc.value(in.Func)
	args := make([]llvm.Value, len(fc.pendingArgs))
	for i, a := range fc.pendingArgs {
		args[i] = fc.value(a)
	}
	fc.lastCall = fc.builder.CreateCall(callee, args, "")
	fc.pendingArgs = fc.pendingArgs[:0]
	return nil
}

// genCast lowers fixnum<->flonum and differently-sized fixnum conversions
// to the matching LLVM conversion instruction family.
func (fc *funcCtx) genCast(in *lir.Instruction) error {
	srcT := in.Args[0].Type()
	dstT := in.Dst.Typ
	op1 := fc.value(in.Args[0])
	dstTy := fc.llvmType(dstT)
	srcFlo := ctype.IsFlonum(srcT)
	dstFlo := ctype.IsFlonum(dstT)
	var r llvm.Value
	switch {
	case srcFlo && !dstFlo:
		if dstT.Unsigned {
			r = fc.builder.CreateFPToUI(op1, dstTy, "")
		} else {
			r = fc.builder.CreateFPToSI(op1, dstTy, "")
		}
	case !srcFlo && dstFlo:
		if srcT.Unsigned {
			r = fc.builder.CreateUIToFP(op1, dstTy, "")
		} else {
			r = fc.builder.CreateSIToFP(op1, dstTy, "")
		}
	case srcFlo && dstFlo:
		if ctype.TypeSize(dstT) > ctype.TypeSize(srcT) {
			r = fc.builder.CreateFPExt(op1, dstTy, "")
		} else if ctype.TypeSize(dstT) < ctype.TypeSize(srcT) {
			r = fc.builder.CreateFPTrunc(op1, dstTy, "")
		} else {
			r = op1
		}
	default:
		srcSize, dstSize := ctype.TypeSize(srcT), ctype.TypeSize(dstT)
		switch {
		case dstSize > srcSize:
			if srcT.Unsigned {
				r = fc.builder.CreateZExt(op1, dstTy, "")
			} else {
				r = fc.builder.CreateSExt(op1, dstTy, "")
			}
		case dstSize < srcSize:
			r = fc.builder.CreateTrunc(op1, dstTy, "")
		default:
			r = op1
		}
	}
	fc.define(in.Dst, r)
	return nil
}
