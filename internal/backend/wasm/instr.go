package wasm

import (
	"fmt"
	"math"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// genInstr lowers one lir.Instruction to its wasm bytecode, mirroring
// internal/backend/arm64/riscv64's op dispatch shape. The opcode bytes
// themselves have no corpus grounding (original_source/wasm/src/wcc.c
// never reaches function-body codegen); they follow the WebAssembly core
// binary format directly.
func (fc *fnCtx) genInstr(in *lir.Instruction) error {
	switch in.Op {
	case lirtypes.Bofs:
		return fc.genBofs(in)
	case lirtypes.Iofs, lirtypes.Sofs:
		return fc.genAddrOf(in)
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
		return fc.genResult(in)
	case lirtypes.Subsp:
		return fc.genSubsp(in)
	case lirtypes.Cast:
		return fc.genCast(in)
	case lirtypes.Mov:
		return fc.genMov(in)
	case lirtypes.Asm:
		// Inline assembly is target-specific text aimed at a native
		// assembler; there is no wasm analog to pass it through to, so it
		// is dropped and this target emits nothing for it.
		return nil
	default:
		return fmt.Errorf("wasm: unexpected opcode %s", in.Op)
	}
}

// pushValue emits the bytecode that leaves v's value on top of the wasm
// value stack.
func (fc *fnCtx) pushValue(v lir.Value) {
	switch val := v.(type) {
	case *lir.Register:
		if off, ok := fc.bofsOff[val]; ok {
			fc.pushAddr(off)
			return
		}
		fc.code = append(fc.code, 0x20) // local.get
		fc.code = appendUleb128(fc.code, uint64(fc.local[val]))
	case *lir.Constant:
		fc.pushConst(val)
	case *lir.GlobalRef:
		fc.pushSymAddr(val.Name)
	default:
		fc.code = append(fc.code, 0x41, 0x00) // i32.const 0
	}
}

// pushAddr computes a bofs'd register's frame address: $fp - (frameSize -
// off), the wasm analog of the native backends' `addi dst, fp, -spill`.
func (fc *fnCtx) pushAddr(off int64) {
	fc.code = append(fc.code, 0x20) // local.get $fp
	fc.code = appendUleb128(fc.code, uint64(fc.fpLocal))
	fc.code = append(fc.code, 0x41) // i32.const
	fc.code = appendSleb128(fc.code, fc.frameSize-off)
	fc.code = append(fc.code, 0x6b) // i32.sub
}

func (fc *fnCtx) pushSymAddr(name string) {
	if addr, ok := fc.memBase[name]; ok {
		fc.code = append(fc.code, 0x41)
		fc.code = appendSleb128(fc.code, addr)
		return
	}
	if idx, ok := fc.funcIdx[name]; ok {
		fc.code = append(fc.code, 0x41)
		fc.code = appendSleb128(fc.code, int64(idx))
		return
	}
	fc.code = append(fc.code, 0x41, 0x00)
}

func (fc *fnCtx) pushConst(cn *lir.Constant) {
	if ctype.IsFlonum(cn.Typ) {
		if ctype.TypeSize(cn.Typ) == 4 {
			fc.code = append(fc.code, 0x43) // f32.const
			var b [4]byte
			putLE32(b[:], f32bits(float32(cn.FVal)))
			fc.code = append(fc.code, b[:]...)
		} else {
			fc.code = append(fc.code, 0x44) // f64.const
			var b [8]byte
			putLE64(b[:], f64bits(cn.FVal))
			fc.code = append(fc.code, b[:]...)
		}
		return
	}
	if valtype(cn.Typ) == valI64 {
		fc.code = append(fc.code, 0x42) // i64.const
		fc.code = appendSleb128(fc.code, cn.IVal)
		return
	}
	fc.code = append(fc.code, 0x41) // i32.const
	fc.code = appendSleb128(fc.code, cn.IVal)
}

// storeDst pops the top of stack into d's local, or drops it if d has no
// local (a void result).
func (fc *fnCtx) storeDst(d *lir.Register) {
	if d == nil {
		fc.code = append(fc.code, 0x1a) // drop
		return
	}
	fc.code = append(fc.code, 0x21) // local.set
	fc.code = appendUleb128(fc.code, uint64(fc.local[d]))
}

func (fc *fnCtx) genBofs(in *lir.Instruction) error {
	if in.Dst == nil {
		return nil
	}
	fc.pushAddr(fc.bofsOff[in.Dst])
	fc.storeDst(in.Dst)
	return nil
}

func (fc *fnCtx) genAddrOf(in *lir.Instruction) error {
	fc.pushSymAddr(in.Sym.Name)
	fc.storeDst(in.Dst)
	return nil
}

// memarg appends a wasm memarg immediate (alignment exponent, offset),
// always naturally-unaligned/zero-offset here since this backend never
// tracks pointer alignment precisely enough to claim better.
func (fc *fnCtx) memarg() {
	fc.code = append(fc.code, 0x00, 0x00)
}

func (fc *fnCtx) genLoad(in *lir.Instruction) error {
	fc.pushValue(in.Args[0])
	t := in.Dst.Typ
	var op byte
	switch {
	case ctype.IsFlonum(t):
		if ctype.TypeSize(t) == 4 {
			op = 0x2a
		} else {
			op = 0x2b
		}
	case in.Op == lirtypes.LoadS && valtype(t) == valI64:
		switch ctype.TypeSize(t) {
		case 1:
			op = signed(t, 0x30, 0x31)
		case 2:
			op = signed(t, 0x32, 0x33)
		case 4:
			op = signed(t, 0x34, 0x35)
		default:
			op = 0x29
		}
	case in.Op == lirtypes.LoadS:
		switch ctype.TypeSize(t) {
		case 1:
			op = signed(t, 0x2c, 0x2d)
		case 2:
			op = signed(t, 0x2e, 0x2f)
		default:
			op = 0x28
		}
	case valtype(t) == valI64:
		op = 0x29
	default:
		op = 0x28
	}
	fc.code = append(fc.code, op)
	fc.memarg()
	fc.storeDst(in.Dst)
	return nil
}

func signed(t *ctype.Type, s, u byte) byte {
	if t.Unsigned {
		return u
	}
	return s
}

func (fc *fnCtx) genStore(in *lir.Instruction) error {
	fc.pushValue(in.Args[0])
	fc.pushValue(in.Args[1])
	t := in.Args[1].Type()
	var op byte
	switch {
	case ctype.IsFlonum(t):
		if ctype.TypeSize(t) == 4 {
			op = 0x38
		} else {
			op = 0x39
		}
	case in.Op == lirtypes.StoreS && valtype(t) == valI64:
		switch ctype.TypeSize(t) {
		case 1:
			op = 0x3c
		case 2:
			op = 0x3d
		case 4:
			op = 0x3e
		default:
			op = 0x37
		}
	case in.Op == lirtypes.StoreS:
		switch ctype.TypeSize(t) {
		case 1:
			op = 0x3a
		case 2:
			op = 0x3b
		default:
			op = 0x36
		}
	case valtype(t) == valI64:
		op = 0x37
	default:
		op = 0x36
	}
	fc.code = append(fc.code, op)
	fc.memarg()
	return nil
}

func (fc *fnCtx) genBinary(in *lir.Instruction) error {
	fc.pushValue(in.Args[0])
	fc.pushValue(in.Args[1])
	t := in.Dst.Typ
	flonum := ctype.IsFlonum(t)
	i64 := valtype(t) == valI64 || valtype(t) == valF64
	var op byte
	switch in.Op {
	case lirtypes.Add:
		op = pick(flonum, i64, 0x92, 0xa0, 0x6a, 0x7c)
	case lirtypes.Sub:
		op = pick(flonum, i64, 0x93, 0xa1, 0x6b, 0x7d)
	case lirtypes.Mul:
		op = pick(flonum, i64, 0x94, 0xa2, 0x6c, 0x7e)
	case lirtypes.Div:
		if flonum {
			op = pick(flonum, i64, 0x95, 0xa3, 0, 0)
		} else if t.Unsigned {
			op = pick(false, i64, 0, 0, 0x6e, 0x80)
		} else {
			op = pick(false, i64, 0, 0, 0x6d, 0x7f)
		}
	case lirtypes.Mod:
		if t.Unsigned {
			op = pick(false, i64, 0, 0, 0x70, 0x82)
		} else {
			op = pick(false, i64, 0, 0, 0x6f, 0x81)
		}
	case lirtypes.BitAnd:
		op = pick(false, i64, 0, 0, 0x71, 0x83)
	case lirtypes.BitOr:
		op = pick(false, i64, 0, 0, 0x72, 0x84)
	case lirtypes.BitXor:
		op = pick(false, i64, 0, 0, 0x73, 0x85)
	case lirtypes.Lshift:
		op = pick(false, i64, 0, 0, 0x74, 0x86)
	case lirtypes.Rshift:
		if t.Unsigned {
			op = pick(false, i64, 0, 0, 0x76, 0x88)
		} else {
			op = pick(false, i64, 0, 0, 0x75, 0x87)
		}
	default:
		return fmt.Errorf("wasm: unexpected binary operator %s", in.Op)
	}
	fc.code = append(fc.code, op)
	fc.storeDst(in.Dst)
	return nil
}

func pick(flonum, i64 bool, f32op, f64op, i32op, i64op byte) byte {
	if flonum {
		if i64 {
			return f64op
		}
		return f32op
	}
	if i64 {
		return i64op
	}
	return i32op
}

func (fc *fnCtx) genUnary(in *lir.Instruction) error {
	t := in.Dst.Typ
	flonum := ctype.IsFlonum(t)
	i64 := valtype(t) == valI64 || valtype(t) == valF64
	switch in.Op {
	case lirtypes.Neg:
		if flonum {
			fc.pushValue(in.Args[0])
			fc.code = append(fc.code, pick(true, i64, 0x8c, 0x9a, 0, 0))
		} else {
			if i64 {
				fc.code = append(fc.code, 0x42, 0x00) // i64.const 0
			} else {
				fc.code = append(fc.code, 0x41, 0x00) // i32.const 0
			}
			fc.pushValue(in.Args[0])
			fc.code = append(fc.code, pick(false, i64, 0, 0, 0x6b, 0x7d))
		}
	case lirtypes.BitNot:
		fc.pushValue(in.Args[0])
		if i64 {
			fc.code = append(fc.code, 0x42)
			fc.code = appendSleb128(fc.code, -1)
			fc.code = append(fc.code, 0x85)
		} else {
			fc.code = append(fc.code, 0x41)
			fc.code = appendSleb128(fc.code, -1)
			fc.code = append(fc.code, 0x73)
		}
	default:
		return fmt.Errorf("wasm: unexpected unary operator %s", in.Op)
	}
	fc.storeDst(in.Dst)
	return nil
}

// genCond computes the comparison into an i32 boolean and stores it in
// Cond's own destination local. Unlike internal/backend/arm64/riscv64
// (which have nowhere to stash a comparison except a flags register or a
// scratch register) and internal/backend/llvmir (which needs a side table
// because genCond/genJmp are different Go calls producing/consuming an
// SSA value), this backend already has a place for it: the register
// itself, the same as every other instruction's result.
func (fc *fnCtx) genCond(in *lir.Instruction) error {
	if in.Dst == nil {
		return nil
	}
	fc.pushValue(in.Args[0])
	fc.pushValue(in.Args[1])
	t := in.Args[0].Type()
	flonum := ctype.IsFlonum(t)
	i64 := !flonum && valtype(t) == valI64
	var op byte
	switch {
	case flonum && valtype(t) == valF32:
		op = floatCmp(in.Cc, false)
	case flonum:
		op = floatCmp(in.Cc, true)
	default:
		op = intCmp(in.Cc, t.Unsigned, i64)
	}
	fc.code = append(fc.code, op)
	fc.storeDst(in.Dst)
	return nil
}

func floatCmp(cc lirtypes.Cc, f64 bool) byte {
	base := byte(0x5b)
	if f64 {
		base = 0x61
	}
	switch cc {
	case lirtypes.CcEq:
		return base
	case lirtypes.CcNe:
		return base + 1
	case lirtypes.CcLt:
		return base + 2
	case lirtypes.CcGt:
		return base + 3
	case lirtypes.CcLe:
		return base + 4
	case lirtypes.CcGe:
		return base + 5
	}
	return base
}

func intCmp(cc lirtypes.Cc, unsigned, i64 bool) byte {
	var base byte = 0x46
	if i64 {
		base = 0x51
	}
	switch cc {
	case lirtypes.CcEq:
		return base
	case lirtypes.CcNe:
		return base + 1
	case lirtypes.CcLt:
		if unsigned {
			return base + 3
		}
		return base + 2
	case lirtypes.CcGt:
		if unsigned {
			return base + 5
		}
		return base + 4
	case lirtypes.CcLe:
		if unsigned {
			return base + 7
		}
		return base + 6
	case lirtypes.CcGe:
		if unsigned {
			return base + 9
		}
		return base + 8
	}
	return base
}

// setPCAndBranch sets $pc to idx and branches to the dispatch loop.
func (fc *fnCtx) setPCAndBranch(idx int) {
	fc.code = append(fc.code, 0x41)
	fc.code = appendSleb128(fc.code, int64(idx))
	fc.code = append(fc.code, 0x21)
	fc.code = appendUleb128(fc.code, uint64(fc.pcLocal))
	fc.code = append(fc.code, 0x0c) // br
	fc.code = appendUleb128(fc.code, uint64(fc.loopDepth()))
}

func (fc *fnCtx) genJmp(in *lir.Instruction) error {
	if in.Dst == nil {
		fc.setPCAndBranch(fc.blockIdx[in.Target])
		return nil
	}
	fc.code = append(fc.code, 0x20) // local.get the Cond's boolean result
	fc.code = appendUleb128(fc.code, uint64(fc.local[in.Dst]))
	fc.code = append(fc.code, 0x04, 0x40) // if (empty block type)
	fc.setPCAndBranch(fc.blockIdx[in.Target])
	if in.TargetF != nil {
		fc.code = append(fc.code, 0x05) // else
		fc.setPCAndBranch(fc.blockIdx[in.TargetF])
	}
	fc.code = append(fc.code, 0x0b) // end
	return nil
}

// genTjmp lowers an indirect switch dispatch through a data-segment table
// of block indices, this module's own addition with no teacher or
// original_source precedent on any target (see package doc).
func (fc *fnCtx) genTjmp(in *lir.Instruction) error {
	lo := in.Args[1].(*lir.Constant).IVal
	n := len(in.Table)

	idx := make([]int32, n)
	for i, b := range in.Table {
		idx[i] = int32(fc.blockIdx[b])
	}
	tableAddr := fc.allocJumpTable(idx)

	fc.pushValue(in.Args[0])
	fc.code = append(fc.code, 0x41)
	fc.code = appendSleb128(fc.code, lo)
	fc.code = append(fc.code, 0x6b) // i32.sub
	fc.code = append(fc.code, 0x22) // local.tee $scratch
	fc.code = appendUleb128(fc.code, uint64(fc.scratch))

	fc.code = append(fc.code, 0x41)
	fc.code = appendSleb128(fc.code, int64(n))
	fc.code = append(fc.code, 0x49) // i32.lt_u

	fc.code = append(fc.code, 0x04, 0x40) // if
	fc.code = append(fc.code, 0x41)
	fc.code = appendSleb128(fc.code, tableAddr)
	fc.code = append(fc.code, 0x20) // local.get $scratch
	fc.code = appendUleb128(fc.code, uint64(fc.scratch))
	fc.code = append(fc.code, 0x41, 0x02, 0x74) // i32.const 2, i32.shl (x*4)
	fc.code = append(fc.code, 0x6a)             // i32.add
	fc.code = append(fc.code, 0x28)             // i32.load
	fc.memarg()
	fc.code = append(fc.code, 0x21) // local.set $pc
	fc.code = appendUleb128(fc.code, uint64(fc.pcLocal))
	fc.code = append(fc.code, 0x05) // else
	fc.code = append(fc.code, 0x41)
	fc.code = appendSleb128(fc.code, int64(fc.blockIdx[in.Default]))
	fc.code = append(fc.code, 0x21)
	fc.code = appendUleb128(fc.code, uint64(fc.pcLocal))
	fc.code = append(fc.code, 0x0b) // end

	fc.code = append(fc.code, 0x0c) // br
	fc.code = appendUleb128(fc.code, uint64(fc.loopDepth()))
	return nil
}

func (fc *fnCtx) genCall(in *lir.Instruction) error {
	for _, a := range fc.pendingArgs {
		fc.pushValue(a)
	}
	switch fv := in.Func.(type) {
	case *lir.GlobalRef:
		idx, ok := fc.funcIdx[fv.Name]
		if !ok {
			return fmt.Errorf("wasm: call to undeclared function %s", fv.Name)
		}
		fc.code = append(fc.code, 0x10) // call
		fc.code = appendUleb128(fc.code, uint64(idx))
	default:
		fc.pushValue(fv)
		fc.code = append(fc.code, 0x11) // call_indirect
		fc.code = appendUleb128(fc.code, uint64(fc.internType(fn2Type(in))))
		fc.code = append(fc.code, 0x00) // table 0
	}
	fc.pendingArgs = fc.pendingArgs[:0]
	return nil
}

// fn2Type recovers an approximate callee signature for an indirect
// call_indirect's required type immediate; lir.Instruction doesn't carry
// the callee's full parameter signature for a register-valued Func, only
// the instruction's own result type, so a variadic single-return function
// type is synthesized from the following Result's register type. This
// under-specifies the real callee signature, but wasm's call_indirect only
// checks the type for a dynamic trap, not for parameter marshaling (the
// arguments were already pushed in the right order and count by the
// preceding Pusharg sequence).
func fn2Type(in *lir.Instruction) *ctype.Type {
	var ret *ctype.Type
	if in.Dst != nil {
		ret = in.Dst.Typ
	}
	return &ctype.Type{Kind: ctype.Function, Ret: ret, VaArgs: true}
}

func (fc *fnCtx) genResult(in *lir.Instruction) error {
	// The Call instruction already pushed its return value (if any); this
	// backend's stack-machine shape means Result just needs to capture
	// whatever call left behind rather than move it between registers the
	// way the native targets' a0/fa0 convention requires.
	if in.Dst == nil {
		return nil
	}
	fc.storeDst(in.Dst)
	return nil
}

func (fc *fnCtx) genSubsp(in *lir.Instruction) error {
	fc.code = append(fc.code, 0x23) // global.get $__stack_pointer
	fc.code = appendUleb128(fc.code, 0)
	fc.pushValue(in.Args[0])
	fc.code = append(fc.code, 0x6b) // i32.sub
	fc.code = append(fc.code, 0x22) // local.tee
	fc.code = appendUleb128(fc.code, uint64(fc.fpLocal))
	fc.code = append(fc.code, 0x24) // global.set $__stack_pointer
	fc.code = appendUleb128(fc.code, 0)
	if in.Dst != nil {
		fc.code = append(fc.code, 0x23)
		fc.code = appendUleb128(fc.code, 0)
		fc.storeDst(in.Dst)
	}
	return nil
}

// genCast converts between this module's fixnum and flonum representations
// with the wasm core's dedicated conversion opcodes, the same fixed set of
// named conversions internal/backend/llvmir's genCast dispatches with
// FPToUI/SIToFP/FPExt/etc; there is no teacher precedent on any target
// since VSL has no implicit numeric conversions.
func (fc *fnCtx) genCast(in *lir.Instruction) error {
	srcT, dstT := in.Args[0].Type(), in.Dst.Typ
	fc.pushValue(in.Args[0])
	srcFlo, dstFlo := ctype.IsFlonum(srcT), ctype.IsFlonum(dstT)
	srcI64, dstI64 := valtype(srcT) == valI64, valtype(dstT) == valI64
	srcF64, dstF64 := ctype.TypeSize(srcT) == 8, ctype.TypeSize(dstT) == 8

	switch {
	case srcFlo && dstFlo:
		if srcF64 && !dstF64 {
			fc.code = append(fc.code, 0xb6) // f32.demote_f64
		} else if !srcF64 && dstF64 {
			fc.code = append(fc.code, 0xbb) // f64.promote_f32
		}
	case srcFlo && !dstFlo:
		fc.code = append(fc.code, fpToInt(srcF64, dstI64, dstT.Unsigned))
	case !srcFlo && dstFlo:
		fc.code = append(fc.code, intToFP(srcI64, dstF64, srcT.Unsigned))
	default: // int -> int width change
		if srcI64 && !dstI64 {
			fc.code = append(fc.code, 0xa7) // i32.wrap_i64
		} else if !srcI64 && dstI64 {
			if srcT.Unsigned {
				fc.code = append(fc.code, 0xad) // i64.extend_i32_u
			} else {
				fc.code = append(fc.code, 0xac) // i64.extend_i32_s
			}
		}
	}
	fc.storeDst(in.Dst)
	return nil
}

func fpToInt(srcF64, dstI64, unsigned bool) byte {
	switch {
	case !srcF64 && !dstI64 && !unsigned:
		return 0xa8 // i32.trunc_f32_s
	case !srcF64 && !dstI64 && unsigned:
		return 0xa9
	case srcF64 && !dstI64 && !unsigned:
		return 0xaa
	case srcF64 && !dstI64 && unsigned:
		return 0xab
	case !srcF64 && dstI64 && !unsigned:
		return 0xae
	case !srcF64 && dstI64 && unsigned:
		return 0xaf
	case srcF64 && dstI64 && !unsigned:
		return 0xb0
	default:
		return 0xb1
	}
}

func intToFP(srcI64, dstF64, unsigned bool) byte {
	switch {
	case !srcI64 && !dstF64 && !unsigned:
		return 0xb2 // f32.convert_i32_s
	case !srcI64 && !dstF64 && unsigned:
		return 0xb3
	case srcI64 && !dstF64 && !unsigned:
		return 0xb4
	case srcI64 && !dstF64 && unsigned:
		return 0xb5
	case !srcI64 && dstF64 && !unsigned:
		return 0xb7
	case !srcI64 && dstF64 && unsigned:
		return 0xb8
	case srcI64 && dstF64 && !unsigned:
		return 0xb9
	default:
		return 0xba
	}
}

func (fc *fnCtx) genMov(in *lir.Instruction) error {
	fc.pushValue(in.Args[0])
	fc.storeDst(in.Dst)
	return nil
}

func f32bits(f float32) uint32 { return math.Float32bits(f) }

func f64bits(f float64) uint64 { return math.Float64bits(f) }
