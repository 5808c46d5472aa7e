package riscv64

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
	"github.com/ijsf/xcc/internal/regfile"
)

// ctx mirrors internal/backend/arm64's ctx exactly; the two backends share
// a dispatch shape (this module's own generalization of the teacher's
// genFunction loop to a block-structured IR) and differ only in the
// instruction mnemonics and addressing modes each target's ISA needs.
type ctx struct {
	fn   *lir.Function
	rf   regfile.File
	w    *emitio.Writer
	pool *pool
	bofs map[*lir.Register]bool

	pendingArgs []pendingArg
	cond        map[*lir.Register]condState
}

type pendingArg struct {
	val lir.Value
}

// a0Base is the raw GetI/GetF index of a0/fa0 — RV64's argument and
// return registers start at x10/f10, unlike aarch64 where they start at
// x0/v0 and slot number equals raw index directly.
const a0Base = 10

// genFunction lowers one function, grounded on the teacher's (pre-lir)
// backend/riscv/function.go genFunction for the addi-based stack
// grow/shrink and ra/fp save-restore sequence, generalized from that
// file's flat tree walk to this module's per-block instruction dispatch.
func genFunction(fn *lir.Function, rf regfile.File, w *emitio.Writer, pool *pool) error {
	if len(fn.Blocks) == 0 {
		return nil
	}
	c := &ctx{fn: fn, rf: rf, w: w, pool: pool, cond: make(map[*lir.Register]condState)}
	c.scanBofs()

	w.Write("\n")
	w.Label(fn.Name)

	frame := c.frameSize()
	sp, fp, ra := rf.SP().String(), rf.FP().String(), rf.LR().String()

	w.Write("\taddi\t%s, %s, -%d\n", sp, sp, frame)
	w.Write("\tsd\t%s, %d(%s)\n", ra, frame-rf.WordSize(), sp)
	w.Write("\tsd\t%s, %d(%s)\n", fp, frame-2*rf.WordSize(), sp)
	w.Write("\taddi\t%s, %s, %d\n", fp, sp, frame)

	c.spillIncomingParams()

	for _, b := range fn.Blocks {
		w.Label(b.Label)
		for _, in := range b.Instr {
			if err := c.genInstr(in); err != nil {
				return fmt.Errorf("%s: %w", fn.Name, err)
			}
		}
		if b == fn.Epilogue {
			c.genEpilogue(frame)
		}
	}
	return nil
}

func (c *ctx) frameSize() int {
	sa := c.fn.FrameSize + 2*c.rf.WordSize()
	align := c.rf.StackAlign()
	if r := sa % align; r != 0 {
		sa += align - r
	}
	return sa
}

func (c *ctx) scanBofs() {
	c.bofs = make(map[*lir.Register]bool)
	for _, b := range c.fn.Blocks {
		for _, in := range b.Instr {
			if in.Op == lirtypes.Bofs && in.Dst != nil {
				c.bofs[in.Dst] = true
			}
		}
	}
}

// spillIncomingParams stores to its frame slot every parameter the
// allocator could not keep resident, re-deriving each one's
// calling-convention register the same way internal/regalloc's
// pinParamsAndReturn does.
func (c *ctx) spillIncomingParams() {
	ii, fi := 0, 0
	for _, p := range c.fn.Params {
		flonum := ctype.IsFlonum(p.Typ)
		var slot int
		if flonum {
			slot, fi = fi, fi+1
		} else {
			slot, ii = ii, ii+1
		}
		if !p.IsSpilled() || slot >= 8 {
			continue
		}
		var src regfile.Register
		if flonum {
			src = c.rf.GetF(a0Base + slot)
			c.w.Write("\tfsd\t%s, -%d(%s)\n", src.String(), p.Spill, c.rf.FP().String())
		} else {
			src = c.rf.GetI(a0Base + slot)
			c.w.Write("\tsd\t%s, -%d(%s)\n", src.String(), p.Spill, c.rf.FP().String())
		}
	}
}

func (c *ctx) scratch1(flonum bool) regfile.Register {
	if flonum {
		return c.rf.TempF()
	}
	return c.rf.Temp()
}

func (c *ctx) scratch2(flonum bool) regfile.Register {
	if flonum {
		return c.rf.TempF2()
	}
	return c.rf.Temp2()
}

// loadMnemonic/storeMnemonic return "fld"/"fsd" vs "ld"/"sd" for a
// floating or integer register, used anywhere a load or store needs to
// pick a class-qualified mnemonic.
func loadMnemonic(flonum bool) string {
	if flonum {
		return "fld"
	}
	return "ld"
}

func storeMnemonic(flonum bool) string {
	if flonum {
		return "fsd"
	}
	return "sd"
}

func (c *ctx) operand(v lir.Value, scratch regfile.Register) string {
	switch val := v.(type) {
	case *lir.Register:
		if c.bofs[val] {
			c.w.Write("\taddi\t%s, %s, -%d\n", scratch.String(), c.rf.FP().String(), val.Spill)
			return scratch.String()
		}
		if val.IsSpilled() {
			flonum := ctype.IsFlonum(val.Typ)
			c.w.Write("\t%s\t%s, -%d(%s)\n", loadMnemonic(flonum), scratch.String(), val.Spill, c.rf.FP().String())
			return scratch.String()
		}
		if ctype.IsFlonum(val.Typ) {
			return c.rf.GetF(val.GetHW()).String()
		}
		return c.rf.GetI(val.GetHW()).String()
	case *lir.Constant:
		return c.materializeConst(val, scratch)
	case *lir.GlobalRef:
		c.w.Write("\tlla\t%s, %s\n", scratch.String(), val.Name)
		return scratch.String()
	default:
		return "?"
	}
}

// materializeConst uses RV64's `li` pseudo-instruction for any integer
// width directly — unlike aarch64, no literal-pool fallback is needed for
// integers, only for floats, which go through `lla`+`fld` the way the
// teacher's genFunctionCall loads a float argument via `lui`/`flw` against
// a _CFP32_ label.
func (c *ctx) materializeConst(cn *lir.Constant, scratch regfile.Register) string {
	if ctype.IsFlonum(cn.Typ) {
		label := c.pool.addFloat(cn.FVal)
		addr := c.rf.Temp()
		c.w.Write("\tlla\t%s, %s\n", addr.String(), label)
		c.w.Write("\tfld\t%s, 0(%s)\n", scratch.String(), addr.String())
		return scratch.String()
	}
	c.w.Write("\tli\t%s, %d\n", scratch.String(), cn.IVal)
	return scratch.String()
}

func (c *ctx) dst(d *lir.Register, flonum bool) regfile.Register {
	if d == nil || d.IsSpilled() {
		return c.scratch1(flonum)
	}
	if flonum {
		return c.rf.GetF(d.GetHW())
	}
	return c.rf.GetI(d.GetHW())
}

func (c *ctx) finish(d *lir.Register, r regfile.Register) {
	if d != nil && d.IsSpilled() {
		flonum := ctype.IsFlonum(d.Typ)
		c.w.Write("\t%s\t%s, -%d(%s)\n", storeMnemonic(flonum), r.String(), d.Spill, c.rf.FP().String())
	}
}

// genEpilogue mirrors the teacher's genFunction tail: restore ra/fp,
// shrink the stack back, ret. The result-register move the teacher has no
// equivalent for (vslc's RISC-V backend returns whichever register last
// held the value) is needed here because this allocator doesn't guarantee
// RetReg already sits in a0/fa0.
func (c *ctx) genEpilogue(frame int) {
	if c.fn.RetReg != nil {
		flonum := ctype.IsFlonum(c.fn.RetReg.Typ)
		var target regfile.Register
		if flonum {
			target = c.rf.GetF(a0Base)
		} else {
			target = c.rf.GetI(a0Base)
		}
		if c.fn.RetReg.IsSpilled() {
			c.w.Write("\t%s\t%s, -%d(%s)\n", loadMnemonic(flonum), target.String(), c.fn.RetReg.Spill, c.rf.FP().String())
		} else if c.fn.RetReg.GetHW() != target.Id() {
			if flonum {
				c.w.Write("\tfmv.d\t%s, %s\n", target.String(), c.rf.GetF(c.fn.RetReg.GetHW()).String())
			} else {
				c.w.Write("\tmv\t%s, %s\n", target.String(), c.rf.GetI(c.fn.RetReg.GetHW()).String())
			}
		}
	}
	sp, fp, ra := c.rf.SP().String(), c.rf.FP().String(), c.rf.LR().String()
	c.w.Write("\tld\t%s, %d(%s)\n", ra, frame-c.rf.WordSize(), sp)
	c.w.Write("\tld\t%s, %d(%s)\n", fp, frame-2*c.rf.WordSize(), sp)
	c.w.Write("\taddi\t%s, %s, %d\n", sp, sp, frame)
	c.w.Write("\tret\n")
}
