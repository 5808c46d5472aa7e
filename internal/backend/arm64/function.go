package arm64

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
	"github.com/ijsf/xcc/internal/regfile"
)

// minImm/maxImm bound the 12-bit signed immediate aarch64's add/sub/cmp
// accept directly; anything outside this range has to be materialized
// through a register first, mirroring the teacher's own minImm/maxImm
// constants in armv8.go.
const minImm = -2048
const maxImm = 2047

// ctx carries everything one function's lowering needs: the register file,
// the output sink, the module-wide literal/jump-table pool, which virtual
// registers are Bofs addresses rather than ordinary values, and the
// call-sequence argument buffer between a Precall and its matching Call.
type ctx struct {
	fn   *lir.Function
	rf   regfile.File
	w    *emitio.Writer
	pool *pool
	bofs map[*lir.Register]bool

	pendingArgs []pendingArg
	condCc      map[*lir.Register]lirtypes.Cc
}

type pendingArg struct {
	val lir.Value
}

// genFunction lowers one already-register-allocated function to assembly
// text: label, prologue, one dispatch pass per block, epilogue.
func genFunction(fn *lir.Function, rf regfile.File, w *emitio.Writer, pool *pool) error {
	if len(fn.Blocks) == 0 {
		return nil
	}
	c := &ctx{fn: fn, rf: rf, w: w, pool: pool, condCc: make(map[*lir.Register]lirtypes.Cc)}
	c.scanBofs()

	w.Write("\n")
	w.Label(fn.Name)

	frame := c.frameSize()
	sp, fp := rf.SP().String(), rf.FP().String()

	w.Write("\tsub\t%s, %s, #%d\n", sp, sp, frame)
	w.Write("\tstp\t%s, %s, [%s, #%d]\n", fp, rf.LR().String(), sp, frame-2*rf.WordSize())
	w.Write("\tadd\t%s, %s, #%d\n", fp, sp, frame)

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

// genEpilogue moves the function's result into its ABI return register if
// needed, restores the saved frame pointer and link register, deallocates
// the frame, and returns — the exact sequence of the teacher's own
// genReturn, minus the cast-on-return-mismatch step (internal/elaborate
// already inserts any needed conversion ahead of the return statement, so
// RetReg always already holds the function's declared return type).
func (c *ctx) genEpilogue(frame int) {
	if c.fn.RetReg != nil {
		flonum := ctype.IsFlonum(c.fn.RetReg.Typ)
		var target regfile.Register
		if flonum {
			target = c.rf.GetF(0)
		} else {
			target = c.rf.GetI(0)
		}
		if c.fn.RetReg.IsSpilled() {
			c.w.Write("\tldr\t%s, [%s, #-%d]\n", target.String(), c.rf.FP().String(), c.fn.RetReg.Spill)
		} else if c.fn.RetReg.GetHW() != target.Id() {
			if flonum {
				c.w.Write("\tfmov\t%s, %s\n", target.String(), c.rf.GetF(c.fn.RetReg.GetHW()).String())
			} else {
				c.w.Write("\tmov\t%s, %s\n", target.String(), c.rf.GetI(c.fn.RetReg.GetHW()).String())
			}
		}
	}
	sp, fp := c.rf.SP().String(), c.rf.FP().String()
	c.w.Write("\tldp\t%s, %s, [%s, #%d]\n", fp, c.rf.LR().String(), sp, frame-2*c.rf.WordSize())
	c.w.Write("\tadd\t%s, %s, #%d\n", sp, sp, frame)
	c.w.Write("\tret\n")
}

// frameSize returns the 16-byte-aligned stack allocation covering every
// Bofs/spill slot plus the saved frame-pointer/link-register pair, the way
// the teacher's own genFunction/genReturn compute sa.
func (c *ctx) frameSize() int {
	sa := c.fn.FrameSize + 2*c.rf.WordSize()
	align := c.rf.StackAlign()
	if r := sa % align; r != 0 {
		sa += align - r
	}
	return sa
}

// scanBofs pre-walks every block once, recording which registers are
// Bofs results: a Bofs never computes a runtime value, so every later
// reference to one of its result registers must be materialized as frame-
// pointer-relative address arithmetic rather than a register read.
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

// spillIncomingParams stores to their frame slot every parameter the
// allocator could not keep resident, re-deriving each parameter's
// calling-convention register the same way internal/regalloc's
// pinParamsAndReturn does, since that assignment isn't recorded anywhere
// else once a parameter is spilled.
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
		if !p.IsSpilled() {
			continue
		}
		if slot >= 8 {
			// Arrived via the caller's outgoing-argument stack area, not a
			// register; internal/regalloc's pinParamsAndReturn already
			// documents this as a known gap left to the backend, and this
			// backend does not yet give such a parameter its own slot.
			continue
		}
		var src regfile.Register
		if flonum {
			src = c.rf.GetF(slot)
		} else {
			src = c.rf.GetI(slot)
		}
		c.w.Write("\tstr\t%s, [%s, #-%d]\n", src.String(), c.rf.FP().String(), p.Spill)
	}
}

// scratch1/scratch2 return the pair of dedicated temporaries for the given
// value class — scratch1 doubles as the destination register when the
// instruction's own result is spilled, scratch2 exists purely so a second
// simultaneously non-resident operand has somewhere to live without
// clobbering the first.
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

// operand materializes v into a string the emitted instruction can read
// directly, using scratch only if v isn't already sitting in a register by
// its own right.
func (c *ctx) operand(v lir.Value, scratch regfile.Register) string {
	switch val := v.(type) {
	case *lir.Register:
		if c.bofs[val] {
			c.w.Write("\tsub\t%s, %s, #%d\n", scratch.String(), c.rf.FP().String(), val.Spill)
			return scratch.String()
		}
		if val.IsSpilled() {
			c.w.Write("\tldr\t%s, [%s, #-%d]\n", scratch.String(), c.rf.FP().String(), val.Spill)
			return scratch.String()
		}
		if ctype.IsFlonum(val.Typ) {
			return c.rf.GetF(val.GetHW()).String()
		}
		return c.rf.GetI(val.GetHW()).String()
	case *lir.Constant:
		return c.materializeConst(val, scratch)
	case *lir.GlobalRef:
		c.w.Write("\tadrp\t%s, %s\n", scratch.String(), val.Name)
		c.w.Write("\tadd\t%s, %s, :lo12:%s\n", scratch.String(), scratch.String(), val.Name)
		return scratch.String()
	default:
		return "?"
	}
}

// materializeConst loads c's bit pattern into scratch: integers within
// minImm/maxImm with a single `mov` immediate (the range the teacher uses),
// and floats or anything wider through the literal pool as an adrp/ldr
// pair.
func (c *ctx) materializeConst(cn *lir.Constant, scratch regfile.Register) string {
	if ctype.IsFlonum(cn.Typ) {
		label := c.pool.addFloat(cn.FVal)
		c.w.Write("\tadrp\t%s, %s\n", scratch.String(), label)
		c.w.Write("\tldr\t%s, [%s, :lo12:%s]\n", scratch.String(), scratch.String(), label)
		return scratch.String()
	}
	if minImm <= cn.IVal && cn.IVal <= maxImm {
		c.w.Write("\tmov\t%s, #%d\n", scratch.String(), cn.IVal)
		return scratch.String()
	}
	label := c.pool.addInt(cn.IVal)
	c.w.Write("\tadrp\t%s, %s\n", scratch.String(), label)
	c.w.Write("\tldr\t%s, [%s, :lo12:%s]\n", scratch.String(), scratch.String(), label)
	return scratch.String()
}

// dst resolves the register an instruction should compute its result
// into: its own physical register if the allocator kept it resident,
// otherwise scratch1 of the matching class, reused as a write-through
// buffer that finish then spills to its frame slot.
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
		c.w.Write("\tstr\t%s, [%s, #-%d]\n", r.String(), c.rf.FP().String(), d.Spill)
	}
}
