package regalloc

import (
	"testing"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

func emit(b *lir.Block, op lirtypes.Op, dst *lir.Register, args ...lir.Value) *lir.Instruction {
	in := &lir.Instruction{Op: op, Dst: dst, Args: args}
	b.Instr = append(b.Instr, in)
	return in
}

// link connects from -> to by appending to Succs and Preds directly: a
// plain two-block Jmp is enough to exercise cross-block propagation without reimplementing the
// builder's branch lowering.
func link(from, to *lir.Block) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func TestComputeLivenessAcrossBlocks(t *testing.T) {
	fn := &lir.Function{}
	b0 := fn.NewBlock()
	b1 := fn.NewBlock()
	fn.Entry = b0
	link(b0, b1)

	x := fn.NewRegister(ctype.NewFixnum(ctype.Int, false, 0))
	y := fn.NewRegister(ctype.NewFixnum(ctype.Int, false, 0))

	// b0: x = 1 (Mov-style constant load via a fake Add to stand in for any
	// defining op); x is live out since b1 reads it.
	emit(b0, lirtypes.Add, x, &lir.Constant{IVal: 1}, &lir.Constant{IVal: 0})
	// b1: y = x + x
	emit(b1, lirtypes.Add, y, x, x)

	ComputeLiveness(fn)

	if !b0.LiveOut[x] {
		t.Errorf("expected x live out of b0")
	}
	if b0.LiveIn[x] {
		t.Errorf("x must not be live into b0: it is defined there, not used")
	}
	if !b1.LiveIn[x] {
		t.Errorf("expected x live into b1")
	}
	if b1.LiveOut[y] {
		t.Errorf("y has no consumer: must not be live out of b1")
	}
}

func TestDefUseJmpDstIsAUse(t *testing.T) {
	fn := &lir.Function{}
	fn.NewBlock()
	flag := fn.NewRegister(ctype.NewFixnum(ctype.Int, false, 0))
	in := &lir.Instruction{Op: lirtypes.Jmp, Dst: flag}

	def, uses := defUse(in)
	if def != nil {
		t.Fatalf("Jmp must never report a def, got %v", def)
	}
	if len(uses) != 1 || uses[0] != flag {
		t.Fatalf("Jmp's Dst (the tested flag) must appear as a use, got %v", uses)
	}
}

func TestDefUseCallReadsFuncRegister(t *testing.T) {
	fn := &lir.Function{}
	fnPtr := fn.NewRegister(ctype.Ptrof(ctype.NewFixnum(ctype.Int, false, 0)))
	in := &lir.Instruction{Op: lirtypes.Call, Func: fnPtr}

	def, uses := defUse(in)
	if def != nil {
		t.Fatalf("Call itself defines nothing (Result does): got %v", def)
	}
	found := false
	for _, u := range uses {
		if u == fnPtr {
			found = true
		}
	}
	if !found {
		t.Fatalf("Call through a register must count that register as a use, got %v", uses)
	}
}
