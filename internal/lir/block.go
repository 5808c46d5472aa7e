package lir

import (
	"fmt"

	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Instruction is one three-address IR operation. Most fields are only
// meaningful for certain Op values: Target/TargetF for Jmp, Table/Default
// for Tjmp, Func/NArgs for Call.
type Instruction struct {
	Op   lirtypes.Op
	Dst  *Register
	Args []Value
	Cc   lirtypes.Cc

	// Jmp: Target is always the branch destination; TargetF is the
	// fall-through alternative for a conditional branch (nil for an
	// unconditional Jmp, which falls through to nothing).
	Target  *Block
	TargetF *Block

	// Tjmp: Table holds one successor per case value in ascending order;
	// Default is taken when the switched value falls outside the table's
	// dense range.
	Table   []*Block
	Default *Block

	// Call: Func is the callee value (a GlobalRef or a register holding a
	// function pointer); NArgs records how many preceding Pusharg
	// instructions belong to this call. The target lowerers do not read it;
	// they count the Pusharg values they have buffered instead.
	Func  Value
	NArgs int

	// Iofs/Sofs: Sym names the global or string-pool entry being addressed.
	Sym *GlobalRef

	// Asm: raw text passed through verbatim.
	Text string
}

// Block is a basic block: a straight-line instruction list ending in at
// most one control-transfer instruction (Jmp, Tjmp, or a call followed by
// fall-through). Preds/Succs are maintained by the builder as blocks are
// linked, so internal/regalloc's liveness walk never needs to re-derive
// the CFG from branch targets.
type Block struct {
	ID    int
	Label string
	Instr []*Instruction
	Preds []*Block
	Succs []*Block

	// LiveIn/LiveOut are filled in by internal/regalloc's liveness pass.
	LiveIn  map[*Register]bool
	LiveOut map[*Register]bool
}

// ---------------------
// ----- functions -----
// ---------------------

func (b *Block) String() string { return b.Label }

// addSucc links b -> to, and to's Preds back to b, keeping the CFG
// consistent in both directions at every call site that creates an edge.
func (b *Block) addSucc(to *Block) {
	b.Succs = append(b.Succs, to)
	to.Preds = append(to.Preds, b)
}

func (b *Block) emit(in *Instruction) *Instruction {
	b.Instr = append(b.Instr, in)
	return in
}

// blockLabel formats a default block label from a function-local counter,
// matching the teacher's label-allocation convention of a short numeric
// suffix rather than a descriptive name.
func blockLabel(fn *Function) string {
	fn.blockSeq++
	return fmt.Sprintf(".L%d", fn.blockSeq)
}
