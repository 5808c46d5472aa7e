package arm64

import (
	"fmt"
	"math"

	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
)

// literal is one module-scoped literal-pool entry: a large integer or
// floating constant that didn't fit an immediate-encoded instruction and
// had to be loaded through an adrp/ldr pair, the way the teacher's own
// backend spills oversized constants to a _L_CONST_<n> label rather than
// materializing them inline.
type literal struct {
	label  string
	flonum bool
	ival   int64
	fval   float64
}

// jumptable is one Tjmp lowering's dense array of successor-block
// addresses, emitted to rodata alongside the literal pool. The teacher has
// no switch/dense-jump-table concept to ground this on; the table-driven
// lowering below is this module's own addition to the aarch64 target.
type jumptable struct {
	label  string
	blocks []*lir.Block
}

// pool accumulates every literal and jump table referenced while lowering
// a module's functions, flushed once after the last function body so every
// label is emitted exactly once regardless of how many instructions
// referenced it.
type pool struct {
	lits   []literal
	tables []jumptable
}

func (p *pool) addInt(v int64) string {
	label := fmt.Sprintf(".LK%d", len(p.lits))
	p.lits = append(p.lits, literal{label: label, ival: v})
	return label
}

func (p *pool) addFloat(v float64) string {
	label := fmt.Sprintf(".LK%d", len(p.lits))
	p.lits = append(p.lits, literal{label: label, flonum: true, fval: v})
	return label
}

func (p *pool) addTable(blocks []*lir.Block) string {
	label := fmt.Sprintf(".LT%d", len(p.tables))
	p.tables = append(p.tables, jumptable{label: label, blocks: blocks})
	return label
}

// flush writes every pending literal and jump table to w's rodata section.
func (p *pool) flush(w *emitio.Writer) {
	if len(p.lits) == 0 && len(p.tables) == 0 {
		return
	}
	w.Write("\n\t.section\t.rodata\n")
	for _, l := range p.lits {
		w.Label(l.label)
		if l.flonum {
			bits := math.Float64bits(l.fval)
			w.Write("\t.xword\t0x%x\t// %g\n", bits, l.fval)
		} else {
			w.Write("\t.xword\t0x%x\t// %d\n", uint64(l.ival), l.ival)
		}
	}
	for _, t := range p.tables {
		w.Label(t.label)
		for _, b := range t.blocks {
			w.Write("\t.xword\t%s\n", b.Label)
		}
	}
}
