package riscv64

import (
	"fmt"
	"math"

	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
)

// literal is one module-scoped literal-pool entry, the RV64 analog of
// internal/backend/arm64's pool: a floating constant that needs a
// pc-relative load (`lla`+`fld`) rather than the `li` pseudo-instruction
// that already handles any integer width directly.
type literal struct {
	label string
	fval  float64
}

// jumptable mirrors internal/backend/arm64's Tjmp address table — this
// module's own addition, since neither the teacher's arm backend nor its
// separate (pre-lir) riscv backend has a dense-switch lowering to ground
// it on.
type jumptable struct {
	label  string
	blocks []*lir.Block
}

type pool struct {
	lits   []literal
	tables []jumptable
}

func (p *pool) addFloat(v float64) string {
	label := fmt.Sprintf(".LK%d", len(p.lits))
	p.lits = append(p.lits, literal{label: label, fval: v})
	return label
}

func (p *pool) addTable(blocks []*lir.Block) string {
	label := fmt.Sprintf(".LT%d", len(p.tables))
	p.tables = append(p.tables, jumptable{label: label, blocks: blocks})
	return label
}

func (p *pool) flush(w *emitio.Writer) {
	if len(p.lits) == 0 && len(p.tables) == 0 {
		return
	}
	w.Write("\n\t.section\t.rodata\n")
	for _, l := range p.lits {
		w.Label(l.label)
		bits := math.Float64bits(l.fval)
		w.Write("\t.dword\t0x%x\t// %g\n", bits, l.fval)
	}
	for _, t := range p.tables {
		w.Label(t.label)
		for _, b := range t.blocks {
			w.Write("\t.dword\t%s\n", b.Label)
		}
	}
}
