package lir

import (
	"github.com/ijsf/xcc/internal/ast"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// switchStmt lowers a switch to a Tjmp indirect jump through a rodata jump
// table (spec 4.E/4.G's switch-table requirement) when the case values are
// dense enough to make a table worthwhile, falling back to a compare-chain
// for a sparse case set — the teacher's/xplshn-gbc's plain
// chain-of-comparisons approach, reused here only for the fallback, not as
// the general strategy, since spec 4.G requires table-jump lowering be
// available.
func (bd *Builder) switchStmt(sw *ast.SwitchStmt) {
	after := bd.Fn.NewBlock()
	if bd.caseBlocks == nil {
		bd.caseBlocks = map[*ast.CaseStmt]*Block{}
	}
	saved := bd.caseBlocks
	bd.caseBlocks = map[*ast.CaseStmt]*Block{}
	for _, cs := range sw.Cases {
		bd.caseBlocks[cs] = bd.Fn.NewBlock()
	}

	defaultBlock := after
	if sw.Default != nil {
		defaultBlock = bd.caseBlocks[sw.Default]
	}

	v := bd.expr(sw.Value)

	if dense, lo, hi := denseCaseRange(sw.Cases); dense {
		table := make([]*Block, hi-lo+1)
		for i := range table {
			table[i] = defaultBlock
		}
		for _, cs := range sw.Cases {
			if cs.Value == nil {
				continue
			}
			idx := int(cs.Value.Data.(*ast.IntLit).Value) - lo
			table[idx] = bd.caseBlocks[cs]
		}
		bd.Cur.addSucc(defaultBlock)
		for _, b := range table {
			if b != defaultBlock {
				bd.Cur.addSucc(b)
			}
		}
		bd.emit(&Instruction{Op: lirtypes.Tjmp, Args: []Value{v, &Constant{IVal: int64(lo), Typ: v.Type()}}, Table: table, Default: defaultBlock})
	} else {
		for _, cs := range sw.Cases {
			if cs.Value == nil {
				continue
			}
			next := bd.Fn.NewBlock()
			cmp := bd.Fn.NewRegister(v.Type())
			bd.emit(&Instruction{Op: lirtypes.Cond, Dst: cmp, Cc: lirtypes.CcEq, Args: []Value{v, &Constant{IVal: cs.Value.Data.(*ast.IntLit).Value, Typ: v.Type()}}})
			bd.Cur.addSucc(bd.caseBlocks[cs])
			bd.Cur.addSucc(next)
			bd.emit(&Instruction{Op: lirtypes.Jmp, Target: bd.caseBlocks[cs], TargetF: next, Dst: cmp})
			bd.Cur = next
		}
		bd.jmpTo(defaultBlock)
	}

	bd.Cur = after
	bd.loops = append(bd.loops, loopCtx{breakTo: after, continueTo: after})
	bd.stmt(sw.Body)
	bd.loops = bd.loops[:len(bd.loops)-1]
	bd.jmpTo(after)
	bd.Cur = after
	bd.caseBlocks = saved
}

// denseCaseRange reports whether a switch's non-default case values are
// small compile-time integers packed closely enough to justify a jump
// table rather than a compare chain, and if so returns their range.
func denseCaseRange(cases []*ast.CaseStmt) (ok bool, lo, hi int) {
	first := true
	for _, cs := range cases {
		if cs.Value == nil {
			continue
		}
		if cs.Value.Kind != ast.ExprIntLit {
			return false, 0, 0
		}
		v := int(cs.Value.Data.(*ast.IntLit).Value)
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if first {
		return false, 0, 0
	}
	span := hi - lo + 1
	return span > 0 && span <= 4*len(cases), lo, hi
}
