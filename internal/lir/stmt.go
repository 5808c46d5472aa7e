package lir

import (
	"github.com/ijsf/xcc/internal/ast"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// stmt lowers s into the instruction stream, dispatching on its kind. Dead
// code after an already-terminated block (e.g. statements following a
// `return` that internal/reach already flagged unreachable) still lowers
// structurally so label/goto bookkeeping stays correct, but never changes
// bd.Cur's block back to a live one.
func (bd *Builder) stmt(s ast.Stmt) {
	switch s.Kind {
	case ast.StmtBlock:
		b := s.Data.(*ast.BlockStmt)
		for _, cs := range b.List {
			bd.stmt(cs)
		}

	case ast.StmtExpr:
		es := s.Data.(*ast.ExprStmt)
		bd.expr(es.X)

	case ast.StmtVarDecl:
		vd := s.Data.(*ast.VarDeclStmt)
		for _, v := range vd.Vars {
			bd.declareLocal(v)
		}

	case ast.StmtIf:
		bd.ifStmt(s.Data.(*ast.IfStmt))

	case ast.StmtWhile:
		bd.whileStmt(s.Data.(*ast.WhileStmt))

	case ast.StmtDoWhile:
		bd.doWhileStmt(s.Data.(*ast.WhileStmt))

	case ast.StmtFor:
		bd.forStmt(s.Data.(*ast.ForStmt))

	case ast.StmtSwitch:
		bd.switchStmt(s.Data.(*ast.SwitchStmt))

	case ast.StmtCase:
		cs := s.Data.(*ast.CaseStmt)
		if blk, ok := bd.caseBlocks[cs]; ok {
			bd.openBlock(blk)
		}

	case ast.StmtReturn:
		bd.returnStmt(s.Data.(*ast.ReturnStmt))

	case ast.StmtBreak:
		if n := len(bd.loops); n > 0 {
			bd.jmpTo(bd.loops[n-1].breakTo)
		}

	case ast.StmtContinue:
		if n := len(bd.loops); n > 0 {
			bd.jmpTo(bd.loops[n-1].continueTo)
		}

	case ast.StmtGoto:
		g := s.Data.(*ast.GotoStmt)
		bd.jmpTo(bd.labelBlock(g.Label))

	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		bd.openBlock(bd.labelBlock(l.Name))
		bd.stmt(l.Stmt)

	case ast.StmtAsm:
		a := s.Data.(*ast.AsmStmt)
		bd.emit(&Instruction{Op: lirtypes.Asm, Text: a.Text})

	case ast.StmtNull:
		// nothing to lower
	}
}

func (bd *Builder) ifStmt(i *ast.IfStmt) {
	thenB := bd.Fn.NewBlock()
	var elseB, after *Block
	if i.HasElse {
		elseB = bd.Fn.NewBlock()
	}
	after = bd.Fn.NewBlock()

	falseTarget := after
	if i.HasElse {
		falseTarget = elseB
	}
	bd.branch(i.Cond, thenB, falseTarget)

	bd.Cur = thenB
	bd.stmt(i.Then)
	bd.jmpTo(after)

	if i.HasElse {
		bd.Cur = elseB
		bd.stmt(i.Else)
		bd.jmpTo(after)
	}

	bd.Cur = after
}

func (bd *Builder) whileStmt(w *ast.WhileStmt) {
	head := bd.Fn.NewBlock()
	body := bd.Fn.NewBlock()
	after := bd.Fn.NewBlock()

	bd.openBlock(head)
	bd.branch(w.Cond, body, after)

	bd.Cur = body
	bd.loops = append(bd.loops, loopCtx{breakTo: after, continueTo: head})
	bd.stmt(w.Body)
	bd.loops = bd.loops[:len(bd.loops)-1]
	bd.jmpTo(head)

	bd.Cur = after
}

func (bd *Builder) doWhileStmt(w *ast.WhileStmt) {
	body := bd.Fn.NewBlock()
	cond := bd.Fn.NewBlock()
	after := bd.Fn.NewBlock()

	bd.openBlock(body)
	bd.loops = append(bd.loops, loopCtx{breakTo: after, continueTo: cond})
	bd.stmt(w.Body)
	bd.loops = bd.loops[:len(bd.loops)-1]
	bd.jmpTo(cond)

	bd.Cur = cond
	bd.branch(w.Cond, body, after)

	bd.Cur = after
}

func (bd *Builder) forStmt(f *ast.ForStmt) {
	if f.Pre != nil {
		bd.expr(f.Pre)
	}
	head := bd.Fn.NewBlock()
	body := bd.Fn.NewBlock()
	post := bd.Fn.NewBlock()
	after := bd.Fn.NewBlock()

	bd.openBlock(head)
	if f.Cond != nil {
		bd.branch(f.Cond, body, after)
	} else {
		bd.jmpTo(body)
	}

	bd.Cur = body
	bd.loops = append(bd.loops, loopCtx{breakTo: after, continueTo: post})
	bd.stmt(f.Body)
	bd.loops = bd.loops[:len(bd.loops)-1]
	bd.jmpTo(post)

	bd.Cur = post
	if f.Post != nil {
		bd.expr(f.Post)
	}
	bd.jmpTo(head)

	bd.Cur = after
}

func (bd *Builder) returnStmt(r *ast.ReturnStmt) {
	if r.Value != nil {
		v := bd.expr(r.Value)
		if bd.Fn.RetReg == nil {
			bd.Fn.RetReg = bd.Fn.NewRegister(r.Value.Type)
		}
		bd.emit(&Instruction{Op: lirtypes.Mov, Dst: bd.Fn.RetReg, Args: []Value{v}})
	}
	if r.FuncEnd {
		// Control falls straight into the epilogue block the caller (the
		// top-level Function lowering) opens right after this statement;
		// no explicit jump needed.
		return
	}
	if bd.Fn.Epilogue == nil {
		bd.Fn.Epilogue = bd.Fn.NewBlock()
	}
	bd.jmpTo(bd.Fn.Epilogue)
}
