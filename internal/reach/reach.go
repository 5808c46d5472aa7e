// Package reach computes statement reachability (spec component C): which
// statements can be reached by fall-through from the one before them, and
// whether every path through a function ends in a return, marking the
// function's final executed return so the IR builder (internal/lir) can
// skip a redundant epilogue jump.
package reach

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/diag"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Checker threads a diagnostic sink through the reachability walk; it holds
// no other state, matching the single-threaded-per-TU model.
type Checker struct {
	Diag *diag.Sink
}

// ---------------------
// ----- functions -----
// ---------------------

// New returns a Checker reporting to d.
func New(d *diag.Sink) *Checker {
	return &Checker{Diag: d}
}

// Function walks fn's body, setting each statement's Reach bits and
// reporting unreachable-statement warnings, then marks the function-ending
// return (if any) via checkFuncEnd.
func (c *Checker) Function(fn *ast.Function) {
	fn.Body = c.stmt(fn.Body)
	c.checkFuncEnd(&fn.Body)
}

// stmt computes the Reach bits of s (and, for compound statements,
// recurses into its children), returning s with Reach filled in.
func (c *Checker) stmt(s ast.Stmt) ast.Stmt {
	switch s.Kind {
	case ast.StmtBlock:
		return c.block(s)
	case ast.StmtIf:
		return c.ifStmt(s)
	case ast.StmtSwitch:
		return c.switchStmt(s)
	case ast.StmtWhile, ast.StmtDoWhile:
		return c.whileStmt(s)
	case ast.StmtFor:
		return c.forStmt(s)
	case ast.StmtReturn:
		s.Reach = ast.ReachStop | ast.ReachReturn
		return s
	case ast.StmtBreak, ast.StmtContinue, ast.StmtGoto:
		s.Reach = ast.ReachStop
		return s
	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		l.Stmt = c.stmt(l.Stmt)
		s.Reach = l.Stmt.Reach
		return s
	case ast.StmtCase:
		// A case label's reachability is governed by the switch body's
		// block-level fall-through tracking, not the label itself.
		return s
	default:
		// Expression/decl/asm/null statements simply fall through.
		return s
	}
}

// block walks a statement list, warning once a statement becomes
// unreachable and carving out labels and case/default arms, which can be
// jumped to even when fall-through from the previous statement is
// impossible.
func (c *Checker) block(s ast.Stmt) ast.Stmt {
	b := s.Data.(*ast.BlockStmt)
	stopped := false
	var stopTok ast.Token
	for i := range b.List {
		if stopped && !isJumpTarget(b.List[i]) {
			c.Diag.Warnf(b.List[i].Tok, "unreachable statement")
			// Only warn once per unreachable run.
			stopped = false
		}
		b.List[i] = c.stmt(b.List[i])
		if ast.HasReach(b.List[i], ast.ReachStop) {
			stopped = true
			stopTok = b.List[i].Tok
		} else {
			stopped = false
		}
	}
	_ = stopTok
	if len(b.List) > 0 {
		s.Reach = b.List[len(b.List)-1].Reach
	}
	return s
}

// isJumpTarget reports whether s can be reached other than by fall-through:
// a label, a case/default arm, matching the carve-outs spec 4.C names for
// the unreachable-statement warning.
func isJumpTarget(s ast.Stmt) bool {
	return s.Kind == ast.StmtLabel || s.Kind == ast.StmtCase
}

func (c *Checker) ifStmt(s ast.Stmt) ast.Stmt {
	i := s.Data.(*ast.IfStmt)
	i.Then = c.stmt(i.Then)
	if i.HasElse {
		i.Else = c.stmt(i.Else)
		if ast.HasReach(i.Then, ast.ReachReturn) && ast.HasReach(i.Else, ast.ReachReturn) {
			s.Reach = ast.ReachStop | ast.ReachReturn
		} else if ast.HasReach(i.Then, ast.ReachStop) && ast.HasReach(i.Else, ast.ReachStop) {
			s.Reach = ast.ReachStop
		}
	}
	// No else: control can always fall through past the if.
	return s
}

// switchStmt treats a switch as reachable-after unless it has a `default`
// case and every case arm stops (no implicit fall-through-out path), since
// a switch with no default can always be skipped entirely.
func (c *Checker) switchStmt(s ast.Stmt) ast.Stmt {
	sw := s.Data.(*ast.SwitchStmt)
	sw.Body = c.stmt(sw.Body)
	if sw.Default == nil {
		return s
	}
	if ast.HasReach(sw.Body, ast.ReachStop) && !containsBreak(sw.Body) {
		s.Reach = ast.ReachStop
		if ast.HasReach(sw.Body, ast.ReachReturn) {
			s.Reach |= ast.ReachReturn
		}
	}
	return s
}

// whileStmt marks an infinite `while (1) { ... }`/`for (;;)` loop with no
// reachable `break` as ReachStop, since control can only leave through a
// return picked up elsewhere in the body; a finite or breakable loop always
// falls through to the statement after it.
func (c *Checker) whileStmt(s ast.Stmt) ast.Stmt {
	w := s.Data.(*ast.WhileStmt)
	w.Body = c.stmt(w.Body)
	if isAlwaysTrue(w.Cond) && !containsBreak(w.Body) {
		s.Reach = ast.ReachStop
	}
	return s
}

func (c *Checker) forStmt(s ast.Stmt) ast.Stmt {
	f := s.Data.(*ast.ForStmt)
	f.Body = c.stmt(f.Body)
	if (f.Cond == nil || isAlwaysTrue(f.Cond)) && !containsBreak(f.Body) {
		s.Reach = ast.ReachStop
	}
	return s
}

func isAlwaysTrue(cond *ast.Expr) bool {
	if cond == nil {
		return true
	}
	if cond.Kind == ast.ExprIntLit {
		return cond.Data.(*ast.IntLit).Value != 0
	}
	return false
}

// containsBreak reports whether s contains a `break` that targets s itself
// (i.e. does not descend into a nested loop/switch, which would own that
// break instead).
func containsBreak(s ast.Stmt) bool {
	switch s.Kind {
	case ast.StmtBreak:
		return true
	case ast.StmtBlock:
		for _, c := range s.Data.(*ast.BlockStmt).List {
			if containsBreak(c) {
				return true
			}
		}
		return false
	case ast.StmtIf:
		i := s.Data.(*ast.IfStmt)
		return containsBreak(i.Then) || (i.HasElse && containsBreak(i.Else))
	case ast.StmtLabel:
		return containsBreak(s.Data.(*ast.LabelStmt).Stmt)
	case ast.StmtWhile, ast.StmtDoWhile, ast.StmtFor, ast.StmtSwitch:
		// Breaks inside a nested loop or switch belong to that construct.
		return false
	default:
		return false
	}
}

// checkFuncEnd marks the ReturnStmt that is the last statement actually
// executed in the function body (the last statement of the outermost
// block, if it is itself a return) so the IR builder (internal/lir) can
// omit a fall-through jump to the epilogue for it.
func (c *Checker) checkFuncEnd(body *ast.Stmt) {
	last := lastStmt(*body)
	if last != nil && last.Kind == ast.StmtReturn {
		last.Data.(*ast.ReturnStmt).FuncEnd = true
	}
}

func lastStmt(s ast.Stmt) *ast.Stmt {
	switch s.Kind {
	case ast.StmtBlock:
		b := s.Data.(*ast.BlockStmt)
		if len(b.List) == 0 {
			return nil
		}
		return lastStmt(b.List[len(b.List)-1])
	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		return lastStmt(l.Stmt)
	default:
		return &s
	}
}
