package elaborate

import "github.com/ijsf/xcc/internal/ast"

// Function elaborates every expression reachable from fn's body in place,
// the entry point a driver calls once per function definition before
// internal/reach and internal/inline run, mirroring the Function-level
// shape those two packages expose. fn.Scopes[0] is the parameter scope
// bodies resolve names against at the top level.
func (el *Elaborator) Function(fn *ast.Function) {
	fn.Body = el.stmt(fn.Body, fn.Scopes[0])
}

// stmt elaborates every expression held directly by s, recursing into
// substatements with whichever scope they introduce.
func (el *Elaborator) stmt(s ast.Stmt, scope *ast.Scope) ast.Stmt {
	switch s.Kind {
	case ast.StmtExpr:
		x := s.Data.(*ast.ExprStmt)
		x.X = el.Expr(x.X, scope)
	case ast.StmtBlock:
		b := s.Data.(*ast.BlockStmt)
		for i := range b.List {
			b.List[i] = el.stmt(b.List[i], b.Scope)
		}
	case ast.StmtIf:
		i := s.Data.(*ast.IfStmt)
		i.Cond = MakeCond(el.Expr(i.Cond, scope))
		i.Then = el.stmt(i.Then, scope)
		if i.HasElse {
			i.Else = el.stmt(i.Else, scope)
		}
	case ast.StmtSwitch:
		sw := s.Data.(*ast.SwitchStmt)
		sw.Value = el.Expr(sw.Value, scope)
		sw.Body = el.stmt(sw.Body, scope)
	case ast.StmtWhile, ast.StmtDoWhile:
		w := s.Data.(*ast.WhileStmt)
		w.Cond = MakeCond(el.Expr(w.Cond, scope))
		w.Body = el.stmt(w.Body, scope)
	case ast.StmtFor:
		f := s.Data.(*ast.ForStmt)
		f.Pre = el.Expr(f.Pre, scope)
		if f.Cond != nil {
			f.Cond = MakeCond(el.Expr(f.Cond, scope))
		}
		f.Post = el.Expr(f.Post, scope)
		f.Body = el.stmt(f.Body, scope)
	case ast.StmtReturn:
		r := s.Data.(*ast.ReturnStmt)
		r.Value = el.Expr(r.Value, scope)
	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		l.Stmt = el.stmt(l.Stmt, scope)
	case ast.StmtCase:
		c := s.Data.(*ast.CaseStmt)
		if c.Value != nil {
			c.Value = el.Expr(c.Value, scope)
		}
	}
	return s
}
