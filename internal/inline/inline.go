// Package inline expands calls to functions declared `inline` (component D):
// eligibility checking, deep duplication of the callee's body with
// parameter/local renaming, control-structure rebinding (break, continue,
// case, goto/label), and recursive re-expansion of nested inlined calls.
package inline

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/diag"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Expander holds the state threaded through one translation unit's inline
// expansion: a diagnostic sink, a counter for unique clone names, and the
// set of functions currently being expanded (to reject self-recursive
// inlining rather than loop forever).
type Expander struct {
	Diag      *diag.Sink
	tmp       int
	expanding map[string]bool
}

// cloneCtx carries the per-clone renaming tables through one duplication
// pass: old VarInfo -> new VarInfo, and old label name -> new label name,
// so every reference inside the cloned body is rebound consistently.
type cloneCtx struct {
	vars   map[*ast.VarInfo]*ast.VarInfo
	labels map[string]string
}

// ---------------------
// ----- constants -----
// ---------------------

// maxInlineDepth bounds how deeply nested inlined calls are re-expanded.
// Direct and mutual recursion are already refused through the expanding
// set, so the cap only limits long chains of distinct inline functions.
const maxInlineDepth = 32

// ---------------------
// ----- functions -----
// ---------------------

// New returns an Expander reporting to d.
func New(d *diag.Sink) *Expander {
	return &Expander{expanding: make(map[string]bool, 8), Diag: d}
}

func (ex *Expander) fresh(prefix string) string {
	ex.tmp++
	return fmt.Sprintf("__%s%d", prefix, ex.tmp)
}

// Function expands every eligible call inside fn's body, in place.
func (ex *Expander) Function(fn *ast.Function) {
	ex.expanding[fn.Name] = true
	defer delete(ex.expanding, fn.Name)
	fn.Body = ex.stmt(fn.Body, 0)
}

// eligible reports whether a call to callee should be expanded: it must be
// marked inline, have a known body, and not already be mid-expansion on the
// current call-site chain (direct or mutual self-recursion).
func (ex *Expander) eligible(callee *ast.VarInfo, depth int) bool {
	if callee == nil || callee.Func == nil {
		return false
	}
	if !callee.HasFlag(ast.FlagInline) {
		return false
	}
	if ex.expanding[callee.Name] {
		return false
	}
	if depth >= maxInlineDepth {
		return false
	}
	return true
}

// stmt walks s, expanding eligible calls found inside expressions and
// recursing into every nested statement.
func (ex *Expander) stmt(s ast.Stmt, depth int) ast.Stmt {
	switch s.Kind {
	case ast.StmtExpr:
		es := s.Data.(*ast.ExprStmt)
		es.X = ex.expr(es.X, depth)
	case ast.StmtBlock:
		b := s.Data.(*ast.BlockStmt)
		for i := range b.List {
			b.List[i] = ex.stmt(b.List[i], depth)
		}
	case ast.StmtIf:
		i := s.Data.(*ast.IfStmt)
		i.Cond = ex.expr(i.Cond, depth)
		i.Then = ex.stmt(i.Then, depth)
		if i.HasElse {
			i.Else = ex.stmt(i.Else, depth)
		}
	case ast.StmtSwitch:
		sw := s.Data.(*ast.SwitchStmt)
		sw.Value = ex.expr(sw.Value, depth)
		sw.Body = ex.stmt(sw.Body, depth)
	case ast.StmtWhile, ast.StmtDoWhile:
		w := s.Data.(*ast.WhileStmt)
		w.Cond = ex.expr(w.Cond, depth)
		w.Body = ex.stmt(w.Body, depth)
	case ast.StmtFor:
		f := s.Data.(*ast.ForStmt)
		f.Pre = ex.expr(f.Pre, depth)
		f.Cond = ex.expr(f.Cond, depth)
		f.Post = ex.expr(f.Post, depth)
		f.Body = ex.stmt(f.Body, depth)
	case ast.StmtReturn:
		r := s.Data.(*ast.ReturnStmt)
		r.Value = ex.expr(r.Value, depth)
	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		l.Stmt = ex.stmt(l.Stmt, depth)
	}
	return s
}

// expr walks e looking for call sites, replacing each eligible one with an
// ExprInlinedCall; arguments and sub-expressions are always walked first so
// a call nested inside a call's own argument list is considered for
// expansion too.
func (ex *Expander) expr(e *ast.Expr, depth int) *ast.Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ast.ExprUnary:
		u := e.Data.(*ast.Unary)
		u.Sub = ex.expr(u.Sub, depth)
	case ast.ExprBinary:
		b := e.Data.(*ast.Binary)
		b.LHS = ex.expr(b.LHS, depth)
		b.RHS = ex.expr(b.RHS, depth)
	case ast.ExprTernary:
		t := e.Data.(*ast.Ternary)
		t.Cond = ex.expr(t.Cond, depth)
		t.TVal = ex.expr(t.TVal, depth)
		t.FVal = ex.expr(t.FVal, depth)
	case ast.ExprMember:
		m := e.Data.(*ast.Member)
		m.Target = ex.expr(m.Target, depth)
	case ast.ExprCall:
		c := e.Data.(*ast.Call)
		for i := range c.Args {
			c.Args[i] = ex.expr(c.Args[i], depth)
		}
		if callee := calleeVar(c.Callee); ex.eligible(callee, depth) {
			return ex.expandCall(e, c, callee, depth)
		}
	}
	return e
}

func calleeVar(e *ast.Expr) *ast.VarInfo {
	if e == nil || e.Kind != ast.ExprVar {
		return nil
	}
	return e.Data.(*ast.Var).Info
}

// expandCall duplicates callee.Func's body into a fresh scope, binds
// parameters to the call's (already-elaborated) argument expressions,
// rewrites every `return expr` into an assignment to a synthesized result
// variable, and recursively re-expands any inline call the duplicated body
// itself contains.
func (ex *Expander) expandCall(e *ast.Expr, c *ast.Call, callee *ast.VarInfo, depth int) *ast.Expr {
	fn := callee.Func
	ctx := &cloneCtx{vars: make(map[*ast.VarInfo]*ast.VarInfo, 8), labels: make(map[string]string, 4)}

	var resultVar *ast.VarInfo
	bodyScope := ast.NewScope(nil)

	voidReturn := fn.Type.Ret == nil || fn.Type.Ret.Kind == ctype.Void
	if !voidReturn {
		resultVar = bodyScope.Declare(&ast.VarInfo{Name: ex.fresh("inl_r"), Type: fn.Type.Ret})
	}
	endLabel := ex.fresh("inl_end")

	// Bind parameters: each becomes a fresh local initialized from the
	// call's matching argument, so argument side effects run exactly once
	// regardless of how many times the parameter is referenced in the body.
	var binders []ast.Stmt
	if len(fn.Scopes) > 0 {
		for i, p := range fn.Scopes[0].Vars {
			np := bodyScope.Declare(&ast.VarInfo{Name: ex.fresh("inl_p_" + p.Name), Type: p.Type, Flags: p.Flags})
			ctx.vars[p] = np
			if i < len(c.Args) {
				ref := ast.NewVar(e.Tok, np.Name)
				ref.Data.(*ast.Var).Info = np
				ref.Type = np.Type
				assign := ast.NewBinary(e.Tok, "=", ref, c.Args[i])
				assign.Type = np.Type
				binders = append(binders, ast.NewExprStmt(e.Tok, assign))
			}
		}
	}

	ex.expanding[fn.Name] = true
	clonedBody := ex.cloneStmt(fn.Body, ctx, bodyScope, resultVar, endLabel, nil)
	clonedBody = ex.stmt(clonedBody, depth+1)
	delete(ex.expanding, fn.Name)

	list := append(binders, clonedBody)
	list = append(list, ast.Stmt{Kind: ast.StmtLabel, Tok: e.Tok, Data: &ast.LabelStmt{Name: endLabel, Stmt: ast.NewNullStmt(e.Tok)}})
	block := ast.NewBlockStmt(e.Tok, bodyScope, list)

	out := &ast.Expr{
		Kind: ast.ExprInlinedCall,
		Tok:  e.Tok,
		Type: fn.Type.Ret,
		Data: &ast.InlinedCall{Name: fn.Name, Args: c.Args, Body: block, ResultVar: resultVar, EndLabel: endLabel},
	}
	return out
}
