package inline

import "github.com/ijsf/xcc/internal/ast"

// cloneScope returns a fresh child scope of parent holding renamed copies
// of every non-static variable in old; statically-declared locals keep
// their identity, matching the "static-to-global-twin redirection" rule
// from the supplemented inlining semantics, since a static local's storage
// must stay shared across every inlined copy of the function.
func (ex *Expander) cloneScope(old *ast.Scope, parent *ast.Scope, ctx *cloneCtx) *ast.Scope {
	ns := ast.NewScope(parent)
	for _, v := range old.Vars {
		if v.HasFlag(ast.FlagStatic) {
			ctx.vars[v] = v
			ns.Declare(v)
			continue
		}
		nv := &ast.VarInfo{Name: ex.fresh(v.Name), Type: v.Type, Flags: v.Flags, EnumVal: v.EnumVal, Global: v.Global}
		ctx.vars[v] = nv
		ns.Declare(nv)
	}
	return ns
}

// cloneStmt deep-duplicates s, renaming variable references through ctx,
// rewriting `return` into an assignment-to-resultVar-then-goto-endLabel
// pair, and rebinding `case`/`default` labels to curSwitch (the already
// partially-built clone of the nearest enclosing switch, nil outside one).
// curSwitch is threaded through loop bodies unchanged (not reset to nil) so
// Duff's-device-style case labels nested inside a loop still bind to the
// switch that lexically contains them.
func (ex *Expander) cloneStmt(s ast.Stmt, ctx *cloneCtx, parentScope *ast.Scope, resultVar *ast.VarInfo, endLabel string, curSwitch *ast.SwitchStmt) ast.Stmt {
	switch s.Kind {
	case ast.StmtBlock:
		b := s.Data.(*ast.BlockStmt)
		newScope := ex.cloneScope(b.Scope, parentScope, ctx)
		newList := make([]ast.Stmt, len(b.List))
		for i, cs := range b.List {
			newList[i] = ex.cloneStmt(cs, ctx, newScope, resultVar, endLabel, curSwitch)
		}
		return ast.NewBlockStmt(s.Tok, newScope, newList)

	case ast.StmtExpr:
		es := s.Data.(*ast.ExprStmt)
		return ast.NewExprStmt(s.Tok, ex.cloneExpr(es.X, ctx))

	case ast.StmtIf:
		i := s.Data.(*ast.IfStmt)
		ni := &ast.IfStmt{Cond: ex.cloneExpr(i.Cond, ctx), HasElse: i.HasElse}
		ni.Then = ex.cloneStmt(i.Then, ctx, parentScope, resultVar, endLabel, curSwitch)
		if i.HasElse {
			ni.Else = ex.cloneStmt(i.Else, ctx, parentScope, resultVar, endLabel, curSwitch)
		} else {
			ni.Else = ast.NewNullStmt(s.Tok)
		}
		return ast.Stmt{Kind: ast.StmtIf, Tok: s.Tok, Data: ni}

	case ast.StmtSwitch:
		sw := s.Data.(*ast.SwitchStmt)
		newSw := &ast.SwitchStmt{Value: ex.cloneExpr(sw.Value, ctx)}
		newSw.Body = ex.cloneStmt(sw.Body, ctx, parentScope, resultVar, endLabel, newSw)
		return ast.Stmt{Kind: ast.StmtSwitch, Tok: s.Tok, Data: newSw}

	case ast.StmtCase:
		cs := s.Data.(*ast.CaseStmt)
		var val *ast.Expr
		if cs.Value != nil {
			val = ex.cloneExpr(cs.Value, ctx)
		}
		ncs := &ast.CaseStmt{Switch: curSwitch, Value: val, Index: cs.Index}
		if curSwitch != nil {
			curSwitch.Cases = append(curSwitch.Cases, ncs)
			if val == nil {
				curSwitch.Default = ncs
			}
		}
		return ast.Stmt{Kind: ast.StmtCase, Tok: s.Tok, Data: ncs}

	case ast.StmtWhile, ast.StmtDoWhile:
		w := s.Data.(*ast.WhileStmt)
		nw := &ast.WhileStmt{Cond: ex.cloneExpr(w.Cond, ctx), DoWhile: w.DoWhile}
		nw.Body = ex.cloneStmt(w.Body, ctx, parentScope, resultVar, endLabel, curSwitch)
		return ast.Stmt{Kind: s.Kind, Tok: s.Tok, Data: nw}

	case ast.StmtFor:
		f := s.Data.(*ast.ForStmt)
		nf := &ast.ForStmt{Pre: ex.cloneExpr(f.Pre, ctx), Cond: ex.cloneExpr(f.Cond, ctx), Post: ex.cloneExpr(f.Post, ctx)}
		nf.Body = ex.cloneStmt(f.Body, ctx, parentScope, resultVar, endLabel, curSwitch)
		return ast.Stmt{Kind: ast.StmtFor, Tok: s.Tok, Data: nf}

	case ast.StmtReturn:
		return ex.cloneReturn(s, ctx, parentScope, resultVar, endLabel)

	case ast.StmtBreak:
		return ast.Stmt{Kind: ast.StmtBreak, Tok: s.Tok, Data: &ast.BreakStmt{}}

	case ast.StmtContinue:
		return ast.Stmt{Kind: ast.StmtContinue, Tok: s.Tok, Data: &ast.ContinueStmt{}}

	case ast.StmtGoto:
		g := s.Data.(*ast.GotoStmt)
		return ast.Stmt{Kind: ast.StmtGoto, Tok: s.Tok, Data: &ast.GotoStmt{Label: ex.cloneLabel(g.Label, ctx)}}

	case ast.StmtLabel:
		l := s.Data.(*ast.LabelStmt)
		nl := &ast.LabelStmt{Name: ex.cloneLabel(l.Name, ctx)}
		nl.Stmt = ex.cloneStmt(l.Stmt, ctx, parentScope, resultVar, endLabel, curSwitch)
		return ast.Stmt{Kind: ast.StmtLabel, Tok: s.Tok, Data: nl}

	case ast.StmtVarDecl:
		vd := s.Data.(*ast.VarDeclStmt)
		nv := make([]*ast.VarInfo, len(vd.Vars))
		for i, v := range vd.Vars {
			if mapped, ok := ctx.vars[v]; ok {
				nv[i] = mapped
			} else {
				nv[i] = v
			}
		}
		return ast.Stmt{Kind: ast.StmtVarDecl, Tok: s.Tok, Data: &ast.VarDeclStmt{Vars: nv}}

	case ast.StmtAsm:
		a := s.Data.(*ast.AsmStmt)
		return ast.Stmt{Kind: ast.StmtAsm, Tok: s.Tok, Data: &ast.AsmStmt{Text: a.Text}}

	default:
		return ast.Stmt{Kind: s.Kind, Tok: s.Tok}
	}
}

// cloneLabel returns the per-clone-instance name for a user-written goto
// label, allocating it on first reference so every goto/label pair in the
// cloned body still agrees after renaming.
func (ex *Expander) cloneLabel(name string, ctx *cloneCtx) string {
	if n, ok := ctx.labels[name]; ok {
		return n
	}
	n := ex.fresh("inl_lbl_" + name)
	ctx.labels[name] = n
	return n
}

func (ex *Expander) cloneReturn(s ast.Stmt, ctx *cloneCtx, parentScope *ast.Scope, resultVar *ast.VarInfo, endLabel string) ast.Stmt {
	r := s.Data.(*ast.ReturnStmt)
	gotoEnd := ast.Stmt{Kind: ast.StmtGoto, Tok: s.Tok, Data: &ast.GotoStmt{Label: endLabel}}
	if resultVar == nil || r.Value == nil {
		return ast.NewBlockStmt(s.Tok, ast.NewScope(parentScope), []ast.Stmt{gotoEnd})
	}
	ref := ast.NewVar(s.Tok, resultVar.Name)
	ref.Data.(*ast.Var).Info = resultVar
	ref.Type = resultVar.Type
	assign := ast.NewBinary(s.Tok, "=", ref, ex.cloneExpr(r.Value, ctx))
	assign.Type = resultVar.Type
	assignStmt := ast.NewExprStmt(s.Tok, assign)
	return ast.NewBlockStmt(s.Tok, ast.NewScope(parentScope), []ast.Stmt{assignStmt, gotoEnd})
}

// cloneExpr deep-duplicates e, rebinding any ast.Var whose VarInfo is
// present in ctx (a parameter or a non-static local of the function being
// inlined) to its per-clone copy; references to anything else (globals,
// statics, outer-scope variables) pass through unchanged.
func (ex *Expander) cloneExpr(e *ast.Expr, ctx *cloneCtx) *ast.Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ast.ExprIntLit, ast.ExprFloatLit, ast.ExprStringLit:
		return e

	case ast.ExprVar:
		v := e.Data.(*ast.Var)
		info := v.Info
		if mapped, ok := ctx.vars[v.Info]; ok {
			info = mapped
		}
		out := ast.NewVar(e.Tok, info.Name)
		out.Data.(*ast.Var).Info = info
		out.Data.(*ast.Var).Scope = v.Scope
		out.Type = e.Type
		return out

	case ast.ExprUnary:
		u := e.Data.(*ast.Unary)
		out := ast.NewUnary(e.Tok, u.Op, ex.cloneExpr(u.Sub, ctx), u.Postfix)
		out.Type = e.Type
		return out

	case ast.ExprBinary:
		b := e.Data.(*ast.Binary)
		out := ast.NewBinary(e.Tok, b.Op, ex.cloneExpr(b.LHS, ctx), ex.cloneExpr(b.RHS, ctx))
		out.Type = e.Type
		return out

	case ast.ExprTernary:
		t := e.Data.(*ast.Ternary)
		out := ast.NewTernary(e.Tok, ex.cloneExpr(t.Cond, ctx), ex.cloneExpr(t.TVal, ctx), ex.cloneExpr(t.FVal, ctx))
		out.Type = e.Type
		return out

	case ast.ExprMember:
		m := e.Data.(*ast.Member)
		out := ast.NewMember(e.Tok, ex.cloneExpr(m.Target, ctx), m.Name, m.Arrow)
		out.Data.(*ast.Member).Info = m.Info
		out.Type = e.Type
		return out

	case ast.ExprCall:
		c := e.Data.(*ast.Call)
		args := make([]*ast.Expr, len(c.Args))
		for i, a := range c.Args {
			args[i] = ex.cloneExpr(a, ctx)
		}
		out := ast.NewCall(e.Tok, ex.cloneExpr(c.Callee, ctx), args)
		out.Type = e.Type
		return out

	case ast.ExprInlinedCall:
		ic := e.Data.(*ast.InlinedCall)
		args := make([]*ast.Expr, len(ic.Args))
		for i, a := range ic.Args {
			args[i] = ex.cloneExpr(a, ctx)
		}
		out := &ast.Expr{Kind: ast.ExprInlinedCall, Tok: e.Tok, Type: e.Type, Data: &ast.InlinedCall{
			Name: ic.Name, Args: args, Body: ic.Body, ResultVar: ic.ResultVar, EndLabel: ic.EndLabel,
		}}
		return out

	default:
		return e
	}
}
