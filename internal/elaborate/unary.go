package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

// elabUnary elaborates a unary expression. "&", "*", "!" and the inc/dec
// operators each need lvalue checks or rewriting beyond a plain type lookup,
// so they are split into their own helpers; the rest (- and ~) are numeric
// promotion plus constant folding.
func (el *Elaborator) elabUnary(e *ast.Expr, s *ast.Scope) *ast.Expr {
	u := e.Data.(*ast.Unary)
	switch u.Op {
	case "&":
		return el.elabAddrOf(e, s)
	case "*":
		return el.elabDeref(e, s)
	case "!":
		u.Sub = el.Expr(u.Sub, s)
		u.Sub = MakeCond(u.Sub)
		return MakeNotExpr(u.Sub)
	case "++", "--":
		return el.elabIncDec(e, s)
	case "-", "~":
		u.Sub = el.Expr(u.Sub, s)
		t := ctype.ArrayToPtr(u.Sub.Type)
		if !ctype.IsNumber(t) {
			el.Diag.Errorf(e.Tok, "operator %q requires a numeric operand", u.Op)
			return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
		}
		t = promote(t)
		u.Sub = el.castTo(u.Sub, t, u.Sub.Tok)
		e.Type = t
		if ast.IsConstant(u.Sub) {
			return el.foldUnaryConstant(e, u, t)
		}
		return e
	default:
		u.Sub = el.Expr(u.Sub, s)
		e.Type = u.Sub.Type
		return e
	}
}

func (el *Elaborator) foldUnaryConstant(e *ast.Expr, u *ast.Unary, t *ctype.Type) *ast.Expr {
	if ctype.IsFlonum(t) {
		v := asFloat(u.Sub)
		if u.Op == "-" {
			v = -v
		}
		lit := ast.NewFloatLit(e.Tok, v)
		lit.Type = t
		return lit
	}
	v := asInt(u.Sub)
	switch u.Op {
	case "-":
		v = -v
	case "~":
		v = ^v
	}
	v = ctype.WrapValue(v, ctype.TypeSize(t), t.Unsigned)
	lit := ast.NewIntLit(e.Tok, v)
	lit.Type = t
	return lit
}

// isLvalue reports whether e denotes an addressable location: a plain
// variable, a dereference, a member access, or an array index (itself
// desugared to `*(ptr + idx)` by the time this runs).
func isLvalue(e *ast.Expr) bool {
	switch e.Kind {
	case ast.ExprVar, ast.ExprMember:
		return true
	case ast.ExprUnary:
		return e.Data.(*ast.Unary).Op == "*"
	}
	return false
}

// elabAddrOf elaborates `&x`, checking that the operand is an lvalue and
// marking the referenced variable (if any) as having its address taken, so
// the register allocator never assigns it a register-only lifetime (spec
// 4.B / 4.F's "address taken" carve-out).
func (el *Elaborator) elabAddrOf(e *ast.Expr, s *ast.Scope) *ast.Expr {
	u := e.Data.(*ast.Unary)
	u.Sub = el.Expr(u.Sub, s)
	if !isLvalue(u.Sub) {
		el.Diag.Errorf(e.Tok, "operand of & must be an lvalue")
		return ast.Dummy(e.Tok, ctype.Ptrof(ctype.GetFixnumType(ctype.Int, false, 0)))
	}
	if v, ok := u.Sub.Data.(*ast.Var); ok && v.Info != nil {
		v.Info.Flags |= ast.FlagRefTaken
	}
	e.Type = ctype.Ptrof(u.Sub.Type)
	return e
}

// elabDeref elaborates `*p`.
func (el *Elaborator) elabDeref(e *ast.Expr, s *ast.Scope) *ast.Expr {
	u := e.Data.(*ast.Unary)
	u.Sub = el.Expr(u.Sub, s)
	t := ctype.ArrayToPtr(u.Sub.Type)
	if t == nil || t.Kind != ctype.Pointer {
		el.Diag.Errorf(e.Tok, "operand of * must be a pointer")
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	e.Type = t.Pointee
	return e
}

// elabIncDec rewrites `x++`/`++x`/`x--`/`--x` into an explicit read-modify-
// write over the operand, matching the compound-assignment rewrite so the
// IR builder only ever needs to lower plain reads, writes and arithmetic
// (spec 4.B names inc/dec as "sugar over compound assignment"). Bit-field
// and plain-lvalue operands both go through rewriteCompoundAssign, the
// same path a compound assignment takes.
func (el *Elaborator) elabIncDec(e *ast.Expr, s *ast.Scope) *ast.Expr {
	u := e.Data.(*ast.Unary)
	u.Sub = el.elabLvalueTarget(u.Sub, s)
	if !isLvalue(u.Sub) {
		el.Diag.Errorf(e.Tok, "operand of %s must be an lvalue", u.Op)
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	delta := int64(1)
	if u.Op == "--" {
		delta = -1
	}
	step := ast.NewIntLit(e.Tok, delta)
	step.Type = ctype.GetFixnumType(ctype.Int, false, 0)
	if u.Sub.Type.Kind == ctype.Pointer {
		step = scaleIndex(step, ctype.TypeSize(u.Sub.Type.Pointee))
	}
	result := el.rewriteCompoundAssign(e.Tok, u.Sub, "+", step, s)
	result.Type = u.Sub.Type
	return result
}
