package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

var compoundOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
	"&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>",
}

func isCompoundAssignOp(op string) bool {
	_, ok := compoundOps[op]
	return ok
}

// elabAssign elaborates `lhs = rhs` and every compound-assignment variant,
// rewriting compound assignments into an explicit `lhs = lhs OP rhs` (with
// bit-field lvalues further decomposed by rewriteBitFieldAssign) per spec
// 4.B's "compound assignment is sugar" rule.
func (el *Elaborator) elabAssign(e *ast.Expr, s *ast.Scope) *ast.Expr {
	b := e.Data.(*ast.Binary)
	b.LHS = el.elabLvalueTarget(b.LHS, s)
	b.RHS = el.Expr(b.RHS, s)

	if !isLvalue(b.LHS) {
		el.Diag.Errorf(e.Tok, "left side of assignment must be an lvalue")
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}

	if op, ok := compoundOps[b.Op]; ok {
		return el.rewriteCompoundAssign(e.Tok, b.LHS, op, b.RHS, s)
	}

	return el.finishPlainAssign(e.Tok, b.LHS, b.RHS, s)
}

// elabLvalueTarget elaborates the left operand of an assignment without
// running the normal bit-field-read rewrite that Expr/elabMember applies,
// since an assignment target needs the member's address, not its decoded
// value.
func (el *Elaborator) elabLvalueTarget(e *ast.Expr, s *ast.Scope) *ast.Expr {
	if e.Kind == ast.ExprMember {
		m := e.Data.(*ast.Member)
		m.Target = el.Expr(m.Target, s)
		base := m.Target.Type
		if m.Arrow {
			if base != nil && base.Kind == ctype.Pointer {
				base = base.Pointee
			}
		}
		if base != nil && base.Kind == ctype.Struct && base.Struct != nil {
			if member, ok := ctype.FindMember(base.Struct, m.Name); ok {
				m.Info = member
				e.Type = member.Type
				return e
			}
		}
		el.Diag.Errorf(e.Tok, "no member named %q", m.Name)
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	return el.Expr(e, s)
}

// finishPlainAssign converts rhs to lhs's type (inserting an implicit cast,
// or decomposing through rewriteBitFieldAssign when lhs names a bit field)
// and returns the assignment expression, typed as lhs's type per C's
// assignment-expression-value rule.
func (el *Elaborator) finishPlainAssign(tok ast.Token, lhs, rhs *ast.Expr, s *ast.Scope) *ast.Expr {
	if lhs.Kind == ast.ExprMember {
		m := lhs.Data.(*ast.Member)
		if m.Info.BitField {
			converted := el.castTo(rhs, m.Info.Type, rhs.Tok)
			return el.rewriteBitFieldAssign(tok, m.Target, m.Arrow, m.Info, converted, s)
		}
	}
	rhs = el.castTo(rhs, lhs.Type, rhs.Tok)
	out := ast.NewBinary(tok, "=", lhs, rhs)
	out.Type = lhs.Type
	return out
}

// rewriteCompoundAssign builds `lhs = lhs op rhs`, elaborating the
// synthesized binary combine (so numeric promotion and pointer-scaling
// apply exactly as they would for a standalone `lhs op rhs`) before handing
// the result to finishPlainAssign.
func (el *Elaborator) rewriteCompoundAssign(tok ast.Token, lhs *ast.Expr, op string, rhs *ast.Expr, s *ast.Scope) *ast.Expr {
	combine := ast.NewBinary(tok, op, lhs, rhs)
	combine = el.elabBinary(combine, s)
	return el.finishPlainAssign(tok, lhs, combine, s)
}
