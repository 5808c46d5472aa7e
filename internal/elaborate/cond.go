package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

// MakeCond normalizes e into a value usable directly as a branch condition:
// comparisons and logical operators pass through unchanged (the IR builder
// lowers them straight to a conditional branch), and everything else gets
// wrapped in an implicit `!= 0` so the caller never needs to special-case
// "plain value used as a condition" versus "already a comparison".
func MakeCond(e *ast.Expr) *ast.Expr {
	if e == nil {
		return e
	}
	if e.Kind == ast.ExprBinary {
		op := e.Data.(*ast.Binary).Op
		if isComparisonOp(op) || op == "&&" || op == "||" {
			return e
		}
	}
	if e.Kind == ast.ExprUnary && e.Data.(*ast.Unary).Op == "!" {
		return e
	}
	zero := ast.NewIntLit(e.Tok, 0)
	zero.Type = e.Type
	cmp := ast.NewBinary(e.Tok, "!=", e, zero)
	cmp.Type = ctype.GetFixnumType(ctype.Int, false, 0)
	return cmp
}

// MakeNotExpr returns the logical negation of a MakeCond-normalized
// condition, pushing the `!` through comparisons (flipping the operator)
// and De Morgan's laws through && / || rather than leaving a `!` wrapper for
// the IR builder to special-case.
func MakeNotExpr(e *ast.Expr) *ast.Expr {
	if e.Kind == ast.ExprBinary {
		b := e.Data.(*ast.Binary)
		if neg, ok := negatedCmp[b.Op]; ok {
			out := ast.NewBinary(e.Tok, neg, b.LHS, b.RHS)
			out.Type = e.Type
			return out
		}
		if b.Op == "&&" {
			out := ast.NewBinary(e.Tok, "||", MakeNotExpr(b.LHS), MakeNotExpr(b.RHS))
			out.Type = e.Type
			return out
		}
		if b.Op == "||" {
			out := ast.NewBinary(e.Tok, "&&", MakeNotExpr(b.LHS), MakeNotExpr(b.RHS))
			out.Type = e.Type
			return out
		}
	}
	if e.Kind == ast.ExprUnary && e.Data.(*ast.Unary).Op == "!" {
		return e.Data.(*ast.Unary).Sub
	}
	not := ast.NewUnary(e.Tok, "!", e, false)
	not.Type = ctype.GetFixnumType(ctype.Int, false, 0)
	return not
}

var negatedCmp = map[string]string{
	"<": ">=", "<=": ">", ">": "<=", ">=": "<", "==": "!=", "!=": "==",
}
