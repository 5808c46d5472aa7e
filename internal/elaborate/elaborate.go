// Package elaborate turns parsed, pre-typed expressions into fully typed,
// canonicalized nodes ready for inline expansion and IR lowering: implicit
// conversions, constant folding with wrap-around arithmetic, bit-field
// lvalue decomposition, and rewriting of compound assignments and inc/dec
// into pure reads and writes.
package elaborate

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/diag"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Elaborator holds the state threaded explicitly through a single
// translation unit's elaboration, per spec section 5: a diagnostic sink and
// a counter of fresh temporary names. There is no global mutable state;
// every traversal borrows an *Elaborator rather than reaching for package
// globals.
type Elaborator struct {
	Diag *diag.Sink
	tmp  int
}

// ---------------------
// ----- constants -----
// ---------------------

const maxBitFieldWidthForInt = 32

// ---------------------
// ----- functions -----
// ---------------------

// New returns an Elaborator reporting to d.
func New(d *diag.Sink) *Elaborator {
	return &Elaborator{Diag: d}
}

// freshName returns a unique compiler-generated local variable name, used
// by the bit-field assignment rewrite (rewriteBitFieldAssign).
func (el *Elaborator) freshName(prefix string) string {
	el.tmp++
	return fmt.Sprintf("__%s%d", prefix, el.tmp)
}

// Expr elaborates e in scope s, returning the fully typed, canonicalized
// replacement. Elaboration never unwinds: on a semantic error, it records a
// diagnostic and returns a well-typed dummy so the caller's walk continues.
func (el *Elaborator) Expr(e *ast.Expr, s *ast.Scope) *ast.Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ast.ExprIntLit:
		if e.Type == nil {
			e.Type = ctype.GetFixnumType(ctype.Int, false, 0)
		}
		return e
	case ast.ExprFloatLit:
		if e.Type == nil {
			e.Type = ctype.NewFlonum(ctype.Double, 0)
		}
		return e
	case ast.ExprStringLit:
		return el.strToCharArrayVar(e, s)
	case ast.ExprVar:
		return el.elabVar(e, s)
	case ast.ExprUnary:
		return el.elabUnary(e, s)
	case ast.ExprBinary:
		return el.elabBinary(e, s)
	case ast.ExprTernary:
		return el.elabTernary(e, s)
	case ast.ExprMember:
		return el.elabMember(e, s)
	case ast.ExprCall:
		return el.elabCall(e, s)
	default:
		return e
	}
}

// strToCharArrayVar turns a string literal into a synthetic array variable
// reference, matching the elaborator's habit of doing this once up front so
// additive/comparison elaboration never special-cases ExprStringLit.
func (el *Elaborator) strToCharArrayVar(e *ast.Expr, s *ast.Scope) *ast.Expr {
	lit := e.Data.(*ast.StringLit)
	elemType := ctype.NewFixnum(ctype.Char, false, 0)
	e.Type = &ctype.Type{Kind: ctype.Array, Elem: elemType, Len: len(lit.Value) + 1}
	return e
}

func (el *Elaborator) elabVar(e *ast.Expr, s *ast.Scope) *ast.Expr {
	v := e.Data.(*ast.Var)
	info, owner := s.Lookup(v.Name)
	if info == nil {
		el.Diag.Errorf(e.Tok, "undeclared identifier %q", v.Name)
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	v.Info = info
	v.Scope = owner
	e.Type = info.Type
	return e
}

func (el *Elaborator) elabMember(e *ast.Expr, s *ast.Scope) *ast.Expr {
	m := e.Data.(*ast.Member)
	m.Target = el.Expr(m.Target, s)
	base := m.Target.Type
	if m.Arrow {
		if base == nil || base.Kind != ctype.Pointer {
			el.Diag.Errorf(e.Tok, "-> requires a pointer operand")
			return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
		}
		base = base.Pointee
	}
	if base == nil || base.Kind != ctype.Struct || base.Struct == nil || !base.Struct.Complete {
		el.Diag.Errorf(e.Tok, "member reference to incomplete or non-struct type")
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	member, ok := ctype.FindMember(base.Struct, m.Name)
	if !ok {
		el.Diag.Errorf(e.Tok, "no member named %q", m.Name)
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
	m.Info = member
	e.Type = member.Type
	if member.BitField {
		return bitFieldRead(e.Tok, m.Target, m.Arrow, member)
	}
	return e
}

// elabTernary implements the result-type rules from spec 4.B: void
// dominates; array/function decay both arms; pointer compatibility with
// void* deferring to the other side; otherwise the higher-ranked numeric
// type wins.
func (el *Elaborator) elabTernary(e *ast.Expr, s *ast.Scope) *ast.Expr {
	t := e.Data.(*ast.Ternary)
	t.Cond = el.Expr(t.Cond, s)
	t.Cond = MakeCond(t.Cond)
	t.TVal = el.Expr(t.TVal, s)
	t.FVal = el.Expr(t.FVal, s)

	lt := ctype.ArrayToPtr(t.TVal.Type)
	rt := ctype.ArrayToPtr(t.FVal.Type)

	switch {
	case lt.Kind == ctype.Void || rt.Kind == ctype.Void:
		e.Type = ctype.NewVoid(0)
	case lt.Kind == ctype.Pointer && rt.Kind == ctype.Pointer:
		if lt.Pointee.Kind == ctype.Void {
			e.Type = rt
		} else {
			e.Type = lt
		}
	case lt.Kind == ctype.Pointer && ast.IsZeroLiteral(t.FVal):
		e.Type = lt
	case rt.Kind == ctype.Pointer && ast.IsZeroLiteral(t.TVal):
		e.Type = rt
	case ctype.IsNumber(lt) && ctype.IsNumber(rt):
		e.Type = usualArithConv(lt, rt)
	default:
		e.Type = lt
	}

	if ast.IsConstant(t.Cond) {
		if t.Cond.Data.(*ast.IntLit).Value != 0 {
			return el.castTo(t.TVal, e.Type, e.Tok)
		}
		return el.castTo(t.FVal, e.Type, e.Tok)
	}
	return e
}

// castTo wraps x in an implicit cast to t if needed, folding when x is
// already a constant.
func (el *Elaborator) castTo(x *ast.Expr, t *ctype.Type, tok ast.Token) *ast.Expr {
	if x.Type != nil && ctype.SameType(x.Type, t) {
		return x
	}
	if ast.IsConstant(x) {
		return foldCastConstant(x, t)
	}
	cast := ast.NewUnary(tok, "(cast)", x, false)
	cast.Type = t
	return cast
}

func foldCastConstant(x *ast.Expr, t *ctype.Type) *ast.Expr {
	if ctype.IsFixnum(t) {
		var v int64
		switch x.Kind {
		case ast.ExprIntLit:
			v = x.Data.(*ast.IntLit).Value
		case ast.ExprFloatLit:
			v = int64(x.Data.(*ast.FloatLit).Value)
		}
		v = ctype.WrapValue(v, ctype.TypeSize(t), t.Unsigned)
		lit := ast.NewIntLit(x.Tok, v)
		lit.Type = t
		return lit
	}
	if ctype.IsFlonum(t) {
		var v float64
		switch x.Kind {
		case ast.ExprIntLit:
			v = float64(x.Data.(*ast.IntLit).Value)
		case ast.ExprFloatLit:
			v = x.Data.(*ast.FloatLit).Value
		}
		lit := ast.NewFloatLit(x.Tok, v)
		lit.Type = t
		return lit
	}
	return x
}
