package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

// usualArithConv returns the result type of a numeric binop between a and b,
// per spec 4.B: flonum beats fixnum, wider flonum beats narrower, and among
// fixnums the higher rank (ties broken by unsigned) wins, with every fixnum
// operand promoted to at least `int`.
func usualArithConv(a, b *ctype.Type) *ctype.Type {
	a = promote(a)
	b = promote(b)
	if ctype.IsFlonum(a) || ctype.IsFlonum(b) {
		if ctype.IsFlonum(a) && ctype.IsFlonum(b) {
			if a.Flo >= b.Flo {
				return a
			}
			return b
		}
		if ctype.IsFlonum(a) {
			return a
		}
		return b
	}
	ra, rb := rankOf(a), rankOf(b)
	if ra >= rb {
		return a
	}
	return b
}

// promote applies integer promotion: char/short widen to int, everything
// else (including already-int-or-wider fixnums and all flonums) is
// unchanged.
func promote(t *ctype.Type) *ctype.Type {
	if ctype.IsFixnum(t) && (t.Fix == ctype.Char || t.Fix == ctype.Short) {
		return ctype.GetFixnumType(ctype.Int, false, 0)
	}
	return t
}

func rankOf(t *ctype.Type) int {
	k := t.Fix
	if k == ctype.Enum {
		k = ctype.Int
	}
	r := int(k) << 1
	if t.Unsigned {
		r |= 1
	}
	return r
}

// isComparisonOp reports whether op is one of the relational/equality
// operators that MakeCond/MakeNotExpr and the IR builder treat specially.
func isComparisonOp(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return true
	}
	return false
}

var swappedCmp = map[string]string{
	"<": ">", "<=": ">=", ">": "<", ">=": "<=", "==": "==", "!=": "!=",
}

// swapCmp returns the operator obtained by swapping lhs and rhs; nothing in
// the module calls it.
func swapCmp(op string) string { return swappedCmp[op] }

// elabBinary elaborates a binary expression: assignment is routed to the
// assignment rewriter, logical && / || to MakeCond-normalized short-circuit
// form, comparisons get the usual arithmetic conversions applied to their
// operands (not to the i1 result), and arithmetic/bitwise operators get
// pointer-arithmetic scaling or numeric promotion plus constant folding.
func (el *Elaborator) elabBinary(e *ast.Expr, s *ast.Scope) *ast.Expr {
	b := e.Data.(*ast.Binary)

	if b.Op == "=" || isCompoundAssignOp(b.Op) {
		return el.elabAssign(e, s)
	}

	b.LHS = el.Expr(b.LHS, s)
	b.RHS = el.Expr(b.RHS, s)

	if b.Op == "&&" || b.Op == "||" {
		b.LHS = MakeCond(b.LHS)
		b.RHS = MakeCond(b.RHS)
		e.Type = ctype.GetFixnumType(ctype.Int, false, 0)
		return e
	}

	lt := ctype.ArrayToPtr(b.LHS.Type)
	rt := ctype.ArrayToPtr(b.RHS.Type)

	if (b.Op == "+" || b.Op == "-") && (lt.Kind == ctype.Pointer || rt.Kind == ctype.Pointer) {
		return el.elabPointerArith(e, b, lt, rt)
	}

	if !ctype.IsNumber(lt) || !ctype.IsNumber(rt) {
		el.Diag.Errorf(e.Tok, "operator %q requires numeric operands", b.Op)
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}

	result := usualArithConv(lt, rt)
	b.LHS = el.castTo(b.LHS, result, b.LHS.Tok)
	b.RHS = el.castTo(b.RHS, result, b.RHS.Tok)

	if isComparisonOp(b.Op) {
		e.Type = ctype.GetFixnumType(ctype.Int, false, 0)
	} else {
		e.Type = result
	}

	if ast.IsConstant(b.LHS) && ast.IsConstant(b.RHS) {
		return el.foldBinaryConstant(e, b, result)
	}
	return e
}

// elabPointerArith implements pointer + integer, integer + pointer, and
// pointer - pointer, scaling the integer operand by the pointee size and
// (for pointer subtraction) dividing the byte difference back down.
func (el *Elaborator) elabPointerArith(e *ast.Expr, b *ast.Binary, lt, rt *ctype.Type) *ast.Expr {
	switch {
	case lt.Kind == ctype.Pointer && rt.Kind == ctype.Pointer && b.Op == "-":
		size := ctype.TypeSize(lt.Pointee)
		if size == 0 {
			size = 1
		}
		e.Type = ctype.GetFixnumType(ctype.Long, false, 0)
		diff := ast.NewBinary(e.Tok, "-", b.LHS, b.RHS)
		diff.Type = e.Type
		quot := ast.NewBinary(e.Tok, "/", diff, ast.NewIntLit(e.Tok, int64(size)))
		quot.Type = e.Type
		return quot
	case lt.Kind == ctype.Pointer:
		e.Type = lt
		b.RHS = scaleIndex(b.RHS, ctype.TypeSize(lt.Pointee))
		return e
	case rt.Kind == ctype.Pointer:
		e.Type = rt
		// Normalize to pointer-on-the-left so the IR builder has one shape.
		b.LHS, b.RHS = b.RHS, scaleIndex(b.LHS, ctype.TypeSize(rt.Pointee))
		return e
	default:
		el.Diag.Errorf(e.Tok, "invalid operands to pointer arithmetic")
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}
}

func scaleIndex(idx *ast.Expr, elemSize int) *ast.Expr {
	if elemSize <= 1 {
		return idx
	}
	if ast.IsConstant(idx) && idx.Kind == ast.ExprIntLit {
		lit := idx.Data.(*ast.IntLit)
		scaled := ast.NewIntLit(idx.Tok, lit.Value*int64(elemSize))
		scaled.Type = idx.Type
		return scaled
	}
	mul := ast.NewBinary(idx.Tok, "*", idx, ast.NewIntLit(idx.Tok, int64(elemSize)))
	mul.Type = idx.Type
	return mul
}

// foldBinaryConstant evaluates a binop between two literal operands at
// elaboration time, routing fixnum results through ctype.WrapValue so
// compile-time arithmetic observes the same wraparound as runtime
// arithmetic (spec 4.B's testable property).
func (el *Elaborator) foldBinaryConstant(e *ast.Expr, b *ast.Binary, result *ctype.Type) *ast.Expr {
	if ctype.IsFlonum(result) {
		lv := asFloat(b.LHS)
		rv := asFloat(b.RHS)
		v, isCmp, ok := evalFloat(b.Op, lv, rv)
		if !ok {
			return e
		}
		if isCmp {
			lit := ast.NewIntLit(e.Tok, boolToI64(v != 0))
			lit.Type = ctype.GetFixnumType(ctype.Int, false, 0)
			return lit
		}
		lit := ast.NewFloatLit(e.Tok, v)
		lit.Type = result
		return lit
	}

	lv := asInt(b.LHS)
	rv := asInt(b.RHS)
	v, isCmp, ok := evalInt(b.Op, lv, rv, result.Unsigned)
	if !ok {
		return e
	}
	if isCmp {
		lit := ast.NewIntLit(e.Tok, boolToI64(v != 0))
		lit.Type = ctype.GetFixnumType(ctype.Int, false, 0)
		return lit
	}
	v = ctype.WrapValue(v, ctype.TypeSize(result), result.Unsigned)
	lit := ast.NewIntLit(e.Tok, v)
	lit.Type = result
	return lit
}

func asInt(e *ast.Expr) int64 {
	switch e.Kind {
	case ast.ExprIntLit:
		return e.Data.(*ast.IntLit).Value
	case ast.ExprFloatLit:
		return int64(e.Data.(*ast.FloatLit).Value)
	}
	return 0
}

func asFloat(e *ast.Expr) float64 {
	switch e.Kind {
	case ast.ExprIntLit:
		return float64(e.Data.(*ast.IntLit).Value)
	case ast.ExprFloatLit:
		return e.Data.(*ast.FloatLit).Value
	}
	return 0
}

func boolToI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func evalInt(op string, l, r int64, unsigned bool) (result int64, isCmp, ok bool) {
	switch op {
	case "+":
		return l + r, false, true
	case "-":
		return l - r, false, true
	case "*":
		return l * r, false, true
	case "/":
		if r == 0 {
			return 0, false, false
		}
		return l / r, false, true
	case "%":
		if r == 0 {
			return 0, false, false
		}
		return l % r, false, true
	case "&":
		return l & r, false, true
	case "|":
		return l | r, false, true
	case "^":
		return l ^ r, false, true
	case "<<":
		return l << uint(r), false, true
	case ">>":
		if unsigned {
			return int64(uint64(l) >> uint(r)), false, true
		}
		return l >> uint(r), false, true
	case "<":
		return boolToI64(l < r), true, true
	case "<=":
		return boolToI64(l <= r), true, true
	case ">":
		return boolToI64(l > r), true, true
	case ">=":
		return boolToI64(l >= r), true, true
	case "==":
		return boolToI64(l == r), true, true
	case "!=":
		return boolToI64(l != r), true, true
	}
	return 0, false, false
}

func evalFloat(op string, l, r float64) (result float64, isCmp, ok bool) {
	switch op {
	case "+":
		return l + r, false, true
	case "-":
		return l - r, false, true
	case "*":
		return l * r, false, true
	case "/":
		if r == 0 {
			return 0, false, false
		}
		return l / r, false, true
	case "<":
		return boolToF(l < r), true, true
	case "<=":
		return boolToF(l <= r), true, true
	case ">":
		return boolToF(l > r), true, true
	case ">=":
		return boolToF(l >= r), true, true
	case "==":
		return boolToF(l == r), true, true
	case "!=":
		return boolToF(l != r), true, true
	}
	return 0, false, false
}

func boolToF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
