package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

// elabCall elaborates a call expression: the callee decays to a function
// pointer, declared parameters convert their matching argument implicitly,
// and arguments beyond the declared parameter list (varargs, or calls
// through an undeclared/old-style prototype) get the default argument
// promotions: float widens to double, char/short widen to int.
func (el *Elaborator) elabCall(e *ast.Expr, s *ast.Scope) *ast.Expr {
	c := e.Data.(*ast.Call)
	c.Callee = el.Expr(c.Callee, s)

	funcType := calleeFuncType(c.Callee.Type)
	if funcType == nil {
		el.Diag.Errorf(e.Tok, "called object is not a function")
		for i, a := range c.Args {
			c.Args[i] = el.Expr(a, s)
		}
		return ast.Dummy(e.Tok, ctype.GetFixnumType(ctype.Int, false, 0))
	}

	if len(c.Args) < len(funcType.Params) || (!funcType.VaArgs && len(c.Args) > len(funcType.Params)) {
		el.Diag.Errorf(e.Tok, "wrong number of arguments: expected %d, got %d", len(funcType.Params), len(c.Args))
	}

	for i, a := range c.Args {
		a = el.Expr(a, s)
		a = &ast.Expr{Kind: a.Kind, Tok: a.Tok, Type: ctype.ArrayToPtr(ctype.FuncToPtr(a.Type)), Data: a.Data}
		if i < len(funcType.Params) {
			a = el.castTo(a, funcType.Params[i], a.Tok)
		} else {
			a = el.castTo(a, defaultArgPromote(a.Type), a.Tok)
		}
		c.Args[i] = a
	}

	e.Type = funcType.Ret
	return e
}

func calleeFuncType(t *ctype.Type) *ctype.Type {
	if t == nil {
		return nil
	}
	if t.Kind == ctype.Function {
		return t
	}
	if t.Kind == ctype.Pointer && t.Pointee != nil && t.Pointee.Kind == ctype.Function {
		return t.Pointee
	}
	return nil
}

// defaultArgPromote applies C's "default argument promotions" to a value
// passed where no declared parameter type is in scope (old-style
// prototypes and the variadic tail of a varargs call).
func defaultArgPromote(t *ctype.Type) *ctype.Type {
	if ctype.IsFlonum(t) && t.Flo == ctype.Float {
		return ctype.NewFlonum(ctype.Double, 0)
	}
	if ctype.IsFixnum(t) && (t.Fix == ctype.Char || t.Fix == ctype.Short) {
		return ctype.GetFixnumType(ctype.Int, t.Unsigned, 0)
	}
	return t
}
