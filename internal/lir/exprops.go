package lir

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

var binOpcode = map[string]lirtypes.Op{
	"+": lirtypes.Add, "-": lirtypes.Sub, "*": lirtypes.Mul, "/": lirtypes.Div, "%": lirtypes.Mod,
	"&": lirtypes.BitAnd, "|": lirtypes.BitOr, "^": lirtypes.BitXor,
	"<<": lirtypes.Lshift, ">>": lirtypes.Rshift,
}

// materializeBool lowers a condition to a 0/1 value outside branch context
// (e.g. `int x = a < b;`). The IR has no phi node, so the two arms store
// through a stack-addressed temporary rather than joining registers
// directly — consistent with every other local in this IR going through
// an address (see the local type and Builder.locals).
func (bd *Builder) materializeBool(cond *ast.Expr) Value {
	t := ctype.GetFixnumType(ctype.Int, false, 0)
	addr := bd.Fn.NewRegister(ctype.Ptrof(t))
	bd.emit(&Instruction{Op: lirtypes.Bofs, Dst: addr})

	trueB := bd.Fn.NewBlock()
	falseB := bd.Fn.NewBlock()
	join := bd.Fn.NewBlock()

	bd.branch(cond, trueB, falseB)

	bd.Cur = trueB
	bd.store(addr, &Constant{IVal: 1, Typ: t}, t)
	bd.jmpTo(join)

	bd.Cur = falseB
	bd.store(addr, &Constant{IVal: 0, Typ: t}, t)
	bd.jmpTo(join)

	bd.Cur = join
	return bd.load(addr, t)
}

func (bd *Builder) binary(e *ast.Expr) Value {
	b := e.Data.(*ast.Binary)

	if b.Op == "," {
		bd.expr(b.LHS)
		return bd.expr(b.RHS)
	}
	if b.Op == "=" {
		return bd.assign(b.LHS, b.RHS)
	}
	if b.Op == "&&" || b.Op == "||" {
		return bd.materializeBool(e)
	}
	if _, ok := lirtypes.CcFromOp(b.Op); ok {
		return bd.materializeBool(e)
	}

	lv := bd.expr(b.LHS)
	rv := bd.expr(b.RHS)
	dst := bd.Fn.NewRegister(e.Type)
	bd.emit(&Instruction{Op: binOpcode[b.Op], Dst: dst, Args: []Value{lv, rv}})
	return dst
}

func (bd *Builder) assign(lhs, rhs *ast.Expr) Value {
	rv := bd.expr(rhs)
	addr := bd.addrOf(lhs)
	bd.store(addr, rv, lhs.Type)
	return rv
}

func (bd *Builder) unary(e *ast.Expr) Value {
	u := e.Data.(*ast.Unary)
	switch u.Op {
	case "&":
		return bd.addrOf(u.Sub)
	case "*":
		addr := bd.expr(u.Sub)
		return bd.load(addr, e.Type)
	case "!":
		return bd.materializeBool(e)
	case "(cast)":
		src := bd.expr(u.Sub)
		if src.Type() != nil && sameKindAndWidth(src.Type(), e.Type) {
			return src
		}
		dst := bd.Fn.NewRegister(e.Type)
		bd.emit(&Instruction{Op: lirtypes.Cast, Dst: dst, Args: []Value{src}})
		return dst
	case "-":
		sv := bd.expr(u.Sub)
		dst := bd.Fn.NewRegister(e.Type)
		bd.emit(&Instruction{Op: lirtypes.Neg, Dst: dst, Args: []Value{sv}})
		return dst
	case "~":
		sv := bd.expr(u.Sub)
		dst := bd.Fn.NewRegister(e.Type)
		bd.emit(&Instruction{Op: lirtypes.BitNot, Dst: dst, Args: []Value{sv}})
		return dst
	default:
		return bd.expr(u.Sub)
	}
}

func sameKindAndWidth(a, b *ctype.Type) bool {
	return a.Kind == b.Kind && ctype.TypeSize(a) == ctype.TypeSize(b) && a.Unsigned == b.Unsigned
}

func (bd *Builder) ternary(e *ast.Expr) Value {
	t := e.Data.(*ast.Ternary)
	addr := bd.Fn.NewRegister(ctype.Ptrof(e.Type))
	bd.emit(&Instruction{Op: lirtypes.Bofs, Dst: addr})

	trueB := bd.Fn.NewBlock()
	falseB := bd.Fn.NewBlock()
	join := bd.Fn.NewBlock()

	bd.branch(t.Cond, trueB, falseB)

	bd.Cur = trueB
	bd.store(addr, bd.expr(t.TVal), e.Type)
	bd.jmpTo(join)

	bd.Cur = falseB
	bd.store(addr, bd.expr(t.FVal), e.Type)
	bd.jmpTo(join)

	bd.Cur = join
	return bd.load(addr, e.Type)
}

// call lowers a direct or indirect call: Precall opens the sequence,
// Pusharg marshals each argument in left-to-right order, Call transfers
// control, and Result fetches the return value (skipped for a void call).
func (bd *Builder) call(e *ast.Expr) Value {
	c := e.Data.(*ast.Call)
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = bd.expr(a)
	}

	var callee Value
	if v, ok := c.Callee.Data.(*ast.Var); ok && v.Info != nil && v.Info.Func != nil {
		callee = &GlobalRef{Name: v.Info.Name, Typ: v.Info.Type}
	} else {
		callee = bd.expr(c.Callee)
	}

	bd.emit(&Instruction{Op: lirtypes.Precall, NArgs: len(args)})
	for _, a := range args {
		bd.emit(&Instruction{Op: lirtypes.Pusharg, Args: []Value{a}})
	}
	bd.emit(&Instruction{Op: lirtypes.Call, Func: callee, NArgs: len(args)})

	if e.Type == nil || e.Type.Kind == ctype.Void {
		return &Constant{Typ: e.Type}
	}
	dst := bd.Fn.NewRegister(e.Type)
	bd.emit(&Instruction{Op: lirtypes.Result, Dst: dst})
	return dst
}

// inlinedCall lowers the already-duplicated callee body in place and
// returns the synthesized result variable's value, matching an ordinary
// call's value-producing shape so the rest of the expression lowerer never
// needs to know a call site was inlined.
func (bd *Builder) inlinedCall(e *ast.Expr) Value {
	ic := e.Data.(*ast.InlinedCall)
	var resultAddr *local
	if ic.ResultVar != nil {
		resultAddr = bd.declareLocal(ic.ResultVar)
	}
	bd.stmt(ic.Body)
	if resultAddr == nil {
		return &Constant{Typ: e.Type}
	}
	return bd.load(resultAddr.Addr, ic.ResultVar.Type)
}
