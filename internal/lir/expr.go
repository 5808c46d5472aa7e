package lir

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// branch lowers cond directly into a conditional transfer to trueB/falseB,
// splitting basic blocks for && and || rather than materializing a 0/1
// value first — the short-circuit evaluation spec 4.E requires falls out
// naturally from recursing on each operand with its own pair of targets.
func (bd *Builder) branch(cond *ast.Expr, trueB, falseB *Block) {
	if cond.Kind == ast.ExprBinary {
		b := cond.Data.(*ast.Binary)
		switch b.Op {
		case "&&":
			mid := bd.Fn.NewBlock()
			bd.branch(b.LHS, mid, falseB)
			bd.Cur = mid
			bd.branch(b.RHS, trueB, falseB)
			return
		case "||":
			mid := bd.Fn.NewBlock()
			bd.branch(b.LHS, trueB, mid)
			bd.Cur = mid
			bd.branch(b.RHS, trueB, falseB)
			return
		}
		if cc, ok := lirtypes.CcFromOp(b.Op); ok {
			lv := bd.expr(b.LHS)
			rv := bd.expr(b.RHS)
			cmp := bd.Fn.NewRegister(ctype.GetFixnumType(ctype.Int, false, 0))
			bd.emit(&Instruction{Op: lirtypes.Cond, Dst: cmp, Cc: cc, Args: []Value{lv, rv}})
			bd.Cur.addSucc(trueB)
			bd.Cur.addSucc(falseB)
			bd.emit(&Instruction{Op: lirtypes.Jmp, Dst: cmp, Target: trueB, TargetF: falseB})
			return
		}
	}
	if cond.Kind == ast.ExprUnary && cond.Data.(*ast.Unary).Op == "!" {
		bd.branch(cond.Data.(*ast.Unary).Sub, falseB, trueB)
		return
	}
	// Plain scalar value used as a condition: compare against zero.
	v := bd.expr(cond)
	zero := &Constant{Typ: v.Type()}
	cmp := bd.Fn.NewRegister(ctype.GetFixnumType(ctype.Int, false, 0))
	bd.emit(&Instruction{Op: lirtypes.Cond, Dst: cmp, Cc: lirtypes.CcNe, Args: []Value{v, zero}})
	bd.Cur.addSucc(trueB)
	bd.Cur.addSucc(falseB)
	bd.emit(&Instruction{Op: lirtypes.Jmp, Dst: cmp, Target: trueB, TargetF: falseB})
}

// expr lowers e to the Value holding its result, emitting whatever
// instructions are needed along the way.
func (bd *Builder) expr(e *ast.Expr) Value {
	switch e.Kind {
	case ast.ExprIntLit:
		return &Constant{IVal: e.Data.(*ast.IntLit).Value, Typ: e.Type}
	case ast.ExprFloatLit:
		return &Constant{FVal: e.Data.(*ast.FloatLit).Value, Typ: e.Type}
	case ast.ExprVar:
		return bd.loadVar(e)
	case ast.ExprUnary:
		return bd.unary(e)
	case ast.ExprBinary:
		return bd.binary(e)
	case ast.ExprTernary:
		return bd.ternary(e)
	case ast.ExprMember:
		return bd.load(bd.addrOfMember(e), e.Type)
	case ast.ExprCall:
		return bd.call(e)
	case ast.ExprInlinedCall:
		return bd.inlinedCall(e)
	case ast.ExprStringLit:
		return bd.stringAddr(e)
	case ast.ExprCompoundLit:
		addr := bd.compoundLitAddr(e)
		if e.Type != nil && e.Type.Kind == ctype.Array {
			return addr
		}
		return bd.load(addr, e.Type)
	case ast.ExprBlock:
		return bd.blockExprValue(e.Data.(*ast.Block).Stmt)
	default:
		return &Constant{Typ: e.Type}
	}
}

func (bd *Builder) addrOf(e *ast.Expr) Value {
	switch e.Kind {
	case ast.ExprVar:
		return bd.varAddr(e.Data.(*ast.Var).Info)
	case ast.ExprMember:
		return bd.addrOfMember(e)
	case ast.ExprStringLit:
		return bd.stringAddr(e)
	case ast.ExprCompoundLit:
		return bd.compoundLitAddr(e)
	case ast.ExprUnary:
		u := e.Data.(*ast.Unary)
		if u.Op == "*" {
			return bd.expr(u.Sub)
		}
	}
	return bd.expr(e)
}

// stringAddr resolves a string literal's address through the module-wide
// string pool, which every function's Builder shares so repeated literals
// across the translation unit collapse to one rodata entry.
func (bd *Builder) stringAddr(e *ast.Expr) Value {
	lit := e.Data.(*ast.StringLit)
	g := bd.Mod.InternString(lit.Value)
	addr := bd.Fn.NewRegister(ctype.Ptrof(g.Type.Elem))
	bd.emit(&Instruction{Op: lirtypes.Sofs, Dst: addr, Sym: &GlobalRef{Name: g.Name, Typ: g.Type}})
	return addr
}

// compoundLitAddr lowers a (T){...} compound literal's initializer
// statements into its synthesized backing variable and returns that
// variable's address, so a compound literal lowers as an ordinary
// addressable local.
func (bd *Builder) compoundLitAddr(e *ast.Expr) Value {
	cl := e.Data.(*ast.CompoundLit)
	l := bd.declareLocal(cl.Var)
	for _, st := range cl.Inits {
		bd.stmt(st)
	}
	return l.Addr
}

// blockExprValue lowers a GNU statement expression: every statement but
// the last lowers normally, and the last — if it is an expression
// statement — supplies the value.
func (bd *Builder) blockExprValue(s ast.Stmt) Value {
	if s.Kind != ast.StmtBlock {
		bd.stmt(s)
		return &Constant{}
	}
	b := s.Data.(*ast.BlockStmt)
	if len(b.List) == 0 {
		return &Constant{}
	}
	for _, cs := range b.List[:len(b.List)-1] {
		bd.stmt(cs)
	}
	last := b.List[len(b.List)-1]
	if last.Kind == ast.StmtExpr {
		return bd.expr(last.Data.(*ast.ExprStmt).X)
	}
	bd.stmt(last)
	return &Constant{}
}

// varAddr resolves v's address: a function-local static redirects to its
// synthesized global twin, a parameter or ordinary local resolves through
// bd.locals, and anything else (a real file-scope global, or a static
// local not yet redirected because it has no twin) is addressed directly
// as a global symbol.
func (bd *Builder) varAddr(v *ast.VarInfo) Value {
	if v.HasFlag(ast.FlagStatic) && v.Global != nil {
		v = v.Global
	}
	if l, ok := bd.locals[v]; ok {
		return l.Addr
	}
	return bd.globalAddr(v)
}

func (bd *Builder) globalAddr(v *ast.VarInfo) Value {
	g, ok := bd.globals[v]
	if !ok {
		g = &Global{Name: v.Name, Type: v.Type, Static: v.HasFlag(ast.FlagStatic)}
		bd.globals[v] = g
		bd.Mod.Globals = append(bd.Mod.Globals, g)
	}
	addr := bd.Fn.NewRegister(ctype.Ptrof(v.Type))
	bd.emit(&Instruction{Op: lirtypes.Iofs, Dst: addr, Sym: &GlobalRef{Name: g.Name, Typ: v.Type}})
	return addr
}

func (bd *Builder) loadVar(e *ast.Expr) Value {
	v := e.Data.(*ast.Var).Info
	addr := bd.varAddr(v)
	if e.Type != nil && e.Type.Kind == ctype.Array {
		// An array used where a value is expected decays to the address of
		// its first element; there is nothing to load.
		return addr
	}
	return bd.load(addr, e.Type)
}

func (bd *Builder) load(addr Value, t *ctype.Type) Value {
	dst := bd.Fn.NewRegister(t)
	op := lirtypes.Load
	if ctype.TypeSize(t) < ctype.WordSize && ctype.IsFixnum(t) {
		op = lirtypes.LoadS
	}
	bd.emit(&Instruction{Op: op, Dst: dst, Args: []Value{addr}})
	return dst
}

func (bd *Builder) store(addr Value, v Value, t *ctype.Type) {
	op := lirtypes.Store
	if ctype.TypeSize(t) < ctype.WordSize && ctype.IsFixnum(t) {
		op = lirtypes.StoreS
	}
	bd.emit(&Instruction{Op: op, Args: []Value{addr, v}})
}

// addrOfMember computes the address of a (non-bit-field — those are
// decomposed to plain arithmetic by internal/elaborate before this runs)
// struct/union member access: the target's address plus the member's byte
// offset.
func (bd *Builder) addrOfMember(e *ast.Expr) Value {
	m := e.Data.(*ast.Member)
	var base Value
	if m.Arrow {
		base = bd.expr(m.Target)
	} else {
		base = bd.addrOf(m.Target)
	}
	if m.Info.Offset == 0 {
		return base
	}
	dst := bd.Fn.NewRegister(base.Type())
	bd.emit(&Instruction{Op: lirtypes.Add, Dst: dst, Args: []Value{base, &Constant{IVal: int64(m.Info.Offset), Typ: base.Type()}}})
	return dst
}
