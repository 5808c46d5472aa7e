package ast

import "github.com/ijsf/xcc/internal/ctype"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ExprKind differentiates the variants of Expr.
type ExprKind int

const (
	ExprIntLit ExprKind = iota
	ExprFloatLit
	ExprStringLit
	ExprVar
	ExprUnary
	ExprBinary
	ExprTernary
	ExprMember
	ExprCall
	ExprCompoundLit
	ExprInlinedCall
	ExprBlock
)

// Expr is a typed expression node: a tagged variant with a result Type, an
// originating Token for diagnostics, and a kind-specific Data payload.
// Every node has a non-nil Type once elaboration has run; before that,
// Type may be nil to mark "not yet elaborated".
type Expr struct {
	Kind ExprKind
	Tok  Token
	Type *ctype.Type
	Data interface{}
}

// IntLit is the payload of an ExprIntLit node.
type IntLit struct{ Value int64 }

// FloatLit is the payload of an ExprFloatLit node.
type FloatLit struct{ Value float64 }

// StringLit is the payload of an ExprStringLit node.
type StringLit struct{ Value string }

// Var is the payload of an ExprVar node: a reference to a variable by name,
// resolved to the VarInfo that owns it and the Scope it was found in.
type Var struct {
	Name  string
	Info  *VarInfo
	Scope *Scope
}

// Unary is the payload of an ExprUnary node.
type Unary struct {
	Op  string // one of "-", "~", "!", "&", "*", "++", "--" (prefix/postfix distinguished by Postfix).
	Sub *Expr
	Postfix bool
}

// Binary is the payload of an ExprBinary node.
type Binary struct {
	Op  string
	LHS *Expr
	RHS *Expr
}

// Ternary is the payload of an ExprTernary node.
type Ternary struct {
	Cond *Expr
	TVal *Expr
	FVal *Expr
}

// Member is the payload of an ExprMember node: target.Name or target->Name.
type Member struct {
	Target *Expr
	Name   string
	Arrow  bool
	Info   ctype.Member // resolved member, filled in by the elaborator.
}

// Call is the payload of an ExprCall node.
type Call struct {
	Callee *Expr
	Args   []*Expr
}

// CompoundLit is the payload of an ExprCompoundLit node: `(T){...}`, lowered
// to a synthetic local variable plus the statements that initialize it.
type CompoundLit struct {
	Var   *VarInfo
	Inits []Stmt
}

// InlinedCall is the payload of an ExprInlinedCall node produced by
// internal/inline: the call site is replaced by the callee's name (for
// diagnostics), the evaluated arguments, and the already-duplicated body.
// ResultVar names the synthesized local that every cloned `return` was
// rewritten to assign; it is nil when the callee returns void, in which
// case the ExprInlinedCall's own Type is void and it is only ever used in
// statement context.
type InlinedCall struct {
	Name      string
	Args      []*Expr
	Body      Stmt
	ResultVar *VarInfo
	EndLabel  string
}

// Block is the payload of an ExprBlock node: a statement used in
// expression position (a GNU statement-expression), whose Type is the
// type of the last expression statement in the block.
type Block struct {
	Stmt Stmt
}

// ---------------------
// ----- functions -----
// ---------------------

// NewIntLit returns an untyped integer literal node.
func NewIntLit(tok Token, v int64) *Expr {
	return &Expr{Kind: ExprIntLit, Tok: tok, Data: &IntLit{Value: v}}
}

// NewFloatLit returns an untyped floating literal node.
func NewFloatLit(tok Token, v float64) *Expr {
	return &Expr{Kind: ExprFloatLit, Tok: tok, Data: &FloatLit{Value: v}}
}

// NewStringLit returns an untyped string literal node.
func NewStringLit(tok Token, v string) *Expr {
	return &Expr{Kind: ExprStringLit, Tok: tok, Data: &StringLit{Value: v}}
}

// NewVar returns an untyped variable reference node.
func NewVar(tok Token, name string) *Expr {
	return &Expr{Kind: ExprVar, Tok: tok, Data: &Var{Name: name}}
}

// NewUnary returns an untyped unary node.
func NewUnary(tok Token, op string, sub *Expr, postfix bool) *Expr {
	return &Expr{Kind: ExprUnary, Tok: tok, Data: &Unary{Op: op, Sub: sub, Postfix: postfix}}
}

// NewBinary returns an untyped binary node.
func NewBinary(tok Token, op string, lhs, rhs *Expr) *Expr {
	return &Expr{Kind: ExprBinary, Tok: tok, Data: &Binary{Op: op, LHS: lhs, RHS: rhs}}
}

// NewTernary returns an untyped ternary node.
func NewTernary(tok Token, cond, tval, fval *Expr) *Expr {
	return &Expr{Kind: ExprTernary, Tok: tok, Data: &Ternary{Cond: cond, TVal: tval, FVal: fval}}
}

// NewMember returns an untyped member-access node.
func NewMember(tok Token, target *Expr, name string, arrow bool) *Expr {
	return &Expr{Kind: ExprMember, Tok: tok, Data: &Member{Target: target, Name: name, Arrow: arrow}}
}

// NewCall returns an untyped call node.
func NewCall(tok Token, callee *Expr, args []*Expr) *Expr {
	return &Expr{Kind: ExprCall, Tok: tok, Data: &Call{Callee: callee, Args: args}}
}

// Dummy returns a well-typed placeholder node used to replace the offending
// expression after a non-fatal diagnostic, so later passes keep walking.
func Dummy(tok Token, t *ctype.Type) *Expr {
	return &Expr{Kind: ExprIntLit, Tok: tok, Type: t, Data: &IntLit{Value: 0}}
}

// IsConstant reports whether e is a literal after elaboration (constant
// folding replaces foldable subtrees with literals, so no recursive walk
// is needed once elaboration has run to completion on e).
func IsConstant(e *Expr) bool {
	return e != nil && (e.Kind == ExprIntLit || e.Kind == ExprFloatLit)
}

// IsZeroLiteral reports whether e is the integer constant zero, used by the
// pointer-comparison and pointer-cast legality rules.
func IsZeroLiteral(e *Expr) bool {
	if e == nil || e.Kind != ExprIntLit {
		return false
	}
	return e.Data.(*IntLit).Value == 0
}
