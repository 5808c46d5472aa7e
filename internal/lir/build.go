// Package lir builds the low-level three-address IR (component E): a
// control-flow graph of basic blocks holding virtual-register
// instructions, lowered directly from the elaborated, inline-expanded AST.
package lir

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/diag"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Builder holds the state threaded through lowering one function: the
// module its output joins, the function and block currently being
// appended to, the active loop targets for break/continue, and the label
// table for user goto/label pairs. A Builder is used for exactly one
// function and then discarded, matching the single-threaded-per-function
// core mandated by spec section 5.
type Builder struct {
	Mod  *Module
	Fn   *Function
	Cur  *Block
	Diag *diag.Sink

	globals    map[*ast.VarInfo]*Global
	locals     map[*ast.VarInfo]*local
	labels     map[string]*Block
	loops      []loopCtx
	caseBlocks map[*ast.CaseStmt]*Block
}

// local records where a function-local variable lives before register
// allocation: Addr is the virtual register holding its address (every
// local gets a stack slot address up front; internal/regalloc is free to
// promote address-free locals to pure registers later, but the IR always
// goes through an address so FlagRefTaken locals need no special case).
type local struct {
	Addr *Register
	Typ  *ctype.Type
}

type loopCtx struct {
	breakTo    *Block
	continueTo *Block
}

// ---------------------
// ----- functions -----
// ---------------------

// NewBuilder returns a Builder appending to mod, reporting to d.
func NewBuilder(mod *Module, d *diag.Sink) *Builder {
	return &Builder{Mod: mod, Diag: d, globals: map[*ast.VarInfo]*Global{}}
}

// terminated reports whether b's last instruction already transfers
// control away, so the caller must open a new block rather than keep
// appending.
func terminated(b *Block) bool {
	if len(b.Instr) == 0 {
		return false
	}
	switch b.Instr[len(b.Instr)-1].Op {
	case lirtypes.Jmp:
		return b.Instr[len(b.Instr)-1].TargetF == nil
	case lirtypes.Tjmp:
		return true
	}
	return false
}

func (bd *Builder) emit(in *Instruction) *Instruction { return bd.Cur.emit(in) }

// jmpTo emits an unconditional jump from the current block to to, unless
// the current block is already terminated (e.g. by a prior return).
func (bd *Builder) jmpTo(to *Block) {
	if terminated(bd.Cur) {
		return
	}
	bd.Cur.addSucc(to)
	bd.emit(&Instruction{Op: lirtypes.Jmp, Target: to})
}

// openBlock switches the builder to append to b, first falling through to
// it from whatever block is currently open.
func (bd *Builder) openBlock(b *Block) {
	bd.jmpTo(b)
	bd.Cur = b
}

// Function lowers fn (whose body has already been elaborated, reachability
// checked, and inline-expanded) into a new lir.Function appended to the
// builder's module.
func (bd *Builder) Function(fn *ast.Function) *Function {
	lf, entry := bd.Mod.NewFunction(fn.Name, fn.Type)
	lf.Variadic = fn.Type.VaArgs
	bd.Fn = lf
	bd.Cur = entry
	bd.locals = map[*ast.VarInfo]*local{}
	bd.labels = map[string]*Block{}

	if len(fn.Scopes) > 0 {
		for _, p := range fn.Scopes[0].Vars {
			reg := lf.NewParam(p.Type)
			addr := lf.NewRegister(ctype.Ptrof(p.Type))
			bd.emit(&Instruction{Op: lirtypes.Bofs, Dst: addr})
			bd.emit(&Instruction{Op: lirtypes.Store, Args: []Value{addr, reg}})
			bd.locals[p] = &local{Addr: addr, Typ: p.Type}
		}
	}

	bd.stmt(fn.Body)

	if lf.Epilogue == nil {
		lf.Epilogue = lf.NewBlock()
	}
	bd.jmpTo(lf.Epilogue)
	bd.Cur = lf.Epilogue
	return lf
}

func (bd *Builder) declareLocal(v *ast.VarInfo) *local {
	if l, ok := bd.locals[v]; ok {
		return l
	}
	addr := bd.Fn.NewRegister(ctype.Ptrof(v.Type))
	bd.emit(&Instruction{Op: lirtypes.Bofs, Dst: addr})
	l := &local{Addr: addr, Typ: v.Type}
	bd.locals[v] = l
	return l
}

func (bd *Builder) labelBlock(name string) *Block {
	if b, ok := bd.labels[name]; ok {
		return b
	}
	b := bd.Fn.NewBlock()
	bd.labels[name] = b
	return b
}

func (bd *Builder) errorf(tok ast.Token, format string, args ...interface{}) {
	bd.Diag.Errorf(tok, format, args...)
}
