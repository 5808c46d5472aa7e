// Package types defines the opcode set and printable names of the
// low-level three-address IR built by internal/lir (component E).
package types

// Op is a low-level IR opcode. The set matches exactly what the target
// lowerer (component G) switches on: no opcode exists here that isn't
// lowered by some backend, and no backend opcode-handler case exists for
// an opcode missing from this list.
type Op int

const (
	Bofs   Op = iota // address of a local/parameter (base + frame offset)
	Iofs              // address of a global/static (instruction-relative offset)
	Sofs              // address of a string/rodata constant
	Load              // load a full-width value through a pointer
	LoadS             // load a sub-word value through a pointer (size-and-sign qualified)
	Store             // store a full-width value through a pointer
	StoreS            // store a sub-word value through a pointer
	Add
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Lshift
	Rshift
	Neg
	BitNot
	Cond    // compare two values, result usable by Jmp's condition operand
	Jmp     // unconditional or conditional branch to a Block
	Tjmp    // indirect branch through a rodata jump table
	Precall // begin a call sequence, reserving outgoing-argument space
	Pusharg // marshal one argument into the outgoing-argument area
	Call    // call a function value
	Result  // fetch the just-completed call's return value
	Subsp   // adjust the stack pointer (frame setup/teardown)
	Cast    // convert between fixnum/flonum representations or widths
	Mov     // register-to-register or immediate-to-register move
	Asm     // raw inline assembly, passed through verbatim
)

var names = [...]string{
	Bofs: "bofs", Iofs: "iofs", Sofs: "sofs",
	Load: "load", LoadS: "load-s", Store: "store", StoreS: "store-s",
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Mod: "mod",
	BitAnd: "bitand", BitOr: "bitor", BitXor: "bitxor",
	Lshift: "lshift", Rshift: "rshift", Neg: "neg", BitNot: "bitnot",
	Cond: "cond", Jmp: "jmp", Tjmp: "tjmp",
	Precall: "precall", Pusharg: "pusharg", Call: "call", Result: "result",
	Subsp: "subsp", Cast: "cast", Mov: "mov", Asm: "asm",
}

// String returns op's canonical lowercase mnemonic.
func (op Op) String() string {
	if int(op) < 0 || int(op) >= len(names) {
		return "?"
	}
	return names[op]
}

// Cc is a comparison condition code, the result-interpretation of a Cond
// instruction consumed by a following Jmp.
type Cc int

const (
	CcEq Cc = iota
	CcNe
	CcLt
	CcLe
	CcGt
	CcGe
)

var ccNames = [...]string{CcEq: "eq", CcNe: "ne", CcLt: "lt", CcLe: "le", CcGt: "gt", CcGe: "ge"}

func (cc Cc) String() string { return ccNames[cc] }

// CcFromOp maps a source-level comparison operator to its Cc, and ok is
// false if op names no comparison.
func CcFromOp(op string) (Cc, bool) {
	switch op {
	case "==":
		return CcEq, true
	case "!=":
		return CcNe, true
	case "<":
		return CcLt, true
	case "<=":
		return CcLe, true
	case ">":
		return CcGt, true
	case ">=":
		return CcGe, true
	}
	return 0, false
}

// Negate returns the condition that holds exactly when cc does not.
func (cc Cc) Negate() Cc {
	switch cc {
	case CcEq:
		return CcNe
	case CcNe:
		return CcEq
	case CcLt:
		return CcGe
	case CcLe:
		return CcGt
	case CcGt:
		return CcLe
	default:
		return CcLt
	}
}
