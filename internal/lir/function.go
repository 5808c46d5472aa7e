package lir

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/intern"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Function is one lowered function: its basic blocks in layout order, the
// virtual registers holding its parameters, the full register pool (for
// internal/regalloc to iterate), and the stack frame size computed once
// layout is final.
type Function struct {
	Name      string
	Type      *ctype.Type
	Blocks    []*Block
	Entry     *Block
	Params    []*Register
	Registers []*Register
	FrameSize int
	Static    bool
	Variadic  bool
	RetReg    *Register
	Epilogue  *Block

	regSeq   int
	blockSeq int
}

// Global is a file-scope data object: either a zero-initialized reservation
// (Data == nil, sized by Type) or an explicit initializer list consumed by
// internal/dataemit.
type Global struct {
	Name   string
	Type   *ctype.Type
	Static bool
	Data   []byte
	Relocs []Reloc
}

// Reloc is a pointer-valued slot inside a Global's initializer that must be
// patched to another symbol's address (plus Offset) rather than emitted as
// a literal byte pattern, since the linker or assembler resolves it.
type Reloc struct {
	At     int
	Symbol string
	Offset int64
}

// Module is a whole translation unit's lowered output: every function and
// every global, plus the deduplicated string-literal pool.
type Module struct {
	Funcs   []*Function
	Globals []*Global
	Strings map[string]*Global

	strPool *intern.StringPool
}

// ---------------------
// ----- functions -----
// ---------------------

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{Strings: make(map[string]*Global, 16), strPool: intern.New()}
}

// InternString returns the Global holding s's deduplicated storage,
// creating it (and its symbol name) on first sight across the whole
// module — every Builder lowering a function in this module shares the
// same pool, so two functions quoting the same literal emit one entry.
func (m *Module) InternString(s string) *Global {
	if g, ok := m.Strings[s]; ok {
		return g
	}
	id, _ := m.strPool.Intern(s)
	t := &ctype.Type{Kind: ctype.Array, Elem: ctype.NewFixnum(ctype.Char, false, 0), Len: len(s) + 1}
	g := &Global{Name: fmt.Sprintf(".LC%d", id), Type: t, Data: append([]byte(s), 0)}
	m.Strings[s] = g
	return g
}

// NewFunction creates and registers an empty function named name in m,
// returning it along with its entry block.
func (m *Module) NewFunction(name string, t *ctype.Type) (*Function, *Block) {
	fn := &Function{Name: name, Type: t, regSeq: -1}
	entry := fn.NewBlock()
	fn.Entry = entry
	m.Funcs = append(m.Funcs, fn)
	return fn, entry
}

// NewBlock appends and returns a fresh, unlinked block.
func (fn *Function) NewBlock() *Block {
	b := &Block{ID: len(fn.Blocks), Label: blockLabel(fn)}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// NewRegister allocates a fresh virtual register of type t, unassigned to
// any physical register until internal/regalloc runs.
func (fn *Function) NewRegister(t *ctype.Type) *Register {
	fn.regSeq++
	r := &Register{ID: fn.regSeq, Typ: t, HW: -1, Spill: NoSpill}
	fn.Registers = append(fn.Registers, r)
	return r
}

// NewParam allocates a parameter register and appends it to fn.Params, in
// declaration order.
func (fn *Function) NewParam(t *ctype.Type) *Register {
	r := fn.NewRegister(t)
	fn.Params = append(fn.Params, r)
	return r
}
