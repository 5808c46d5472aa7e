package lir

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Value is anything an Instruction can read: a virtual register, an
// immediate constant, or a reference to a global/string. internal/regalloc
// assigns physical-register state directly onto *Register through
// SetHW/GetHW, mirroring the teacher's lir.Value interface carrying its own
// allocation state rather than a side table keyed by value identity.
type Value interface {
	Type() *ctype.Type
	String() string
}

// Register is a virtual register: a definition site for some instruction's
// result, or a function parameter. HW holds the physical register index
// once internal/regalloc has run (-1 until then); Spill holds the
// frame-pointer-relative stack slot offset when the allocator could not
// keep it in a register (spill sentinel 1<<31 means "not spilled").
type Register struct {
	ID   int
	Typ  *ctype.Type
	HW   int
	Spill int
}

// NoSpill marks a Register that the allocator kept resident.
const NoSpill = 1 << 31

// Constant is an immediate value, either an integer bit pattern or a
// floating value, distinguished by Typ.Kind.
type Constant struct {
	IVal int64
	FVal float64
	Typ  *ctype.Type
}

// GlobalRef names a global variable or function, resolved to an address by
// Iofs/Sofs rather than carried as a literal pointer value.
type GlobalRef struct {
	Name string
	Typ  *ctype.Type
}

// ---------------------
// ----- functions -----
// ---------------------

// Type implements Value.
func (r *Register) Type() *ctype.Type { return r.Typ }

func (r *Register) String() string {
	if r.HW >= 0 {
		return fmt.Sprintf("%%%d<hw%d>", r.ID, r.HW)
	}
	return fmt.Sprintf("%%%d", r.ID)
}

// SetHW records the physical register index assigned to r.
func (r *Register) SetHW(hw int) { r.HW = hw }

// GetHW returns the physical register index assigned to r, or -1 if none.
func (r *Register) GetHW() int { return r.HW }

// IsSpilled reports whether the allocator gave r a stack slot instead of a
// register.
func (r *Register) IsSpilled() bool { return r.Spill != NoSpill }

func (c *Constant) Type() *ctype.Type { return c.Typ }

func (c *Constant) String() string {
	if ctype.IsFlonum(c.Typ) {
		return fmt.Sprintf("%g", c.FVal)
	}
	return fmt.Sprintf("%d", c.IVal)
}

func (g *GlobalRef) Type() *ctype.Type { return g.Typ }

func (g *GlobalRef) String() string { return g.Name }
