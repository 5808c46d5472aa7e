package ast

import "github.com/ijsf/xcc/internal/ctype"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Scope is a node in the lexical scope tree: a parent link, an ordered
// variable list and the enum/struct/typedef tables attached at this level.
// The global scope is the tree root; every block statement carries the
// child Scope created for it in BlockStmt.Scope (per spec section 5 —
// Scope itself never reaches across threads).
type Scope struct {
	Parent  *Scope
	Vars    []*VarInfo
	Structs *ctype.StructRegistry
	Global  bool
}

// VarFlag is a bitset of VarInfo storage attributes.
type VarFlag uint8

const (
	FlagExtern VarFlag = 1 << iota
	FlagStatic
	FlagInline
	FlagEnumMember
	FlagParameter
	FlagRefTaken
)

// VarInfo describes a single declared name: its type, storage flags, and
// (for function-local statics) a pointer to the synthesized global twin
// that actually backs the storage, or (for globals holding a function) the
// Function it names.
type VarInfo struct {
	Name     string
	Type     *ctype.Type
	Flags    VarFlag
	EnumVal  int64       // valid when Flags&FlagEnumMember != 0.
	Global   *VarInfo    // valid when Flags&FlagStatic != 0 and declared inside a function.
	Func     *Function   // valid when Type.Kind == ctype.Function and this VarInfo has a body.
}

// Function describes one function definition: its declared type, the
// scopes created while parsing its body (scopes[0] holds the parameters),
// the body block, pending gotos and their label table, and backend-extra
// state (basic-block container, allocator state, frame size) attached once
// internal/lir has run.
type Function struct {
	Name    string
	Type    *ctype.Type
	Scopes  []*Scope // Scopes[0] is the parameter scope.
	Body    Stmt
	Gotos   []*Expr
	Labels  map[string]*LabelStmt
	Inline  bool

	// Backend extra, attached by internal/lir and consumed by
	// internal/regalloc and internal/backend/*. Left nil until lowering.
	Lowered interface{}
}

// HasFlag reports whether v's storage flags include want.
func (v *VarInfo) HasFlag(want VarFlag) bool {
	return v.Flags&want != 0
}

// ---------------------
// ----- functions -----
// ---------------------

// NewScope returns a fresh child scope of parent. parent may be nil only
// for the translation unit's global scope.
func NewScope(parent *Scope) *Scope {
	s := &Scope{Parent: parent}
	if parent == nil {
		s.Global = true
	}
	return s
}

// Declare appends v to s's variable list and returns it, for chaining at
// call sites that build a VarInfo and immediately register it.
func (s *Scope) Declare(v *VarInfo) *VarInfo {
	s.Vars = append(s.Vars, v)
	return v
}

// Lookup searches s and its ancestors for a variable named name, innermost
// scope first, matching C's shadowing rule.
func (s *Scope) Lookup(name string) (*VarInfo, *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		for _, v := range cur.Vars {
			if v.Name == name {
				return v, cur
			}
		}
	}
	return nil, nil
}

// LookupLocal searches only s itself, not its ancestors; used by the
// inline expander to decide whether a name needs fresh storage in the
// cloned scope or should resolve further up (e.g. to a global).
func (s *Scope) LookupLocal(name string) *VarInfo {
	for _, v := range s.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}
