// Package ctype provides type equality, size/alignment, integer promotion
// and cast-legality utilities shared by every later compiler stage.
package ctype

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind differentiates the variants of Type.
type Kind int

// FixnumKind differentiates the integer widths of a Fixnum Type.
type FixnumKind int

// FlonumKind differentiates the floating widths of a Flonum Type.
type FlonumKind int

// Qualifier is a bitset of C type qualifiers attached to a Type.
type Qualifier uint8

// Type is a tagged variant over void, fixnum, flonum, pointer, array, struct
// and function. Only the fields relevant to Kind are meaningful; the rest
// are left zero. Pointer and array always carry their full pointee/element
// type rather than a back-reference, per the "cyclic graphs" design note:
// struct types that are still being defined carry a *StructInfo with
// Complete == false rather than a nil pointer, so "incomplete" is a
// first-class state instead of a null check scattered through callers.
type Type struct {
	Kind     Kind
	Qual     Qualifier
	Fix      FixnumKind // valid when Kind == Fixnum or Kind == enumeration constant.
	Unsigned bool        // valid when Kind == Fixnum.
	Flo      FlonumKind  // valid when Kind == Flonum.
	Pointee  *Type       // valid when Kind == Pointer.
	Elem     *Type       // valid when Kind == Array.
	Len      int         // valid when Kind == Array; -1 means unknown length.
	Struct   *StructInfo // valid when Kind == Struct.
	Ret      *Type       // valid when Kind == Function.
	Params   []*Type     // valid when Kind == Function.
	VaArgs   bool        // valid when Kind == Function.
}

// StructInfo holds the layout of a struct or union type. It is shared by
// every Type referencing the same tag, so completing a forward-declared
// struct via ensure_struct updates every holder at once.
type StructInfo struct {
	Name     string
	Union    bool
	Members  []Member
	Size     int
	Align    int
	Complete bool
}

// Member is a single field of a struct or union, including optional
// bit-field position/width.
type Member struct {
	Name     string
	Type     *Type
	Offset   int
	BitField bool
	BitPos   int // starting bit within the backing integer, 0 == lsb.
	BitWidth int
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Void Kind = iota
	Fixnum
	Flonum
	Pointer
	Array
	Struct
	Function
)

const (
	Char FixnumKind = iota
	Short
	Int
	Long
	LongLong
	Enum
)

const (
	Float FlonumKind = iota
	Double
	LongDouble
)

const (
	QualConst    Qualifier = 1 << 0
	QualVolatile Qualifier = 1 << 1
)

// fixnumSizes holds the byte size of every FixnumKind on the reference LP64
// target; WordSize below governs bit-field sign-extension and pointer size.
var fixnumSizes = [...]int{
	Char:     1,
	Short:    2,
	Int:      4,
	Long:     8,
	LongLong: 8,
	Enum:     4,
}

var flonumSizes = [...]int{
	Float:      4,
	Double:     8,
	LongDouble: 8,
}

// WordSize is the target general-purpose register width in bytes, used by
// the bit-field sign-extension shift pair (spec 4.A/4.G) and by pointer
// sizing. Resolving the open question in DESIGN.md: fixed at the register
// width rather than the backing integer's declared width.
const WordSize = 8

// ---------------------
// ----- functions -----
// ---------------------

// NewFixnum returns a fresh Fixnum Type of the given kind and signedness.
func NewFixnum(kind FixnumKind, unsigned bool, qual Qualifier) *Type {
	return &Type{Kind: Fixnum, Fix: kind, Unsigned: unsigned, Qual: qual}
}

// NewFlonum returns a fresh Flonum Type of the given kind.
func NewFlonum(kind FlonumKind, qual Qualifier) *Type {
	return &Type{Kind: Flonum, Flo: kind, Qual: qual}
}

// NewVoid returns the void Type, optionally qualified.
func NewVoid(qual Qualifier) *Type {
	return &Type{Kind: Void, Qual: qual}
}

// Ptrof returns a pointer Type whose pointee is t.
func Ptrof(t *Type) *Type {
	return &Type{Kind: Pointer, Pointee: t}
}

// IsFixnum reports whether t is an integer category type.
func IsFixnum(t *Type) bool {
	return t != nil && t.Kind == Fixnum
}

// IsFlonum reports whether t is a floating category type.
func IsFlonum(t *Type) bool {
	return t != nil && t.Kind == Flonum
}

// IsNumber reports whether t is fixnum or flonum.
func IsNumber(t *Type) bool {
	return IsFixnum(t) || IsFlonum(t)
}

// IsPrimType reports whether t is void, fixnum or flonum: a type with no
// substructure that a cast can target directly.
func IsPrimType(t *Type) bool {
	return t != nil && (t.Kind == Void || IsNumber(t))
}

// PtrOrArray reports whether t is a pointer or an array.
func PtrOrArray(t *Type) bool {
	return t != nil && (t.Kind == Pointer || t.Kind == Array)
}

// ArrayToPtr decays an array Type to a pointer to its element type. Any
// other Type is returned unchanged, matching the elaborator's habit of
// calling ArrayToPtr unconditionally at usage sites.
func ArrayToPtr(t *Type) *Type {
	if t == nil || t.Kind != Array {
		return t
	}
	return Ptrof(t.Elem)
}

// FuncToPtr decays a function Type to a pointer-to-function, mirroring
// ArrayToPtr for the other implicit-decay case named in spec 4.A.
func FuncToPtr(t *Type) *Type {
	if t == nil || t.Kind != Function {
		return t
	}
	return Ptrof(t)
}

// IsScalarType reports whether t is a number or pointer: the set of types
// that may appear where a truth value is required after MakeCond.
func IsScalarType(t *Type) bool {
	return IsNumber(t) || (t != nil && t.Kind == Pointer)
}

// TypeSize returns the byte size of t. Incomplete structs/arrays return 0;
// callers that require a complete type must check Struct.Complete /
// Len >= 0 themselves and raise a semantic diagnostic.
func TypeSize(t *Type) int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case Void:
		return 0
	case Fixnum:
		return fixnumSizes[t.Fix]
	case Flonum:
		return flonumSizes[t.Flo]
	case Pointer, Function:
		return WordSize
	case Array:
		if t.Len < 0 {
			return 0
		}
		return TypeSize(t.Elem) * t.Len
	case Struct:
		if t.Struct == nil || !t.Struct.Complete {
			return 0
		}
		return t.Struct.Size
	default:
		panic(fmt.Sprintf("ctype: unexpected kind %d in TypeSize", t.Kind))
	}
}

// AlignSize returns the alignment requirement of t in bytes.
func AlignSize(t *Type) int {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case Array:
		return AlignSize(t.Elem)
	case Struct:
		if t.Struct == nil || !t.Struct.Complete {
			return 1
		}
		return t.Struct.Align
	default:
		s := TypeSize(t)
		if s == 0 {
			return 1
		}
		return s
	}
}

// GetFixnumType returns the canonical Fixnum Type for the given kind,
// signedness and qualifier. Enum is represented with FixnumKind Enum and
// is always signed, matching a plain `int`-sized enumeration backing type.
func GetFixnumType(kind FixnumKind, unsigned bool, qual Qualifier) *Type {
	if kind == Enum {
		unsigned = false
	}
	return NewFixnum(kind, unsigned, qual)
}

// rank orders FixnumKind for the "usual arithmetic conversions": a type of
// higher rank (or equal rank but unsigned) wins a numeric binop.
func rank(t *Type) int {
	k := t.Fix
	if k == Enum {
		k = Int
	}
	return int(k)<<1 | b2i(t.Unsigned)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WrapValue narrows value to the two's-complement representation of an
// integer of byteSize bytes, sign-extending back to int64 unless unsigned.
// This is the single place wrap-around arithmetic happens; constant folding
// in the elaborator always routes through it.
func WrapValue(value int64, byteSize int, unsigned bool) int64 {
	if byteSize <= 0 || byteSize >= 8 {
		return value
	}
	bits := uint(byteSize * 8)
	mask := int64(1)<<bits - 1
	v := value & mask
	if !unsigned && v&(int64(1)<<(bits-1)) != 0 {
		v |= ^mask
	}
	return v
}

// SameType reports whether a and b are identical, qualifiers included.
func SameType(a, b *Type) bool {
	return sameType(a, b, false)
}

// SameTypeWithoutQualifier reports whether a and b are identical up to
// const/volatile qualifiers, stripped recursively through pointee and
// element types. This resolves the open question from spec section 9:
// qualifiers are stripped at every nesting level, not just the outermost
// type, which is the more permissive of the two conventions hinted at by
// the cast-legality table and therefore never rejects something spec 4.B
// requires accepted.
func SameTypeWithoutQualifier(a, b *Type) bool {
	return sameType(a, b, true)
}

func sameType(a, b *Type, ignoreQual bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	if !ignoreQual && a.Qual != b.Qual {
		return false
	}
	switch a.Kind {
	case Void:
		return true
	case Fixnum:
		return a.Fix == b.Fix && a.Unsigned == b.Unsigned
	case Flonum:
		return a.Flo == b.Flo
	case Pointer:
		return sameType(a.Pointee, b.Pointee, ignoreQual)
	case Array:
		if a.Len != b.Len {
			return false
		}
		return sameType(a.Elem, b.Elem, ignoreQual)
	case Struct:
		return a.Struct == b.Struct
	case Function:
		if a.VaArgs != b.VaArgs || len(a.Params) != len(b.Params) {
			return false
		}
		if !sameType(a.Ret, b.Ret, ignoreQual) {
			return false
		}
		for i := range a.Params {
			if !sameType(a.Params[i], b.Params[i], ignoreQual) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CanCast reports whether a value of type src can be cast to dst, following
// the condensed legality table of spec 4.A. srcIsZero marks a source that is
// the literal integer constant zero (pointer-to-zero is always legal);
// isExplicit allows the few casts legal only with an explicit cast
// operator (none beyond what's already permitted are added here, but the
// flag is threaded through so callers can special-case it later without
// changing this signature).
func CanCast(dst, src *Type, srcIsZero, isExplicit bool) bool {
	_ = isExplicit
	if dst == nil || src == nil {
		return false
	}
	src = ArrayToPtr(FuncToPtr(src))
	if SameTypeWithoutQualifier(dst, src) {
		return true
	}
	if dst.Kind == Void {
		return true
	}
	if src.Kind == Void {
		return false
	}
	if IsNumber(dst) && IsNumber(src) {
		return true
	}
	if dst.Kind == Pointer && src.Kind == Pointer {
		if dst.Pointee.Kind == Void || src.Pointee.Kind == Void {
			return true
		}
		return true // warn on mismatched pointee handled by the elaborator, not rejected here.
	}
	if dst.Kind == Pointer && IsFixnum(src) && srcIsZero {
		return true
	}
	if dst.Kind == Array {
		return false
	}
	return false
}
