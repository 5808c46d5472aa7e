package elaborate

import (
	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/ctype"
)

// rawBackingMember builds a plain (non-bit-field) member access over the
// backing integer that holds m, so read/write of the field can be expressed
// as ordinary shift/mask arithmetic over a whole integer rather than giving
// the IR builder a special bit-addressed load/store opcode.
func rawBackingMember(tok ast.Token, target *ast.Expr, arrow bool, m ctype.Member) *ast.Expr {
	raw := ctype.Member{Name: m.Name, Type: m.Type, Offset: m.Offset}
	out := ast.NewMember(tok, target, m.Name, arrow)
	out.Data.(*ast.Member).Info = raw
	out.Type = m.Type
	return out
}

// bitFieldRead rewrites a read of bit-field member m into
// `(raw << (wordbits - pos - width)) >> (wordbits - width)`, an
// arithmetic-or-logical shift pair (per the operand's signedness) that both
// isolates the field and sign-extends it, fixed at the target word width
// per DESIGN.md's resolution of the sign-extension-width open question.
func bitFieldRead(tok ast.Token, target *ast.Expr, arrow bool, m ctype.Member) *ast.Expr {
	raw := rawBackingMember(tok, target, arrow, m)
	wordBits := ctype.WordSize * 8
	left := wordBits - m.BitPos - m.BitWidth
	right := wordBits - m.BitWidth

	widened := ast.NewUnary(tok, "(cast)", raw, false)
	widened.Type = ctype.GetFixnumType(ctype.Long, m.Type.Unsigned, 0)

	shl := ast.NewBinary(tok, "<<", widened, ast.NewIntLit(tok, int64(left)))
	shl.Type = widened.Type
	shr := ast.NewBinary(tok, ">>", shl, ast.NewIntLit(tok, int64(right)))
	shr.Type = widened.Type

	result := ast.NewUnary(tok, "(cast)", shr, false)
	result.Type = m.Type
	return result
}

// rewriteBitFieldAssign lowers `obj.field = value` (or the combine step of a
// compound assignment, where value already holds the combined new value)
// into the sequence `tmp = &backing, val = value, *tmp = (*tmp & ~mask) |
// ((val & mask) << pos), val`, chained as nested comma expressions so the
// IR builder only ever sees plain reads, writes, and arithmetic.
func (el *Elaborator) rewriteBitFieldAssign(tok ast.Token, target *ast.Expr, arrow bool, m ctype.Member, value *ast.Expr, s *ast.Scope) *ast.Expr {
	raw := rawBackingMember(tok, target, arrow, m)

	tmpVar := s.Declare(&ast.VarInfo{Name: el.freshName("bf_tmp"), Type: ctype.Ptrof(m.Type)})
	valVar := s.Declare(&ast.VarInfo{Name: el.freshName("bf_val"), Type: m.Type})

	addrOfRaw := ast.NewUnary(tok, "&", raw, false)
	addrOfRaw.Type = tmpVar.Type

	tmpRef := func() *ast.Expr { out := ast.NewVar(tok, tmpVar.Name); out.Data.(*ast.Var).Info = tmpVar; out.Type = tmpVar.Type; return out }
	valRef := func() *ast.Expr { out := ast.NewVar(tok, valVar.Name); out.Data.(*ast.Var).Info = valVar; out.Type = valVar.Type; return out }

	assignTmp := ast.NewBinary(tok, "=", tmpRef(), addrOfRaw)
	assignTmp.Type = tmpVar.Type

	assignVal := ast.NewBinary(tok, "=", valRef(), value)
	assignVal.Type = valVar.Type

	mask := ctype.BitFieldMask(m.BitWidth)
	notShiftedMask := ast.NewIntLit(tok, ^(mask << uint(m.BitPos)))
	notShiftedMask.Type = m.Type

	curDeref := ast.NewUnary(tok, "*", tmpRef(), false)
	curDeref.Type = m.Type
	masked := ast.NewBinary(tok, "&", curDeref, notShiftedMask)
	masked.Type = m.Type

	maskLit := ast.NewIntLit(tok, mask)
	maskLit.Type = m.Type
	fieldMasked := ast.NewBinary(tok, "&", valRef(), maskLit)
	fieldMasked.Type = m.Type
	shifted := ast.NewBinary(tok, "<<", fieldMasked, ast.NewIntLit(tok, int64(m.BitPos)))
	shifted.Type = m.Type

	combined := ast.NewBinary(tok, "|", masked, shifted)
	combined.Type = m.Type

	storeDeref := ast.NewUnary(tok, "*", tmpRef(), false)
	storeDeref.Type = m.Type
	store := ast.NewBinary(tok, "=", storeDeref, combined)
	store.Type = m.Type

	seq := comma(tok, assignTmp, comma(tok, assignVal, comma(tok, store, valRef())))
	seq.Type = valVar.Type
	return seq
}

func comma(tok ast.Token, a, b *ast.Expr) *ast.Expr {
	c := ast.NewBinary(tok, ",", a, b)
	c.Type = b.Type
	return c
}
