package ctype

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// StructRegistry interns StructInfo by tag name so that a forward reference
// and its later completion resolve to the same pointer. This replaces
// pointer-identity comparisons scattered through a C implementation with a
// single name-keyed lookup, per spec section 9's "cyclic graphs" note.
type StructRegistry struct {
	tags map[string]*StructInfo
}

// ---------------------
// ----- functions -----
// ---------------------

// NewStructRegistry returns an empty registry.
func NewStructRegistry() *StructRegistry {
	return &StructRegistry{tags: make(map[string]*StructInfo, 16)}
}

// EnsureStruct returns the StructInfo for tag, creating an incomplete one if
// it has not been seen yet. Completing it later is done in place via
// CompleteStruct so every *Type already holding the pointer observes the
// completed layout.
func (r *StructRegistry) EnsureStruct(tag string, union bool) *StructInfo {
	if si, ok := r.tags[tag]; ok {
		return si
	}
	si := &StructInfo{Name: tag, Union: union}
	if tag != "" {
		r.tags[tag] = si
	}
	return si
}

// CompleteStruct lays out members in declaration order, inserting alignment
// padding, and marks si complete. Bit-field members are coalesced into
// their backing integer's width rather than given their own offset.
func (r *StructRegistry) CompleteStruct(si *StructInfo, members []Member) {
	offset := 0
	align := 1
	if si.Union {
		for i := range members {
			m := &members[i]
			if m.BitField {
				m.Offset = 0
			} else {
				m.Offset = 0
			}
			if a := AlignSize(m.Type); a > align {
				align = a
			}
			if s := TypeSize(m.Type); s > offset {
				offset = s
			}
		}
	} else {
		bitCursor := 0 // bit offset within the current backing integer.
		var backing *Type
		for i := range members {
			m := &members[i]
			if m.BitField {
				if backing == nil || bitCursor+m.BitWidth > TypeSize(m.Type)*8 {
					if backing != nil {
						offset += TypeSize(backing)
					}
					offset = alignUp(offset, AlignSize(m.Type))
					backing = m.Type
					bitCursor = 0
				}
				m.Offset = offset
				m.BitPos = bitCursor
				bitCursor += m.BitWidth
				if a := AlignSize(m.Type); a > align {
					align = a
				}
				continue
			}
			if backing != nil {
				offset += TypeSize(backing)
				backing = nil
				bitCursor = 0
			}
			offset = alignUp(offset, AlignSize(m.Type))
			m.Offset = offset
			offset += TypeSize(m.Type)
			if a := AlignSize(m.Type); a > align {
				align = a
			}
		}
		if backing != nil {
			offset += TypeSize(backing)
		}
	}
	si.Members = members
	si.Align = align
	si.Size = alignUp(offset, align)
	si.Complete = true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// FindMember returns the Member named name in si, and ok is false if no
// such member exists (including recursively into anonymous members, which
// this minimal layout does not model — members are always named).
func FindMember(si *StructInfo, name string) (Member, bool) {
	if si == nil {
		return Member{}, false
	}
	for _, m := range si.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// BitFieldMask returns the unsigned mask covering width bits, used by the
// bit-field read/write expansion in internal/elaborate.
func BitFieldMask(width int) int64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return -1
	}
	return int64(1)<<width - 1
}
