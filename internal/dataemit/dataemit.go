// Package dataemit writes a lowered module's file-scope data objects and
// deduplicated string-literal pool as assembler directives (component H).
package dataemit

import (
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
)

// wordLabel is the directive used for one pointer-sized data unit, matching
// the teacher's own `.xword` convention for its 64-bit default target.
const wordLabel = "xword"

// Emit writes mod's globals, then its interned string pool, as `.data`
// directives, following the section ordering of the teacher's own
// GenArm driver (functions first, then globals, then constants, then
// strings) for the data-emitting tail end of that same function.
func Emit(mod *lir.Module, w *emitio.Writer) {
	w.Write("\n\t.data\n")
	for _, g := range mod.Globals {
		emitGlobal(w, g)
	}

	// Deterministic order: the string pool's ids were handed out in
	// first-sight order, so sorting by name sorts by id since every name
	// is ".LC<id>".
	for _, g := range sortedStrings(mod.Strings) {
		w.Label(g.Name)
		w.Write("\t.asciz\t%q\n", string(g.Data[:len(g.Data)-1]))
	}
}

func emitGlobal(w *emitio.Writer, g *lir.Global) {
	w.Label(g.Name)
	if g.Data == nil {
		// Zero-initialized reservation: a plain .zero of the type's size,
		// matching the teacher's .xword 0x0 convention generalized past a
		// single word for arrays/structs.
		w.Write("\t.zero\t%d\n", ctype.TypeSize(g.Type))
		return
	}
	emitInitialized(w, g)
}

// emitInitialized writes g's byte pattern as a sequence of directives,
// substituting a symbol-relative `.quad label+offset` wherever a Reloc
// marks a pointer-valued slot instead of emitting its placeholder bytes
// literally.
func emitInitialized(w *emitio.Writer, g *lir.Global) {
	relocAt := make(map[int]lir.Reloc, len(g.Relocs))
	for _, r := range g.Relocs {
		relocAt[r.At] = r
	}

	i := 0
	for i < len(g.Data) {
		if r, ok := relocAt[i]; ok {
			if r.Offset != 0 {
				w.Write("\t.quad\t%s+%d\n", r.Symbol, r.Offset)
			} else {
				w.Write("\t.quad\t%s\n", r.Symbol)
			}
			i += 8
			continue
		}
		// Emit the longest non-relocated run as one byte directive.
		end := i + 1
		for end < len(g.Data) {
			if _, ok := relocAt[end]; ok {
				break
			}
			end++
		}
		emitBytes(w, g.Data[i:end])
		i = end
	}
}

func emitBytes(w *emitio.Writer, b []byte) {
	for _, c := range b {
		w.Write("\t.byte\t0x%02x\n", c)
	}
}

func sortedStrings(m map[string]*lir.Global) []*lir.Global {
	out := make([]*lir.Global, 0, len(m))
	for _, g := range m {
		out = append(out, g)
	}
	id := func(name string) int {
		n := 0
		for _, c := range name {
			if c >= '0' && c <= '9' {
				n = n*10 + int(c-'0')
			}
		}
		return n
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && id(out[j-1].Name) > id(out[j].Name); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
