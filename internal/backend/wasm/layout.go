package wasm

import (
	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
)

// layoutGlobals assigns every lir.Global and string-pool entry an address
// in linear memory via a simple bump allocator, the wasm equivalent of the
// native backends' symbol-table/section placement. Unlike
// `construct_primitive_global`'s split in the teacher's original_source
// (scalar globals become real wasm globals, everything else goes to
// memory), every global here uniformly lives in memory: a C program can
// take the address of any global, and wasm globals have no address, so
// keeping the representation uniform avoids a separate "promote back to
// memory if &'d" pass.
func (mc *modCtx) layoutGlobals() {
	place := func(g *lir.Global) {
		size := int64(len(g.Data))
		if size == 0 {
			size = int64(ctype.TypeSize(g.Type))
		}
		mc.bumpPos = align(mc.bumpPos, 8)
		mc.memBase[g.Name] = mc.bumpPos
		mc.bumpPos += size
	}
	for _, g := range mc.mod.Globals {
		place(g)
	}
	for _, g := range mc.mod.Strings {
		place(g)
	}
}

// allocJumpTable reserves space for a Tjmp dense dispatch table (one i32
// block index per case, little-endian) and returns its linear-memory
// address, the wasm analog of internal/backend/riscv64's pool.addTable.
func (mc *modCtx) allocJumpTable(blockIdx []int32) int64 {
	mc.bumpPos = align(mc.bumpPos, 4)
	addr := mc.bumpPos
	data := make([]byte, 4*len(blockIdx))
	for i, v := range blockIdx {
		putLE32(data[4*i:], uint32(v))
	}
	mc.extraSegments = append(mc.extraSegments, segment{addr: addr, data: data})
	mc.bumpPos += int64(len(data))
	return addr
}

// dataSegment builds the single active data segment's byte image: every
// global's Data, laid out at the addresses layoutGlobals computed, with
// each Reloc patched to the i32 address of its target symbol (plus
// Offset) instead of being a linker-resolved pointer the way the native
// targets' assembler directives or internal/backend/llvmir's ConstStruct
// chunks are.
func (mc *modCtx) dataSegment() []byte {
	buf := make([]byte, mc.dataEnd)
	place := func(g *lir.Global) {
		if g.Data == nil {
			return
		}
		base := mc.memBase[g.Name]
		copy(buf[base:], g.Data)
		for _, r := range g.Relocs {
			addr, ok := mc.memBase[r.Symbol]
			if !ok {
				if idx, ok2 := mc.funcIdx[r.Symbol]; ok2 {
					// Function addresses aren't meaningful linear-memory
					// offsets in wasm (functions live in a separate index
					// space); store the function index itself, which is
					// the only address-like value a caller through a
					// function pointer can act on via call_indirect.
					addr = int64(idx)
				}
			}
			putLE32(buf[int64(base)+int64(r.At):], uint32(addr+r.Offset))
		}
	}
	for _, g := range mc.mod.Globals {
		place(g)
	}
	for _, g := range mc.mod.Strings {
		place(g)
	}
	for _, seg := range mc.extraSegments {
		copy(buf[seg.addr:], seg.data)
	}
	return buf
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
