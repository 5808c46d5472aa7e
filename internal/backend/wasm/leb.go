package wasm

// LEB128 encoding: the variable-length integer format every WebAssembly
// section length, index and immediate uses, grounded on the teacher's own
// `original_source/wasm/src/wcc.c` calls to `emit_uleb128`/`emit_leb128`
// (that file's own encoder body isn't in the retrieved sources, so the bit
// manipulation here follows the WebAssembly binary format spec directly).

func appendUleb128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}

func appendSleb128(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// uleb128Size returns how many bytes appendUleb128 would emit for v,
// needed to reserve a fixed-width size field before a section/segment's
// body length is known.
func uleb128Size(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
