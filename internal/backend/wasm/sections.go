package wasm

// assemble concatenates every section into the final module image, in the
// canonical order confirmed against the teacher's `emit_wasm`/file
// write-out: Type, Function, Table, Memory, Global, Export, Element, Code,
// then Data only when the module has initialized data.
func (mc *modCtx) assemble() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	out = appendSection(out, secType, mc.typeSection())
	out = appendSection(out, secFunction, mc.functionSection())
	out = appendSection(out, secTable, mc.tableSection())
	out = appendSection(out, secMemory, mc.memorySection())
	out = appendSection(out, secGlobal, mc.globalSection())
	out = appendSection(out, secExport, mc.exportSection())
	out = appendSection(out, secElement, mc.elementSection())
	out = appendSection(out, secCode, mc.codeSection())
	if mc.dataEnd > 0 {
		out = appendSection(out, secData, mc.dataSectionBody())
	}
	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = appendUleb128(out, uint64(len(body)))
	return append(out, body...)
}

// typeSection encodes the deduplicated function-signature table, each
// entry tagged with wasm's 0x60 "func" type constructor.
func (mc *modCtx) typeSection() []byte {
	var b []byte
	b = appendUleb128(b, uint64(len(mc.types)))
	for _, ft := range mc.types {
		b = append(b, 0x60)
		b = appendUleb128(b, uint64(len(ft.params)))
		b = append(b, ft.params...)
		b = appendUleb128(b, uint64(len(ft.results)))
		b = append(b, ft.results...)
	}
	return b
}

// functionSection lists, for every function in index-space order, which
// type-section entry it uses.
func (mc *modCtx) functionSection() []byte {
	var b []byte
	b = appendUleb128(b, uint64(len(mc.funcSig)))
	for _, ti := range mc.funcSig {
		b = appendUleb128(b, uint64(ti))
	}
	return b
}

// tableSection declares one funcref table sized to hold every function,
// so a function-pointer value (carried around as a plain function index,
// see layout.go's Reloc handling) can be called through call_indirect.
func (mc *modCtx) tableSection() []byte {
	var b []byte
	b = appendUleb128(b, 1)
	b = append(b, 0x70, 0x00) // funcref, limits: min only
	b = appendUleb128(b, uint64(len(mc.funcDecl)))
	return b
}

// elementSection populates table 0 with every function's index in
// declaration order, so a function index doubles as its call_indirect
// table slot.
func (mc *modCtx) elementSection() []byte {
	var b []byte
	b = appendUleb128(b, 1)
	b = append(b, 0x00)        // active segment, table 0
	b = append(b, 0x41, 0x00, 0x0b) // i32.const 0, end
	b = appendUleb128(b, uint64(len(mc.funcDecl)))
	for i := range mc.funcDecl {
		b = appendUleb128(b, uint64(i))
	}
	return b
}

// memorySection defines one page-granular linear memory sized to hold
// every global plus the stack region, self-contained rather than imported
// the way the original's host-embedded `wcc.c` output expects an `env`
// import — this module has no surrounding host runtime contract to import
// against, so it owns its memory instead.
func (mc *modCtx) memorySection() []byte {
	pages := (mc.stackTop + wasmPageSize - 1) / wasmPageSize
	if pages < 1 {
		pages = 1
	}
	var b []byte
	b = appendUleb128(b, 1) // one memory
	b = append(b, 0x00)     // limits: min only, no max
	b = appendUleb128(b, uint64(pages))
	return b
}

// globalSection defines the mutable `__stack_pointer` global every
// function's prologue/epilogue decrements/restores, the standard
// wasm-without-a-hardware-SP idiom the teacher's own original_source
// exports under SP_NAME.
func (mc *modCtx) globalSection() []byte {
	var b []byte
	b = appendUleb128(b, 1)
	b = append(b, valI32, 0x01) // i32, mutable
	b = append(b, 0x41)         // i32.const
	b = appendSleb128(b, mc.stackTop)
	b = append(b, 0x0b) // end
	return b
}

// exportSection exports every function named in Options.Exports, plus the
// module's memory and stack-pointer global so an embedder can observe and
// extend them, matching the original's own SP_NAME/memory export pattern.
func (mc *modCtx) exportSection() []byte {
	names := mc.opts.Exports
	var b []byte
	b = appendUleb128(b, uint64(len(names)+2))
	for _, name := range names {
		idx, ok := mc.funcIdx[name]
		if !ok {
			continue
		}
		b = appendName(b, name)
		b = append(b, exportFunc)
		b = appendUleb128(b, uint64(idx))
	}
	b = appendName(b, "memory")
	b = append(b, exportMemory)
	b = appendUleb128(b, 0)
	b = appendName(b, "__stack_pointer")
	b = append(b, exportGlobal)
	b = appendUleb128(b, 0)
	return b
}

func appendName(b []byte, s string) []byte {
	b = appendUleb128(b, uint64(len(s)))
	return append(b, s...)
}

// codeSection concatenates every function body behind the section's own
// function-count prefix, matching the teacher's separately-length-prefixed
// Code section.
func (mc *modCtx) codeSection() []byte {
	var b []byte
	b = appendUleb128(b, uint64(len(mc.code)))
	for _, fb := range mc.code {
		b = appendUleb128(b, uint64(len(fb.bytes)))
		b = append(b, fb.bytes...)
	}
	return b
}

// dataSectionBody emits the module's single active segment: memory index
// 0, an `i32.const 0` offset expression (mirroring the original's
// OP_I32_CONST-0/OP_END active-segment offset), then the whole linear
// memory image built by dataSegment.
func (mc *modCtx) dataSectionBody() []byte {
	var b []byte
	b = appendUleb128(b, 1) // one segment
	b = append(b, 0x00)     // memory index 0, active
	b = append(b, 0x41, 0x00, 0x0b)
	img := mc.dataSegment()
	b = appendUleb128(b, uint64(len(img)))
	return append(b, img...)
}
