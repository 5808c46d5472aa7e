package wasm

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ctype"
	"github.com/ijsf/xcc/internal/lir"
	lirtypes "github.com/ijsf/xcc/internal/lir/types"
)

// fnCtx holds one function's codegen state: every virtual register's wasm
// local index, the bofs'd registers' frame-relative offsets, and the
// dispatch-loop block index map that stands in for this backend's lack of
// internal/regalloc and its lack of arbitrary goto.
//
// WASM's structured control flow can't target an arbitrary internal/lir
// basic block the way a native branch instruction can, so this backend
// wraps every function body in a single `loop` containing one nested
// `block` per basic block and a `br_table` keyed by a `$pc` local —
// every Jmp/Cond/Tjmp becomes "set $pc, continue the loop" instead of a
// direct branch. This is the standard technique wasm-targeting compilers
// without a full relooper fall back to (it trades code quality for
// handling any CFG shape, including irreducible ones from C goto); it has
// no grounding source in original_source/wasm/src/wcc.c, which never
// reaches function-body codegen.
type fnCtx struct {
	*modCtx
	fn *lir.Function

	local    map[*lir.Register]uint32
	nextLoc  uint32
	declared []byte // locals-section entries: (count, type) run-length pairs

	bofsOff   map[*lir.Register]int64
	frameSize int64
	fpLocal   uint32

	blockIdx    map[*lir.Block]int
	pcLocal     uint32
	scratch     uint32
	curBlockIdx int

	// pendingArgs buffers a Precall/Pusharg/Call sequence the same way the
	// native backends' ctx.pendingArgs does.
	pendingArgs []lir.Value

	code []byte
}

// loopDepth returns the wasm branch depth of the function's dispatch loop
// as seen from inside the current basic block's code, which is nested
// (n-1-k) block-wrapper labels deep for block index k — see the block
// comment on genBlocks for the nesting derivation.
func (fc *fnCtx) loopDepth() int {
	return len(fc.fn.Blocks) - 1 - fc.curBlockIdx
}

func (mc *modCtx) genFunc(fn *lir.Function) error {
	fc := &fnCtx{
		modCtx:   mc,
		fn:       fn,
		local:    make(map[*lir.Register]uint32, len(fn.Registers)),
		bofsOff:  make(map[*lir.Register]int64),
		blockIdx: make(map[*lir.Block]int, len(fn.Blocks)),
	}

	for i, p := range fn.Params {
		fc.local[p] = uint32(i)
	}
	fc.nextLoc = uint32(len(fn.Params))

	fc.layoutBofs()
	fc.declareLocals()

	for i, b := range fn.Blocks {
		fc.blockIdx[b] = i
	}

	fc.prologue()
	if err := fc.genBlocks(); err != nil {
		return err
	}
	fc.code = append(fc.code, 0x0b) // end of function

	body := append(fc.declared, fc.code...)
	mc.code = append(mc.code, funcBody{bytes: body})
	return nil
}

// layoutBofs assigns a linear-memory frame slot to every register that a
// Bofs instruction takes the address of, the wasm equivalent of the native
// backends' allocator-assigned Spill offsets (unavailable here since this
// backend never calls internal/regalloc).
func (fc *fnCtx) layoutBofs() {
	var pos int64
	for _, b := range fc.fn.Blocks {
		for _, in := range b.Instr {
			if in.Op != lirtypes.Bofs || in.Dst == nil {
				continue
			}
			if _, ok := fc.bofsOff[in.Dst]; ok {
				continue
			}
			sz := int64(ctype.TypeSize(in.Dst.Typ.Pointee))
			if sz <= 0 {
				sz = 8
			}
			pos = align(pos, 8)
			fc.bofsOff[in.Dst] = pos
			pos += sz
		}
	}
	fc.frameSize = align(pos, 16)
}

// declareLocals assigns a wasm local index (grouped by type, run-length
// encoded the way the binary format requires) to $fp, $pc, and every
// virtual register, skipping only the registers already mapped as
// parameters.
func (fc *fnCtx) declareLocals() {
	var types []byte
	alloc := func(t byte) uint32 {
		idx := fc.nextLoc
		fc.nextLoc++
		types = append(types, t)
		return idx
	}

	fc.fpLocal = alloc(valI32)
	fc.pcLocal = alloc(valI32)
	fc.scratch = alloc(valI32)

	for _, r := range fc.fn.Registers {
		if _, ok := fc.local[r]; ok {
			continue
		}
		fc.local[r] = alloc(valtype(r.Typ))
	}

	fc.declared = runLengthLocals(types)
}

func runLengthLocals(types []byte) []byte {
	var groups [][2]int // count, type
	for _, t := range types {
		if len(groups) > 0 && groups[len(groups)-1][1] == int(t) {
			groups[len(groups)-1][0]++
			continue
		}
		groups = append(groups, [2]int{1, int(t)})
	}
	var b []byte
	b = appendUleb128(b, uint64(len(groups)))
	for _, g := range groups {
		b = appendUleb128(b, uint64(g[0]))
		b = append(b, byte(g[1]))
	}
	return b
}

// prologue saves the incoming stack pointer into $fp, then carves this
// function's frame out of linear memory by decrementing the
// `__stack_pointer` global — the wasm analog of the native backends'
// `sub sp, sp, #frame` prologue instruction, grounded on that same
// shrink-the-stack idiom and on the standard `__stack_pointer` mutable
// global convention wasm backends use in place of a hardware SP register.
func (fc *fnCtx) prologue() {
	fc.emit(0x23, uleb(0)) // global.get $__stack_pointer
	fc.emit(0x22, uleb(uint64(fc.fpLocal))) // local.tee $fp
	if fc.frameSize > 0 {
		fc.emit(0x41, sleb(fc.frameSize)) // i32.const frameSize
		fc.code = append(fc.code, 0x6b)   // i32.sub
		fc.emit(0x24, uleb(0))            // global.set $__stack_pointer
	}

	fc.emit(0x41, sleb(int64(fc.blockIdx[fc.fn.Entry]))) // i32.const entry
	fc.emit(0x21, uleb(uint64(fc.pcLocal)))               // local.set $pc
}

// epilogue restores `__stack_pointer` from $fp and returns, optionally
// pushing fn.RetReg's value first.
func (fc *fnCtx) epilogue() {
	if fc.fn.RetReg != nil {
		fc.pushValue(fc.fn.RetReg)
	}
	fc.code = append(fc.code, 0x20) // local.get $fp
	fc.code = appendUleb128(fc.code, uint64(fc.fpLocal))
	fc.emit(0x24, uleb(0)) // global.set $__stack_pointer
	fc.code = append(fc.code, 0x0f) // return
}

// genBlocks emits the nested block/loop dispatcher and every basic
// block's instructions inside it.
func (fc *fnCtx) genBlocks() error {
	n := len(fc.fn.Blocks)
	if n == 0 {
		return nil
	}

	fc.code = append(fc.code, 0x03, 0x40) // loop (empty block type)
	for i := n - 1; i >= 0; i-- {
		fc.code = append(fc.code, 0x02, 0x40) // block (empty block type)
	}

	// br_table: one target label per block index (depth i for block i,
	// since block i is nested i levels deep from this point), default to
	// the loop itself (depth n) — unreachable in well-formed input. The
	// scrutinee must be pushed before the br_table opcode.
	fc.code = append(fc.code, 0x20) // local.get $pc
	fc.code = appendUleb128(fc.code, uint64(fc.pcLocal))
	fc.code = append(fc.code, 0x0e)
	fc.code = appendUleb128(fc.code, uint64(n))
	for i := 0; i < n; i++ {
		fc.code = appendUleb128(fc.code, uint64(i))
	}
	fc.code = appendUleb128(fc.code, uint64(n))

	for i, b := range fc.fn.Blocks {
		fc.code = append(fc.code, 0x0b) // end of block i's wrapper
		fc.curBlockIdx = i
		for _, in := range b.Instr {
			if err := fc.genInstr(in); err != nil {
				return fmt.Errorf("block %s: %w", b.Label, err)
			}
		}
		if b == fc.fn.Epilogue {
			fc.epilogue()
		}
	}
	fc.code = append(fc.code, 0x0b) // end of loop
	return nil
}

func (fc *fnCtx) emit(opcode byte, imm []byte) {
	fc.code = append(fc.code, opcode)
	fc.code = append(fc.code, imm...)
}

func uleb(v uint64) []byte { return appendUleb128(nil, v) }
func sleb(v int64) []byte  { return appendSleb128(nil, v) }
