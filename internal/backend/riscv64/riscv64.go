// Package riscv64 lowers a lowered, register-allocated internal/lir.Module
// to RV64GC assembly text, the module's second code-generation target
// alongside internal/backend/arm64.
package riscv64

import (
	"fmt"
	"path/filepath"

	"github.com/ijsf/xcc/internal/dataemit"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
	"github.com/ijsf/xcc/internal/regalloc"
	"github.com/ijsf/xcc/internal/regfile"
)

// Emit mirrors internal/backend/arm64.Emit: allocate every function, emit
// its body, then flush the literal/jump-table pool and the module's
// globals. The `.option`/`.attribute` preamble follows the directive shape
// the teacher's own backend/riscv/riscv.go driver emits ahead of its
// function bodies.
func Emit(mod *lir.Module, srcName string, w *emitio.Writer) error {
	rf := regfile.NewRiscv64()
	pl := &pool{}

	w.Write("\t.option\tnopic\n")
	w.Write("\t.attribute\tarch, \"rv64gc\"\n")
	w.Write("\t.file\t%q\n", filepath.Base(srcName))
	w.Write("\t.text\n")

	for _, fn := range mod.Funcs {
		if fn.Static {
			continue
		}
		w.Write("\t.global\t%s\n", fn.Name)
	}

	for _, fn := range mod.Funcs {
		if err := regalloc.AllocateFunction(fn, rf); err != nil {
			return fmt.Errorf("riscv64: %s: %w", fn.Name, err)
		}
		if err := genFunction(fn, rf, w, pl); err != nil {
			return fmt.Errorf("riscv64: %s: %w", fn.Name, err)
		}
	}

	pl.flush(w)
	dataemit.Emit(mod, w)
	return w.Flush()
}
