// Package arm64 lowers a lowered, register-allocated internal/lir.Module
// to AArch64 assembly text (component G's primary target).
package arm64

import (
	"fmt"
	"path/filepath"

	"github.com/ijsf/xcc/internal/dataemit"
	"github.com/ijsf/xcc/internal/emitio"
	"github.com/ijsf/xcc/internal/lir"
	"github.com/ijsf/xcc/internal/regalloc"
	"github.com/ijsf/xcc/internal/regfile"
)

// Emit runs register allocation over every function in mod, then writes
// AArch64 assembly text for the whole module to w, following the section
// order of the teacher's own GenArm driver: a `.text` preamble, every
// function body, then `.data`/string-pool globals.
func Emit(mod *lir.Module, srcName string, w *emitio.Writer) error {
	rf := regfile.NewArm64()
	pl := &pool{}

	w.Write("\t.arch\tarmv8-a\n")
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
			return fmt.Errorf("arm64: %s: %w", fn.Name, err)
		}
		if err := genFunction(fn, rf, w, pl); err != nil {
			return fmt.Errorf("arm64: %s: %w", fn.Name, err)
		}
	}

	pl.flush(w)
	dataemit.Emit(mod, w)
	return w.Flush()
}
