package main

import (
	"fmt"

	"github.com/ijsf/xcc/internal/ast"
	"github.com/ijsf/xcc/internal/diag"
)

// translationUnit is what an external lexer/parser hands the driver for
// one file: the file-scope declarations in source order (their Func field
// set for function definitions, nil for plain data objects and
// declaration-only prototypes) and the global scope they resolve against.
type translationUnit struct {
	Global *ast.Scope
	Decls  []*ast.VarInfo
}

// parseSource is the seam the lexer and parser plug into. Both are listed
// among spec.md section 1's external collaborators ("referenced only
// through the interfaces they supply"), so xcc itself never tokenizes or
// parses C source text; it only consumes the typed, name-resolved
// declaration list a front end produces. The default reports a clear error
// rather than silently compiling nothing, so a build of this driver
// without a real front end wired in fails loudly instead of looking like
// an empty translation unit.
var parseSource = func(src []byte, filename string, d *diag.Sink) (*translationUnit, error) {
	return nil, fmt.Errorf("%s: no C front end registered; lexing and parsing are supplied externally", filename)
}
