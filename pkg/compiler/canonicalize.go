package compiler

import (
	"strings"

	"github.com/gomlx/jitrt/pkg/ir"
)

// CanonicalizePassName is the registered name of the clean-up pass.
const CanonicalizePassName = "canonicalize"

// canonicalizePass removes operations without side effects whose results are unused, and the
// custom call declarations no longer called.
type canonicalizePass struct{}

func (*canonicalizePass) Name() string { return CanonicalizePassName }

func (*canonicalizePass) Run(m *ir.Module, _ *PassContext) error {
	called := make(map[string]bool)
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		eliminateDeadCode(f)
		for _, op := range f.Body.Ops {
			if op.Name == "func.call" {
				called[op.Callee] = true
			}
		}
	}
	for _, f := range append([]*ir.Func(nil), m.Funcs...) {
		if _, isCustomCall := f.Attrs.GetString(CustomCallAttr); isCustomCall && f.IsDeclaration() && !called[f.Name] {
			m.Erase(f)
		}
	}
	return nil
}

// isPure returns whether the operation has no side effects.
func isPure(op *ir.Operation) bool {
	switch op.Dialect() {
	case "arith", "linalg", "tosa":
		return true
	}
	return strings.HasPrefix(op.Name, "memref.") && op.Name != "memref.copy"
}

// eliminateDeadCode visits the operations backwards, so chains of unused operations are removed
// in one sweep.
func eliminateDeadCode(f *ir.Func) {
	used := make(map[*ir.Value]bool)
	kept := make([]*ir.Operation, 0, len(f.Body.Ops))
	for ii := len(f.Body.Ops) - 1; ii >= 0; ii-- {
		op := f.Body.Ops[ii]
		if isPure(op) {
			live := false
			for _, result := range op.Results {
				if used[result] {
					live = true
					break
				}
			}
			if !live {
				continue
			}
		}
		for _, operand := range op.Operands {
			used[operand] = true
		}
		kept = append(kept, op)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	f.Body.Ops = kept
}
