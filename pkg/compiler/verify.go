package compiler

import (
	"strings"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
)

// VerifyLoweredPassName is the registered name of the pass checking the module is fully lowered.
const VerifyLoweredPassName = "verify-lowered"

type verifyLoweredPass struct{}

func (*verifyLoweredPass) Name() string { return VerifyLoweredPassName }

// IsLoweredOp returns whether a backend is expected to execute the operation.
func IsLoweredOp(name string) bool {
	return name == "arith.constant" || name == "func.return" ||
		strings.HasPrefix(name, "linalg.") || strings.HasPrefix(name, "rt.")
}

func (*verifyLoweredPass) Run(m *ir.Module, ctx *PassContext) error {
	if ctx.Entry != "" {
		entry := m.Lookup(ctx.Entry)
		if entry == nil {
			return errors.Errorf("entry function @%s not found", ctx.Entry)
		}
		if entry.IsDeclaration() {
			return errors.Errorf("entry function @%s has no body", ctx.Entry)
		}
	}
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		for _, op := range f.Body.Ops {
			if !IsLoweredOp(op.Name) {
				ctx.Errorf(op.Loc, "operation '%s' was not lowered", op.Name)
			}
			for _, result := range op.Results {
				if ir.IsTensor(result.Type) {
					ctx.Errorf(op.Loc, "result %s of '%s' has tensor type %s after bufferization", result, op.Name, result.Type)
				}
			}
		}
	}
	return nil
}
