package simplego

import (
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/pkg/errors"
)

// Operations of the "rt" dialect: calls back into the host through the kernel context.

func init() {
	RegisterOp("rt.custom_call", buildCustomCall)
	RegisterOp("rt.set_error", buildSetError)
}

func buildCustomCall(op *ir.Operation) (Executor, error) {
	callee, found := op.Attrs.GetString("callee")
	if !found {
		return nil, errors.New("missing \"callee\" string attribute")
	}
	if len(op.Operands) > 0 || len(op.Results) > 0 {
		return nil, errors.Errorf("custom call %q with operands or results is not supported", callee)
	}
	attrs, err := customcall.EncodeAttributes(op.Attrs, "callee")
	if err != nil {
		return nil, err
	}
	return func(kctx backends.KernelContext, _ []*backends.Memref) (*backends.Memref, error) {
		if kctx == nil {
			return nil, errors.Errorf("custom call %q requires a kernel context", callee)
		}
		return nil, kctx.CustomCall(callee, attrs)
	}, nil
}

func buildSetError(op *ir.Operation) (Executor, error) {
	message, found := op.Attrs.GetString("message")
	if !found {
		return nil, errors.New("missing \"message\" string attribute")
	}
	return func(kctx backends.KernelContext, _ []*backends.Memref) (*backends.Memref, error) {
		if kctx == nil {
			return nil, errors.Errorf("runtime error without kernel context: %s", message)
		}
		kctx.SetError(message)
		return nil, nil
	}, nil
}
