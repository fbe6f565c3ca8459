package compiler

import (
	"github.com/gomlx/jitrt/pkg/ir"
)

// BufferizePassName is the registered name of the pass converting tensors to memrefs.
const BufferizePassName = "bufferize"

// bufferizePass rewrites every tensor type to the memref type of the same shape: function
// signatures, operation results and async values. Constant attributes keep their tensor type.
type bufferizePass struct{}

func (*bufferizePass) Name() string { return BufferizePassName }

func (*bufferizePass) Run(m *ir.Module, _ *PassContext) error {
	for _, f := range m.Funcs {
		for _, arg := range f.Args {
			arg.Type = BufferizeType(arg.Type)
		}
		for ii, t := range f.ResultTypes {
			f.ResultTypes[ii] = BufferizeType(t)
		}
		if f.IsDeclaration() {
			continue
		}
		for _, op := range f.Body.Ops {
			for _, result := range op.Results {
				result.Type = BufferizeType(result.Type)
			}
		}
	}
	return nil
}

// BufferizeType returns the memref form of tensor types, and t unchanged otherwise.
func BufferizeType(t ir.Type) ir.Type {
	switch t := t.(type) {
	case *ir.RankedTensorType:
		return &ir.MemRefType{Shape: t.Shape, Elem: t.Elem}
	case *ir.UnrankedTensorType:
		return &ir.UnrankedMemRefType{Elem: t.Elem}
	case *ir.AsyncValueType:
		return &ir.AsyncValueType{Value: BufferizeType(t.Value)}
	}
	return t
}
