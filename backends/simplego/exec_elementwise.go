package simplego

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
)

// This file implements element-wise operations.
// Operands of size 1 are broadcast to the shape of the other operand.

type binaryOp int

const (
	binaryAdd binaryOp = iota
	binarySub
	binaryMul
)

func init() {
	RegisterOp("linalg.add", binaryBuilder(binaryAdd))
	RegisterOp("linalg.sub", binaryBuilder(binarySub))
	RegisterOp("linalg.mul", binaryBuilder(binaryMul))
	RegisterOp("linalg.negate", buildNegate)
}

func binaryBuilder(op binaryOp) OpBuilder {
	return func(irOp *ir.Operation) (Executor, error) {
		if len(irOp.Operands) != 2 || len(irOp.Results) != 1 {
			return nil, errors.New("expected 2 operands and 1 result")
		}
		return func(_ backends.KernelContext, inputs []*backends.Memref) (*backends.Memref, error) {
			return execBinary(op, inputs[0], inputs[1])
		}, nil
	}
}

func execBinary(op binaryOp, lhs, rhs *backends.Memref) (*backends.Memref, error) {
	if lhs.DType != rhs.DType {
		return nil, errors.Errorf("operands have different dtypes: %s and %s", lhs, rhs)
	}
	sizes := lhs.Sizes
	switch {
	case slices.Equal(lhs.Sizes, rhs.Sizes):
	case rhs.NumElements() == 1:
	case lhs.NumElements() == 1:
		sizes = rhs.Sizes
	default:
		return nil, errors.Errorf("operands have incompatible shapes: %s and %s", lhs, rhs)
	}

	switch lhs.DType {
	case dtypes.I8:
		return execBinaryGeneric[int8](op, lhs, rhs, sizes), nil
	case dtypes.I16:
		return execBinaryGeneric[int16](op, lhs, rhs, sizes), nil
	case dtypes.I32:
		return execBinaryGeneric[int32](op, lhs, rhs, sizes), nil
	case dtypes.I64:
		return execBinaryGeneric[int64](op, lhs, rhs, sizes), nil
	case dtypes.UI8:
		return execBinaryGeneric[uint8](op, lhs, rhs, sizes), nil
	case dtypes.UI16:
		return execBinaryGeneric[uint16](op, lhs, rhs, sizes), nil
	case dtypes.UI32:
		return execBinaryGeneric[uint32](op, lhs, rhs, sizes), nil
	case dtypes.UI64:
		return execBinaryGeneric[uint64](op, lhs, rhs, sizes), nil
	case dtypes.F32:
		return execBinaryGeneric[float32](op, lhs, rhs, sizes), nil
	case dtypes.F64:
		return execBinaryGeneric[float64](op, lhs, rhs, sizes), nil
	case dtypes.Complex64:
		return execBinaryGeneric[complex64](op, lhs, rhs, sizes), nil
	case dtypes.Complex128:
		return execBinaryGeneric[complex128](op, lhs, rhs, sizes), nil
	}
	return nil, errors.Errorf("unsupported data type %s for element-wise arithmetic", lhs.DType)
}

func execBinaryGeneric[T dtypes.Number](op binaryOp, lhs, rhs *backends.Memref, sizes []int64) *backends.Memref {
	lhsFlat, rhsFlat := backends.Flat[T](lhs), backends.Flat[T](rhs)
	lhsIsScalarOr1, rhsIsScalarOr1 := len(lhsFlat) == 1, len(rhsFlat) == 1
	output := make([]T, backends.NumElements(sizes))
	var fn func(a, b T) T
	switch op {
	case binaryAdd:
		fn = func(a, b T) T { return a + b }
	case binarySub:
		fn = func(a, b T) T { return a - b }
	case binaryMul:
		fn = func(a, b T) T { return a * b }
	default:
		exceptions.Panicf("unknown binary op %d", op)
	}
	for ii := range output {
		a, b := lhsFlat[0], rhsFlat[0]
		if !lhsIsScalarOr1 {
			a = lhsFlat[ii]
		}
		if !rhsIsScalarOr1 {
			b = rhsFlat[ii]
		}
		output[ii] = fn(a, b)
	}
	return backends.MemrefFromFlat(output, sizes...)
}

func buildNegate(op *ir.Operation) (Executor, error) {
	if len(op.Operands) != 1 || len(op.Results) != 1 {
		return nil, errors.New("expected 1 operand and 1 result")
	}
	return func(_ backends.KernelContext, inputs []*backends.Memref) (*backends.Memref, error) {
		input := inputs[0]
		switch input.DType {
		case dtypes.I8:
			return execNegGeneric[int8](input), nil
		case dtypes.I16:
			return execNegGeneric[int16](input), nil
		case dtypes.I32:
			return execNegGeneric[int32](input), nil
		case dtypes.I64:
			return execNegGeneric[int64](input), nil
		case dtypes.UI8:
			return execNegGeneric[uint8](input), nil
		case dtypes.UI16:
			return execNegGeneric[uint16](input), nil
		case dtypes.UI32:
			return execNegGeneric[uint32](input), nil
		case dtypes.UI64:
			return execNegGeneric[uint64](input), nil
		case dtypes.F32:
			return execNegGeneric[float32](input), nil
		case dtypes.F64:
			return execNegGeneric[float64](input), nil
		case dtypes.Complex64:
			return execNegGeneric[complex64](input), nil
		case dtypes.Complex128:
			return execNegGeneric[complex128](input), nil
		}
		return nil, errors.Errorf("unsupported data type %s for 'linalg.negate'", input.DType)
	}, nil
}

func execNegGeneric[T dtypes.Number](input *backends.Memref) *backends.Memref {
	output := backends.Flat[T](input)
	for ii, v := range output {
		output[ii] = -v
	}
	return backends.MemrefFromFlat(output, input.Sizes...)
}
