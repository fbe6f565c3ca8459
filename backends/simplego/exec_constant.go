package simplego

import (
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/pkg/errors"
)

// constantFromOp materializes the dense "value" of an "arith.constant" operation.
func constantFromOp(op *ir.Operation) (*backends.Memref, error) {
	attr, _ := op.Attrs.Get("value")
	dense, ok := attr.(*ir.DenseElementsAttr)
	if !ok {
		return nil, errors.Errorf("'arith.constant' requires a dense \"value\" attribute, got %v", attr)
	}
	dtype, err := rttypes.ConvertElementType(dense.Type.Elem)
	if err != nil {
		return nil, err
	}
	m := backends.AllocateMemref(dtype, dense.Type.Shape)
	if int64(dense.NumElements()) != m.NumElements() {
		return nil, errors.Errorf("constant %s has %d values", dense.Type, dense.NumElements())
	}
	if dense.IsInteger() {
		switch flat := m.Owner.(type) {
		case []bool:
			for ii, v := range dense.Ints {
				flat[ii] = v != 0
			}
		case []int8:
			fillFromInts(flat, dense.Ints)
		case []int16:
			fillFromInts(flat, dense.Ints)
		case []int32:
			fillFromInts(flat, dense.Ints)
		case []int64:
			fillFromInts(flat, dense.Ints)
		case []uint8:
			fillFromInts(flat, dense.Ints)
		case []uint16:
			fillFromInts(flat, dense.Ints)
		case []uint32:
			fillFromInts(flat, dense.Ints)
		case []uint64:
			fillFromInts(flat, dense.Ints)
		default:
			return nil, errors.Errorf("integer constant of dtype %s not supported", dtype)
		}
		return m, nil
	}
	switch dtype {
	case dtypes.F32:
		flat := m.Owner.([]float32)
		for ii, v := range dense.Floats {
			flat[ii] = float32(v)
		}
	case dtypes.F64:
		copy(m.Owner.([]float64), dense.Floats)
	default:
		return nil, errors.Errorf("constant of dtype %s not supported", dtype)
	}
	return m, nil
}

func fillFromInts[T ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64](flat []T, values []int64) {
	for ii, v := range values {
		flat[ii] = T(v)
	}
}
