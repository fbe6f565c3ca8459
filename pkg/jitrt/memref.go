package jitrt

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unsafe"

	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/core/tensors"
	"github.com/pkg/errors"
)

// MemrefDesc describes a strided view of a caller-owned buffer, passed as an argument to
// GetExecutable and Executable.Execute. The buffer is only borrowed for the duration of those calls.
//
// The element at index (i0, i1, ...) is at Data + Offset + (i0*Strides[0] + i1*Strides[1] + ...) * DType.Size().
type MemrefDesc struct {
	DType dtypes.DType
	Data  unsafe.Pointer

	// Offset in bytes of the first element. It must be a multiple of the element size.
	Offset int64

	Sizes []int64

	// Strides in number of elements.
	Strides []int64

	// keepAlive holds the Go storage of Data, if any.
	keepAlive any
}

// MemrefFromTensor describes the storage of the tensor (row-major, contiguous). The tensor is not
// copied, and is kept alive by the descriptor.
func MemrefFromTensor(t *tensors.Tensor) MemrefDesc {
	sizes := t.Shape().Dimensions64()
	return MemrefDesc{
		DType:     t.DType(),
		Data:      t.DataPointer(),
		Sizes:     sizes,
		Strides:   backends.RowMajorStrides(sizes),
		keepAlive: t,
	}
}

// MemrefFromFlat describes the flat slice as a contiguous buffer with the given sizes, without copying.
//
// It panics if the number of elements doesn't match the sizes.
func MemrefFromFlat[T dtypes.Supported](flat []T, sizes ...int64) MemrefDesc {
	m := backends.MemrefFromFlat(flat, sizes...)
	return MemrefDesc{
		DType:     m.DType,
		Data:      m.Data,
		Sizes:     m.Sizes,
		Strides:   m.Strides,
		keepAlive: flat,
	}
}

// Rank of the described buffer.
func (m MemrefDesc) Rank() int { return len(m.Sizes) }

// String returns the type of the buffer, e.g. "memref<2x2xf32>".
func (m MemrefDesc) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	for _, size := range m.Sizes {
		_, _ = fmt.Fprintf(&sb, "%dx", size)
	}
	sb.WriteString(m.DType.String())
	sb.WriteString(">")
	return sb.String()
}

// toABI converts the descriptor to the value passed to compiled programs.
func (m MemrefDesc) toABI() (*backends.Memref, error) {
	if !m.DType.IsValid() {
		return nil, errors.Errorf("invalid dtype %s", m.DType)
	}
	elementSize := int64(m.DType.Size())
	if m.Offset%elementSize != 0 {
		return nil, errors.Errorf("offset of %d bytes is not aligned to the element size (%d bytes) of %s",
			m.Offset, elementSize, m.DType)
	}
	abi := &backends.Memref{
		DType:   m.DType,
		Data:    m.Data,
		Offset:  m.Offset / elementSize,
		Sizes:   slices.Clone(m.Sizes),
		Strides: slices.Clone(m.Strides),
		Owner:   m.keepAlive,
	}
	if err := abi.Validate(); err != nil {
		return nil, err
	}
	return abi, nil
}

// integerValues returns the elements of an integer (or i1) memref, in row-major order.
func integerValues(m *backends.Memref) ([]int64, error) {
	if !m.DType.IsInteger() {
		return nil, errors.Errorf("expected an integer memref, got %s", m)
	}
	values := make([]int64, 0, m.NumElements())
	m.Iter(func(ptr unsafe.Pointer) bool {
		var v int64
		switch m.DType {
		case dtypes.I1:
			if *(*bool)(ptr) {
				v = 1
			}
		case dtypes.I8:
			v = int64(*(*int8)(ptr))
		case dtypes.I16:
			v = int64(*(*int16)(ptr))
		case dtypes.I32:
			v = int64(*(*int32)(ptr))
		case dtypes.I64:
			v = *(*int64)(ptr)
		case dtypes.UI8:
			v = int64(*(*uint8)(ptr))
		case dtypes.UI16:
			v = int64(*(*uint16)(ptr))
		case dtypes.UI32:
			v = int64(*(*uint32)(ptr))
		case dtypes.UI64:
			v = int64(*(*uint64)(ptr))
		}
		values = append(values, v)
		return true
	})
	return values, nil
}

// memrefToTensor converts a memref to a tensor, without copying if the memref is contiguous and
// starts at the beginning of its buffer.
func memrefToTensor(m *backends.Memref) (*tensors.Tensor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !m.IsContiguous() || m.Offset != 0 {
		m = m.Contiguous()
	}
	n := int(m.NumElements())
	goType := m.DType.GoType()
	var flat reflect.Value
	if n == 0 {
		flat = reflect.MakeSlice(reflect.SliceOf(goType), 0, 0)
	} else {
		flat = reflect.SliceAt(goType, m.Data, n)
	}
	return tensors.FromFlatAny(m.Shape(), flat.Interface())
}
