package backends

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/core/shapes"
	"github.com/gomlx/jitrt/pkg/support/xsync"
	"github.com/pkg/errors"
)

// Value is one of *Memref, *AsyncToken or *AsyncValue: the values that cross the boundary
// between host code and programs. The set is closed.
type Value interface {
	isValue()
}

// Memref describes a strided view of a buffer. A rank-0 Memref holds a scalar.
//
// The element at index (i0, i1, ...) is at Data + (Offset + i0*Strides[0] + i1*Strides[1] + ...) * DType.Size().
type Memref struct {
	DType dtypes.DType

	// Data points to the buffer. It is not owned by the Memref, unless Owner keeps it alive.
	Data unsafe.Pointer

	// Offset, in elements, of the first element.
	Offset int64

	Sizes   []int64
	Strides []int64

	// Owner, if not nil, holds the storage of Data (usually a Go slice), to keep it from being
	// garbage collected.
	Owner any
}

// AsyncToken signals the completion of asynchronous work.
type AsyncToken struct {
	promise *xsync.Promise[struct{}]
}

// AsyncValue is a Memref that becomes available asynchronously.
type AsyncValue struct {
	promise *xsync.Promise[*Memref]
}

func (*Memref) isValue()     {}
func (*AsyncToken) isValue() {}
func (*AsyncValue) isValue() {}

// RowMajorStrides returns the strides (in elements) of a contiguous buffer with the given sizes.
func RowMajorStrides(sizes []int64) []int64 {
	strides := make([]int64, len(sizes))
	stride := int64(1)
	for axis := len(sizes) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= sizes[axis]
	}
	return strides
}

// NumElements returns the product of sizes, 1 for scalars.
func NumElements(sizes []int64) int64 {
	n := int64(1)
	for _, size := range sizes {
		n *= size
	}
	return n
}

// AllocateMemref returns a contiguous Memref with zeroed storage, owned by the Memref.
func AllocateMemref(dtype dtypes.DType, sizes []int64) *Memref {
	n := NumElements(sizes)
	if n < 0 {
		exceptions.Panicf("AllocateMemref(%s, %v): invalid sizes", dtype, sizes)
	}
	flat := reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), int(n), int(n))
	var data unsafe.Pointer
	if n > 0 {
		data = flat.UnsafePointer()
	}
	return &Memref{
		DType:   dtype,
		Data:    data,
		Sizes:   slices.Clone(sizes),
		Strides: RowMajorStrides(sizes),
		Owner:   flat.Interface(),
	}
}

// MemrefFromFlat wraps the flat slice as a contiguous Memref with the given sizes, without copying.
// T must be the Go type of one of the supported dtypes.
func MemrefFromFlat[T any](flat []T, sizes ...int64) *Memref {
	dtype := dtypes.FromGoType(reflect.TypeFor[T]())
	if !dtype.IsValid() {
		exceptions.Panicf("MemrefFromFlat: type %s has no dtype", reflect.TypeFor[T]())
	}
	if NumElements(sizes) != int64(len(flat)) {
		exceptions.Panicf("MemrefFromFlat: %d elements given for sizes %v", len(flat), sizes)
	}
	return &Memref{
		DType:   dtype,
		Data:    unsafe.Pointer(unsafe.SliceData(flat)),
		Sizes:   slices.Clone(sizes),
		Strides: RowMajorStrides(sizes),
		Owner:   flat,
	}
}

// Rank of the memref.
func (m *Memref) Rank() int { return len(m.Sizes) }

// NumElements of the memref.
func (m *Memref) NumElements() int64 { return NumElements(m.Sizes) }

// IsContiguous returns whether the elements are stored in row-major order without gaps.
// Strides of axes of size 1 are ignored.
func (m *Memref) IsContiguous() bool {
	expected := int64(1)
	for axis := len(m.Sizes) - 1; axis >= 0; axis-- {
		if m.Sizes[axis] != 1 && m.Strides[axis] != expected {
			return false
		}
		expected *= m.Sizes[axis]
	}
	return true
}

// Shape returns the shape of the memref.
func (m *Memref) Shape() shapes.Shape {
	return shapes.FromDimensions64(m.DType, m.Sizes)
}

// String returns the type of the memref, e.g. "memref<2x2xf32>".
func (m *Memref) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	for _, size := range m.Sizes {
		_, _ = fmt.Fprintf(&sb, "%dx", size)
	}
	sb.WriteString(m.DType.String())
	sb.WriteString(">")
	return sb.String()
}

// Validate checks the memref is well-formed: valid dtype, one stride per size, non-negative sizes
// and offset, and a data pointer if it has elements.
func (m *Memref) Validate() error {
	if !m.DType.IsValid() {
		return errors.Errorf("memref has invalid dtype %s", m.DType)
	}
	if len(m.Sizes) != len(m.Strides) {
		return errors.Errorf("memref has %d sizes but %d strides", len(m.Sizes), len(m.Strides))
	}
	if m.Offset < 0 {
		return errors.Errorf("memref has negative offset %d", m.Offset)
	}
	for axis, size := range m.Sizes {
		if size < 0 {
			return errors.Errorf("memref has negative size %d at axis %d", size, axis)
		}
	}
	if m.Data == nil && m.NumElements() > 0 {
		return errors.Errorf("memref %s has nil data", m)
	}
	return nil
}

// ElementPointer returns the address of the element at the given indices.
func (m *Memref) ElementPointer(indices []int) unsafe.Pointer {
	offset := m.Offset
	for axis, idx := range indices {
		offset += int64(idx) * m.Strides[axis]
	}
	return unsafe.Add(m.Data, offset*int64(m.DType.Size()))
}

// Iter iterates over the address of every element, in row-major order.
func (m *Memref) Iter(yield func(ptr unsafe.Pointer) bool) {
	dims := make([]int, len(m.Sizes))
	for axis, size := range m.Sizes {
		dims[axis] = int(size)
	}
	for indices := range shapes.IterDimensions(dims) {
		if !yield(m.ElementPointer(indices)) {
			return
		}
	}
}

// Contiguous returns a contiguous copy of the memref, owning its storage.
func (m *Memref) Contiguous() *Memref {
	out := AllocateMemref(m.DType, m.Sizes)
	if out.Data == nil {
		return out
	}
	elementSize := uintptr(m.DType.Size())
	dst := unsafe.Slice((*byte)(out.Data), uintptr(m.NumElements())*elementSize)
	if m.IsContiguous() {
		copy(dst, unsafe.Slice((*byte)(unsafe.Add(m.Data, m.Offset*int64(elementSize))), len(dst)))
		return out
	}
	pos := uintptr(0)
	m.Iter(func(ptr unsafe.Pointer) bool {
		copy(dst[pos:pos+elementSize], unsafe.Slice((*byte)(ptr), elementSize))
		pos += elementSize
		return true
	})
	return out
}

// Bytes returns a contiguous copy of the elements as bytes, in row-major order.
func (m *Memref) Bytes() []byte {
	c := m.Contiguous()
	if c.Data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(c.Data), uintptr(c.NumElements())*uintptr(c.DType.Size()))
}

// Flat returns a contiguous copy of the elements. T must be the Go type of the DType.
func Flat[T any](m *Memref) []T {
	if dtypes.FromGoType(reflect.TypeFor[T]()) != m.DType {
		exceptions.Panicf("Flat[%s] called on a memref of dtype %s", reflect.TypeFor[T](), m.DType)
	}
	out := make([]T, 0, m.NumElements())
	m.Iter(func(ptr unsafe.Pointer) bool {
		out = append(out, *(*T)(ptr))
		return true
	})
	return out
}

// NewAsyncToken returns a pending AsyncToken, and the function to signal its completion (with an
// optional error).
func NewAsyncToken() (*AsyncToken, func(err error)) {
	t := &AsyncToken{promise: xsync.NewPromise[struct{}]()}
	return t, func(err error) {
		if err != nil {
			t.promise.Reject(err)
		} else {
			t.promise.Resolve(struct{}{})
		}
	}
}

// Await blocks until the token is available, and returns its error, if any.
func (t *AsyncToken) Await() error {
	_, err := t.promise.Await()
	return err
}

// IsAvailable returns whether the token was completed.
func (t *AsyncToken) IsAvailable() bool { return t.promise.IsAvailable() }

// NewAsyncValue returns a pending AsyncValue, and the function to set its value (or error).
func NewAsyncValue() (*AsyncValue, func(m *Memref, err error)) {
	v := &AsyncValue{promise: xsync.NewPromise[*Memref]()}
	return v, func(m *Memref, err error) {
		if err != nil {
			v.promise.Reject(err)
		} else {
			v.promise.Resolve(m)
		}
	}
}

// Await blocks until the value is available.
func (v *AsyncValue) Await() (*Memref, error) {
	return v.promise.Await()
}

// IsAvailable returns whether the value was set.
func (v *AsyncValue) IsAvailable() bool { return v.promise.IsAvailable() }
