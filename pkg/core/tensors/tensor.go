/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package tensors implement a `Tensor`, a host representation of a dense multidimensional array.
//
// Tensors are the values host code hands to compiled programs (as memref descriptors pointing to
// the tensor's storage) and the values compiled programs hand back (see jitrt.ReturnMemrefAsTensor).
//
// There are various ways to construct a Tensor from local data:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): creates a Tensor with the
//     given dimensions, filled with the scalar value given.
//
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data. Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
//   - FromFlatAny(shape, flat): wraps (without copying) a flat Go slice whose element type matches the shape's
//     DType.
//
// The storage is always dense and row-major.
package tensors

import (
	"reflect"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Tensor is a dense multidimensional array stored in a flat Go slice.
type Tensor struct {
	shape shapes.Shape

	// flat is a slice of the Go type corresponding to shape.DType, with shape.Size() elements.
	flat any
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	size := shape.Size()
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), size, size)
	return &Tensor{shape: shape, flat: flat.Interface()}
}

// FromFlatAny wraps the given flat slice as a tensor of the given shape. The data is not copied.
//
// It returns an error if flat is not a slice of the Go type of the shape's DType, or if its length
// doesn't match the shape's size.
func FromFlatAny(shape shapes.Shape, flat any) (*Tensor, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return nil, errors.Errorf("tensors.FromFlatAny(%s): flat must be a slice, got %T", shape, flat)
	}
	if !shape.Ok() || flatV.Type().Elem() != shape.DType.GoType() {
		return nil, errors.Errorf("tensors.FromFlatAny(%s): flat has type %T, incompatible with the shape", shape, flat)
	}
	if flatV.Len() != shape.Size() {
		return nil, errors.Errorf("tensors.FromFlatAny(%s): flat has %d elements, shape requires %d",
			shape, flatV.Len(), shape.Size())
	}
	return &Tensor{shape: shape.Clone(), flat: flat}, nil
}

// FromScalar creates a local tensor with the given scalar.
// The `DType` is inferred from the value.
func FromScalar[T dtypes.Supported](value T) (t *Tensor) {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a local tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
// The `DType` is inferred from the value.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	t := FromShape(shapes.Make(dtype, dimensions...))
	flat := t.flat.([]T)
	for ii := range flat {
		flat[ii] = value
	}
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
//
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf(
			"FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape,
			len(data),
			shape.Size(),
		)
	}
	t := FromShape(shape)
	copy(t.flat.([]T), data)
	return t
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's elements.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size is the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory is the number of bytes used by the tensor's data.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// FlatAny returns the underlying flat slice (e.g. a []float32), without copying.
func (t *Tensor) FlatAny() any { return t.flat }

// LayoutStrides returns the strides of the tensor's storage, in elements.
func (t *Tensor) LayoutStrides() []int {
	return t.shape.Strides()
}

// DataPointer returns a pointer to the first element of the storage.
//
// The pointer is only valid while the Tensor is alive: use runtime.KeepAlive(t) after the last use.
// It returns nil for tensors with no elements.
func (t *Tensor) DataPointer() unsafe.Pointer {
	if t.Size() == 0 {
		return nil
	}
	return reflect.ValueOf(t.flat).UnsafePointer()
}

// Bytes returns a view of the tensor's storage as bytes. It shares the storage.
func (t *Tensor) Bytes() []byte {
	if t.Size() == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(t.DataPointer()), t.Memory())
}

// Flat returns the underlying flat slice, without copying.
// It panics if T doesn't match the tensor's DType.
func Flat[T dtypes.Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		var zero T
		exceptions.Panicf("tensors.Flat[%T]: tensor has dtype %s", zero, t.DType())
	}
	return flat
}

// CopyFlatData returns a copy of the flat data of the tensor.
// It panics if T doesn't match the tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	flat := Flat[T](t)
	return append(make([]T, 0, len(flat)), flat...)
}

// ToScalar returns the scalar value of a rank-0 tensor (or of a tensor with a single element).
func ToScalar[T dtypes.Supported](t *Tensor) T {
	if t.Size() != 1 {
		exceptions.Panicf("tensors.ToScalar: tensor %s has %d elements", t.shape, t.Size())
	}
	return Flat[T](t)[0]
}

// Value returns a multidimensional slice (e.g. [][]float32) or a scalar (e.g. float32) with a copy of
// the tensor's values.
func (t *Tensor) Value() any {
	flatV := reflect.ValueOf(t.flat)
	if t.shape.IsScalar() {
		return flatV.Index(0).Interface()
	}
	clone := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(clone, flatV)
	return convertDataToSlices(clone, t.shape.Dimensions...).Interface()
}

// convertDataToSlices takes data as a flat slice and creates a multidimensional slice with the given dimensions that
// points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	return createSlicesRecursively(resultT, dataV, dimensions, shapes.Make(dtypes.I1, dimensions...).Strides())
}

func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		return data
	}
	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)
	for ii := 0; ii < numElements; ii++ {
		subData := data.Slice(ii*strides[0], (ii+1)*strides[0])
		slice.Index(ii).Set(createSlicesRecursively(resultT.Elem(), subData, dimensions[1:], strides[1:]))
	}
	return slice
}

// Equal checks whether t == otherTensor: same shape and same values.
// If they are the same pointer, they are considered equal.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	if t == otherTensor {
		return true
	}
	if t == nil || otherTensor == nil || !t.shape.Equal(otherTensor.shape) {
		return false
	}
	t0V := reflect.ValueOf(t.flat)
	t1V := reflect.ValueOf(otherTensor.flat)
	for ii := range t0V.Len() {
		if !t0V.Index(ii).Equal(t1V.Index(ii)) {
			return false
		}
	}
	return true
}
