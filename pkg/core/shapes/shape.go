// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the static description of a dense multidimensional array:
// the DType of its elements and the size of each axis.
//
// Glossary:
//
//   - Rank: number of axes of the array. Rank 0 is a scalar.
//   - Axis: index of one of the dimensions.
//   - Dimension: the size of the array along one axis.
//
// Example: the multi-dimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` has shape `(i32)[2 3]`,
// created with `shapes.Make(dtypes.I32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
)

// Shape represents the shape of a dense array: its element DType and dimensions.
//
// Dimensions may be zero (empty arrays), but never negative: dynamic sizes only exist
// in IR types, never in concrete values.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
// It panics if any dimension is negative.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with negative dimension", s)
		}
	}
	return s
}

// Invalid returns an invalid shape.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType.IsValid() }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the number of bytes used to store a dense array of the given shape.
func (s Shape) Memory() uintptr {
	return uintptr(s.DType.Size()) * uintptr(s.Size())
}

// Strides returns the row-major (last axis is contiguous) strides of the shape, in elements.
func (s Shape) Strides() []int {
	strides := make([]int, s.Rank())
	stride := 1
	for axis := s.Rank() - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= s.Dimensions[axis]
	}
	return strides
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// Dimensions64 returns the dimensions converted to int64, the form used by memref descriptors.
func (s Shape) Dimensions64() []int64 {
	dims := make([]int64, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		dims[ii] = int64(dim)
	}
	return dims
}

// FromDimensions64 builds a Shape from int64 dimensions. It panics on negative dimensions.
func FromDimensions64(dtype dtypes.DType, dimensions []int64) Shape {
	dims := make([]int, len(dimensions))
	for ii, dim := range dimensions {
		dims[ii] = int(dim)
	}
	return Make(dtype, dims...)
}
