// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"testing"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, dtypes.F32, tensor.DType())
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, tensor.Value())
	assert.Equal(t, uintptr(16), tensor.Memory())
	assert.Len(t, tensor.Bytes(), 16)
	assert.NotNil(t, tensor.DataPointer())
	assert.Equal(t, "(f32)[2 2]: [[1, 2], [3, 4]]", tensor.String())

	require.Panics(t, func() { _ = FromFlatDataAndDimensions([]int32{1, 2, 3}, 2, 2) })
}

func TestScalars(t *testing.T) {
	tensor := FromScalar(int64(7))
	assert.Equal(t, int64(7), tensor.Value())
	assert.Equal(t, int64(7), ToScalar[int64](tensor))
	assert.Equal(t, "(i64)(7)", tensor.String())

	filled := FromScalarAndDimensions(uint8(3), 3)
	assert.Equal(t, []uint8{3, 3, 3}, filled.Value())
}

func TestFromFlatAny(t *testing.T) {
	flat := []int32{1, 2, 3, 4, 5, 6}
	tensor, err := FromFlatAny(shapes.Make(dtypes.I32, 3, 2), flat)
	require.NoError(t, err)
	flat[0] = 10 // Shares storage.
	assert.Equal(t, [][]int32{{10, 2}, {3, 4}, {5, 6}}, tensor.Value())

	_, err = FromFlatAny(shapes.Make(dtypes.F32, 3, 2), flat)
	require.Error(t, err)
	_, err = FromFlatAny(shapes.Make(dtypes.I32, 2), flat)
	require.Error(t, err)
	_, err = FromFlatAny(shapes.Make(dtypes.I32, 2), int32(1))
	require.Error(t, err)
}

func TestEqualAndCopy(t *testing.T) {
	a := FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)
	b := FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)
	assert.True(t, a.Equal(b))
	c := CopyFlatData[float64](a)
	c[0] = 5
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(FromFlatDataAndDimensions([]float64{1, 2, 3}, 3, 1)))
	require.Panics(t, func() { _ = Flat[float32](a) })

	empty := FromShape(shapes.Make(dtypes.F32, 0, 2))
	assert.Nil(t, empty.DataPointer())
	assert.Equal(t, "(f32)[0 2]", empty.String())

	long := FromFlatDataAndDimensions([]int8{1, 2, 3, 4, 5, 6, 7, 8}, 8)
	assert.Equal(t, "(i8)[8]: [1, 2, 3, ..., 6, 7, 8]", long.String())
}
