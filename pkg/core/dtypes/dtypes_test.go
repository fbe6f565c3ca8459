// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypes

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapOfNames(t *testing.T) {
	assert.Equal(t, F32, MapOfNames["f32"])
	assert.Equal(t, F32, MapOfNames["Float32"])
	assert.Equal(t, F32, MapOfNames["float32"])
	assert.Equal(t, UI8, MapOfNames["ui8"])
	assert.Equal(t, UI8, MapOfNames["uint8"])
	assert.Equal(t, I1, MapOfNames["bool"])
	assert.Equal(t, Complex64, MapOfNames["complex64"])
	assert.Equal(t, Complex64, MapOfNames["c64"])

	dtype, err := FromName(" I32 ")
	require.NoError(t, err)
	assert.Equal(t, I32, dtype)
	_, err = FromName("f16")
	require.Error(t, err)
}

func TestGoTypeRoundTrip(t *testing.T) {
	for _, dtype := range All() {
		t.Run(dtype.String(), func(t *testing.T) {
			goType := dtype.GoType()
			assert.Equal(t, dtype, FromGoType(goType))
			assert.Equal(t, int(goType.Size()), dtype.Size())
		})
	}
	assert.Equal(t, InvalidDType, FromGoType(reflect.TypeOf(0)))
	assert.Equal(t, InvalidDType, FromAny("x"))
	assert.Equal(t, Complex128, FromAny(complex128(1)))
}

func TestFromGenericsType(t *testing.T) {
	assert.Equal(t, I1, FromGenericsType[bool]())
	assert.Equal(t, I64, FromGenericsType[int64]())
	assert.Equal(t, UI32, FromGenericsType[uint32]())
	assert.Equal(t, F64, FromGenericsType[float64]())
	assert.Equal(t, Complex64, FromGenericsType[complex64]())
}

func TestPredicates(t *testing.T) {
	assert.True(t, I1.IsInteger())
	assert.False(t, I1.IsInt())
	assert.True(t, UI16.IsUnsigned())
	assert.True(t, UI16.IsInteger())
	assert.True(t, F32.IsFloat())
	assert.False(t, Complex64.IsFloat())
	assert.Equal(t, F32, Complex64.RealDType())
	assert.Equal(t, InvalidDType, I32.RealDType())
	assert.Equal(t, 1, I1.Bits())
	assert.Equal(t, 64, Complex64.Bits())
	assert.False(t, InvalidDType.IsValid())
	assert.Equal(t, "DType(99)", DType(99).String())
	assert.Len(t, All(), 13)
	require.Panics(t, func() { _ = InvalidDType.GoType() })
}
