package rttypes

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseSignature parses the signature of a function declaration.
func parseSignature(t *testing.T, signature string) *ir.FunctionType {
	module, err := ir.Parse("func.func private @f"+signature, nil)
	require.NoError(t, err)
	return module.Funcs[0].Type()
}

func parseType(t *testing.T, typ string) ir.Type {
	return parseSignature(t, "("+typ+")").Inputs[0]
}

func TestConvertType_Golden(t *testing.T) {
	irTypes := []string{
		"tensor<2x?xf32>", "tensor<*xf32>", "tensor<f64>", "memref<4xi32>", "memref<*xui8>",
		"tensor<3xcomplex<f32>>", "tensor<complex<f64>>", "tensor<2xsi16>", "tensor<2xi1>",
		"!async.token", "!async.value<memref<2xf32>>", "!async.value<tensor<2xf32>>", "!rt.kernel_context",
		"tensor<2xf16>", "tensor<2xbf16>", "memref<?xindex>", "tensor<2xi4>", "i32",
	}
	var sb strings.Builder
	for _, irType := range irTypes {
		converted, err := ConvertType(parseType(t, irType))
		if err != nil {
			_, _ = fmt.Fprintf(&sb, "%s => error: %v\n", irType, err)
		} else {
			_, _ = fmt.Fprintf(&sb, "%s => %s\n", irType, converted)
		}
	}
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "types", []byte(sb.String()))
}

func TestConvertElementType(t *testing.T) {
	supported := map[string]dtypes.DType{
		"i1": dtypes.I1, "i8": dtypes.I8, "i16": dtypes.I16, "i32": dtypes.I32, "i64": dtypes.I64,
		"si8": dtypes.I8, "si64": dtypes.I64,
		"ui8": dtypes.UI8, "ui16": dtypes.UI16, "ui32": dtypes.UI32, "ui64": dtypes.UI64,
		"f32": dtypes.F32, "f64": dtypes.F64,
		"complex<f32>": dtypes.Complex64, "complex<f64>": dtypes.Complex128,
	}
	// Every DType is reachable from some IR element type.
	reached := make(map[dtypes.DType]bool)
	for irElem, want := range supported {
		got, err := ConvertElementType(ir.ElementType(parseType(t, "tensor<"+irElem+">")))
		require.NoError(t, err, irElem)
		assert.Equal(t, want, got, irElem)
		reached[got] = true
	}
	assert.Len(t, reached, len(dtypes.All()))

	for _, irElem := range []string{"f16", "bf16", "index", "i2", "ui1", "complex<f16>"} {
		_, err := ConvertElementType(ir.ElementType(parseType(t, "tensor<"+irElem+">")))
		var unsupported *UnsupportedElementTypeError
		require.ErrorAs(t, err, &unsupported, irElem)
		assert.Contains(t, err.Error(), irElem)
	}
}

func TestConvertFunctionType(t *testing.T) {
	ft, err := ConvertFunctionType(parseSignature(t, "(tensor<?x?xf32>, tensor<2xi32>, !async.token) -> (memref<2xf32>)"))
	require.NoError(t, err)
	assert.Equal(t, 3, ft.NumOperands())
	assert.Equal(t, 1, ft.NumResults())
	assert.Equal(t, "(tensor<?x?xf32>, tensor<2xi32>, !async.token) -> (memref<2xf32>)", ft.String())
	rank, ok := Rank(ft.Operand(0))
	assert.True(t, ok)
	assert.Equal(t, 2, rank)
	_, ok = Rank(ft.Operand(2))
	assert.False(t, ok)
	elem, _ := ElementType(ft.Result(0))
	assert.Equal(t, dtypes.F32, elem)
	assert.True(t, IsMemrefConvertible(ft.Operand(1)))
	assert.False(t, IsMemrefConvertible(ft.Operand(2)))

	_, err = ConvertFunctionType(parseSignature(t, "(tensor<?xf32>, tensor<2xf16>) -> tensor<2xf32>"))
	var sigErr *SignatureConversionError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, "operand", sigErr.Kind)
	assert.Equal(t, 1, sigErr.Index)
	assert.Equal(t, "can't convert operand #1 type tensor<2xf16> to the runtime type: unsupported element type: f16",
		err.Error())
	var elemErr *UnsupportedElementTypeError
	assert.True(t, errors.As(err, &elemErr))

	_, err = ConvertFunctionType(parseSignature(t, "(tensor<?xf32>) -> (tensor<2xf32>, i32)"))
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, "result", sigErr.Kind)
	assert.Equal(t, 1, sigErr.Index)
}

func TestDefaultCallingConvention(t *testing.T) {
	ft, err := ConvertFunctionType(parseSignature(t,
		"(tensor<?x2xf32>, tensor<*xi64>, memref<3xui8>, !rt.kernel_context) -> (tensor<f32>, !async.token)"))
	require.NoError(t, err)
	converted, err := DefaultCallingConvention(ft)
	require.NoError(t, err)
	assert.Equal(t,
		"(memref<?x2xf32>, memref<*xi64>, memref<3xui8>, !rt.kernel_context) -> (memref<f32>, !async.token)",
		converted.String())
	assert.False(t, converted.Equal(ft))
	again, _ := DefaultCallingConvention(converted)
	assert.True(t, again.Equal(converted))
	assert.True(t, Equal(&Memref{Sizes: []int64{2}, Elem: dtypes.F32}, &Memref{Sizes: []int64{2}, Elem: dtypes.F32}))
	assert.False(t, Equal(&Memref{Sizes: []int64{2}, Elem: dtypes.F32}, nil))
}
