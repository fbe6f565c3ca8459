// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDialects() *DialectRegistry {
	r := NewDialectRegistry()
	r.Insert("arith", "tosa", "linalg")
	return r
}

func TestParsePrint_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	for _, name := range []string{"transpose", "constants"} {
		t.Run(name, func(t *testing.T) {
			src := string(must.M1(os.ReadFile(filepath.Join("testdata", name+".mlir"))))
			module, err := Parse(src, testDialects())
			require.NoError(t, err)
			printed := module.String()
			g.Assert(t, name, []byte(printed))

			// The printed form parses back to the same module.
			reparsed, err := Parse(printed, testDialects())
			require.NoError(t, err)
			assert.Equal(t, printed, reparsed.String())
		})
	}
}

func TestParse_Structure(t *testing.T) {
	src := string(must.M1(os.ReadFile(filepath.Join("testdata", "transpose.mlir"))))
	module, err := Parse(src, testDialects())
	require.NoError(t, err)
	require.Len(t, module.Funcs, 2)

	intrinsic := module.Lookup("my.runtime.intrinsic")
	require.NotNil(t, intrinsic)
	assert.True(t, intrinsic.IsDeclaration())
	assert.True(t, intrinsic.Private)
	name, found := intrinsic.Attrs.GetString("rt.custom_call")
	assert.True(t, found)
	assert.Equal(t, "my.runtime.intrinsic", name)

	compute := module.Lookup("compute")
	require.NotNil(t, compute)
	assert.Equal(t, "(tensor<?x?xf32>, tensor<2xi32>) -> tensor<?x?xf32>", compute.Type().String())
	constraint, _ := compute.ArgAttrs[1].GetString("jitrt.constraint")
	assert.Equal(t, "value", constraint)
	assert.Empty(t, compute.ArgAttrs[0])

	ops := compute.Body.Ops
	require.Len(t, ops, 3)
	assert.Equal(t, "func.call", ops[0].Name)
	assert.Equal(t, "my.runtime.intrinsic", ops[0].Callee)
	apiVersion, _ := ops[0].Attrs.Get("api_version")
	assert.Equal(t, int32(1), must.M1(AttrValue(apiVersion)))
	assert.Equal(t, "tosa", ops[1].Dialect())
	assert.Same(t, compute.Args[0], ops[1].Operands[0])
	assert.Same(t, ops[1].Results[0], ops[2].Operands[0])
	assert.Equal(t, Location{Line: 8, Col: 5}, ops[1].Loc)
	assert.Equal(t, []*Operation{ops[2]}, compute.Uses(ops[1].Results[0]))
}

func TestParse_Types(t *testing.T) {
	for _, typ := range []string{
		"tensor<2x?xf32>", "tensor<*xf32>", "memref<4xi32>", "memref<*xf32>", "tensor<f64>",
		"!async.token", "!async.value<memref<2xf32>>", "!rt.kernel_context",
		"tensor<3xcomplex<f32>>", "tensor<2xui8>", "memref<si16>", "tensor<1xbf16>", "tensor<?xindex>",
	} {
		t.Run(typ, func(t *testing.T) {
			src := "func.func private @f(" + typ + ")"
			module, err := Parse(src, nil)
			require.NoError(t, err)
			assert.Equal(t, typ, module.Funcs[0].Args[0].Type.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct{ name, src, msg string }{
		{"unregistered dialect",
			`func.func @f(%a: tensor<2xf32>) -> tensor<2xf32> {
  %0 = "mhlo.abs"(%a) : (tensor<2xf32>) -> tensor<2xf32>
  func.return %0 : tensor<2xf32>
}`, "2:8: operation 'mhlo.abs' belongs to unregistered dialect 'mhlo'"},
		{"undefined value",
			`func.func @f() -> tensor<2xf32> {
  func.return %x : tensor<2xf32>
}`, "2:15: use of undefined value %x"},
		{"operand type mismatch",
			`func.func @f(%a: tensor<2xf32>) -> tensor<2xf32> {
  %0 = "tosa.negate"(%a) : (tensor<3xf32>) -> tensor<2xf32>
  func.return %0 : tensor<2xf32>
}`, "has type tensor<2xf32>, but its type lists tensor<3xf32>"},
		{"missing return",
			`func.func @f(%a: tensor<2xf32>) {
  %0 = "tosa.negate"(%a) : (tensor<2xf32>) -> tensor<2xf32>
}`, "must end with func.return"},
		{"bad return type",
			`func.func @f(%a: tensor<2xf32>) -> tensor<2xi32> {
  func.return %a : tensor<2xf32>
}`, "returns tensor<2xf32>, but the function returns tensor<2xi32>"},
		{"redefinition",
			`func.func @f(%a: tensor<2xf32>) -> tensor<2xf32> {
  %a = "tosa.negate"(%a) : (tensor<2xf32>) -> tensor<2xf32>
  func.return %a : tensor<2xf32>
}`, "redefinition of value %a"},
		{"undefined callee",
			`func.func @f() {
  func.call @g() : () -> ()
  func.return
}`, "call to undefined function @g"},
		{"bad element type", `func.func private @f(tensor<2x!async.token>)`, "invalid tensor element type"},
		{"dense count", `func.func @f() -> tensor<3xi32> {
  %0 = "arith.constant"() {value = dense<[1, 2]> : tensor<3xi32>} : () -> tensor<3xi32>
  func.return %0 : tensor<3xi32>
}`, "has 2 values, expected 3"},
		{"custom syntax", `func.func @f() {
  tosa.yield
  func.return
}`, "custom syntax of operation 'tosa.yield' is not supported"},
		{"unterminated string", `func.func private @f() attributes {a = "x`, "unterminated string"},
		{"garbage", `func.func @f() ^`, "unexpected character"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src, testDialects())
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestClone(t *testing.T) {
	src := string(must.M1(os.ReadFile(filepath.Join("testdata", "transpose.mlir"))))
	module := must.M1(Parse(src, testDialects()))
	clone := module.Clone()
	assert.Equal(t, module.String(), clone.String())

	compute := clone.Lookup("compute")
	transpose := compute.Body.Ops[1]
	assert.Same(t, compute.Args[0], transpose.Operands[0])
	assert.NotSame(t, module.Lookup("compute").Args[0], compute.Args[0])

	// Mutating the clone leaves the original untouched.
	compute.Args[1].Type = &RankedTensorType{Shape: []int64{2}, Elem: I64}
	compute.Body.Erase(compute.Body.Ops[0])
	compute.ArgAttrs[1].Delete("jitrt.constraint")
	original := module.Lookup("compute")
	assert.Len(t, original.Body.Ops, 3)
	assert.Equal(t, "tensor<2xi32>", original.Args[1].Type.String())
	_, found := original.ArgAttrs[1].Get("jitrt.constraint")
	assert.True(t, found)
}

func TestAttrValue(t *testing.T) {
	testCases := []struct {
		attr Attribute
		want any
	}{
		{&IntegerAttr{Value: 3, Type: I32}, int32(3)},
		{&IntegerAttr{Value: 3, Type: I64}, int64(3)},
		{&IntegerAttr{Value: 1, Type: I1}, true},
		{&IntegerAttr{Value: 3, Type: Index}, int64(3)},
		{&FloatAttr{Value: 0.5, Type: F32}, float32(0.5)},
		{&FloatAttr{Value: 0.5, Type: F64}, 0.5},
		{&StringAttr{Value: "x"}, "x"},
		{&BoolAttr{Value: true}, true},
		{&UnitAttr{}, true},
		{IntArray(1, 0), []int64{1, 0}},
		{&ArrayAttr{Elements: []Attribute{&FloatAttr{Value: 1, Type: F64}}}, []float64{1}},
	}
	for _, tc := range testCases {
		got, err := AttrValue(tc.attr)
		require.NoError(t, err, "attribute %s", tc.attr)
		assert.Equal(t, tc.want, got, "attribute %s", tc.attr)
	}
	_, err := AttrValue(&TypeAttr{Type: F32})
	require.Error(t, err)
	_, err = AttrValue(&ArrayAttr{Elements: []Attribute{IntArray(1), &StringAttr{}}})
	require.Error(t, err)
}

func TestFunc_Helpers(t *testing.T) {
	src := `func.func @f(%a: tensor<2xf32>, %b: tensor<2xf32>) -> tensor<2xf32> {
  %cst = "tosa.negate"(%a) : (tensor<2xf32>) -> tensor<2xf32>
  %1 = "tosa.add"(%cst, %a) : (tensor<2xf32>, tensor<2xf32>) -> tensor<2xf32>
  func.return %1 : tensor<2xf32>
}`
	module := must.M1(Parse(src, testDialects()))
	f := module.Funcs[0]
	assert.Equal(t, "cst_0", f.FreshValueName("cst"))
	assert.Equal(t, "x", f.FreshValueName("x"))

	f.ReplaceAllUsesWith(f.Args[0], f.Args[1])
	assert.Empty(t, f.Uses(f.Args[0]))
	assert.Len(t, f.Uses(f.Args[1]), 2)
	assert.Equal(t, `%1 = "tosa.add"(%cst, %b) : (tensor<2xf32>, tensor<2xf32>) -> tensor<2xf32>`,
		f.Body.Ops[1].String())

	r := NewDialectRegistry()
	r.Insert("tosa")
	assert.Equal(t, []string{"builtin", "func", "tosa"}, r.Names())
}
