package simplego

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RegisterOp("test.panic", func(op *ir.Operation) (Executor, error) {
		return func(backends.KernelContext, []*backends.Memref) (*backends.Memref, error) {
			exceptions.Panicf("test.panic executed")
			return nil, nil
		}, nil
	})
}

type recordingContext struct {
	calls  []string
	attrs  []customcall.Attributes
	errMsg string
	fail   error
}

func (c *recordingContext) CustomCall(name string, attrs customcall.Attributes) error {
	c.calls = append(c.calls, name)
	c.attrs = append(c.attrs, attrs)
	return c.fail
}

func (c *recordingContext) SetError(msg string) { c.errMsg = msg }

func compile(t *testing.T, src string) backends.Program {
	t.Helper()
	dialects := ir.NewDialectRegistry()
	dialects.Insert("arith", "linalg", "rt", "test")
	m, err := ir.Parse(src, dialects)
	require.NoError(t, err)
	backend, err := New("")
	require.NoError(t, err)
	program, err := backend.Compile(m, "main")
	require.NoError(t, err)
	return program
}

func call(t *testing.T, program backends.Program, kctx backends.KernelContext, args ...backends.Value) []backends.Value {
	t.Helper()
	results, err := program.Call(kctx, args)
	require.NoError(t, err)
	require.Len(t, results, program.NumResults())
	return results
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, backends.List(), BackendName)
	backend, err := backends.NewWithConfig("go")
	require.NoError(t, err)
	assert.Equal(t, "go", backend.Name())
	assert.Equal(t, "Simple Go Portable Backend", backend.Description())
	backend.Finalize()
}

const transposeSrc = `
func.func @main(%x: memref<?x?xf32>) -> memref<?x?xf32> {
  %0 = "linalg.transpose"(%x) {permutation = [1, 0]} : (memref<?x?xf32>) -> memref<?x?xf32>
  func.return %0 : memref<?x?xf32>
}`

func TestTranspose(t *testing.T) {
	program := compile(t, transposeSrc)
	data := []float32{1, 2, 3, 4}
	input := backends.MemrefFromFlat(data, 2, 2)
	results := call(t, program, nil, input)
	output := results[0].(*backends.Memref)
	assert.Equal(t, []int64{2, 2}, output.Sizes)
	assert.Equal(t, []float32{1, 3, 2, 4}, backends.Flat[float32](output))

	// Column-major view of the same data: it is already the transposed matrix.
	colMajor := &backends.Memref{DType: input.DType, Data: input.Data, Sizes: []int64{2, 2}, Strides: []int64{1, 2}, Owner: data}
	output = call(t, program, nil, colMajor)[0].(*backends.Memref)
	assert.Equal(t, []float32{1, 2, 3, 4}, backends.Flat[float32](output))

	// Non-square with offset: the last 2x3 block of 8 elements.
	data = []float32{0, 0, 1, 2, 3, 4, 5, 6}
	withOffset := &backends.Memref{DType: input.DType, Data: backends.MemrefFromFlat(data, 8).Data, Offset: 2,
		Sizes: []int64{2, 3}, Strides: []int64{3, 1}, Owner: data}
	output = call(t, program, nil, withOffset)[0].(*backends.Memref)
	assert.Equal(t, []int64{3, 2}, output.Sizes)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, backends.Flat[float32](output))
}

func TestElementwise(t *testing.T) {
	program := compile(t, `
func.func @main(%a: memref<3xi32>, %b: memref<3xi32>) -> (memref<3xi32>, memref<3xi32>) {
  %ten = "arith.constant"() {value = dense<10> : tensor<i32>} : () -> memref<i32>
  %sum = "linalg.add"(%a, %b) : (memref<3xi32>, memref<3xi32>) -> memref<3xi32>
  %diff = "linalg.sub"(%sum, %ten) : (memref<3xi32>, memref<i32>) -> memref<3xi32>
  %prod = "linalg.mul"(%ten, %diff) : (memref<i32>, memref<3xi32>) -> memref<3xi32>
  %neg = "linalg.negate"(%prod) : (memref<3xi32>) -> memref<3xi32>
  func.return %diff, %neg : memref<3xi32>, memref<3xi32>
}`)
	a := backends.MemrefFromFlat([]int32{1, 2, 3}, 3)
	b := backends.MemrefFromFlat([]int32{10, 20, 30}, 3)
	results := call(t, program, nil, a, b)
	assert.Equal(t, []int32{1, 12, 23}, backends.Flat[int32](results[0].(*backends.Memref)))
	assert.Equal(t, []int32{-10, -120, -230}, backends.Flat[int32](results[1].(*backends.Memref)))

	// Bool has no arithmetic.
	_, err := execBinary(binaryAdd, backends.MemrefFromFlat([]bool{true}), backends.MemrefFromFlat([]bool{true}))
	require.Error(t, err)
	_, err = execBinary(binaryAdd, backends.MemrefFromFlat([]int32{1, 2}, 2), backends.MemrefFromFlat([]int32{1, 2, 3}, 3))
	require.ErrorContains(t, err, "incompatible shapes")
}

func TestComplex(t *testing.T) {
	lhs := backends.MemrefFromFlat([]complex64{1 + 1i, 2}, 2)
	rhs := backends.MemrefFromFlat([]complex64{1i}, 1)
	output, err := execBinary(binaryMul, lhs, rhs)
	require.NoError(t, err)
	assert.Equal(t, []complex64{-1 + 1i, 2i}, backends.Flat[complex64](output))
}

func TestOutputsDontAlias(t *testing.T) {
	program := compile(t, `
func.func @main(%x: memref<2xf64>) -> (memref<2xf64>, memref<2xf64>, memref<2xf64>, memref<2xf64>) {
  %c = "arith.constant"() {value = dense<[1.5, 2.5]> : tensor<2xf64>} : () -> memref<2xf64>
  %n = "linalg.negate"(%x) : (memref<2xf64>) -> memref<2xf64>
  func.return %x, %c, %n, %n : memref<2xf64>, memref<2xf64>, memref<2xf64>, memref<2xf64>
}`)
	x := backends.MemrefFromFlat([]float64{1, 2}, 2)
	results := call(t, program, nil, x)
	for ii, result := range results {
		for jj := ii + 1; jj < len(results); jj++ {
			assert.NotEqual(t, result.(*backends.Memref).Data, results[jj].(*backends.Memref).Data, "results %d and %d alias", ii, jj)
		}
		assert.NotEqual(t, x.Data, result.(*backends.Memref).Data)
	}
	assert.Equal(t, []float64{1.5, 2.5}, backends.Flat[float64](results[1].(*backends.Memref)))
	assert.Equal(t, []float64{-1, -2}, backends.Flat[float64](results[3].(*backends.Memref)))

	// Mutating a returned constant doesn't change the next call.
	results[1].(*backends.Memref).Owner.([]float64)[0] = 100
	results = call(t, program, nil, x)
	assert.Equal(t, []float64{1.5, 2.5}, backends.Flat[float64](results[1].(*backends.Memref)))
}

func TestRuntimeOps(t *testing.T) {
	program := compile(t, `
func.func @main() {
  "rt.custom_call"() {callee = "my.intrinsic", api_version = 1 : i32, dims = [2, 3]} : () -> ()
  "rt.set_error"() {message = "bad things"} : () -> ()
  func.return
}`)
	kctx := &recordingContext{}
	results := call(t, program, kctx)
	assert.Empty(t, results)
	assert.Equal(t, []string{"my.intrinsic"}, kctx.calls)
	assert.Equal(t, customcall.Attributes{{Name: "api_version", Value: int32(1)}, {Name: "dims", Value: []int64{2, 3}}}, kctx.attrs[0])
	assert.Equal(t, "bad things", kctx.errMsg)

	sentinel := errors.New("custom call failed")
	_, err := program.Call(&recordingContext{fail: sentinel}, nil)
	require.ErrorIs(t, err, sentinel)

	_, err = program.Call(nil, nil)
	require.ErrorContains(t, err, "requires a kernel context")
}

func TestErrors(t *testing.T) {
	program := compile(t, transposeSrc)
	_, err := program.Call(nil, nil)
	require.ErrorContains(t, err, "takes 1 arguments, 0 given")
	_, err = program.Call(nil, []backends.Value{backends.MemrefFromFlat([]int32{1, 2, 3, 4}, 2, 2)})
	require.ErrorContains(t, err, "incompatible with the compiled program")
	_, err = program.Call(nil, []backends.Value{backends.MemrefFromFlat([]float32{1, 2}, 2)})
	require.ErrorContains(t, err, "incompatible with the compiled program")
	token, _ := backends.NewAsyncToken()
	_, err = program.Call(nil, []backends.Value{token})
	require.ErrorContains(t, err, "must be a memref")

	panicking := compile(t, `
func.func @main() {
  "test.panic"() : () -> ()
  func.return
}`)
	_, err = panicking.Call(nil, nil)
	require.ErrorContains(t, err, "test.panic executed")

	program.Finalize()
	_, err = program.Call(nil, []backends.Value{backends.MemrefFromFlat([]float32{1, 2, 3, 4}, 2, 2)})
	require.ErrorContains(t, err, "after Finalize")

	dialects := ir.NewDialectRegistry()
	dialects.Insert("linalg")
	m, err := ir.Parse(`
func.func @main(%x: memref<2xf32>) -> memref<2xf32> {
  %0 = "linalg.matmul"(%x) : (memref<2xf32>) -> memref<2xf32>
  func.return %0 : memref<2xf32>
}`, dialects)
	require.NoError(t, err)
	backend, _ := New("")
	_, err = backend.Compile(m, "main")
	require.ErrorContains(t, err, "operation 'linalg.matmul' not supported")
	_, err = backend.Compile(m, "other")
	require.ErrorContains(t, err, "@other not found")
}
