package backends

import (
	"testing"
	"unsafe"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	config string
}

func (b *fakeBackend) Name() string        { return "fake" }
func (b *fakeBackend) Description() string { return "fake backend for tests" }
func (b *fakeBackend) Compile(*ir.Module, string) (Program, error) {
	return nil, errors.New("not implemented")
}
func (b *fakeBackend) Finalize() {}

func init() {
	Register("fake", func(config string) (Backend, error) {
		if config == "fail" {
			return nil, errors.New("bad config")
		}
		return &fakeBackend{config: config}, nil
	})
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, List(), "fake")

	backend, err := NewWithConfig("fake:x=1")
	require.NoError(t, err)
	assert.Equal(t, "x=1", backend.(*fakeBackend).config)

	backend, err = NewWithConfig("fake")
	require.NoError(t, err)
	assert.Equal(t, "", backend.(*fakeBackend).config)

	_, err = NewWithConfig("unknown:x")
	require.ErrorContains(t, err, `can't find backend "unknown"`)
	_, err = NewWithConfig("fake:fail")
	require.ErrorContains(t, err, "bad config")

	t.Setenv(EnvVarName, "fake:from-env")
	backend, err = New()
	require.NoError(t, err)
	assert.Equal(t, "from-env", backend.(*fakeBackend).config)
}

func TestMemref(t *testing.T) {
	m := MemrefFromFlat([]int16{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, dtypes.I16, m.DType)
	assert.Equal(t, []int64{3, 1}, m.Strides)
	assert.True(t, m.IsContiguous())
	assert.Equal(t, "memref<2x3xi16>", m.String())
	assert.Equal(t, "(i16)[2 3]", m.Shape().String())
	require.NoError(t, m.Validate())

	// Transposed view: not contiguous.
	view := &Memref{DType: m.DType, Data: m.Data, Sizes: []int64{3, 2}, Strides: []int64{1, 3}, Owner: m.Owner}
	assert.False(t, view.IsContiguous())
	assert.Equal(t, []int16{1, 4, 2, 5, 3, 6}, Flat[int16](view))
	c := view.Contiguous()
	assert.True(t, c.IsContiguous())
	assert.Equal(t, []int16{1, 4, 2, 5, 3, 6}, c.Owner.([]int16))
	assert.Len(t, c.Bytes(), 12)

	// Sub-view with an offset: the second row.
	row := &Memref{DType: m.DType, Data: m.Data, Offset: 3, Sizes: []int64{3}, Strides: []int64{1}, Owner: m.Owner}
	assert.Equal(t, []int16{4, 5, 6}, Flat[int16](row))
	assert.Equal(t, []int16{4, 5, 6}, row.Contiguous().Owner.([]int16))

	// Scalar.
	scalar := MemrefFromFlat([]float64{3.5})
	assert.Equal(t, 0, scalar.Rank())
	assert.Equal(t, "memref<f64>", scalar.String())
	assert.Equal(t, 3.5, *(*float64)(scalar.ElementPointer(nil)))

	// Empty.
	empty := AllocateMemref(dtypes.F32, []int64{0, 3})
	require.NoError(t, empty.Validate())
	assert.Nil(t, empty.Data)
	assert.Empty(t, Flat[float32](empty))
	assert.Nil(t, empty.Bytes())

	require.Panics(t, func() { Flat[float32](m) })
	require.Panics(t, func() { MemrefFromFlat([]int{1}, 1) })
	require.Panics(t, func() { MemrefFromFlat([]int8{1}, 2) })
}

func TestMemrefValidate(t *testing.T) {
	data := []float32{1}
	ptr := unsafe.Pointer(&data[0])
	for _, m := range []*Memref{
		{DType: dtypes.InvalidDType, Data: ptr},
		{DType: dtypes.F32, Data: ptr, Sizes: []int64{1}},
		{DType: dtypes.F32, Data: ptr, Offset: -1},
		{DType: dtypes.F32, Data: ptr, Sizes: []int64{-1}, Strides: []int64{1}},
		{DType: dtypes.F32, Sizes: []int64{1}, Strides: []int64{1}},
	} {
		assert.Error(t, m.Validate(), "memref %+v", m)
	}
}

func TestAsync(t *testing.T) {
	token, done := NewAsyncToken()
	assert.False(t, token.IsAvailable())
	done(nil)
	assert.True(t, token.IsAvailable())
	require.NoError(t, token.Await())

	token, done = NewAsyncToken()
	done(errors.New("failed"))
	require.ErrorContains(t, token.Await(), "failed")

	value, set := NewAsyncValue()
	m := MemrefFromFlat([]int32{7})
	go set(m, nil)
	got, err := value.Await()
	require.NoError(t, err)
	assert.Same(t, m, got)
	assert.True(t, value.IsAvailable())
}
