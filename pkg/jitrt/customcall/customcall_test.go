package customcall

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runtimeContext struct {
	calls   int
	version int32
}

type logger interface {
	Log(msg string)
}

type sliceLogger []string

func (l *sliceLogger) Log(msg string) { *l = append(*l, msg) }

func TestBindingCall(t *testing.T) {
	binding := Bind("my.runtime.intrinsic").
		UserData(reflect.TypeFor[*runtimeContext](), reflect.TypeFor[logger]()).
		Attr("api_version", Int32).
		Attr("label", String).
		To(func(ctx *runtimeContext, log logger, apiVersion int32, label string) error {
			ctx.calls++
			ctx.version = apiVersion
			log.Log(label)
			return nil
		})
	assert.Equal(t, "my.runtime.intrinsic", binding.Name())
	assert.Equal(t, []string{"api_version", "label"}, binding.AttrNames())

	ctx := &runtimeContext{}
	var log sliceLogger
	data := NewUserData(ctx)
	Insert[logger](data, &log)
	attrs := Attributes{{"label", "hello"}, {"api_version", int32(1)}, {"unused", 3.0}}
	require.NoError(t, binding.Call(attrs, data))
	assert.Equal(t, 1, ctx.calls)
	assert.Equal(t, int32(1), ctx.version)
	assert.Equal(t, sliceLogger{"hello"}, log)

	// Missing user data.
	err := binding.Call(attrs, NewUserData(ctx))
	var missingData *MissingUserDataError
	require.ErrorAs(t, err, &missingData)
	assert.Equal(t, reflect.TypeFor[logger](), missingData.Type)
	err = binding.Call(attrs, nil)
	require.ErrorAs(t, err, &missingData)
	assert.Equal(t, reflect.TypeFor[*runtimeContext](), missingData.Type)

	// Missing attribute, and attribute of the wrong kind.
	err = binding.Call(Attributes{{"label", "x"}}, data)
	var missingAttr *MissingAttributeError
	require.ErrorAs(t, err, &missingAttr)
	assert.Equal(t, "api_version", missingAttr.Name)
	assert.Nil(t, missingAttr.Got)
	err = binding.Call(Attributes{{"label", "x"}, {"api_version", int64(1)}}, data)
	require.ErrorAs(t, err, &missingAttr)
	assert.Equal(t, int64(1), missingAttr.Got)
	assert.Contains(t, err.Error(), "must be Int32, got int64")
	assert.Equal(t, 1, ctx.calls)
}

func TestBindingCallErrors(t *testing.T) {
	sentinel := errors.New("boom")
	failing := Bind("failing").To(func() error { return sentinel })
	err := failing.Call(nil, nil)
	require.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), `custom call "failing" failed`)

	panicking := Bind("panicking").Attr("n", Int64).To(func(n int64) error {
		panic(fmt.Sprintf("bad n=%d", n))
	})
	err = panicking.Call(Attributes{{"n", int64(3)}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad n=3")
}

func TestBindingTo(t *testing.T) {
	require.Panics(t, func() { Bind("x").To(3) })
	require.Panics(t, func() { Bind("x").Attr("a", Int32).To(func() error { return nil }) })
	require.Panics(t, func() { Bind("x").Attr("a", Int32).To(func(a int64) error { return nil }) })
	require.Panics(t, func() { Bind("x").To(func() {}) })
	require.Panics(t, func() { Bind("x").Attr("a", Bool).Attr("a", Bool) })
	require.Panics(t, func() { Bind("") })
	require.Panics(t, func() {
		Bind("x").UserData(reflect.TypeFor[*runtimeContext]()).To(func(log logger) error { return nil })
	})
	require.NotPanics(t, func() {
		// A concrete user data type is assignable to an interface parameter.
		Bind("x").UserData(reflect.TypeFor[*sliceLogger]()).To(func(log logger) error { return nil })
	})
}

func TestRegistry(t *testing.T) {
	noop := func() error { return nil }
	r := NewRegistry()
	r.Register(Bind("b").To(noop))
	r.Register(Bind("a").To(noop))
	require.Panics(t, func() { r.Register(Bind("a").To(noop)) })
	assert.True(t, r.Contains("a"))
	assert.False(t, r.Contains("c"))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	other := NewRegistry()
	other.Register(Bind("c").To(noop))
	r.Merge(other)
	r.Merge(r)
	assert.Equal(t, 3, r.Len())
	binding, found := r.Lookup("c")
	require.True(t, found)
	assert.Equal(t, "c", binding.Name())
	require.Panics(t, func() { r.Merge(other) })

	RegisterGlobal(func(r *Registry) {
		r.Register(Bind("customcall_test.global").To(noop))
	})
	assert.True(t, Global().Contains("customcall_test.global"))
}

func TestUserData(t *testing.T) {
	var nilData *UserData
	_, found := Get[int32](nilData)
	assert.False(t, found)
	assert.Equal(t, 0, nilData.Len())

	data := NewUserData(int32(7), "name")
	v, found := Get[int32](data)
	require.True(t, found)
	assert.Equal(t, int32(7), v)
	clone := data.Clone()
	clone.Insert(int32(8))
	v, _ = Get[int32](data)
	assert.Equal(t, int32(7), v)
	v, _ = Get[int32](clone)
	assert.Equal(t, int32(8), v)
	assert.Equal(t, 2, clone.Len())
}

func TestEncodeAttributes(t *testing.T) {
	attrs := ir.Attributes{
		{Name: "api_version", Value: &ir.IntegerAttr{Value: 1, Type: ir.I32}},
		{Name: "scale", Value: &ir.FloatAttr{Value: 0.5, Type: ir.F64}},
		{Name: "callee", Value: &ir.StringAttr{Value: "x"}},
		{Name: "dims", Value: ir.IntArray(1, 2)},
	}
	encoded, err := EncodeAttributes(attrs, "callee")
	require.NoError(t, err)
	assert.Equal(t, Attributes{
		{"api_version", int32(1)},
		{"scale", 0.5},
		{"dims", []int64{1, 2}},
	}, encoded)

	_, err = EncodeAttributes(ir.Attributes{{Name: "t", Value: &ir.TypeAttr{Type: ir.F32}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `attribute "t"`)
}
