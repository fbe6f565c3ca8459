// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package customcall binds named Go callbacks ("custom calls") that compiled programs can invoke.
//
// A binding declares the user data it needs (looked up by type in the UserData given at execution
// time) and the typed attributes it reads from the call site, in the same order as the callback's
// parameters:
//
//	type MyRuntimeContext struct{ Calls int }
//
//	binding := customcall.Bind("my.runtime.intrinsic").
//		UserData(reflect.TypeFor[*MyRuntimeContext]()).
//		Attr("api_version", customcall.Int32).
//		To(func(ctx *MyRuntimeContext, apiVersion int32) error {
//			ctx.Calls++
//			return nil
//		})
//	customcall.Global().Register(binding)
//
// Programming errors (a callback whose signature doesn't match the declaration, registering a
// name twice) panic. Errors at call time (missing user data, missing attributes, callback
// failures) are returned.
package customcall

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// AttrKind is the type of a custom call attribute.
type AttrKind int

const (
	Bool AttrKind = iota
	Int32
	Int64
	Float32
	Float64
	String
	ArrayInt64
	ArrayFloat64
)

var attrKindGoTypes = [...]reflect.Type{
	Bool:         reflect.TypeFor[bool](),
	Int32:        reflect.TypeFor[int32](),
	Int64:        reflect.TypeFor[int64](),
	Float32:      reflect.TypeFor[float32](),
	Float64:      reflect.TypeFor[float64](),
	String:       reflect.TypeFor[string](),
	ArrayInt64:   reflect.TypeFor[[]int64](),
	ArrayFloat64: reflect.TypeFor[[]float64](),
}

var attrKindNames = [...]string{
	Bool: "Bool", Int32: "Int32", Int64: "Int64", Float32: "Float32", Float64: "Float64",
	String: "String", ArrayInt64: "ArrayInt64", ArrayFloat64: "ArrayFloat64",
}

func (k AttrKind) String() string {
	if k < 0 || int(k) >= len(attrKindNames) {
		return fmt.Sprintf("AttrKind(%d)", int(k))
	}
	return attrKindNames[k]
}

// GoType returns the Go type of the attribute values of this kind.
func (k AttrKind) GoType() reflect.Type {
	if k < 0 || int(k) >= len(attrKindGoTypes) {
		exceptions.Panicf("invalid custom call attribute kind %d", int(k))
	}
	return attrKindGoTypes[k]
}

var errorType = reflect.TypeFor[error]()

type attrSpec struct {
	name string
	kind AttrKind
}

// BindingBuilder declares the signature of a custom call. Create it with Bind.
type BindingBuilder struct {
	name     string
	userData []reflect.Type
	attrs    []attrSpec
}

// Bind starts the declaration of the custom call with the given name.
func Bind(name string) *BindingBuilder {
	if name == "" {
		exceptions.Panicf("customcall.Bind: empty custom call name")
	}
	return &BindingBuilder{name: name}
}

// UserData declares user data parameters, looked up by type in the UserData of the execution.
// They come first in the callback's parameters, in the order given.
func (b *BindingBuilder) UserData(types ...reflect.Type) *BindingBuilder {
	b.userData = append(b.userData, types...)
	return b
}

// Attr declares a call-site attribute parameter. Attributes follow the user data in the callback's
// parameters, in the order declared.
func (b *BindingBuilder) Attr(name string, kind AttrKind) *BindingBuilder {
	if slices.ContainsFunc(b.attrs, func(spec attrSpec) bool { return spec.name == name }) {
		exceptions.Panicf("custom call %q: attribute %q declared twice", b.name, name)
	}
	_ = kind.GoType() // Validates kind.
	b.attrs = append(b.attrs, attrSpec{name: name, kind: kind})
	return b
}

// To finishes the declaration with the callback fn, which must be a function taking the declared
// user data and attributes (in order) and returning an error.
//
// It panics if fn doesn't match the declaration.
func (b *BindingBuilder) To(fn any) *Binding {
	fnV := reflect.ValueOf(fn)
	if fnV.Kind() != reflect.Func || fnV.IsNil() {
		exceptions.Panicf("custom call %q: callback must be a function, got %T", b.name, fn)
	}
	fnT := fnV.Type()
	numParams := len(b.userData) + len(b.attrs)
	if fnT.IsVariadic() || fnT.NumIn() != numParams {
		exceptions.Panicf("custom call %q: callback %s must take %d parameters (%d user data, %d attributes)",
			b.name, fnT, numParams, len(b.userData), len(b.attrs))
	}
	for ii, t := range b.userData {
		if !t.AssignableTo(fnT.In(ii)) {
			exceptions.Panicf("custom call %q: callback parameter #%d has type %s, but user data #%d is %s",
				b.name, ii, fnT.In(ii), ii, t)
		}
	}
	for ii, spec := range b.attrs {
		paramIdx := len(b.userData) + ii
		if fnT.In(paramIdx) != spec.kind.GoType() {
			exceptions.Panicf("custom call %q: callback parameter #%d has type %s, but attribute %q of kind %s requires %s",
				b.name, paramIdx, fnT.In(paramIdx), spec.name, spec.kind, spec.kind.GoType())
		}
	}
	if fnT.NumOut() != 1 || fnT.Out(0) != errorType {
		exceptions.Panicf("custom call %q: callback %s must return exactly one error", b.name, fnT)
	}
	return &Binding{
		name:     b.name,
		userData: slices.Clone(b.userData),
		attrs:    slices.Clone(b.attrs),
		fn:       fnV,
	}
}

// Binding is a custom call ready to be registered and called.
type Binding struct {
	name     string
	userData []reflect.Type
	attrs    []attrSpec
	fn       reflect.Value
}

// Name of the custom call.
func (b *Binding) Name() string { return b.name }

// AttrNames returns the names of the declared attributes, in order.
func (b *Binding) AttrNames() []string {
	names := make([]string, len(b.attrs))
	for ii, spec := range b.attrs {
		names[ii] = spec.name
	}
	return names
}

// Call invokes the callback with the user data looked up in data and the declared attributes
// taken from attrs. Attributes not declared are ignored.
func (b *Binding) Call(attrs Attributes, data *UserData) error {
	args := make([]reflect.Value, 0, len(b.userData)+len(b.attrs))
	for _, t := range b.userData {
		value, found := data.Lookup(t)
		if !found {
			return &MissingUserDataError{Callee: b.name, Type: t}
		}
		args = append(args, reflect.ValueOf(value))
	}
	for _, spec := range b.attrs {
		value, found := attrs.Get(spec.name)
		if !found {
			return &MissingAttributeError{Callee: b.name, Name: spec.name, Kind: spec.kind}
		}
		valueV := reflect.ValueOf(value)
		if !valueV.IsValid() || valueV.Type() != spec.kind.GoType() {
			return &MissingAttributeError{Callee: b.name, Name: spec.name, Kind: spec.kind, Got: value}
		}
		args = append(args, valueV)
	}

	var results []reflect.Value
	if exception := exceptions.Try(func() { results = b.fn.Call(args) }); exception != nil {
		if err, ok := exception.(error); ok {
			return errors.WithMessagef(err, "custom call %q panicked", b.name)
		}
		return errors.Errorf("custom call %q panicked: %v", b.name, exception)
	}
	if err, _ := results[0].Interface().(error); err != nil {
		return errors.WithMessagef(err, "custom call %q failed", b.name)
	}
	return nil
}

// Registry maps custom call names to their bindings. It is append-only and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

var globalRegistry = sync.OnceValue(NewRegistry)

// Global returns the process-wide registry, used when no registry is given explicitly.
func Global() *Registry {
	return globalRegistry()
}

// RegisterGlobal runs each registration function on a fresh registry and merges the result into
// the Global registry. It allows independent packages to declare their custom calls in init().
func RegisterGlobal(registrations ...func(r *Registry)) {
	for _, registration := range registrations {
		r := NewRegistry()
		registration(r)
		Global().Merge(r)
	}
}

// Register adds the binding. It panics if its name is already registered.
func (r *Registry) Register(b *Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.bindings[b.name]; found {
		exceptions.Panicf("custom call %q registered twice", b.name)
	}
	r.bindings[b.name] = b
}

// Lookup returns the binding for the given name.
func (r *Registry) Lookup(name string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, found := r.bindings[name]
	return b, found
}

// Contains returns whether a custom call with the given name is registered.
func (r *Registry) Contains(name string) bool {
	_, found := r.Lookup(name)
	return found
}

// Merge registers all bindings of other. It panics if any name is already registered.
func (r *Registry) Merge(other *Registry) {
	if other == r {
		return
	}
	for _, name := range other.Names() {
		b, _ := other.Lookup(name)
		r.Register(b)
	}
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered custom calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
