// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"
)

// DynamicSize marks a dimension whose size is only known at run time. It prints as "?".
const DynamicSize int64 = -1

// Type of a value in the IR.
//
// Types are immutable after construction, and two types are equal if they print the same,
// see TypesEqual.
type Type interface {
	fmt.Stringer
	isType()
}

// TypesEqual returns whether two types are structurally equal.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// Signedness of an IntegerType.
type Signedness int

const (
	Signless Signedness = iota
	Signed
	Unsigned
)

// IntegerType is iN (signless), siN (signed) or uiN (unsigned).
type IntegerType struct {
	Width      int
	Signedness Signedness
}

func (*IntegerType) isType() {}

func (t *IntegerType) String() string {
	switch t.Signedness {
	case Signed:
		return fmt.Sprintf("si%d", t.Width)
	case Unsigned:
		return fmt.Sprintf("ui%d", t.Width)
	default:
		return fmt.Sprintf("i%d", t.Width)
	}
}

// FloatType is f16, bf16, f32 or f64.
type FloatType struct {
	Width int

	// Brain marks the bfloat16 format, only valid with Width 16.
	Brain bool
}

func (*FloatType) isType() {}

func (t *FloatType) String() string {
	if t.Brain {
		return "bf16"
	}
	return fmt.Sprintf("f%d", t.Width)
}

// IndexType is the target-dependent integer used for sizes and indices.
type IndexType struct{}

func (*IndexType) isType()        {}
func (*IndexType) String() string { return "index" }

// ComplexType is complex<Elem>, where Elem is a FloatType.
type ComplexType struct {
	Elem Type
}

func (*ComplexType) isType() {}

func (t *ComplexType) String() string { return "complex<" + t.Elem.String() + ">" }

// RankedTensorType is tensor<d0xd1x...xElem>: a value-semantics array of known rank.
type RankedTensorType struct {
	Shape []int64
	Elem  Type
}

func (*RankedTensorType) isType() {}

func (t *RankedTensorType) String() string { return "tensor<" + shapedBody(t.Shape, t.Elem) + ">" }

// UnrankedTensorType is tensor<*xElem>.
type UnrankedTensorType struct {
	Elem Type
}

func (*UnrankedTensorType) isType() {}

func (t *UnrankedTensorType) String() string { return "tensor<*x" + t.Elem.String() + ">" }

// MemRefType is memref<d0xd1x...xElem>: a strided view of a buffer, of known rank.
type MemRefType struct {
	Shape []int64
	Elem  Type
}

func (*MemRefType) isType() {}

func (t *MemRefType) String() string { return "memref<" + shapedBody(t.Shape, t.Elem) + ">" }

// UnrankedMemRefType is memref<*xElem>.
type UnrankedMemRefType struct {
	Elem Type
}

func (*UnrankedMemRefType) isType() {}

func (t *UnrankedMemRefType) String() string { return "memref<*x" + t.Elem.String() + ">" }

// AsyncTokenType is !async.token.
type AsyncTokenType struct{}

func (*AsyncTokenType) isType()        {}
func (*AsyncTokenType) String() string { return "!async.token" }

// AsyncValueType is !async.value<Value>.
type AsyncValueType struct {
	Value Type
}

func (*AsyncValueType) isType() {}

func (t *AsyncValueType) String() string { return "!async.value<" + t.Value.String() + ">" }

// KernelContextType is !rt.kernel_context, the opaque runtime context passed to compiled kernels.
type KernelContextType struct{}

func (*KernelContextType) isType()        {}
func (*KernelContextType) String() string { return "!rt.kernel_context" }

// FunctionType is (Inputs...) -> (Results...).
type FunctionType struct {
	Inputs, Results []Type
}

func (*FunctionType) isType() {}

func (t *FunctionType) String() string {
	return "(" + joinTypes(t.Inputs) + ") -> " + resultTypesString(t.Results)
}

func shapedBody(shape []int64, elem Type) string {
	var sb strings.Builder
	for _, dim := range shape {
		if dim == DynamicSize {
			sb.WriteString("?")
		} else {
			_, _ = fmt.Fprintf(&sb, "%d", dim)
		}
		sb.WriteString("x")
	}
	sb.WriteString(elem.String())
	return sb.String()
}

func joinTypes(types []Type) string {
	parts := make([]string, len(types))
	for ii, t := range types {
		parts[ii] = t.String()
	}
	return strings.Join(parts, ", ")
}

// resultTypesString prints a single non-function result type bare, anything else in parenthesis.
func resultTypesString(types []Type) string {
	if len(types) == 1 {
		if _, isFunc := types[0].(*FunctionType); !isFunc {
			return types[0].String()
		}
	}
	return "(" + joinTypes(types) + ")"
}

// Commonly used types.
var (
	I1    = &IntegerType{Width: 1}
	I8    = &IntegerType{Width: 8}
	I16   = &IntegerType{Width: 16}
	I32   = &IntegerType{Width: 32}
	I64   = &IntegerType{Width: 64}
	F32   = &FloatType{Width: 32}
	F64   = &FloatType{Width: 64}
	Index = &IndexType{}
)

// ElementType returns the element type of tensor and memref types, or nil for other types.
func ElementType(t Type) Type {
	switch t := t.(type) {
	case *RankedTensorType:
		return t.Elem
	case *UnrankedTensorType:
		return t.Elem
	case *MemRefType:
		return t.Elem
	case *UnrankedMemRefType:
		return t.Elem
	}
	return nil
}

// IsTensor returns whether t is a ranked or unranked tensor type.
func IsTensor(t Type) bool {
	switch t.(type) {
	case *RankedTensorType, *UnrankedTensorType:
		return true
	}
	return false
}

// IsMemRef returns whether t is a ranked or unranked memref type.
func IsMemRef(t Type) bool {
	switch t.(type) {
	case *MemRefType, *UnrankedMemRefType:
		return true
	}
	return false
}

// Shape returns the shape of ranked tensor or memref types. The boolean is false for anything else.
func Shape(t Type) ([]int64, bool) {
	switch t := t.(type) {
	case *RankedTensorType:
		return t.Shape, true
	case *MemRefType:
		return t.Shape, true
	}
	return nil, false
}

// HasStaticShape returns whether t is ranked and has no dynamic dimension.
func HasStaticShape(t Type) bool {
	shape, ok := Shape(t)
	if !ok {
		return false
	}
	for _, dim := range shape {
		if dim == DynamicSize {
			return false
		}
	}
	return true
}

// NumElements returns the product of the dimensions of a static shape.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, dim := range shape {
		n *= dim
	}
	return n
}
