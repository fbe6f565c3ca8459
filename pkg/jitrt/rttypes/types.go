// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package rttypes defines the runtime types: the closed set of types that can cross the boundary
// between host code and compiled programs, and their conversion from IR types.
//
// Function signatures are converted once, when a program is instantiated, and are immutable
// afterwards.
package rttypes

import (
	"fmt"
	"strings"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
)

// DynamicSize marks a dimension only known at run time, it prints as "?".
const DynamicSize = ir.DynamicSize

// Type is one of AsyncToken, AsyncValue, RankedTensor, UnrankedTensor, Memref, UnrankedMemref or
// KernelContext. The set is closed.
type Type interface {
	fmt.Stringer
	isRuntimeType()
}

// AsyncToken signals the completion of an asynchronous computation without a value.
type AsyncToken struct{}

// AsyncValue is the future of a Value, which is always a Memref.
type AsyncValue struct {
	Value Type
}

// RankedTensor has a known rank; Sizes may include DynamicSize.
type RankedTensor struct {
	Sizes []int64
	Elem  dtypes.DType
}

// UnrankedTensor is a tensor of unknown rank.
type UnrankedTensor struct {
	Elem dtypes.DType
}

// Memref is a strided buffer of known rank; Sizes may include DynamicSize.
type Memref struct {
	Sizes []int64
	Elem  dtypes.DType
}

// UnrankedMemref is a strided buffer of unknown rank.
type UnrankedMemref struct {
	Elem dtypes.DType
}

// KernelContext is the opaque runtime context passed to compiled kernels.
type KernelContext struct{}

func (*AsyncToken) isRuntimeType()     {}
func (*AsyncValue) isRuntimeType()     {}
func (*RankedTensor) isRuntimeType()   {}
func (*UnrankedTensor) isRuntimeType() {}
func (*Memref) isRuntimeType()         {}
func (*UnrankedMemref) isRuntimeType() {}
func (*KernelContext) isRuntimeType()  {}

func (*AsyncToken) String() string { return "!async.token" }

func (t *AsyncValue) String() string { return "!async.value<" + t.Value.String() + ">" }

func (t *RankedTensor) String() string { return "tensor<" + shapedString(t.Sizes, t.Elem) + ">" }

func (t *UnrankedTensor) String() string { return "tensor<*x" + t.Elem.String() + ">" }

func (t *Memref) String() string { return "memref<" + shapedString(t.Sizes, t.Elem) + ">" }

func (t *UnrankedMemref) String() string { return "memref<*x" + t.Elem.String() + ">" }

func (*KernelContext) String() string { return "!rt.kernel_context" }

func shapedString(sizes []int64, elem dtypes.DType) string {
	var sb strings.Builder
	for _, size := range sizes {
		if size == DynamicSize {
			sb.WriteString("?")
		} else {
			_, _ = fmt.Fprintf(&sb, "%d", size)
		}
		sb.WriteString("x")
	}
	sb.WriteString(elem.String())
	return sb.String()
}

// Equal returns whether two runtime types are the same.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsMemrefConvertible returns whether values of the type are passed as memref descriptors:
// ranked or unranked tensors and memrefs.
func IsMemrefConvertible(t Type) bool {
	switch t.(type) {
	case *RankedTensor, *UnrankedTensor, *Memref, *UnrankedMemref:
		return true
	}
	return false
}

// ElementType returns the element type of tensors and memrefs.
func ElementType(t Type) (dtypes.DType, bool) {
	switch t := t.(type) {
	case *RankedTensor:
		return t.Elem, true
	case *UnrankedTensor:
		return t.Elem, true
	case *Memref:
		return t.Elem, true
	case *UnrankedMemref:
		return t.Elem, true
	}
	return dtypes.InvalidDType, false
}

// Sizes returns the sizes of ranked tensors and memrefs. The boolean is false for any other type.
func Sizes(t Type) ([]int64, bool) {
	switch t := t.(type) {
	case *RankedTensor:
		return t.Sizes, true
	case *Memref:
		return t.Sizes, true
	}
	return nil, false
}

// Rank returns the rank of ranked tensors and memrefs. The boolean is false for any other type.
func Rank(t Type) (int, bool) {
	sizes, ok := Sizes(t)
	return len(sizes), ok
}

// FunctionType is the runtime signature of a function.
type FunctionType struct {
	Operands []Type
	Results  []Type
}

// NumOperands returns the number of operands.
func (f FunctionType) NumOperands() int { return len(f.Operands) }

// NumResults returns the number of results.
func (f FunctionType) NumResults() int { return len(f.Results) }

// Operand returns the type of operand i.
func (f FunctionType) Operand(i int) Type { return f.Operands[i] }

// Result returns the type of result i.
func (f FunctionType) Result(i int) Type { return f.Results[i] }

// String prints the signature as "(T0, T1) -> (R0)".
func (f FunctionType) String() string {
	return "(" + joinTypes(f.Operands) + ") -> (" + joinTypes(f.Results) + ")"
}

// Equal returns whether both signatures have the same operand and result types.
func (f FunctionType) Equal(other FunctionType) bool {
	return f.String() == other.String()
}

func joinTypes(types []Type) string {
	parts := make([]string, len(types))
	for ii, t := range types {
		parts[ii] = t.String()
	}
	return strings.Join(parts, ", ")
}
