// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package rttypes

import (
	"fmt"
	"slices"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
)

// UnsupportedElementTypeError is returned for IR element types without a DType.
type UnsupportedElementTypeError struct {
	Type ir.Type
}

func (e *UnsupportedElementTypeError) Error() string {
	return fmt.Sprintf("unsupported element type: %s", e.Type)
}

// UnsupportedTypeError is returned for IR types without a runtime type.
type UnsupportedTypeError struct {
	Type   ir.Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("unsupported type: %s", e.Type)
}

// SignatureConversionError reports which operand or result of a function signature couldn't be
// converted, and why.
type SignatureConversionError struct {
	// Kind is "operand", "result", or "constraint" for an invalid specialization constraint of an
	// operand.
	Kind  string
	Index int
	Type  ir.Type
	Err   error
}

func (e *SignatureConversionError) Error() string {
	if e.Kind == "constraint" {
		return fmt.Sprintf("invalid specialization constraint for operand #%d of type %s: %v", e.Index, e.Type, e.Err)
	}
	return fmt.Sprintf("can't convert %s #%d type %s to the runtime type: %v", e.Kind, e.Index, e.Type, e.Err)
}

// Unwrap returns the underlying conversion error.
func (e *SignatureConversionError) Unwrap() error { return e.Err }

// ConvertElementType converts an IR element type to its DType.
//
// Supported: i1, i8, i16, i32, i64 (signless or signed), ui8, ui16, ui32, ui64, f32, f64,
// complex<f32> and complex<f64>.
func ConvertElementType(t ir.Type) (dtypes.DType, error) {
	switch t := t.(type) {
	case *ir.IntegerType:
		if t.Signedness == ir.Unsigned {
			switch t.Width {
			case 8:
				return dtypes.UI8, nil
			case 16:
				return dtypes.UI16, nil
			case 32:
				return dtypes.UI32, nil
			case 64:
				return dtypes.UI64, nil
			}
			break
		}
		switch t.Width {
		case 1:
			return dtypes.I1, nil
		case 8:
			return dtypes.I8, nil
		case 16:
			return dtypes.I16, nil
		case 32:
			return dtypes.I32, nil
		case 64:
			return dtypes.I64, nil
		}
	case *ir.FloatType:
		if !t.Brain {
			switch t.Width {
			case 32:
				return dtypes.F32, nil
			case 64:
				return dtypes.F64, nil
			}
		}
	case *ir.ComplexType:
		if ft, ok := t.Elem.(*ir.FloatType); ok && !ft.Brain {
			switch ft.Width {
			case 32:
				return dtypes.Complex64, nil
			case 64:
				return dtypes.Complex128, nil
			}
		}
	}
	return dtypes.InvalidDType, &UnsupportedElementTypeError{Type: t}
}

// ConvertType converts an IR type to its runtime type.
func ConvertType(t ir.Type) (Type, error) {
	switch t := t.(type) {
	case *ir.AsyncTokenType:
		return &AsyncToken{}, nil

	case *ir.AsyncValueType:
		value, err := ConvertType(t.Value)
		if err != nil {
			return nil, err
		}
		if _, isMemref := value.(*Memref); !isMemref {
			return nil, &UnsupportedTypeError{Type: t, Reason: "async value can only hold memref type"}
		}
		return &AsyncValue{Value: value}, nil

	case *ir.RankedTensorType:
		elem, err := ConvertElementType(t.Elem)
		if err != nil {
			return nil, err
		}
		return &RankedTensor{Sizes: slices.Clone(t.Shape), Elem: elem}, nil

	case *ir.UnrankedTensorType:
		elem, err := ConvertElementType(t.Elem)
		if err != nil {
			return nil, err
		}
		return &UnrankedTensor{Elem: elem}, nil

	case *ir.MemRefType:
		elem, err := ConvertElementType(t.Elem)
		if err != nil {
			return nil, err
		}
		return &Memref{Sizes: slices.Clone(t.Shape), Elem: elem}, nil

	case *ir.UnrankedMemRefType:
		elem, err := ConvertElementType(t.Elem)
		if err != nil {
			return nil, err
		}
		return &UnrankedMemref{Elem: elem}, nil

	case *ir.KernelContextType:
		return &KernelContext{}, nil
	}
	return nil, &UnsupportedTypeError{Type: t}
}

// ConvertFunctionType converts operands and then results, in declaration order. The first failure
// is returned as a *SignatureConversionError.
func ConvertFunctionType(ft *ir.FunctionType) (FunctionType, error) {
	var f FunctionType
	f.Operands = make([]Type, len(ft.Inputs))
	for ii, t := range ft.Inputs {
		converted, err := ConvertType(t)
		if err != nil {
			return FunctionType{}, &SignatureConversionError{Kind: "operand", Index: ii, Type: t, Err: err}
		}
		f.Operands[ii] = converted
	}
	f.Results = make([]Type, len(ft.Results))
	for ii, t := range ft.Results {
		converted, err := ConvertType(t)
		if err != nil {
			return FunctionType{}, &SignatureConversionError{Kind: "result", Index: ii, Type: t, Err: err}
		}
		f.Results[ii] = converted
	}
	return f, nil
}

// DefaultCallingConvention maps the signature of an entry function to the signature of the
// compiled program: tensors are passed as memrefs of the same shape, everything else is
// unchanged.
func DefaultCallingConvention(f FunctionType) (FunctionType, error) {
	convert := func(types []Type) []Type {
		converted := make([]Type, len(types))
		for ii, t := range types {
			switch t := t.(type) {
			case *RankedTensor:
				converted[ii] = &Memref{Sizes: slices.Clone(t.Sizes), Elem: t.Elem}
			case *UnrankedTensor:
				converted[ii] = &UnrankedMemref{Elem: t.Elem}
			default:
				converted[ii] = t
			}
		}
		return converted
	}
	return FunctionType{Operands: convert(f.Operands), Results: convert(f.Results)}, nil
}
