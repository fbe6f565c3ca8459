// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Attribute is a compile-time constant attached to functions, arguments and operations.
type Attribute interface {
	fmt.Stringer
	isAttribute()
}

// IntegerAttr is an integer constant of an IntegerType or IndexType. It prints as "1 : i32";
// the type suffix is omitted for i64.
type IntegerAttr struct {
	Value int64
	Type  Type
}

func (*IntegerAttr) isAttribute() {}

func (a *IntegerAttr) String() string {
	if a.Type == nil || TypesEqual(a.Type, I64) {
		return strconv.FormatInt(a.Value, 10)
	}
	return strconv.FormatInt(a.Value, 10) + " : " + a.Type.String()
}

// FloatAttr is a floating point constant. The type suffix is omitted for f64.
type FloatAttr struct {
	Value float64
	Type  Type
}

func (*FloatAttr) isAttribute() {}

func (a *FloatAttr) String() string {
	s := formatFloat(a.Value)
	if a.Type == nil || TypesEqual(a.Type, F64) {
		return s
	}
	return s + " : " + a.Type.String()
}

// formatFloat prints a finite float such that it always parses back as a float (never as an integer).
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !math.IsInf(v, 0) && !math.IsNaN(v) && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// BoolAttr is true or false.
type BoolAttr struct {
	Value bool
}

func (*BoolAttr) isAttribute() {}

func (a *BoolAttr) String() string { return strconv.FormatBool(a.Value) }

// StringAttr is a quoted string.
type StringAttr struct {
	Value string
}

func (*StringAttr) isAttribute() {}

func (a *StringAttr) String() string { return strconv.Quote(a.Value) }

// UnitAttr is the attribute of a name with no value, e.g. {inline}.
type UnitAttr struct{}

func (*UnitAttr) isAttribute()     {}
func (*UnitAttr) String() string { return "unit" }

// ArrayAttr is a list of attributes: [1, 2, 3].
type ArrayAttr struct {
	Elements []Attribute
}

func (*ArrayAttr) isAttribute() {}

func (a *ArrayAttr) String() string {
	parts := make([]string, len(a.Elements))
	for ii, e := range a.Elements {
		parts[ii] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TypeAttr holds a type as an attribute.
type TypeAttr struct {
	Type Type
}

func (*TypeAttr) isAttribute() {}

func (a *TypeAttr) String() string { return a.Type.String() }

// DenseElementsAttr is a constant tensor: dense<[[1, 2], [3, 4]]> : tensor<2x2xi32>.
//
// Values are stored flat, in row-major order: in Ints for integer (and i1) element types, in Floats
// for float element types. Complex constants are not supported.
type DenseElementsAttr struct {
	Type   *RankedTensorType
	Ints   []int64
	Floats []float64
}

func (*DenseElementsAttr) isAttribute() {}

// IsInteger returns whether the constant holds integer values.
func (a *DenseElementsAttr) IsInteger() bool {
	_, ok := a.Type.Elem.(*IntegerType)
	return ok
}

// NumElements in the constant.
func (a *DenseElementsAttr) NumElements() int {
	if a.IsInteger() {
		return len(a.Ints)
	}
	return len(a.Floats)
}

func (a *DenseElementsAttr) String() string {
	var sb strings.Builder
	sb.WriteString("dense<")
	writeElement := func(ii int) {
		if a.IsInteger() {
			if TypesEqual(a.Type.Elem, I1) {
				sb.WriteString(strconv.FormatBool(a.Ints[ii] != 0))
			} else {
				sb.WriteString(strconv.FormatInt(a.Ints[ii], 10))
			}
		} else {
			sb.WriteString(formatFloat(a.Floats[ii]))
		}
	}
	shape := a.Type.Shape
	if len(shape) == 0 {
		writeElement(0)
	} else {
		var writeDim func(axis, offset int) int
		writeDim = func(axis, offset int) int {
			sb.WriteString("[")
			for ii := int64(0); ii < shape[axis]; ii++ {
				if ii > 0 {
					sb.WriteString(", ")
				}
				if axis == len(shape)-1 {
					writeElement(offset)
					offset++
				} else {
					offset = writeDim(axis+1, offset)
				}
			}
			sb.WriteString("]")
			return offset
		}
		writeDim(0, 0)
	}
	sb.WriteString("> : ")
	sb.WriteString(a.Type.String())
	return sb.String()
}

// NewDenseIntElements creates a DenseElementsAttr of an integer tensor type with the given values.
func NewDenseIntElements(t *RankedTensorType, values []int64) (*DenseElementsAttr, error) {
	if _, ok := t.Elem.(*IntegerType); !ok {
		return nil, errors.Errorf("dense integer elements require an integer element type, got %s", t)
	}
	if !HasStaticShape(t) || NumElements(t.Shape) != int64(len(values)) {
		return nil, errors.Errorf("dense elements for %s: got %d values", t, len(values))
	}
	return &DenseElementsAttr{Type: t, Ints: values}, nil
}

// NamedAttribute is a name = value pair.
type NamedAttribute struct {
	Name  string
	Value Attribute
}

// Attributes is an ordered list of named attributes, a "dictionary" attribute.
type Attributes []NamedAttribute

// Get returns the attribute with the given name.
func (attrs Attributes) Get(name string) (Attribute, bool) {
	for _, attr := range attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// GetString returns the value of a StringAttr with the given name.
func (attrs Attributes) GetString(name string) (string, bool) {
	attr, found := attrs.Get(name)
	if !found {
		return "", false
	}
	s, ok := attr.(*StringAttr)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// Set replaces the value of the named attribute, or appends it.
func (attrs *Attributes) Set(name string, value Attribute) {
	for ii := range *attrs {
		if (*attrs)[ii].Name == name {
			(*attrs)[ii].Value = value
			return
		}
	}
	*attrs = append(*attrs, NamedAttribute{Name: name, Value: value})
}

// Delete removes the named attribute, if present.
func (attrs *Attributes) Delete(name string) {
	for ii := range *attrs {
		if (*attrs)[ii].Name == name {
			*attrs = append((*attrs)[:ii], (*attrs)[ii+1:]...)
			return
		}
	}
}

// String prints the dictionary as {a = 1 : i32, b}.
func (attrs Attributes) String() string {
	parts := make([]string, len(attrs))
	for ii, attr := range attrs {
		name := attr.Name
		if !isBareIdentifier(name) {
			name = strconv.Quote(name)
		}
		if _, isUnit := attr.Value.(*UnitAttr); isUnit {
			parts[ii] = name
		} else {
			parts[ii] = name + " = " + attr.Value.String()
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// AttrValue converts an attribute to its natural Go value:
//
//   - IntegerAttr: bool for i1, int32 for 32 bits or less, int64 otherwise (including index).
//   - FloatAttr: float32 for f32, float64 otherwise.
//   - BoolAttr: bool; StringAttr: string; UnitAttr: true.
//   - ArrayAttr of integers: []int64; of floats: []float64.
//
// It returns an error for other attributes.
func AttrValue(attr Attribute) (any, error) {
	switch a := attr.(type) {
	case *IntegerAttr:
		if it, ok := a.Type.(*IntegerType); ok {
			if it.Width == 1 {
				return a.Value != 0, nil
			}
			if it.Width <= 32 {
				return int32(a.Value), nil
			}
		}
		return a.Value, nil
	case *FloatAttr:
		if ft, ok := a.Type.(*FloatType); ok && ft.Width <= 32 {
			return float32(a.Value), nil
		}
		return a.Value, nil
	case *BoolAttr:
		return a.Value, nil
	case *StringAttr:
		return a.Value, nil
	case *UnitAttr:
		return true, nil
	case *ArrayAttr:
		if len(a.Elements) == 0 {
			return []int64{}, nil
		}
		switch a.Elements[0].(type) {
		case *IntegerAttr:
			values := make([]int64, len(a.Elements))
			for ii, e := range a.Elements {
				ie, ok := e.(*IntegerAttr)
				if !ok {
					return nil, errors.Errorf("array attribute %s mixes integers and %T", a, e)
				}
				values[ii] = ie.Value
			}
			return values, nil
		case *FloatAttr:
			values := make([]float64, len(a.Elements))
			for ii, e := range a.Elements {
				fe, ok := e.(*FloatAttr)
				if !ok {
					return nil, errors.Errorf("array attribute %s mixes floats and %T", a, e)
				}
				values[ii] = fe.Value
			}
			return values, nil
		}
	}
	return nil, errors.Errorf("attribute %s has no Go value representation", attr)
}

// IntArray creates an ArrayAttr of i64 IntegerAttr.
func IntArray(values ...int64) *ArrayAttr {
	elements := make([]Attribute, len(values))
	for ii, v := range values {
		elements[ii] = &IntegerAttr{Value: v, Type: I64}
	}
	return &ArrayAttr{Elements: elements}
}
