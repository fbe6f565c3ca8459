package jitrt

import (
	"fmt"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/pkg/errors"
)

// ConstraintAttr is the argument attribute declaring its specialization constraint, one of
// "none", "rank", "shape" or "value":
//
//	func.func @compute(%arg0: tensor<*xf32> {jitrt.constraint = "rank"})
const ConstraintAttr = "jitrt.constraint"

// ArgumentConstraint tells what a JitExecutable specializes an argument to.
type ArgumentConstraint int

const (
	// ConstraintResolved arguments are never specialized: either they had no constraint, or the
	// declared type already satisfies it.
	ConstraintResolved ArgumentConstraint = iota

	// ConstraintRank specializes the argument to its rank.
	ConstraintRank

	// ConstraintShape specializes the argument to its static shape.
	ConstraintShape

	// ConstraintValue specializes the argument to its value, embedded as a constant. Only integer
	// tensors can be value constrained.
	ConstraintValue
)

var constraintNames = [...]string{
	ConstraintResolved: "none",
	ConstraintRank:     "rank",
	ConstraintShape:    "shape",
	ConstraintValue:    "value",
}

func (c ArgumentConstraint) String() string {
	if c < 0 || int(c) >= len(constraintNames) {
		return fmt.Sprintf("ArgumentConstraint(%d)", int(c))
	}
	return constraintNames[c]
}

// ParseArgumentConstraint parses the value of the ConstraintAttr attribute.
func ParseArgumentConstraint(s string) (ArgumentConstraint, error) {
	for c, name := range constraintNames {
		if name == s {
			return ArgumentConstraint(c), nil
		}
	}
	return ConstraintResolved, errors.Errorf("unknown constraint %q, valid values are %q", s, constraintNames)
}

// readConstraints returns the resolved constraint of each argument of f.
func readConstraints(f *ir.Func) ([]ArgumentConstraint, error) {
	constraints := make([]ArgumentConstraint, len(f.Args))
	for ii, arg := range f.Args {
		if ii >= len(f.ArgAttrs) {
			break
		}
		attr, found := f.ArgAttrs[ii].Get(ConstraintAttr)
		if !found {
			continue
		}
		constraintErr := func(err error) error {
			return &rttypes.SignatureConversionError{Kind: "constraint", Index: ii, Type: arg.Type, Err: err}
		}
		s, ok := attr.(*ir.StringAttr)
		if !ok {
			return nil, constraintErr(errors.Errorf("attribute %s must be a string, got %s", ConstraintAttr, attr))
		}
		constraint, err := ParseArgumentConstraint(s.Value)
		if err != nil {
			return nil, constraintErr(err)
		}
		constraints[ii], err = resolveConstraint(constraint, arg.Type)
		if err != nil {
			return nil, constraintErr(err)
		}
	}
	return constraints, nil
}

// resolveConstraint validates the constraint for the argument type, and returns ConstraintResolved
// if the type already satisfies it.
func resolveConstraint(c ArgumentConstraint, t ir.Type) (ArgumentConstraint, error) {
	if c == ConstraintResolved {
		return c, nil
	}
	if !ir.IsTensor(t) && !ir.IsMemRef(t) {
		return c, errors.Errorf("%q constraint requires a tensor or memref argument", c)
	}
	switch c {
	case ConstraintRank:
		switch t.(type) {
		case *ir.RankedTensorType, *ir.MemRefType:
			return ConstraintResolved, nil
		}
	case ConstraintShape:
		if ir.HasStaticShape(t) {
			return ConstraintResolved, nil
		}
	case ConstraintValue:
		if !ir.IsTensor(t) {
			return c, errors.New(`"value" constraint requires a tensor argument`)
		}
		if _, isInteger := ir.ElementType(t).(*ir.IntegerType); !isInteger {
			return c, errors.Errorf(`"value" constraint requires an integer element type, got %s`, ir.ElementType(t))
		}
	}
	return c, nil
}
