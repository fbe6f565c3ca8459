package jitrt

import (
	"slices"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
)

// specialize returns a copy of the module where the arguments of the entry function are refined to
// the given specializations:
//
//   - rank: unranked types become ranked, with dynamic sizes.
//   - shape: the sizes become static.
//   - value: as shape, and the uses of the argument are replaced by an arith.constant with its
//     value. The argument itself stays in the signature, unused.
//
// The original module is not modified.
func specialize(m *ir.Module, entrypoint string, specs []argSpecialization) (*ir.Module, error) {
	specialized := m.Clone()
	f := specialized.Lookup(entrypoint)
	if f == nil || f.IsDeclaration() {
		return nil, errors.Errorf("entry function @%s not found", entrypoint)
	}
	for _, spec := range specs {
		arg := f.Args[spec.index]
		refined, err := refineType(arg.Type, spec)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to specialize argument #%d", spec.index)
		}
		arg.Type = refined
		if spec.index < len(f.ArgAttrs) {
			f.ArgAttrs[spec.index].Delete(ConstraintAttr)
		}
		if spec.constraint != ConstraintValue {
			continue
		}
		tensorType, ok := refined.(*ir.RankedTensorType)
		if !ok {
			return nil, errors.Errorf("value specialization of argument #%d requires a tensor, got %s", spec.index, refined)
		}
		value, err := ir.NewDenseIntElements(tensorType, slices.Clone(spec.values))
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to specialize argument #%d", spec.index)
		}
		constant := ir.NewOperation("arith.constant", nil, []ir.Type{tensorType},
			[]string{f.FreshValueName(arg.Name + "_value")},
			ir.Attributes{{Name: "value", Value: value}})
		constant.Loc = f.Loc
		f.ReplaceAllUsesWith(arg, constant.Results[0])
		f.Body.InsertFront(constant)
	}
	return specialized, nil
}

// refineType returns a new type, never modifying t.
func refineType(t ir.Type, spec argSpecialization) (ir.Type, error) {
	sizes := slices.Clone(spec.sizes)
	if spec.constraint == ConstraintRank {
		for ii := range sizes {
			sizes[ii] = ir.DynamicSize
		}
	}
	switch t := t.(type) {
	case *ir.RankedTensorType:
		if len(t.Shape) != len(sizes) {
			return nil, errors.Errorf("rank %d doesn't match type %s", len(sizes), t)
		}
		if spec.constraint == ConstraintRank {
			return t, nil
		}
		return &ir.RankedTensorType{Shape: sizes, Elem: t.Elem}, nil
	case *ir.UnrankedTensorType:
		return &ir.RankedTensorType{Shape: sizes, Elem: t.Elem}, nil
	case *ir.MemRefType:
		if len(t.Shape) != len(sizes) {
			return nil, errors.Errorf("rank %d doesn't match type %s", len(sizes), t)
		}
		if spec.constraint == ConstraintRank {
			return t, nil
		}
		return &ir.MemRefType{Shape: sizes, Elem: t.Elem}, nil
	case *ir.UnrankedMemRefType:
		return &ir.MemRefType{Shape: sizes, Elem: t.Elem}, nil
	}
	return nil, errors.Errorf("type %s can't be specialized", t)
}
