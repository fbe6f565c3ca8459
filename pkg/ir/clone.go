package ir

import "slices"

// Clone returns a deep copy of the module. Types and attributes are immutable and shared.
func (m *Module) Clone() *Module {
	clone := &Module{Attrs: slices.Clone(m.Attrs), Funcs: make([]*Func, len(m.Funcs))}
	for ii, f := range m.Funcs {
		clone.Funcs[ii] = f.Clone()
	}
	return clone
}

// Clone returns a deep copy of the function.
func (f *Func) Clone() *Func {
	mapping := make(map[*Value]*Value)
	clone := &Func{
		Name:        f.Name,
		Private:     f.Private,
		Loc:         f.Loc,
		Args:        make([]*Value, len(f.Args)),
		ArgAttrs:    make([]Attributes, len(f.ArgAttrs)),
		ResultTypes: slices.Clone(f.ResultTypes),
		Attrs:       slices.Clone(f.Attrs),
	}
	for ii, arg := range f.Args {
		newArg := &Value{Name: arg.Name, Type: arg.Type, Index: arg.Index}
		clone.Args[ii] = newArg
		mapping[arg] = newArg
	}
	for ii, attrs := range f.ArgAttrs {
		clone.ArgAttrs[ii] = slices.Clone(attrs)
	}
	if f.Body == nil {
		return clone
	}
	clone.Body = &Block{Ops: make([]*Operation, len(f.Body.Ops))}
	for ii, op := range f.Body.Ops {
		newOp := &Operation{
			Name:     op.Name,
			Operands: make([]*Value, len(op.Operands)),
			Results:  make([]*Value, len(op.Results)),
			Attrs:    slices.Clone(op.Attrs),
			Loc:      op.Loc,
			Callee:   op.Callee,
		}
		for jj, operand := range op.Operands {
			if mapped, found := mapping[operand]; found {
				newOp.Operands[jj] = mapped
			} else {
				// Operand defined outside the function: shouldn't happen in a verified module.
				newOp.Operands[jj] = operand
			}
		}
		for jj, result := range op.Results {
			newResult := &Value{Name: result.Name, Type: result.Type, Owner: newOp, Index: result.Index}
			newOp.Results[jj] = newResult
			mapping[result] = newResult
		}
		clone.Body.Ops[ii] = newOp
	}
	return clone
}
