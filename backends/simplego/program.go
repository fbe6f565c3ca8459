package simplego

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Executor runs one operation given the memrefs of its operands. Operations without results
// return nil.
//
// Executors may panic with an error (e.g. exceptions.Panicf), it's converted to an error
// returned by Program.Call.
type Executor func(kctx backends.KernelContext, inputs []*backends.Memref) (*backends.Memref, error)

// OpBuilder creates the Executor of an operation, at compile time.
type OpBuilder func(op *ir.Operation) (Executor, error)

// opBuilders should be populated during initialization (`init` functions) for the ops implemented.
var opBuilders = make(map[string]OpBuilder)

// RegisterOp registers the builder for the operation named opName. It's meant to be called during
// initialization, and it panics if the operation is already registered.
func RegisterOp(opName string, builder OpBuilder) {
	if _, found := opBuilders[opName]; found {
		exceptions.Panicf("simplego: operation %q registered twice", opName)
	}
	opBuilders[opName] = builder
}

// step is one operation of the program, with the slots of its operands and result.
type step struct {
	name   string
	loc    ir.Location
	exec   Executor
	inputs []int
	output int // -1 if the operation has no result.
}

// argSpec is the expected dtype and rank (-1 for unranked) of an argument.
type argSpec struct {
	dtype dtypes.DType
	rank  int
}

// Program implements backends.Program by interpreting the steps of a function.
type Program struct {
	backend *Backend
	name    string
	args    []argSpec
	steps   []step

	// numSlots is the number of values: arguments first, then the operation results.
	numSlots int

	// outputs are the slots returned.
	outputs []int

	// constants are the slots holding compile-time constants, shared by all calls.
	constants map[int]*backends.Memref

	finalized bool
}

// Compile-time check that simplego.Program implements backends.Program.
var _ backends.Program = &Program{}

func compileProgram(backend *Backend, m *ir.Module, entry string) (*Program, error) {
	f := m.Lookup(entry)
	if f == nil {
		return nil, errors.Errorf("simplego: function @%s not found", entry)
	}
	if f.IsDeclaration() {
		return nil, errors.Errorf("simplego: function @%s has no body", entry)
	}
	p := &Program{
		backend:   backend,
		name:      entry,
		constants: make(map[int]*backends.Memref),
	}
	slots := make(map[*ir.Value]int)
	for ii, arg := range f.Args {
		spec, err := argSpecOf(arg.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "simplego: argument #%d of @%s", ii, entry)
		}
		p.args = append(p.args, spec)
		slots[arg] = ii
	}
	p.numSlots = len(f.Args)

	operandSlots := func(op *ir.Operation) ([]int, error) {
		inputs := make([]int, len(op.Operands))
		for ii, operand := range op.Operands {
			slot, found := slots[operand]
			if !found {
				return nil, errors.Errorf("%s: operand %s of '%s' is not defined", op.Loc, operand, op.Name)
			}
			inputs[ii] = slot
		}
		return inputs, nil
	}

	for _, op := range f.Body.Ops {
		inputs, err := operandSlots(op)
		if err != nil {
			return nil, err
		}
		if op.Name == "func.return" {
			p.outputs = inputs
			break
		}
		if len(op.Results) > 1 {
			return nil, errors.Errorf("simplego: %s: operation '%s' has %d results, at most 1 is supported",
				op.Loc, op.Name, len(op.Results))
		}
		s := step{name: op.Name, loc: op.Loc, inputs: inputs, output: -1}
		if len(op.Results) == 1 {
			s.output = p.numSlots
			slots[op.Results[0]] = p.numSlots
			p.numSlots++
		}

		if op.Name == "arith.constant" {
			constant, err := constantFromOp(op)
			if err != nil {
				return nil, errors.WithMessagef(err, "simplego: %s", op.Loc)
			}
			p.constants[s.output] = constant
			continue
		}
		builder, found := opBuilders[op.Name]
		if !found {
			return nil, errors.Errorf("simplego: %s: operation '%s' not supported", op.Loc, op.Name)
		}
		s.exec, err = builder(op)
		if err != nil {
			return nil, errors.WithMessagef(err, "simplego: %s: '%s'", op.Loc, op.Name)
		}
		p.steps = append(p.steps, s)
	}
	if p.outputs == nil && len(f.ResultTypes) > 0 {
		return nil, errors.Errorf("simplego: function @%s doesn't end with func.return", entry)
	}
	klog.V(1).Infof("simplego: compiled @%s: %d steps, %d constants", entry, len(p.steps), len(p.constants))
	return p, nil
}

func argSpecOf(t ir.Type) (argSpec, error) {
	elem := ir.ElementType(t)
	if elem == nil || !ir.IsMemRef(t) {
		return argSpec{}, errors.Errorf("type %s is not supported by the %q backend, only memrefs", t, BackendName)
	}
	dtype, err := rttypes.ConvertElementType(elem)
	if err != nil {
		return argSpec{}, err
	}
	spec := argSpec{dtype: dtype, rank: -1}
	if shape, ok := ir.Shape(t); ok {
		spec.rank = len(shape)
	}
	return spec, nil
}

// NumResults implements backends.Program.
func (p *Program) NumResults() int { return len(p.outputs) }

// Finalize implements backends.Program.
func (p *Program) Finalize() {
	p.finalized = true
	p.steps = nil
	p.constants = nil
}

// Call implements backends.Program.
func (p *Program) Call(kctx backends.KernelContext, args []backends.Value) ([]backends.Value, error) {
	if p.finalized {
		return nil, errors.Errorf("simplego: program @%s called after Finalize", p.name)
	}
	if len(args) != len(p.args) {
		return nil, errors.Errorf("simplego: program @%s takes %d arguments, %d given", p.name, len(p.args), len(args))
	}
	values := make([]*backends.Memref, p.numSlots)
	for ii, arg := range args {
		m, ok := arg.(*backends.Memref)
		if !ok {
			return nil, errors.Errorf("simplego: argument #%d must be a memref, got %T", ii, arg)
		}
		if err := m.Validate(); err != nil {
			return nil, errors.WithMessagef(err, "simplego: argument #%d", ii)
		}
		spec := p.args[ii]
		if m.DType != spec.dtype || (spec.rank >= 0 && m.Rank() != spec.rank) {
			return nil, errors.Errorf("simplego: argument #%d is %s, incompatible with the compiled program", ii, m)
		}
		values[ii] = m
	}
	for slot, constant := range p.constants {
		values[slot] = constant
	}

	err := exceptions.TryCatch[error](func() {
		for _, s := range p.steps {
			inputs := make([]*backends.Memref, len(s.inputs))
			for ii, slot := range s.inputs {
				inputs[ii] = values[slot]
			}
			output, err := s.exec(kctx, inputs)
			if err != nil {
				panic(errors.WithMessagef(err, "%s: '%s' failed", s.loc, s.name))
			}
			if s.output >= 0 {
				if output == nil {
					exceptions.Panicf("%s: '%s' returned no result", s.loc, s.name)
				}
				values[s.output] = output
			}
		}
	})
	if err != nil {
		return nil, err
	}

	// Outputs must not alias the arguments, the constants or each other.
	results := make([]backends.Value, len(p.outputs))
	returned := make(map[int]bool, len(p.outputs))
	for ii, slot := range p.outputs {
		m := values[slot]
		if slot < len(p.args) || p.constants[slot] != nil || returned[slot] {
			m = m.Contiguous()
		}
		returned[slot] = true
		results[ii] = m
	}
	return results, nil
}

// String returns a description of the program.
func (p *Program) String() string {
	return fmt.Sprintf("simplego.Program(@%s: %d args, %d steps, %d results)", p.name, len(p.args), len(p.steps), len(p.outputs))
}
