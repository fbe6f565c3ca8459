// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir implements a small SSA intermediate representation for tensor programs, and a parser
// and printer for its textual form, an MLIR-like subset:
//
//	module {
//	  func.func private @my.intrinsic() attributes {rt.custom_call = "my.intrinsic"}
//	  func.func @compute(%input: tensor<?x?xf32>, %perm: tensor<2xi32> {jitrt.constraint = "value"}) -> tensor<?x?xf32> {
//	    func.call @my.intrinsic() {api_version = 1 : i32} : () -> ()
//	    %0 = "tosa.transpose"(%input, %perm) : (tensor<?x?xf32>, tensor<2xi32>) -> tensor<?x?xf32>
//	    func.return %0 : tensor<?x?xf32>
//	  }
//	}
//
// Operations use the generic form `"dialect.op"(operands) {attributes} : (types) -> types`, except
// for `func.call` and `func.return`. The dialect of every operation must be registered in the
// DialectRegistry given to Parse.
//
// The IR is mutable: passes (see package compiler) rewrite it in place. Use Module.Clone to keep
// an original.
package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Location of an IR entity in its source text.
type Location struct {
	Line, Col int
}

// String implements fmt.Stringer, as "line:col", or "unknown" for the zero location.
func (l Location) String() string {
	if l.Line == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

// Module is the top-level container of functions.
type Module struct {
	Attrs Attributes
	Funcs []*Func
}

// Lookup returns the function with the given name, or nil.
func (m *Module) Lookup(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Erase removes the function from the module.
func (m *Module) Erase(f *Func) {
	m.Funcs = slices.DeleteFunc(m.Funcs, func(other *Func) bool { return other == f })
}

// String prints the module in its textual form, which can be parsed back.
func (m *Module) String() string {
	var sb strings.Builder
	printModule(&sb, m)
	return sb.String()
}

// Func is a function: a declaration (Body == nil) or a definition.
type Func struct {
	Name    string
	Private bool
	Loc     Location

	// Args are the function arguments, each a Value with Owner == nil. ArgAttrs[i] are the
	// attributes of Args[i].
	Args     []*Value
	ArgAttrs []Attributes

	ResultTypes []Type
	Attrs       Attributes
	Body        *Block
}

// IsDeclaration returns whether the function has no body.
func (f *Func) IsDeclaration() bool { return f.Body == nil }

// Type returns the function signature.
func (f *Func) Type() *FunctionType {
	inputs := make([]Type, len(f.Args))
	for ii, arg := range f.Args {
		inputs[ii] = arg.Type
	}
	return &FunctionType{Inputs: inputs, Results: slices.Clone(f.ResultTypes)}
}

// Uses returns the operations that use v as an operand, in program order.
func (f *Func) Uses(v *Value) []*Operation {
	if f.Body == nil {
		return nil
	}
	var uses []*Operation
	for _, op := range f.Body.Ops {
		if slices.Contains(op.Operands, v) {
			uses = append(uses, op)
		}
	}
	return uses
}

// ReplaceAllUsesWith replaces every use of oldValue in the function body by newValue.
func (f *Func) ReplaceAllUsesWith(oldValue, newValue *Value) {
	if f.Body == nil {
		return
	}
	for _, op := range f.Body.Ops {
		for ii, operand := range op.Operands {
			if operand == oldValue {
				op.Operands[ii] = newValue
			}
		}
	}
}

// FreshValueName returns a value name with the given prefix not used by any argument or
// operation result of the function.
func (f *Func) FreshValueName(prefix string) string {
	used := make(map[string]bool)
	for _, arg := range f.Args {
		used[arg.Name] = true
	}
	if f.Body != nil {
		for _, op := range f.Body.Ops {
			for _, result := range op.Results {
				used[result.Name] = true
			}
		}
	}
	if !used[prefix] {
		return prefix
	}
	for ii := 0; ; ii++ {
		name := fmt.Sprintf("%s_%d", prefix, ii)
		if !used[name] {
			return name
		}
	}
}

// Block is an ordered list of operations. The last operation of a function body is func.return.
type Block struct {
	Ops []*Operation
}

// InsertFront inserts op at the start of the block.
func (b *Block) InsertFront(op *Operation) {
	b.Ops = slices.Insert(b.Ops, 0, op)
}

// Erase removes op from the block.
func (b *Block) Erase(op *Operation) {
	b.Ops = slices.DeleteFunc(b.Ops, func(other *Operation) bool { return other == op })
}

// Terminator returns the last operation of the block, or nil if empty.
func (b *Block) Terminator() *Operation {
	if len(b.Ops) == 0 {
		return nil
	}
	return b.Ops[len(b.Ops)-1]
}

// Operation is one instruction: a name ("dialect.op"), operands, results and attributes.
type Operation struct {
	Name     string
	Operands []*Value
	Results  []*Value
	Attrs    Attributes
	Loc      Location

	// Callee is the symbol called by func.call, empty for other operations.
	Callee string
}

// NewOperation creates an operation with one result per type in resultTypes. Result values are
// named by the given names (len(names) must equal len(resultTypes)).
func NewOperation(name string, operands []*Value, resultTypes []Type, names []string, attrs Attributes) *Operation {
	op := &Operation{Name: name, Operands: operands, Attrs: attrs}
	op.Results = make([]*Value, len(resultTypes))
	for ii, t := range resultTypes {
		op.Results[ii] = &Value{Name: names[ii], Type: t, Owner: op, Index: ii}
	}
	return op
}

// Dialect returns the dialect prefix of the operation name ("tosa" for "tosa.transpose").
func (op *Operation) Dialect() string {
	return DialectOf(op.Name)
}

// OperandTypes returns the types of the operands.
func (op *Operation) OperandTypes() []Type {
	types := make([]Type, len(op.Operands))
	for ii, v := range op.Operands {
		types[ii] = v.Type
	}
	return types
}

// ResultTypes returns the types of the results.
func (op *Operation) ResultTypes() []Type {
	types := make([]Type, len(op.Results))
	for ii, v := range op.Results {
		types[ii] = v.Type
	}
	return types
}

// String prints the operation as one line of text.
func (op *Operation) String() string {
	var sb strings.Builder
	printOperation(&sb, op)
	return sb.String()
}

// Value is an SSA value: a function argument (Owner == nil) or an operation result.
type Value struct {
	Name  string
	Type  Type
	Owner *Operation

	// Index is the argument number for function arguments, or the result number.
	Index int
}

// IsArgument returns whether the value is a function argument.
func (v *Value) IsArgument() bool { return v.Owner == nil }

// String returns the value reference, e.g. "%arg0".
func (v *Value) String() string { return "%" + v.Name }

// DialectOf returns the dialect prefix of an operation name.
func DialectOf(opName string) string {
	if idx := strings.IndexByte(opName, '.'); idx >= 0 {
		return opName[:idx]
	}
	return opName
}

// DialectRegistry is the set of dialects whose operations are legal.
// The structural "builtin" and "func" dialects are always registered.
type DialectRegistry struct {
	names map[string]bool
}

// NewDialectRegistry returns a registry with only the "builtin" and "func" dialects.
func NewDialectRegistry() *DialectRegistry {
	r := &DialectRegistry{names: make(map[string]bool)}
	r.Insert("builtin", "func")
	return r
}

// Insert registers the given dialects.
func (r *DialectRegistry) Insert(names ...string) {
	for _, name := range names {
		r.names[name] = true
	}
}

// Contains returns whether the dialect is registered.
func (r *DialectRegistry) Contains(name string) bool {
	return r.names[name]
}

// Names returns the registered dialects, sorted.
func (r *DialectRegistry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
