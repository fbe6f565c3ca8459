package compiler

import (
	"fmt"

	"github.com/gomlx/jitrt/pkg/ir"
)

// TosaToLinalgPassName is the registered name of the pass lowering "tosa.*" operations.
const TosaToLinalgPassName = "tosa-to-linalg"

// tosaElementwise maps the element-wise tosa operations to their linalg equivalent.
var tosaElementwise = map[string]string{
	"tosa.add":    "linalg.add",
	"tosa.sub":    "linalg.sub",
	"tosa.mul":    "linalg.mul",
	"tosa.negate": "linalg.negate",
}

type tosaToLinalgPass struct{}

func (*tosaToLinalgPass) Name() string { return TosaToLinalgPassName }

func (p *tosaToLinalgPass) Run(m *ir.Module, ctx *PassContext) error {
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		// Iterate over a copy: lowering replaces operations in the block.
		for _, op := range append([]*ir.Operation(nil), f.Body.Ops...) {
			if op.Dialect() != "tosa" {
				continue
			}
			if reason := p.lower(f.Body, op); reason != "" {
				ctx.Errorf(op.Loc, "failed to legalize operation '%s': %s", op.Name, reason)
			}
		}
	}
	return nil
}

// lower replaces op by its linalg form, or returns why it can't.
func (p *tosaToLinalgPass) lower(block *ir.Block, op *ir.Operation) (reason string) {
	if linalgName, found := tosaElementwise[op.Name]; found {
		numOperands := 2
		if op.Name == "tosa.negate" {
			numOperands = 1
		}
		if len(op.Operands) != numOperands || len(op.Results) != 1 {
			return fmt.Sprintf("expected %d operands and 1 result", numOperands)
		}
		replaceOp(block, op, &ir.Operation{Name: linalgName, Operands: op.Operands, Attrs: op.Attrs})
		return ""
	}

	switch op.Name {
	case "tosa.const":
		value, found := op.Attrs.Get("value")
		if _, isDense := value.(*ir.DenseElementsAttr); !found || !isDense || len(op.Results) != 1 {
			return "expected a dense \"value\" attribute and 1 result"
		}
		replaceOp(block, op, &ir.Operation{Name: "arith.constant", Attrs: ir.Attributes{{Name: "value", Value: value}}})
		return ""

	case "tosa.transpose":
		if len(op.Operands) != 2 || len(op.Results) != 1 {
			return "expected 2 operands and 1 result"
		}
		perms := op.Operands[1]
		if perms.IsArgument() || perms.Owner.Name != "arith.constant" {
			return "permutation must be a constant"
		}
		attr, _ := perms.Owner.Attrs.Get("value")
		dense, ok := attr.(*ir.DenseElementsAttr)
		if !ok || !dense.IsInteger() {
			return "permutation must be a constant"
		}
		rank := len(dense.Ints)
		if inputShape, ok := ir.Shape(op.Operands[0].Type); ok && len(inputShape) != rank {
			return fmt.Sprintf("permutation %v doesn't match input rank %d", dense.Ints, len(inputShape))
		}
		seen := make([]bool, rank)
		for _, axis := range dense.Ints {
			if axis < 0 || int(axis) >= rank || seen[axis] {
				return fmt.Sprintf("invalid permutation %v", dense.Ints)
			}
			seen[axis] = true
		}
		attrs := ir.Attributes{{Name: "permutation", Value: ir.IntArray(dense.Ints...)}}
		replaceOp(block, op, &ir.Operation{Name: "linalg.transpose", Operands: op.Operands[:1], Attrs: attrs})
		return ""
	}
	return "no lowering available"
}
