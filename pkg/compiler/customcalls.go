package compiler

import (
	"github.com/gomlx/jitrt/pkg/ir"
)

const (
	// CustomCallsPassName is the registered name of the pass converting calls to custom call
	// declarations into "rt.custom_call" operations.
	CustomCallsPassName = "rt-custom-calls"

	// CustomCallAttr marks a function declaration as a custom call, its value is the custom call name.
	CustomCallAttr = "rt.custom_call"

	// CustomCallOp is the lowered custom call operation; its "callee" attribute holds the name.
	CustomCallOp = "rt.custom_call"

	// CalleeAttr holds the custom call name in CustomCallOp.
	CalleeAttr = "callee"
)

// customCallsPass rewrites
//
//	func.call @my.intrinsic() {api_version = 1 : i32} : () -> ()
//
// where @my.intrinsic is declared with attributes {rt.custom_call = "my.intrinsic"} into
//
//	"rt.custom_call"() {callee = "my.intrinsic", api_version = 1 : i32} : () -> ()
//
// Names the resolver doesn't know are errors.
type customCallsPass struct{}

func (*customCallsPass) Name() string { return CustomCallsPassName }

func (*customCallsPass) Run(m *ir.Module, ctx *PassContext) error {
	var firstErr error
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			continue
		}
		for _, op := range append([]*ir.Operation(nil), f.Body.Ops...) {
			if op.Name != "func.call" {
				continue
			}
			callee := m.Lookup(op.Callee)
			if callee == nil {
				ctx.Errorf(op.Loc, "call to undefined function @%s", op.Callee)
				continue
			}
			name, isCustomCall := callee.Attrs.GetString(CustomCallAttr)
			if !isCustomCall || !callee.IsDeclaration() {
				// Left for verify-lowered to report.
				continue
			}
			if len(op.Operands) > 0 || len(op.Results) > 0 {
				ctx.Errorf(op.Loc, "custom call '%s' can't take operands or return results", name)
				continue
			}
			if !ctx.CustomCalls.Contains(name) {
				ctx.Errorf(op.Loc, "custom call '%s' is not registered", name)
				if firstErr == nil {
					firstErr = &UnresolvedCustomCallError{Name: name, Loc: op.Loc}
				}
				continue
			}
			attrs := make(ir.Attributes, 0, len(op.Attrs)+1)
			attrs = append(attrs, ir.NamedAttribute{Name: CalleeAttr, Value: &ir.StringAttr{Value: name}})
			for _, attr := range op.Attrs {
				if attr.Name != CalleeAttr {
					attrs = append(attrs, attr)
				}
			}
			replaceOp(f.Body, op, &ir.Operation{Name: CustomCallOp, Attrs: attrs})
		}
	}
	return firstErr
}
