package ir

import (
	"strconv"
	"strings"
)

const indentStep = "  "

func symbolName(name string) string {
	if isBareIdentifier(name) {
		return "@" + name
	}
	return "@" + strconv.Quote(name)
}

func printModule(sb *strings.Builder, m *Module) {
	sb.WriteString("module")
	if len(m.Attrs) > 0 {
		sb.WriteString(" attributes ")
		sb.WriteString(m.Attrs.String())
	}
	sb.WriteString(" {\n")
	for _, f := range m.Funcs {
		printFunc(sb, f, indentStep)
	}
	sb.WriteString("}\n")
}

func printFunc(sb *strings.Builder, f *Func, indent string) {
	sb.WriteString(indent)
	sb.WriteString("func.func ")
	if f.Private {
		sb.WriteString("private ")
	}
	sb.WriteString(symbolName(f.Name))
	sb.WriteString("(")
	for ii, arg := range f.Args {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
		sb.WriteString(": ")
		sb.WriteString(arg.Type.String())
		if ii < len(f.ArgAttrs) && len(f.ArgAttrs[ii]) > 0 {
			sb.WriteString(" ")
			sb.WriteString(f.ArgAttrs[ii].String())
		}
	}
	sb.WriteString(")")
	if len(f.ResultTypes) > 0 {
		sb.WriteString(" -> ")
		sb.WriteString(resultTypesString(f.ResultTypes))
	}
	if len(f.Attrs) > 0 {
		sb.WriteString(" attributes ")
		sb.WriteString(f.Attrs.String())
	}
	if f.Body != nil {
		sb.WriteString(" {\n")
		for _, op := range f.Body.Ops {
			sb.WriteString(indent + indentStep)
			printOperation(sb, op)
			sb.WriteString("\n")
		}
		sb.WriteString(indent)
		sb.WriteString("}")
	}
	sb.WriteString("\n")
}

func printValues(sb *strings.Builder, values []*Value) {
	for ii, v := range values {
		if ii > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.String())
	}
}

func printOperation(sb *strings.Builder, op *Operation) {
	if len(op.Results) > 0 {
		printValues(sb, op.Results)
		sb.WriteString(" = ")
	}
	signature := &FunctionType{Inputs: op.OperandTypes(), Results: op.ResultTypes()}
	switch op.Name {
	case "func.return":
		sb.WriteString("func.return")
		if len(op.Operands) > 0 {
			sb.WriteString(" ")
			printValues(sb, op.Operands)
			sb.WriteString(" : ")
			sb.WriteString(joinTypes(signature.Inputs))
		}
		return
	case "func.call":
		sb.WriteString("func.call ")
		sb.WriteString(symbolName(op.Callee))
	default:
		sb.WriteString(strconv.Quote(op.Name))
	}
	sb.WriteString("(")
	printValues(sb, op.Operands)
	sb.WriteString(")")
	if len(op.Attrs) > 0 {
		sb.WriteString(" ")
		sb.WriteString(op.Attrs.String())
	}
	sb.WriteString(" : ")
	sb.WriteString(signature.String())
}
