package ir

import (
	"math"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// Parse parses the textual form of a module.
//
// Operations of dialects not present in dialects are rejected; a nil registry only accepts the
// "builtin" and "func" dialects. Errors are returned as *ParseError.
func Parse(src string, dialects *DialectRegistry) (*Module, error) {
	if dialects == nil {
		dialects = NewDialectRegistry()
	}
	p := &parser{lex: newLexer(src), dialects: dialects}
	var module *Module
	if perr := exceptions.TryCatch[*ParseError](func() { module = p.parseModule() }); perr != nil {
		return nil, perr
	}
	return module, nil
}

type parser struct {
	lex       *lexer
	lookahead *token
	dialects  *DialectRegistry

	// values in scope in the function being parsed.
	values map[string]*Value
}

func (p *parser) peek() token {
	if p.lookahead == nil {
		t := p.lex.next()
		p.lookahead = &t
	}
	return *p.lookahead
}

func (p *parser) next() token {
	t := p.peek()
	p.lookahead = nil
	return t
}

func (p *parser) failf(loc Location, format string, args ...any) {
	p.lex.failf(loc, format, args...)
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) consumePunct(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) token {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		p.failf(t.loc, "expected '%s', got %s", s, t)
	}
	return t
}

func (p *parser) isKeyword(s string) bool {
	t := p.peek()
	return t.kind == tokBareID && t.text == s
}

func (p *parser) expect(kind tokenKind) token {
	t := p.next()
	if t.kind != kind {
		p.failf(t.loc, "expected %s, got %s", kind, t)
	}
	return t
}

func (p *parser) parseModule() *Module {
	m := &Module{}
	if p.isKeyword("module") {
		p.next()
		if p.isKeyword("attributes") {
			p.next()
			m.Attrs = p.parseAttrDict()
		}
		p.expectPunct("{")
		for !p.isPunct("}") {
			m.Funcs = append(m.Funcs, p.parseFunc())
		}
		p.next()
	} else {
		for p.peek().kind != tokEOF {
			m.Funcs = append(m.Funcs, p.parseFunc())
		}
	}
	p.expect(tokEOF)
	p.verifyModule(m)
	return m
}

func (p *parser) parseFunc() *Func {
	t := p.next()
	if t.kind != tokBareID || t.text != "func.func" {
		p.failf(t.loc, "expected 'func.func', got %s", t)
	}
	f := &Func{Loc: t.loc}
	if p.isKeyword("private") {
		p.next()
		f.Private = true
	}
	f.Name = p.expect(tokSymbol).text
	p.values = make(map[string]*Value)

	p.expectPunct("(")
	if !p.consumePunct(")") {
		for {
			arg := &Value{Index: len(f.Args)}
			if p.peek().kind == tokValueID {
				nameTok := p.next()
				if _, found := p.values[nameTok.text]; found {
					p.failf(nameTok.loc, "redefinition of argument %%%s", nameTok.text)
				}
				arg.Name = nameTok.text
				p.expectPunct(":")
			} else {
				// Declarations may list only the types.
				arg.Name = "arg" + strconv.Itoa(arg.Index)
			}
			arg.Type = p.parseType()
			p.values[arg.Name] = arg
			var attrs Attributes
			if p.isPunct("{") {
				attrs = p.parseAttrDict()
			}
			f.Args = append(f.Args, arg)
			f.ArgAttrs = append(f.ArgAttrs, attrs)
			if p.consumePunct(",") {
				continue
			}
			p.expectPunct(")")
			break
		}
	}
	if p.peek().kind == tokArrow {
		p.next()
		f.ResultTypes = p.parseResultTypes()
	}
	if p.isKeyword("attributes") {
		p.next()
		f.Attrs = p.parseAttrDict()
	}
	if p.consumePunct("{") {
		f.Body = p.parseBody(f)
	}
	return f
}

func (p *parser) parseBody(f *Func) *Block {
	b := &Block{}
	for !p.isPunct("}") {
		b.Ops = append(b.Ops, p.parseOperation())
	}
	p.next()
	if term := b.Terminator(); term == nil || term.Name != "func.return" {
		p.failf(f.Loc, "body of function @%s must end with func.return", f.Name)
	}
	for _, op := range b.Ops[:len(b.Ops)-1] {
		if op.Name == "func.return" {
			p.failf(op.Loc, "func.return must be the last operation of @%s", f.Name)
		}
	}
	return b
}

func (p *parser) parseOperation() *Operation {
	loc := p.peek().loc
	var names []string
	var nameLocs []Location
	if p.peek().kind == tokValueID {
		for {
			t := p.expect(tokValueID)
			names = append(names, t.text)
			nameLocs = append(nameLocs, t.loc)
			if !p.consumePunct(",") {
				break
			}
		}
		p.expectPunct("=")
	}

	var op *Operation
	t := p.peek()
	switch {
	case t.kind == tokString:
		op = p.parseGenericOperation(names)
	case t.kind == tokBareID && t.text == "func.call":
		op = p.parseCall(names)
	case t.kind == tokBareID && t.text == "func.return":
		if len(names) > 0 {
			p.failf(loc, "func.return has no results")
		}
		op = p.parseReturn()
	case t.kind == tokBareID:
		p.failf(t.loc, "custom syntax of operation '%s' is not supported, use the generic form \"%s\"(...)", t.text, t.text)
	default:
		p.failf(t.loc, "expected operation, got %s", t)
	}
	op.Loc = loc
	for ii, result := range op.Results {
		if _, found := p.values[result.Name]; found {
			p.failf(nameLocs[ii], "redefinition of value %%%s", result.Name)
		}
		p.values[result.Name] = result
	}
	return op
}

func (p *parser) checkDialect(name string, loc Location) {
	if !p.dialects.Contains(DialectOf(name)) {
		p.failf(loc, "operation '%s' belongs to unregistered dialect '%s'", name, DialectOf(name))
	}
}

// checkSignature verifies the operands and the bound result names against the operation's type.
func (p *parser) checkSignature(name string, loc Location, operands []*Value, names []string, ft *FunctionType) {
	if len(ft.Inputs) != len(operands) {
		p.failf(loc, "'%s' has %d operands, but its type lists %d", name, len(operands), len(ft.Inputs))
	}
	for ii, operand := range operands {
		if !TypesEqual(operand.Type, ft.Inputs[ii]) {
			p.failf(loc, "'%s' operand #%d (%s) has type %s, but its type lists %s",
				name, ii, operand, operand.Type, ft.Inputs[ii])
		}
	}
	if len(ft.Results) != len(names) {
		p.failf(loc, "'%s' has %d results, but %d values are bound", name, len(ft.Results), len(names))
	}
}

func (p *parser) parseGenericOperation(names []string) *Operation {
	nameTok := p.next()
	name := nameTok.text
	p.checkDialect(name, nameTok.loc)
	if name == "func.call" || name == "func.return" {
		p.failf(nameTok.loc, "'%s' must use its custom syntax", name)
	}
	p.expectPunct("(")
	operands := p.parseOperandList()
	var attrs Attributes
	if p.isPunct("{") {
		attrs = p.parseAttrDict()
	}
	p.expectPunct(":")
	ft := p.parseFunctionType()
	p.checkSignature(name, nameTok.loc, operands, names, ft)
	return NewOperation(name, operands, ft.Results, names, attrs)
}

func (p *parser) parseCall(names []string) *Operation {
	loc := p.next().loc
	callee := p.expect(tokSymbol).text
	p.expectPunct("(")
	operands := p.parseOperandList()
	var attrs Attributes
	if p.isPunct("{") {
		attrs = p.parseAttrDict()
	}
	p.expectPunct(":")
	ft := p.parseFunctionType()
	p.checkSignature("func.call", loc, operands, names, ft)
	op := NewOperation("func.call", operands, ft.Results, names, attrs)
	op.Callee = callee
	return op
}

func (p *parser) parseReturn() *Operation {
	loc := p.next().loc
	var operands []*Value
	if p.peek().kind == tokValueID {
		for {
			operands = append(operands, p.lookupValue(p.expect(tokValueID)))
			if !p.consumePunct(",") {
				break
			}
		}
		p.expectPunct(":")
		for ii := range operands {
			if ii > 0 {
				p.expectPunct(",")
			}
			t := p.parseType()
			if !TypesEqual(t, operands[ii].Type) {
				p.failf(loc, "func.return operand #%d has type %s, but %s was listed", ii, operands[ii].Type, t)
			}
		}
	}
	return NewOperation("func.return", operands, nil, nil, nil)
}

// parseOperandList parses "%a, %b)" after the opening parenthesis.
func (p *parser) parseOperandList() []*Value {
	var operands []*Value
	if p.consumePunct(")") {
		return operands
	}
	for {
		operands = append(operands, p.lookupValue(p.expect(tokValueID)))
		if p.consumePunct(",") {
			continue
		}
		p.expectPunct(")")
		return operands
	}
}

func (p *parser) lookupValue(t token) *Value {
	v, found := p.values[t.text]
	if !found {
		p.failf(t.loc, "use of undefined value %%%s", t.text)
	}
	return v
}

func (p *parser) parseFunctionType() *FunctionType {
	p.expectPunct("(")
	ft := &FunctionType{}
	if !p.consumePunct(")") {
		for {
			ft.Inputs = append(ft.Inputs, p.parseType())
			if p.consumePunct(",") {
				continue
			}
			p.expectPunct(")")
			break
		}
	}
	p.expect(tokArrow)
	ft.Results = p.parseResultTypes()
	return ft
}

// parseResultTypes parses a single type, or a parenthesized (possibly empty) list of types.
func (p *parser) parseResultTypes() []Type {
	if !p.consumePunct("(") {
		return []Type{p.parseType()}
	}
	types := []Type{}
	if p.consumePunct(")") {
		return types
	}
	for {
		types = append(types, p.parseType())
		if p.consumePunct(",") {
			continue
		}
		p.expectPunct(")")
		return types
	}
}

func (p *parser) parseType() Type {
	t := p.next()
	switch t.kind {
	case tokBareID:
		switch t.text {
		case "tensor", "memref":
			return p.parseShapedType(t)
		case "complex":
			p.expectPunct("<")
			elemLoc := p.peek().loc
			elem := p.parseType()
			if _, ok := elem.(*FloatType); !ok {
				p.failf(elemLoc, "complex element type must be a float type, got %s", elem)
			}
			p.expectPunct(">")
			return &ComplexType{Elem: elem}
		case "index":
			return Index
		case "bf16":
			return &FloatType{Width: 16, Brain: true}
		case "f16", "f32", "f64":
			width, _ := strconv.Atoi(t.text[1:])
			return &FloatType{Width: width}
		}
		if it := parseIntegerTypeName(t.text); it != nil {
			return it
		}
	case tokBangID:
		switch t.text {
		case "async.token":
			return &AsyncTokenType{}
		case "async.value":
			p.expectPunct("<")
			value := p.parseType()
			p.expectPunct(">")
			return &AsyncValueType{Value: value}
		case "rt.kernel_context":
			return &KernelContextType{}
		}
		p.failf(t.loc, "unknown dialect type !%s", t.text)
	}
	p.failf(t.loc, "expected type, got %s", t)
	panic(nil)
}

func parseIntegerTypeName(name string) *IntegerType {
	var signedness Signedness
	var digits string
	switch {
	case strings.HasPrefix(name, "ui"):
		signedness, digits = Unsigned, name[2:]
	case strings.HasPrefix(name, "si"):
		signedness, digits = Signed, name[2:]
	case strings.HasPrefix(name, "i"):
		signedness, digits = Signless, name[1:]
	default:
		return nil
	}
	width, err := strconv.Atoi(digits)
	if err != nil || width <= 0 || width > 64 || digits[0] == '0' {
		return nil
	}
	return &IntegerType{Width: width, Signedness: signedness}
}

func isElementType(t Type) bool {
	switch t.(type) {
	case *IntegerType, *FloatType, *IndexType, *ComplexType:
		return true
	}
	return false
}

func (p *parser) parseShapedType(kw token) Type {
	p.expectPunct("<")
	dims, unranked := p.lex.scanDimensions()
	elemLoc := p.peek().loc
	elem := p.parseType()
	if !isElementType(elem) {
		p.failf(elemLoc, "invalid %s element type %s", kw.text, elem)
	}
	p.expectPunct(">")
	switch {
	case kw.text == "tensor" && unranked:
		return &UnrankedTensorType{Elem: elem}
	case kw.text == "tensor":
		return &RankedTensorType{Shape: dims, Elem: elem}
	case unranked:
		return &UnrankedMemRefType{Elem: elem}
	default:
		return &MemRefType{Shape: dims, Elem: elem}
	}
}

func (p *parser) parseAttrDict() Attributes {
	p.expectPunct("{")
	attrs := Attributes{}
	if p.consumePunct("}") {
		return attrs
	}
	for {
		t := p.next()
		if t.kind != tokBareID && t.kind != tokString {
			p.failf(t.loc, "expected attribute name, got %s", t)
		}
		if _, found := attrs.Get(t.text); found {
			p.failf(t.loc, "duplicate attribute %q", t.text)
		}
		if p.consumePunct("=") {
			attrs = append(attrs, NamedAttribute{Name: t.text, Value: p.parseAttribute()})
		} else {
			attrs = append(attrs, NamedAttribute{Name: t.text, Value: &UnitAttr{}})
		}
		if p.consumePunct(",") {
			continue
		}
		p.expectPunct("}")
		return attrs
	}
}

func (p *parser) parseAttribute() Attribute {
	t := p.peek()
	switch t.kind {
	case tokInteger:
		p.next()
		value, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			p.failf(t.loc, "invalid integer %s: %v", t.text, err)
		}
		if !p.consumePunct(":") {
			return &IntegerAttr{Value: value, Type: I64}
		}
		typ := p.parseType()
		switch typ.(type) {
		case *IntegerType, *IndexType:
			return &IntegerAttr{Value: value, Type: typ}
		case *FloatType:
			return &FloatAttr{Value: float64(value), Type: typ}
		}
		p.failf(t.loc, "invalid type %s for integer attribute", typ)

	case tokFloat:
		p.next()
		value, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			p.failf(t.loc, "invalid float %s: %v", t.text, err)
		}
		if !p.consumePunct(":") {
			return &FloatAttr{Value: value, Type: F64}
		}
		typ := p.parseType()
		if _, ok := typ.(*FloatType); !ok {
			p.failf(t.loc, "invalid type %s for float attribute", typ)
		}
		return &FloatAttr{Value: value, Type: typ}

	case tokString:
		p.next()
		return &StringAttr{Value: t.text}

	case tokBareID:
		switch t.text {
		case "true", "false":
			p.next()
			return &BoolAttr{Value: t.text == "true"}
		case "unit":
			p.next()
			return &UnitAttr{}
		case "dense":
			return p.parseDense()
		}
		return &TypeAttr{Type: p.parseType()}

	case tokBangID:
		return &TypeAttr{Type: p.parseType()}

	case tokPunct:
		if t.text == "[" {
			p.next()
			array := &ArrayAttr{Elements: []Attribute{}}
			if p.consumePunct("]") {
				return array
			}
			for {
				array.Elements = append(array.Elements, p.parseAttribute())
				if p.consumePunct(",") {
					continue
				}
				p.expectPunct("]")
				return array
			}
		}
	}
	p.failf(t.loc, "expected attribute value, got %s", t)
	panic(nil)
}

// parseDense parses dense<...> : tensor<...>.
func (p *parser) parseDense() Attribute {
	loc := p.next().loc
	p.expectPunct("<")
	var literals []token
	var parseLiteral func()
	parseLiteral = func() {
		if p.consumePunct("[") {
			if p.consumePunct("]") {
				return
			}
			for {
				parseLiteral()
				if p.consumePunct(",") {
					continue
				}
				p.expectPunct("]")
				return
			}
		}
		t := p.next()
		switch {
		case t.kind == tokInteger || t.kind == tokFloat:
		case t.kind == tokBareID && (t.text == "true" || t.text == "false"):
		default:
			p.failf(t.loc, "expected dense element literal, got %s", t)
		}
		literals = append(literals, t)
	}
	parseLiteral()
	p.expectPunct(">")
	p.expectPunct(":")
	typeLoc := p.peek().loc
	typ, ok := p.parseType().(*RankedTensorType)
	if !ok || !HasStaticShape(typ) {
		p.failf(typeLoc, "dense elements require a statically shaped tensor type")
	}
	numElements := int(NumElements(typ.Shape))
	if len(literals) != numElements && len(literals) != 1 {
		p.failf(loc, "dense elements of %s has %d values, expected %d", typ, len(literals), numElements)
	}
	attr := &DenseElementsAttr{Type: typ}
	switch elem := typ.Elem.(type) {
	case *IntegerType:
		attr.Ints = make([]int64, numElements)
		for ii := range attr.Ints {
			lit := literals[min(ii, len(literals)-1)]
			switch {
			case lit.kind == tokBareID:
				if lit.text == "true" {
					attr.Ints[ii] = 1
				}
			case lit.kind == tokInteger:
				v, err := strconv.ParseInt(lit.text, 10, 64)
				if err != nil {
					p.failf(lit.loc, "invalid integer %s: %v", lit.text, err)
				}
				attr.Ints[ii] = v
			default:
				p.failf(lit.loc, "float value %s in integer dense elements", lit.text)
			}
		}
	case *FloatType:
		attr.Floats = make([]float64, numElements)
		for ii := range attr.Floats {
			lit := literals[min(ii, len(literals)-1)]
			if lit.kind == tokBareID {
				p.failf(lit.loc, "boolean value %s in float dense elements", lit.text)
			}
			v, err := strconv.ParseFloat(lit.text, 64)
			if err != nil {
				p.failf(lit.loc, "invalid float %s: %v", lit.text, err)
			}
			if elem.Width == 32 && math.Abs(v) > math.MaxFloat32 {
				p.failf(lit.loc, "value %s overflows %s", lit.text, elem)
			}
			attr.Floats[ii] = v
		}
	default:
		p.failf(typeLoc, "dense elements of %s are not supported", typ.Elem)
	}
	return attr
}

// verifyModule checks the cross-function references.
func (p *parser) verifyModule(m *Module) {
	seen := make(map[string]bool)
	for _, f := range m.Funcs {
		if seen[f.Name] {
			p.failf(f.Loc, "redefinition of function @%s", f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range m.Funcs {
		if f.Body == nil {
			continue
		}
		for _, op := range f.Body.Ops {
			switch op.Name {
			case "func.call":
				callee := m.Lookup(op.Callee)
				if callee == nil {
					p.failf(op.Loc, "call to undefined function @%s", op.Callee)
				}
				ft := &FunctionType{Inputs: op.OperandTypes(), Results: op.ResultTypes()}
				if !TypesEqual(ft, callee.Type()) {
					p.failf(op.Loc, "call to @%s with type %s, but the function has type %s", op.Callee, ft, callee.Type())
				}
			case "func.return":
				returned := resultTypesString(op.OperandTypes())
				if declared := resultTypesString(f.ResultTypes); returned != declared {
					p.failf(op.Loc, "func.return of @%s returns %s, but the function returns %s", f.Name, returned, declared)
				}
			}
		}
	}
}
