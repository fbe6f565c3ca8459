// Package dtypes includes the DType enum for the element types that can cross the
// boundary between host code and compiled programs.
//
// The set is closed: i1, signed/signless integers, unsigned integers, f32, f64 and the two
// complex types. Anything else found in an IR type is rejected by the runtime type converter.
//
// It includes converters to/from Go native types (and reflect.Type), and constraint interfaces
// to be used with generics (Supported, Number).
package dtypes

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// panicf panics with the formatted description.
//
// It is only used for "bugs in the code" -- when parameters are invalid.
// In principle, it should never happen -- the same way nil-pointer panics should never happen.
func panicf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

// DType indicates the type of the unit element of a memref or tensor.
type DType int32

const (
	InvalidDType DType = iota
	I1                 // Boolean, represented as a Go bool (one byte).
	I8
	I16
	I32
	I64
	UI8
	UI16
	UI32
	UI64
	F32
	F64
	Complex64  // complex<f32>
	Complex128 // complex<f64>

	lastDType
)

var dtypeNames = [...]string{
	InvalidDType: "invalid",
	I1:           "i1",
	I8:           "i8",
	I16:          "i16",
	I32:          "i32",
	I64:          "i64",
	UI8:          "ui8",
	UI16:         "ui16",
	UI32:         "ui32",
	UI64:         "ui64",
	F32:          "f32",
	F64:          "f64",
	Complex64:    "complex64",
	Complex128:   "complex128",
}

// String returns the canonical short name of the dtype ("f32", "ui8", "complex64", ...).
func (dtype DType) String() string {
	if dtype < 0 || dtype >= lastDType {
		return "DType(" + strconv.Itoa(int(dtype)) + ")"
	}
	return dtypeNames[dtype]
}

// IsValid returns whether dtype is one of the supported dtypes.
func (dtype DType) IsValid() bool {
	return dtype > InvalidDType && dtype < lastDType
}

// All returns all valid dtypes, in enum order.
func All() []DType {
	all := make([]DType, 0, int(lastDType)-1)
	for dtype := I1; dtype < lastDType; dtype++ {
		all = append(all, dtype)
	}
	return all
}

// MapOfNames to their dtypes. It includes the canonical names, Go names and a few aliases.
// Lookups should be done with lower-case keys, but the common mixed-case forms are also included.
var MapOfNames = map[string]DType{
	"bool":       I1,
	"pred":       I1,
	"int8":       I8,
	"s8":         I8,
	"int16":      I16,
	"s16":        I16,
	"int32":      I32,
	"s32":        I32,
	"int64":      I64,
	"s64":        I64,
	"uint8":      UI8,
	"u8":         UI8,
	"uint16":     UI16,
	"u16":        UI16,
	"uint32":     UI32,
	"u32":        UI32,
	"uint64":     UI64,
	"u64":        UI64,
	"float32":    F32,
	"Float32":    F32,
	"float64":    F64,
	"Float64":    F64,
	"c64":        Complex64,
	"Complex64":  Complex64,
	"c128":       Complex128,
	"Complex128": Complex128,
}

func init() {
	for _, dtype := range All() {
		MapOfNames[dtype.String()] = dtype
	}

	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// FromName parses a dtype name (case-insensitive), see MapOfNames.
func FromName(name string) (DType, error) {
	dtype, found := MapOfNames[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// Supported lists the Go types that have a DType.
type Supported interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 | complex64 | complex128
}

// Number represents the Go numeric types that have a DType. Bool is excluded.
type Number interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// FromGenericsType returns the DType enum for the given type that this package knows about.
func FromGenericsType[T Supported]() DType {
	var t T
	switch (any(t)).(type) {
	case bool:
		return I1
	case int8:
		return I8
	case int16:
		return I16
	case int32:
		return I32
	case int64:
		return I64
	case uint8:
		return UI8
	case uint16:
		return UI16
	case uint32:
		return UI32
	case uint64:
		return UI64
	case float32:
		return F32
	case float64:
		return F64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	}
	return InvalidDType
}

// FromGoType returns the DType for the given "reflect.Type", or InvalidDType if there is none.
// Go's `int` and `uint` are not supported, since their size is platform dependent.
func FromGoType(t reflect.Type) DType {
	switch t.Kind() {
	case reflect.Bool:
		return I1
	case reflect.Int8:
		return I8
	case reflect.Int16:
		return I16
	case reflect.Int32:
		return I32
	case reflect.Int64:
		return I64
	case reflect.Uint8:
		return UI8
	case reflect.Uint16:
		return UI16
	case reflect.Uint32:
		return UI32
	case reflect.Uint64:
		return UI64
	case reflect.Float32:
		return F32
	case reflect.Float64:
		return F64
	case reflect.Complex64:
		return Complex64
	case reflect.Complex128:
		return Complex128
	default:
		return InvalidDType
	}
}

// FromAny introspects the underlying type of any and return the corresponding DType.
// Non-scalar types, or not supported types returns InvalidDType.
func FromAny(value any) DType {
	return FromGoType(reflect.TypeOf(value))
}

// GoType returns the Go `reflect.Type` corresponding to the DType.
func (dtype DType) GoType() reflect.Type {
	switch dtype {
	case I1:
		return reflect.TypeOf(true)
	case I8:
		return reflect.TypeOf(int8(0))
	case I16:
		return reflect.TypeOf(int16(0))
	case I32:
		return reflect.TypeOf(int32(0))
	case I64:
		return reflect.TypeOf(int64(0))
	case UI8:
		return reflect.TypeOf(uint8(0))
	case UI16:
		return reflect.TypeOf(uint16(0))
	case UI32:
		return reflect.TypeOf(uint32(0))
	case UI64:
		return reflect.TypeOf(uint64(0))
	case F32:
		return reflect.TypeOf(float32(0))
	case F64:
		return reflect.TypeOf(float64(0))
	case Complex64:
		return reflect.TypeOf(complex64(0))
	case Complex128:
		return reflect.TypeOf(complex128(0))
	default:
		panicf("unknown dtype %q (%d) in DType.GoType", dtype, dtype)
		panic(nil)
	}
}

// GoStr converts dtype to the corresponding Go type and convert that to string.
func (dtype DType) GoStr() string {
	return dtype.GoType().Name()
}

// Size returns the number of bytes for the given DType.
func (dtype DType) Size() int {
	return int(dtype.GoType().Size())
}

// Bits returns the number of bits of the element.
// Notice I1 is stored in one byte, but it reports 1 bit.
func (dtype DType) Bits() int {
	if dtype == I1 {
		return 1
	}
	return dtype.Size() * 8
}

// IsBool returns whether dtype is I1.
func (dtype DType) IsBool() bool {
	return dtype == I1
}

// IsInt returns whether dtype is a signed or signless integer type. I1 is not included.
func (dtype DType) IsInt() bool {
	return dtype == I8 || dtype == I16 || dtype == I32 || dtype == I64
}

// IsUnsigned returns whether dtype is one of the unsigned integer types.
func (dtype DType) IsUnsigned() bool {
	return dtype == UI8 || dtype == UI16 || dtype == UI32 || dtype == UI64
}

// IsInteger returns whether dtype holds integral values: signed, unsigned or I1.
func (dtype DType) IsInteger() bool {
	return dtype.IsBool() || dtype.IsInt() || dtype.IsUnsigned()
}

// IsFloat returns whether dtype is F32 or F64. It returns false for complex numbers.
func (dtype DType) IsFloat() bool {
	return dtype == F32 || dtype == F64
}

// IsComplex returns whether dtype is a supported complex number type.
func (dtype DType) IsComplex() bool {
	return dtype == Complex64 || dtype == Complex128
}

// RealDType returns the real component of complex dtypes.
// For float dtypes, it returns itself, and InvalidDType for anything else.
func (dtype DType) RealDType() DType {
	switch dtype {
	case F32, F64:
		return dtype
	case Complex64:
		return F32
	case Complex128:
		return F64
	default:
		return InvalidDType
	}
}
