package customcall

import (
	"fmt"
	"reflect"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/pkg/errors"
)

// Attribute is a named call-site constant passed to a custom call.
type Attribute struct {
	Name  string
	Value any
}

// Attributes are the ordered attributes of one call site.
type Attributes []Attribute

// Get returns the value of the named attribute.
func (attrs Attributes) Get(name string) (any, bool) {
	for _, attr := range attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// EncodeAttributes converts IR attributes to their custom call form, see ir.AttrValue.
// Attributes named in skip are left out.
func EncodeAttributes(attrs ir.Attributes, skip ...string) (Attributes, error) {
	encoded := make(Attributes, 0, len(attrs))
loop:
	for _, attr := range attrs {
		for _, name := range skip {
			if attr.Name == name {
				continue loop
			}
		}
		value, err := ir.AttrValue(attr.Value)
		if err != nil {
			return nil, errors.WithMessagef(err, "custom call attribute %q", attr.Name)
		}
		encoded = append(encoded, Attribute{Name: attr.Name, Value: value})
	}
	return encoded, nil
}

// UserData is a bag of values, at most one per type, made available to custom calls.
// A nil *UserData is a valid empty bag.
type UserData struct {
	values map[reflect.Type]any
}

// NewUserData returns a bag with the given values, each keyed by its dynamic type.
func NewUserData(values ...any) *UserData {
	u := &UserData{values: make(map[reflect.Type]any)}
	for _, value := range values {
		u.Insert(value)
	}
	return u
}

// Insert adds (or replaces) value, keyed by its dynamic type. Use the generic Insert function to
// key a value by an interface type.
func (u *UserData) Insert(value any) *UserData {
	u.values[reflect.TypeOf(value)] = value
	return u
}

// Insert adds (or replaces) value keyed by the type T, which may be an interface.
func Insert[T any](u *UserData, value T) {
	u.values[reflect.TypeFor[T]()] = value
}

// Lookup returns the value keyed by t.
func (u *UserData) Lookup(t reflect.Type) (any, bool) {
	if u == nil {
		return nil, false
	}
	value, found := u.values[t]
	return value, found
}

// Get returns the value keyed by type T.
func Get[T any](u *UserData) (T, bool) {
	value, found := u.Lookup(reflect.TypeFor[T]())
	if !found {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// Clone returns a shallow copy of the bag. Cloning nil returns an empty bag.
func (u *UserData) Clone() *UserData {
	clone := NewUserData()
	if u != nil {
		for t, value := range u.values {
			clone.values[t] = value
		}
	}
	return clone
}

// Len returns the number of values in the bag.
func (u *UserData) Len() int {
	if u == nil {
		return 0
	}
	return len(u.values)
}

// MissingUserDataError is returned when a custom call needs a user data type not present at execution.
type MissingUserDataError struct {
	Callee string
	Type   reflect.Type
}

func (e *MissingUserDataError) Error() string {
	return fmt.Sprintf("custom call %q: missing user data of type %s", e.Callee, e.Type)
}

// MissingAttributeError is returned when a declared attribute is missing at the call site, or has the wrong type.
type MissingAttributeError struct {
	Callee string
	Name   string
	Kind   AttrKind

	// Got is the value found with the wrong type, or nil if the attribute was missing.
	Got any
}

func (e *MissingAttributeError) Error() string {
	if e.Got != nil {
		return fmt.Sprintf("custom call %q: attribute %q must be %s, got %T", e.Callee, e.Name, e.Kind, e.Got)
	}
	return fmt.Sprintf("custom call %q: missing attribute %q of kind %s", e.Callee, e.Name, e.Kind)
}
