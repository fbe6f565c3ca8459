package tensors

import (
	"bytes"
	"fmt"
	"reflect"
)

// TensorStringDefaultPrecision used by Tensor.String.
const TensorStringDefaultPrecision = 4

// String converts to string, if not too large. It uses t.Summary(precision=4).
func (t *Tensor) String() string {
	return t.Summary(TensorStringDefaultPrecision)
}

// Summary returns a one-line summary of the Tensor's content, with rows longer than 6 elements
// abbreviated with an ellipsis.
func (t *Tensor) Summary(precision int) string {
	if t.Size() == 0 {
		return t.shape.String()
	}
	var buf bytes.Buffer
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	wValue := func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			w("%d", v.Int())
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			w("%d", v.Uint())
		case reflect.Complex64, reflect.Complex128:
			c := v.Complex()
			w("(%.*g%+.*gi)", precision, real(c), precision, imag(c))
		case reflect.Bool:
			w("%v", v.Bool())
		default:
			w("%.*g", precision, v.Interface())
		}
	}

	w("%s", t.shape)
	values := reflect.ValueOf(t.flat)
	dims := t.shape.Dimensions
	if len(dims) == 0 {
		w("(")
		wValue(values.Index(0))
		w(")")
		return buf.String()
	}
	w(": ")
	strides := t.LayoutStrides()
	var printElements func(offset, axis int)
	printElements = func(offset, axis int) {
		w("[")
		n := dims[axis]
		for ii := 0; ii < n; ii++ {
			if n > 6 && ii == 3 {
				w(", ...")
				ii = n - 3
			}
			if ii > 0 {
				w(", ")
			}
			if axis == len(dims)-1 {
				wValue(values.Index(offset + ii))
			} else {
				printElements(offset+ii*strides[axis], axis+1)
			}
		}
		w("]")
	}
	printElements(0, 0)
	return buf.String()
}
