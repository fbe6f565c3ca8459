package cli

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/core/shapes"
	"github.com/gomlx/jitrt/pkg/core/tensors"
	"github.com/pkg/errors"
)

// ParseArg parses an argument given as "dtype:dims:values", e.g. "f32:2x2:1,2,3,4".
//
// Dims are separated by "x", and are empty for scalars ("i64::7"). A single value is broadcast
// to all the elements.
func ParseArg(spec string) (*tensors.Tensor, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return nil, errors.Errorf("invalid argument %q, expected \"dtype:dims:values\"", spec)
	}
	dtype, err := dtypes.FromName(parts[0])
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid argument %q", spec)
	}
	var dims []int
	if parts[1] != "" {
		for _, dimStr := range strings.Split(parts[1], "x") {
			dim, err := strconv.Atoi(dimStr)
			if err != nil || dim < 0 {
				return nil, errors.Errorf("invalid argument %q: invalid dimension %q", spec, dimStr)
			}
			dims = append(dims, dim)
		}
	}
	tensor := tensors.FromShape(shapes.Make(dtype, dims...))

	var values []string
	if parts[2] != "" {
		values = strings.Split(parts[2], ",")
	}
	size := tensor.Size()
	if len(values) != size && len(values) != 1 {
		return nil, errors.Errorf("invalid argument %q: %d values given for %d elements", spec, len(values), size)
	}
	flat := reflect.ValueOf(tensor.FlatAny())
	goType := dtype.GoType()
	for ii := range size {
		valueStr := strings.TrimSpace(values[min(ii, len(values)-1)])
		value, err := parseValue(dtype, valueStr)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid argument %q", spec)
		}
		flat.Index(ii).Set(reflect.ValueOf(value).Convert(goType))
	}
	return tensor, nil
}

// parseValue returns an int64, uint64, float64, complex128 or bool, depending on the dtype.
func parseValue(dtype dtypes.DType, s string) (any, error) {
	switch {
	case dtype.IsBool():
		return strconv.ParseBool(s)
	case dtype.IsUnsigned():
		return strconv.ParseUint(s, 10, dtype.Bits())
	case dtype.IsInt():
		return strconv.ParseInt(s, 10, dtype.Bits())
	case dtype.IsFloat():
		return strconv.ParseFloat(s, dtype.Bits())
	case dtype.IsComplex():
		return strconv.ParseComplex(s, dtype.Bits())
	}
	return nil, errors.Errorf("dtype %s not supported", dtype)
}
