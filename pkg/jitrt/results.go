package jitrt

import (
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/gomlx/jitrt/pkg/support/xsync"
	"github.com/pkg/errors"
)

// AsyncValue is the asynchronous host-side value of one result.
type AsyncValue = xsync.Promise[any]

// Results are the slots of the results of an execution, one per result of the executable. Each
// slot is set exactly once, either to a value or to an error.
type Results struct {
	values []*AsyncValue
}

// NewResults returns n pending result slots.
func NewResults(n int) *Results {
	r := &Results{values: make([]*AsyncValue, n)}
	for ii := range r.values {
		r.values[ii] = xsync.NewPromise[any]()
	}
	return r
}

// Len returns the number of slots.
func (r *Results) Len() int { return len(r.values) }

// At returns slot i.
func (r *Results) At(i int) *AsyncValue { return r.values[i] }

// Await blocks until slot i is set, and returns its value or error.
func (r *Results) Await(i int) (any, error) { return r.values[i].Await() }

// AwaitAll blocks until all slots are set, and returns the values, or the first error.
func (r *Results) AwaitAll() ([]any, error) {
	values := make([]any, len(r.values))
	for ii, v := range r.values {
		var err error
		values[ii], err = v.Await()
		if err != nil {
			return nil, errors.WithMessagef(err, "result #%d", ii)
		}
	}
	return values, nil
}

// EmitValue sets slot i to value. It returns false if the slot was already set.
func (r *Results) EmitValue(i int, value any) bool { return r.values[i].Resolve(value) }

// EmitError sets slot i to err. It returns false if the slot was already set.
func (r *Results) EmitError(i int, err error) bool { return r.values[i].Reject(err) }

// EmitErrors sets all the slots not set yet to err.
func (r *Results) EmitErrors(err error) {
	for _, v := range r.values {
		v.Reject(err)
	}
}

// ResultConverter receives the results of an execution.
type ResultConverter interface {
	// ReturnValue converts result i, of runtime type t, to its host value.
	ReturnValue(i int, t rttypes.Type, v backends.Value) error

	// EmitErrors is called instead of ReturnValue when the execution fails.
	EmitErrors(err error)
}

// MatchFunc selects the results a conversion applies to.
type MatchFunc func(t rttypes.Type) bool

// ConvertFunc converts a result to its host value. The user context C is given by the
// ReturnValueConverter.
type ConvertFunc[C any] func(ctx C, t rttypes.Type, v backends.Value) (any, error)

type conversion[C any] struct {
	match   MatchFunc
	convert ConvertFunc[C]
}

// ReturnValueConverter is a ResultConverter trying an ordered list of conversions, and setting
// the result of the first matching one to its Results slot.
type ReturnValueConverter[C any] struct {
	results     *Results
	ctx         C
	conversions []conversion[C]
}

// Compile-time check that ReturnValueConverter implements ResultConverter.
var _ ResultConverter = &ReturnValueConverter[struct{}]{}

// NewReturnValueConverter returns a converter with no conversions, setting the values to results.
// ctx is passed to every conversion.
func NewReturnValueConverter[C any](results *Results, ctx C) *ReturnValueConverter[C] {
	return &ReturnValueConverter[C]{results: results, ctx: ctx}
}

// AddConversion appends a conversion, tried after those already added. It returns the converter,
// so calls can be chained.
func (c *ReturnValueConverter[C]) AddConversion(match MatchFunc, convert ConvertFunc[C]) *ReturnValueConverter[C] {
	c.conversions = append(c.conversions, conversion[C]{match: match, convert: convert})
	return c
}

// Results returns the slots the converter sets.
func (c *ReturnValueConverter[C]) Results() *Results { return c.results }

// ReturnValue implements ResultConverter. If no conversion matches, or if the matching conversion
// fails, the slot is set to a *ConversionError, which is also returned.
func (c *ReturnValueConverter[C]) ReturnValue(i int, t rttypes.Type, v backends.Value) error {
	for _, conv := range c.conversions {
		if !conv.match(t) {
			continue
		}
		value, err := conv.convert(c.ctx, t, v)
		if err != nil {
			err = &ConversionError{Index: i, Type: t, Err: err}
			c.results.EmitError(i, err)
			return err
		}
		c.results.EmitValue(i, value)
		return nil
	}
	err := &ConversionError{Index: i, Type: t}
	c.results.EmitError(i, err)
	return err
}

// EmitErrors implements ResultConverter.
func (c *ReturnValueConverter[C]) EmitErrors(err error) {
	c.results.EmitErrors(err)
}

// MatchMemref matches ranked and unranked memref results.
func MatchMemref(t rttypes.Type) bool {
	switch t.(type) {
	case *rttypes.Memref, *rttypes.UnrankedMemref:
		return true
	}
	return false
}

// MatchAsyncToken matches async token results.
func MatchAsyncToken(t rttypes.Type) bool {
	_, ok := t.(*rttypes.AsyncToken)
	return ok
}

// ReturnMemrefAsTensor converts a memref result to a *tensors.Tensor. The memref storage is
// reused if it is contiguous, otherwise it is copied.
func ReturnMemrefAsTensor[C any](_ C, t rttypes.Type, v backends.Value) (any, error) {
	m, ok := v.(*backends.Memref)
	if !ok {
		return nil, errors.Errorf("expected a memref, got %T", v)
	}
	if dtype, _ := rttypes.ElementType(t); dtype != m.DType {
		return nil, errors.Errorf("returned %s doesn't match the result type %s", m, t)
	}
	if sizes, ranked := rttypes.Sizes(t); ranked {
		if len(sizes) != m.Rank() {
			return nil, errors.Errorf("returned %s doesn't match the result type %s", m, t)
		}
		for axis, size := range sizes {
			if size != rttypes.DynamicSize && size != m.Sizes[axis] {
				return nil, errors.Errorf("returned %s doesn't match the result type %s", m, t)
			}
		}
	}
	return memrefToTensor(m)
}

// ReturnAsyncToken returns async token results as a *backends.AsyncToken.
func ReturnAsyncToken[C any](_ C, _ rttypes.Type, v backends.Value) (any, error) {
	token, ok := v.(*backends.AsyncToken)
	if !ok {
		return nil, errors.Errorf("expected an async token, got %T", v)
	}
	return token, nil
}
