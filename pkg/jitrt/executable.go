package jitrt

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ExecuteOpts are the per-call options of Executable.Execute.
type ExecuteOpts struct {
	// AsyncTaskRunner, if set, is made available to custom calls as user data of type TaskRunner.
	AsyncTaskRunner TaskRunner

	// CustomCallData is the user data available to custom calls during this execution.
	CustomCallData *customcall.UserData
}

// Executable is a compiled program, bound to its signature. It is immutable and can be
// executed concurrently.
type Executable struct {
	name             string
	signature        rttypes.FunctionType
	runtimeSignature rttypes.FunctionType
	program          backends.Program
	customCalls      *customcall.Registry

	// valueArgs are the row-major bytes of the value specialized arguments.
	valueArgs map[int][]byte
}

// Name of the executable, used in logs and errors.
func (e *Executable) Name() string { return e.name }

// NumResults returns the number of results of the executable.
func (e *Executable) NumResults() int { return e.runtimeSignature.NumResults() }

// Signature returns the signature of the entry function the executable was compiled from. For
// specialized executables, the argument types are refined by the specialization.
func (e *Executable) Signature() rttypes.FunctionType { return e.signature }

// RuntimeSignature returns the signature of the compiled program, after the calling convention.
func (e *Executable) RuntimeSignature() rttypes.FunctionType { return e.runtimeSignature }

// IsSpecialized returns whether the executable was compiled for a specialization.
func (e *Executable) IsSpecialized() bool { return e.valueArgs != nil }

// Execute runs the program with the given arguments, and passes each result to the converter.
//
// If the arguments don't match the signature, or if the program fails, the error is emitted to
// every result, and returned. Otherwise, conversion failures are set on their results, and the
// first one is returned.
func (e *Executable) Execute(args []MemrefDesc, converter ResultConverter, opts ExecuteOpts) error {
	abiArgs, err := e.prepareArgs(args)
	if err != nil {
		converter.EmitErrors(err)
		return err
	}

	kctx := newKernelContext(e.customCalls, opts)
	var results []backends.Value
	if exception := exceptions.Try(func() { results, err = e.program.Call(kctx, abiArgs) }); exception != nil {
		err = errors.Errorf("panic: %v", exception)
	}
	if err == nil {
		err = kctx.err()
	}
	if err == nil && len(results) != e.NumResults() {
		err = errors.Errorf("program returned %d results, %d expected", len(results), e.NumResults())
	}
	if err != nil {
		err = &RuntimeExecutionError{Executable: e.name, Err: err}
		klog.V(2).Infof("jitrt: %v", err)
		converter.EmitErrors(err)
		return err
	}

	var firstErr error
	for ii, result := range results {
		if err := converter.ReturnValue(ii, e.runtimeSignature.Results[ii], result); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Executable) prepareArgs(args []MemrefDesc) ([]backends.Value, error) {
	if err := verifyArguments(e.signature, args); err != nil {
		return nil, err
	}
	abiArgs := make([]backends.Value, len(args))
	for ii, arg := range args {
		m, err := arg.toABI()
		if err != nil {
			return nil, &ArgumentMismatchError{Index: ii, Expected: e.signature.Operands[ii].String(), Got: arg.String(), Reason: err.Error()}
		}
		if expected, found := e.valueArgs[ii]; found && !bytes.Equal(m.Bytes(), expected) {
			return nil, &ArgumentMismatchError{Index: ii, Expected: e.signature.Operands[ii].String(), Got: arg.String(),
				Reason: "value differs from the one the executable was specialized to"}
		}
		abiArgs[ii] = m
	}
	if klog.V(2).Enabled() {
		var numBytes uint64
		for _, arg := range abiArgs {
			m := arg.(*backends.Memref)
			numBytes += uint64(m.NumElements()) * uint64(m.DType.Size())
		}
		klog.Infof("jitrt: %s: executing with %d arguments (%s)", e.name, len(args), humanize.Bytes(numBytes))
	}
	return abiArgs, nil
}

func (e *Executable) finalize() {
	e.program.Finalize()
}

// verifyArguments checks the number of arguments, and their dtype, rank and static sizes.
func verifyArguments(signature rttypes.FunctionType, args []MemrefDesc) error {
	if len(args) != signature.NumOperands() {
		return &ArgumentMismatchError{
			Index:    -1,
			Expected: fmt.Sprintf("%d arguments", signature.NumOperands()),
			Got:      fmt.Sprintf("%d", len(args)),
			Reason:   "wrong number of arguments",
		}
	}
	for ii, t := range signature.Operands {
		arg := args[ii]
		mismatch := func(reason string) error {
			return &ArgumentMismatchError{Index: ii, Expected: t.String(), Got: arg.String(), Reason: reason}
		}
		dtype, ok := rttypes.ElementType(t)
		if !ok {
			return mismatch("operand can't be passed as a memref")
		}
		if arg.DType != dtype {
			return mismatch("element type mismatch")
		}
		if len(arg.Strides) != len(arg.Sizes) {
			return mismatch(fmt.Sprintf("%d strides given for rank %d", len(arg.Strides), len(arg.Sizes)))
		}
		sizes, ranked := rttypes.Sizes(t)
		if !ranked {
			continue
		}
		if len(sizes) != arg.Rank() {
			return mismatch("rank mismatch")
		}
		for axis, size := range sizes {
			if size != rttypes.DynamicSize && size != arg.Sizes[axis] {
				return mismatch(fmt.Sprintf("size mismatch at dimension %d", axis))
			}
		}
	}
	return nil
}

// kernelContext implements backends.KernelContext for one execution.
type kernelContext struct {
	registry *customcall.Registry
	userData *customcall.UserData

	mu       sync.Mutex
	errorMsg string
}

func newKernelContext(registry *customcall.Registry, opts ExecuteOpts) *kernelContext {
	userData := opts.CustomCallData
	if opts.AsyncTaskRunner != nil {
		userData = userData.Clone()
		customcall.Insert[TaskRunner](userData, opts.AsyncTaskRunner)
	}
	return &kernelContext{registry: registry, userData: userData}
}

// CustomCall implements backends.KernelContext.
func (k *kernelContext) CustomCall(name string, attrs customcall.Attributes) error {
	binding, found := k.registry.Lookup(name)
	if !found {
		return errors.Errorf("custom call %q is not registered", name)
	}
	return binding.Call(attrs, k.userData)
}

// SetError implements backends.KernelContext. Only the first error is kept.
func (k *kernelContext) SetError(msg string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.errorMsg == "" {
		k.errorMsg = msg
	}
}

func (k *kernelContext) err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.errorMsg == "" {
		return nil
	}
	return errors.New(k.errorMsg)
}
