// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package jitrt

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/pkg/compiler"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/diagnostics"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/gomlx/jitrt/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// AsyncExecutable is the handle of an executable being compiled: it resolves to the *Executable,
// or to the compilation error. Handles are shared by all the callers asking for the same
// specialization.
type AsyncExecutable = xsync.Promise[*Executable]

// Stats of a JitExecutable.
type Stats struct {
	// Compilations finished, successful or not, including the Default one.
	Compilations int64

	// CacheHits and CacheMisses of GetExecutable calls for specialized executables.
	CacheHits, CacheMisses int64

	// Specializations in the cache.
	Specializations int
}

// JitExecutable owns a parsed program, its Default executable and the cache of its specialized
// executables.
//
// It's safe for concurrent use.
type JitExecutable struct {
	name       string
	entrypoint string
	opts       CompilationOptions

	// module is the parsed source. It's never modified.
	module *ir.Module

	signature        rttypes.FunctionType
	runtimeSignature rttypes.FunctionType
	constraints      []ArgumentConstraint

	defaultExecutable *AsyncExecutable

	// specializations are looked up without locking, muSpecializations serializes insertions.
	specializations    xsync.SyncMap[Fingerprint, *AsyncExecutable]
	muSpecializations  sync.Mutex
	numSpecializations int

	pending                               *xsync.DynamicWaitGroup
	compilations, cacheHits, cacheMisses atomic.Int64
	finalized                             atomic.Bool
}

// Instantiate parses the source, converts the signature of the entry function, reads its argument
// constraints and schedules the compilation of the Default executable on opts.TaskRunner.
//
// Errors are *SourceParseError if the source can't be parsed (or doesn't define the entrypoint), and
// *rttypes.SignatureConversionError if the signature or the constraints are not supported. A failure
// to compile the Default executable is not an error here: it's the error of DefaultExecutable().
func Instantiate(source, entrypoint string, opts CompilationOptions) (*JitExecutable, error) {
	opts, err := opts.withDefaults(entrypoint)
	if err != nil {
		return nil, err
	}
	dialects := ir.NewDialectRegistry()
	opts.RegisterDialects(dialects)
	module, err := ir.Parse(source, dialects)
	if err != nil {
		var loc diagnostics.Location
		if parseErr, ok := err.(*ir.ParseError); ok {
			loc = diagnostics.Location{Name: opts.Name, Line: parseErr.Loc.Line, Col: parseErr.Loc.Col}
		}
		opts.Diagnostics.Errorf(loc, "%v", err)
		return nil, &SourceParseError{Entrypoint: entrypoint, Err: err}
	}
	entry := module.Lookup(entrypoint)
	if entry == nil {
		return nil, &SourceParseError{Entrypoint: entrypoint, Err: errors.Errorf("entrypoint @%s not found", entrypoint)}
	}
	if entry.IsDeclaration() {
		return nil, &SourceParseError{Entrypoint: entrypoint, Err: errors.Errorf("entrypoint @%s has no body", entrypoint)}
	}

	signature, err := rttypes.ConvertFunctionType(entry.Type())
	if err != nil {
		return nil, err
	}
	runtimeSignature, err := opts.CallingConvention(signature)
	if err != nil {
		return nil, errors.WithMessagef(err, "calling convention failed for the signature %s", signature)
	}
	constraints, err := readConstraints(entry)
	if err != nil {
		return nil, err
	}

	je := &JitExecutable{
		name:              opts.Name,
		entrypoint:        entrypoint,
		opts:              opts,
		module:            module,
		signature:         signature,
		runtimeSignature:  runtimeSignature,
		constraints:       constraints,
		defaultExecutable: xsync.NewPromise[*Executable](),
		pending:           xsync.NewDynamicWaitGroup(),
	}
	klog.V(1).Infof("jitrt: instantiated %s with signature %s, constraints %v, specialization %s",
		je.name, signature, constraints, opts.Specialization)
	je.pending.Add(1)
	je.schedule(je.defaultExecutable, "default", func() (*Executable, error) {
		return je.compile(je.module, "default", nil)
	})
	return je, nil
}

// Name of the JitExecutable, used in logs.
func (je *JitExecutable) Name() string { return je.name }

// Signature returns the signature of the entry function.
func (je *JitExecutable) Signature() rttypes.FunctionType { return je.signature }

// RuntimeSignature returns the signature of the entry function after the calling convention.
func (je *JitExecutable) RuntimeSignature() rttypes.FunctionType { return je.runtimeSignature }

// Constraints returns the resolved constraint of each argument.
func (je *JitExecutable) Constraints() []ArgumentConstraint { return slices.Clone(je.constraints) }

// Specialization mode the JitExecutable was instantiated with.
func (je *JitExecutable) Specialization() Specialization { return je.opts.Specialization }

// DefaultExecutable returns the handle of the executable compiled without specialization.
func (je *JitExecutable) DefaultExecutable() *AsyncExecutable { return je.defaultExecutable }

// Stats returns a snapshot of the counters.
func (je *JitExecutable) Stats() Stats {
	je.muSpecializations.Lock()
	numSpecializations := je.numSpecializations
	je.muSpecializations.Unlock()
	return Stats{
		Compilations:    je.compilations.Load(),
		CacheHits:       je.cacheHits.Load(),
		CacheMisses:     je.cacheMisses.Load(),
		Specializations: numSpecializations,
	}
}

// participates returns whether arguments with the constraint are specialized.
func (je *JitExecutable) participates(c ArgumentConstraint) bool {
	switch c {
	case ConstraintValue:
		return true
	case ConstraintRank, ConstraintShape:
		return je.opts.Specialization == SpecializationEnabled
	}
	return false
}

// GetExecutable returns the handle of the executable for the arguments.
//
// If no argument takes part in specialization, it's the Default executable. Otherwise, the
// executable specialized to the constrained arguments is looked up in the cache, and its
// compilation is scheduled (exactly once per fingerprint) if missing. The handle may still be
// pending: use Await.
//
// The arguments are only read during the call. An error is returned if they don't match the
// signature. If the cache reached CompilationOptions.MaxSpecializations, the returned handle is
// rejected with ErrCacheFull.
func (je *JitExecutable) GetExecutable(args []MemrefDesc) (*AsyncExecutable, error) {
	if je.finalized.Load() {
		return nil, errors.Errorf("jitrt: GetExecutable called on %s after Finalize", je.name)
	}
	if err := verifyArguments(je.signature, args); err != nil {
		return nil, err
	}
	specs, err := specializationsOf(args, je.constraints, je.participates)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return je.defaultExecutable, nil
	}

	fp := fingerprintOf(specs)
	if handle, found := je.specializations.Load(fp); found {
		je.cacheHits.Add(1)
		return handle, nil
	}
	je.muSpecializations.Lock()
	if je.finalized.Load() {
		je.muSpecializations.Unlock()
		return nil, errors.Errorf("jitrt: GetExecutable called on %s after Finalize", je.name)
	}
	if handle, found := je.specializations.Load(fp); found {
		je.muSpecializations.Unlock()
		je.cacheHits.Add(1)
		return handle, nil
	}
	je.cacheMisses.Add(1)
	if je.opts.MaxSpecializations > 0 && je.numSpecializations >= je.opts.MaxSpecializations {
		je.muSpecializations.Unlock()
		klog.Warningf("jitrt: %s: specialization %s not compiled, the cache is full (%d entries)",
			je.name, fp, je.opts.MaxSpecializations)
		return xsync.Rejected[*Executable](ErrCacheFull), nil
	}
	handle := xsync.NewPromise[*Executable]()
	je.specializations.Store(fp, handle)
	je.numSpecializations++
	// Registered before unlocking, so Finalize waits for it.
	je.pending.Add(1)
	je.muSpecializations.Unlock()

	kind := "specialization " + fp.String()
	je.schedule(handle, kind, func() (*Executable, error) {
		specialized, err := specialize(je.module, je.entrypoint, specs)
		if err != nil {
			return nil, err
		}
		return je.compile(specialized, kind, specs)
	})
	return handle, nil
}

// schedule runs compile on the TaskRunner, and settles the handle with its outcome. The caller
// must have added the compilation to je.pending.
func (je *JitExecutable) schedule(handle *AsyncExecutable, kind string, compile func() (*Executable, error)) {
	je.opts.TaskRunner.Run(func() {
		defer je.pending.Done()
		start := time.Now()
		var exe *Executable
		var err error
		if exception := exceptions.Try(func() { exe, err = compile() }); exception != nil {
			err = errors.Errorf("compilation panicked: %v", exception)
		}
		je.compilations.Add(1)
		if err != nil {
			klog.V(1).Infof("jitrt: %s: %s compilation failed after %s: %v", je.name, kind, time.Since(start), err)
			handle.Reject(err)
			return
		}
		klog.V(1).Infof("jitrt: %s: %s compiled in %s", je.name, kind, time.Since(start))
		handle.Resolve(exe)
	})
}

// compile lowers the module and compiles it with the backend. specs are the specializations
// applied to the module, if any.
func (je *JitExecutable) compile(module *ir.Module, kind string, specs []argSpecialization) (*Executable, error) {
	entry := module.Lookup(je.entrypoint)
	signature, err := rttypes.ConvertFunctionType(entry.Type())
	if err != nil {
		return nil, err
	}
	runtimeSignature, err := je.opts.CallingConvention(signature)
	if err != nil {
		return nil, errors.WithMessagef(err, "calling convention failed for the signature %s", signature)
	}

	pm := compiler.NewPassManager(compiler.Options{
		Diagnostics: je.opts.Diagnostics,
		CustomCalls: je.opts.CustomCalls,
		Entry:       je.entrypoint,
		SourceName:  je.name,
	})
	je.opts.CreateCompilationPipeline(pm)
	lowered, err := pm.Run(module)
	if err != nil {
		return nil, err
	}

	loweredEntry := lowered.Lookup(je.entrypoint)
	if loweredEntry == nil {
		return nil, &compiler.PipelineError{Pass: "entry-signature", Err: errors.Errorf("entry function @%s was removed", je.entrypoint)}
	}
	loweredSignature, err := rttypes.ConvertFunctionType(loweredEntry.Type())
	if err != nil {
		return nil, &compiler.PipelineError{Pass: "entry-signature", Err: err}
	}
	if !loweredSignature.Equal(runtimeSignature) {
		return nil, &compiler.PipelineError{Pass: "entry-signature", Err: errors.Errorf(
			"lowered entry signature %s doesn't match the calling convention %s", loweredSignature, runtimeSignature)}
	}

	program, err := je.opts.Backend.Compile(lowered, je.entrypoint)
	if err != nil {
		return nil, errors.WithMessagef(err, "backend %q failed to compile %s", je.opts.Backend.Name(), je.name)
	}
	exe := &Executable{
		name:             je.name + "/" + kind,
		signature:        signature,
		runtimeSignature: runtimeSignature,
		program:          program,
		customCalls:      je.opts.CustomCalls,
	}
	if specs != nil {
		exe.valueArgs = make(map[int][]byte)
		for _, spec := range specs {
			if spec.constraint == ConstraintValue {
				exe.valueArgs[spec.index] = spec.raw
			}
		}
	}
	return exe, nil
}

// Finalize waits for the pending compilations, and releases the resources of all the compiled
// executables. The JitExecutable and its executables must not be used afterwards.
// Calling it more than once is a no-op.
func (je *JitExecutable) Finalize() {
	je.muSpecializations.Lock()
	if !je.finalized.CompareAndSwap(false, true) {
		je.muSpecializations.Unlock()
		return
	}
	je.muSpecializations.Unlock()
	if n := je.pending.Count(); n > 0 {
		klog.Warningf("jitrt: %s: Finalize waiting for %d pending compilations", je.name, n)
	}
	je.pending.Wait()
	release := func(handle *AsyncExecutable) {
		if exe, err := handle.Await(); err == nil && exe != nil {
			exe.finalize()
		}
	}
	release(je.defaultExecutable)
	je.specializations.Range(func(_ Fingerprint, handle *AsyncExecutable) bool {
		release(handle)
		return true
	})
}
