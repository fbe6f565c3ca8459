// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package compiler lowers IR modules (see package ir) to the form executed by the backends:
// buffers (memrefs) instead of tensors, and only "arith.constant", "linalg.*" and "rt.*"
// operations.
//
// A PassManager runs an ordered list of passes on a clone of the module. Passes report problems
// as diagnostics; the first pass that fails (or emits an error diagnostic) stops the pipeline,
// and the accumulated diagnostics are returned in a *PipelineError.
//
// Passes are registered by name, so pipelines can also be built from configuration:
//
//	pm := compiler.NewPassManager(compiler.Options{Entry: "compute"})
//	compiler.CreateDefaultPipeline(pm)
//	lowered, err := pm.Run(module)
package compiler

import (
	"slices"
	"sync"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/gomlx/jitrt/pkg/jitrt/diagnostics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CustomCallResolver tells whether a custom call name can be bound at execution time.
// *customcall.Registry implements it.
type CustomCallResolver interface {
	Contains(name string) bool
}

// Options of a PassManager.
type Options struct {
	// Diagnostics receives every diagnostic emitted by the passes. Defaults to diagnostics.Default().
	Diagnostics *diagnostics.Engine

	// CustomCalls resolves custom call names. Defaults to customcall.Global().
	CustomCalls CustomCallResolver

	// Entry is the name of the function that will be executed. If set, passes verify it is defined.
	Entry string

	// SourceName is used as the file name in diagnostic locations.
	SourceName string
}

// Pass transforms a module in place.
//
// A pass reports failures by returning an error or by emitting error diagnostics; both stop the
// pipeline.
type Pass interface {
	Name() string
	Run(m *ir.Module, ctx *PassContext) error
}

// PassContext is given to each pass.
type PassContext struct {
	Diagnostics *diagnostics.Engine
	CustomCalls CustomCallResolver
	Entry       string
	SourceName  string
}

// Location converts an IR location to a diagnostics location.
func (ctx *PassContext) Location(loc ir.Location) diagnostics.Location {
	return diagnostics.Location{Name: ctx.SourceName, Line: loc.Line, Col: loc.Col}
}

// Emitf starts an in-flight diagnostic at the given IR location.
func (ctx *PassContext) Emitf(severity diagnostics.Severity, loc ir.Location, format string, args ...any) *diagnostics.InFlightDiagnostic {
	return ctx.Diagnostics.Emitf(severity, ctx.Location(loc), format, args...)
}

// Errorf emits an error diagnostic at the given IR location.
func (ctx *PassContext) Errorf(loc ir.Location, format string, args ...any) {
	ctx.Emitf(diagnostics.Error, loc, format, args...).Report()
}

// PassManager holds an ordered list of passes.
type PassManager struct {
	opts   Options
	passes []Pass
}

// NewPassManager returns an empty PassManager.
func NewPassManager(opts Options) *PassManager {
	if opts.Diagnostics == nil {
		opts.Diagnostics = diagnostics.Default()
	}
	if opts.CustomCalls == nil {
		opts.CustomCalls = customcall.Global()
	}
	return &PassManager{opts: opts}
}

// AddPass appends a pass to the pipeline.
func (pm *PassManager) AddPass(pass Pass) *PassManager {
	pm.passes = append(pm.passes, pass)
	return pm
}

// AddPassByName appends the registered pass with the given name, see RegisterPass.
func (pm *PassManager) AddPassByName(name string) error {
	pass, err := PassByName(name)
	if err != nil {
		return err
	}
	pm.AddPass(pass)
	return nil
}

// Passes returns the names of the passes, in order.
func (pm *PassManager) Passes() []string {
	names := make([]string, len(pm.passes))
	for ii, pass := range pm.passes {
		names[ii] = pass.Name()
	}
	return names
}

// Run runs the passes on a clone of m, and returns the transformed clone. m is never modified.
//
// Diagnostics emitted by the passes are forwarded to the configured engine; on failure they are
// also attached to the returned *PipelineError. Panics in passes are converted to errors.
func (pm *PassManager) Run(m *ir.Module) (*ir.Module, error) {
	lowered := m.Clone()
	scoped := diagnostics.NewScopedEngine(pm.opts.Diagnostics)
	ctx := &PassContext{
		Diagnostics: scoped,
		CustomCalls: pm.opts.CustomCalls,
		Entry:       pm.opts.Entry,
		SourceName:  pm.opts.SourceName,
	}
	for _, pass := range pm.passes {
		start := time.Now()
		var err error
		exception := exceptions.Try(func() { err = pass.Run(lowered, ctx) })
		if exception != nil {
			if panicErr, ok := exception.(error); ok {
				err = errors.WithMessagef(panicErr, "pass %q panicked", pass.Name())
			} else {
				err = errors.Errorf("pass %q panicked: %v", pass.Name(), exception)
			}
			scoped.Errorf(diagnostics.Location{Name: pm.opts.SourceName}, "%v", err)
		}
		if err == nil && scoped.HasErrors() {
			err = errors.Errorf("pass %q emitted errors", pass.Name())
		}
		if err != nil {
			return nil, &PipelineError{Pass: pass.Name(), Diagnostics: scoped.Diagnostics(), Err: err}
		}
		klog.V(2).Infof("compiler: pass %q done in %s", pass.Name(), time.Since(start))
	}
	return lowered, nil
}

// PassFactory creates a new instance of a pass.
type PassFactory func() Pass

var (
	muPasses         sync.Mutex
	registeredPasses = make(map[string]PassFactory)
)

// RegisterPass registers a pass factory under the given name. It panics if the name is taken.
func RegisterPass(name string, factory PassFactory) {
	muPasses.Lock()
	defer muPasses.Unlock()
	if _, found := registeredPasses[name]; found {
		exceptions.Panicf("compiler pass %q registered twice", name)
	}
	registeredPasses[name] = factory
}

// PassByName creates the registered pass with the given name.
func PassByName(name string) (Pass, error) {
	muPasses.Lock()
	factory, found := registeredPasses[name]
	muPasses.Unlock()
	if !found {
		return nil, errors.Errorf("unknown compiler pass %q, registered passes: %v", name, RegisteredPasses())
	}
	return factory(), nil
}

// RegisteredPasses returns the names of the registered passes, sorted.
func RegisteredPasses() []string {
	muPasses.Lock()
	defer muPasses.Unlock()
	names := make([]string, 0, len(registeredPasses))
	for name := range registeredPasses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultPipeline lists the passes added by CreateDefaultPipeline, in order.
var DefaultPipeline = []string{
	TosaToLinalgPassName,
	BufferizePassName,
	CustomCallsPassName,
	CanonicalizePassName,
	VerifyLoweredPassName,
}

func init() {
	RegisterPass(TosaToLinalgPassName, func() Pass { return &tosaToLinalgPass{} })
	RegisterPass(BufferizePassName, func() Pass { return &bufferizePass{} })
	RegisterPass(CustomCallsPassName, func() Pass { return &customCallsPass{} })
	RegisterPass(CanonicalizePassName, func() Pass { return &canonicalizePass{} })
	RegisterPass(VerifyLoweredPassName, func() Pass { return &verifyLoweredPass{} })
}

// CreateDefaultPipeline adds the DefaultPipeline passes to pm.
func CreateDefaultPipeline(pm *PassManager) {
	for _, name := range DefaultPipeline {
		if err := pm.AddPassByName(name); err != nil {
			exceptions.Panicf("default pipeline: %v", err)
		}
	}
}

// DefaultDialects are the dialects registered by RegisterDefaultDialects.
var DefaultDialects = []string{"func", "arith", "linalg", "memref", "async", "rt"}

// RegisterDefaultDialects registers the dialects of the lowered form. Programs written with the
// "tosa" dialect also need it registered.
func RegisterDefaultDialects(r *ir.DialectRegistry) {
	r.Insert(DefaultDialects...)
}

// replaceOp replaces oldOp by newOp in the block. The results of oldOp are transferred to newOp,
// so their uses remain valid. It returns false if oldOp is not in the block.
func replaceOp(block *ir.Block, oldOp, newOp *ir.Operation) bool {
	idx := slices.Index(block.Ops, oldOp)
	if idx < 0 {
		return false
	}
	newOp.Results = oldOp.Results
	for _, result := range newOp.Results {
		result.Owner = newOp
	}
	if newOp.Loc == (ir.Location{}) {
		newOp.Loc = oldOp.Loc
	}
	block.Ops[idx] = newOp
	return true
}
