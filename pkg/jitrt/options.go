package jitrt

import (
	"fmt"

	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/compiler"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/gomlx/jitrt/pkg/jitrt/diagnostics"
	"github.com/gomlx/jitrt/pkg/jitrt/rttypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Specialization mode of a JitExecutable.
type Specialization int

const (
	// SpecializationDisabled only specializes arguments with a "value" constraint.
	SpecializationDisabled Specialization = iota

	// SpecializationEnabled specializes every constrained argument.
	SpecializationEnabled
)

func (s Specialization) String() string {
	switch s {
	case SpecializationDisabled:
		return "disabled"
	case SpecializationEnabled:
		return "enabled"
	}
	return fmt.Sprintf("Specialization(%d)", int(s))
}

// ParseSpecialization parses "disabled" or "enabled".
func ParseSpecialization(s string) (Specialization, error) {
	switch s {
	case "disabled", "":
		return SpecializationDisabled, nil
	case "enabled":
		return SpecializationEnabled, nil
	}
	return SpecializationDisabled, errors.Errorf("invalid specialization mode %q, valid values are \"disabled\" and \"enabled\"", s)
}

// CompilationOptions configures a JitExecutable. They are copied by Instantiate.
type CompilationOptions struct {
	Specialization Specialization

	// RegisterDialects declares the dialects allowed in the source.
	// Defaults to compiler.RegisterDefaultDialects.
	RegisterDialects func(r *ir.DialectRegistry)

	// CreateCompilationPipeline adds the lowering passes. It is called once per compilation.
	// Defaults to compiler.CreateDefaultPipeline.
	CreateCompilationPipeline func(pm *compiler.PassManager)

	// CallingConvention maps the entry function signature to the signature of the compiled
	// program. Defaults to rttypes.DefaultCallingConvention.
	CallingConvention func(signature rttypes.FunctionType) (rttypes.FunctionType, error)

	// Backend compiles lowered programs. Defaults to backends.New().
	Backend backends.Backend

	// TaskRunner runs compilations. Defaults to InlineTaskRunner.
	TaskRunner TaskRunner

	// CustomCalls resolves custom calls, at compilation and at execution. Defaults to customcall.Global().
	CustomCalls *customcall.Registry

	// MaxSpecializations limits the number of specialized executables. If <= 0, there is no limit.
	MaxSpecializations int

	// Diagnostics receives the compilation diagnostics. Defaults to diagnostics.Default().
	Diagnostics *diagnostics.Engine

	// Name is used in logs. Defaults to the entrypoint name followed by a unique suffix.
	Name string
}

// DefaultCompilationOptions returns the options with all the defaults filled in, except Backend,
// created by Instantiate.
func DefaultCompilationOptions() CompilationOptions {
	return CompilationOptions{
		RegisterDialects:          compiler.RegisterDefaultDialects,
		CreateCompilationPipeline: compiler.CreateDefaultPipeline,
		CallingConvention:         rttypes.DefaultCallingConvention,
		TaskRunner:                InlineTaskRunner{},
		CustomCalls:               customcall.Global(),
		Diagnostics:               diagnostics.Default(),
	}
}

// withDefaults returns a copy of opts with the missing fields set to their defaults.
func (opts CompilationOptions) withDefaults(entrypoint string) (CompilationOptions, error) {
	defaults := DefaultCompilationOptions()
	if opts.RegisterDialects == nil {
		opts.RegisterDialects = defaults.RegisterDialects
	}
	if opts.CreateCompilationPipeline == nil {
		opts.CreateCompilationPipeline = defaults.CreateCompilationPipeline
	}
	if opts.CallingConvention == nil {
		opts.CallingConvention = defaults.CallingConvention
	}
	if opts.TaskRunner == nil {
		opts.TaskRunner = defaults.TaskRunner
	}
	if opts.CustomCalls == nil {
		opts.CustomCalls = defaults.CustomCalls
	}
	if opts.Diagnostics == nil {
		opts.Diagnostics = defaults.Diagnostics
	}
	if opts.Name == "" {
		opts.Name = entrypoint + "#" + uuid.NewString()[:8]
	}
	if opts.Specialization != SpecializationDisabled && opts.Specialization != SpecializationEnabled {
		return opts, errors.Errorf("invalid %s", opts.Specialization)
	}
	if opts.Backend == nil {
		backend, err := backends.New()
		if err != nil {
			return opts, err
		}
		opts.Backend = backend
	}
	return opts, nil
}
