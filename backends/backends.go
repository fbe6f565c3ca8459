// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface to the native-code backends that execute lowered
// programs (see package compiler), the values crossing the calling boundary, and a registry of
// the available backends.
//
// To use a backend, import it, for instance:
//
//	import _ "github.com/gomlx/jitrt/backends/simplego"
//
// And then create it with New(), which honours the JITRT_BACKEND environment variable.
package backends

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/pkg/errors"
)

// Backend compiles lowered modules into executable programs.
type Backend interface {
	// Name returns the short name of the backend, e.g. "go".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Compile the function entry of the lowered module m. The module must not be modified.
	Compile(m *ir.Module, entry string) (Program, error)

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// Program is a compiled function.
//
// Call can be called concurrently.
type Program interface {
	// NumResults returned by Call.
	NumResults() int

	// Call executes the program with the given arguments, one per function argument.
	//
	// Returned memrefs never alias the arguments: results are owned by the caller.
	// Errors (including panics) of custom calls invoked through kctx are returned.
	Call(kctx KernelContext, args []Value) ([]Value, error)

	// Finalize releases the resources of the program. It can't be called afterwards.
	Finalize()
}

// KernelContext is the runtime context given to a program call, it's how compiled code reaches
// back to the host.
type KernelContext interface {
	// CustomCall invokes the named custom call with the call-site attributes.
	CustomCall(name string, attrs customcall.Attributes) error

	// SetError signals a runtime failure of the program. Execution continues, but the call fails.
	SetError(msg string)
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a
// configuration string that is passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered backends, sorted.
func List() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// EnvVarName is the environment variable with the default backend configuration to use.
// It takes precedence over DefaultConfig.
//
// The format of the configuration is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific.
const EnvVarName = "JITRT_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment variable $JITRT_BACKEND (EnvVarName) is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
func New() (Backend, error) {
	if config, found := os.LookupEnv(EnvVarName); found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// NewWithConfig takes a configurations string formated as "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific. If the name is empty, the first registered
// backend is used.
func NewWithConfig(config string) (Backend, error) {
	muRegistry.Lock()
	if len(registeredConstructors) == 0 {
		muRegistry.Unlock()
		return nil, errors.New(`no registered backends for jitrt -- maybe import the pure Go one with import _ "github.com/gomlx/jitrt/backends/simplego"?`)
	}
	backendName := firstRegistered
	backendConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	} else if config != "" {
		backendName = config
		backendConfig = ""
	}
	constructor, found := registeredConstructors[backendName]
	muRegistry.Unlock()
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends: %v",
			backendName, config, List())
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
