// Package simplego implements a simple, and not very fast, but very portable backend that
// interprets lowered modules in pure Go.
//
// It supports the operations of the lowered form produced by the default compiler pipeline:
// "arith.constant", "linalg.transpose", the element-wise "linalg.add", "linalg.sub",
// "linalg.mul" and "linalg.negate", "rt.custom_call", "rt.set_error" and "func.return".
// It's easy to add new ops, see RegisterOp.
package simplego

import (
	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/pkg/ir"
	"k8s.io/klog/v2"
)

// BackendName to be used in JITRT_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the constructor for the "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend.
// There are no configurations, the string is simply ignored.
func New(config string) (backends.Backend, error) {
	if config != "" {
		klog.Warningf("simplego backend ignores configuration %q", config)
	}
	return &Backend{}, nil
}

// Backend implements the backends.Backend interface.
type Backend struct{}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// Name returns the short name of the backend.
func (b *Backend) Name() string { return BackendName }

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "Simple Go Portable Backend"
}

// Compile implements backends.Backend.
func (b *Backend) Compile(m *ir.Module, entry string) (backends.Program, error) {
	return compileProgram(b, m, entry)
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {}
