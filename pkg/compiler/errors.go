package compiler

import (
	"fmt"
	"strings"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/diagnostics"
)

// PipelineError is returned when a pass fails. It carries every diagnostic emitted during the
// pipeline run.
type PipelineError struct {
	Pass        string
	Diagnostics []diagnostics.Diagnostic
	Err         error
}

func (e *PipelineError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "compilation pipeline failed in pass %q: %v", e.Pass, e.Err)
	if len(e.Diagnostics) > 0 {
		sb.WriteString("\n")
		sb.WriteString(diagnostics.Format(e.Diagnostics))
	}
	return sb.String()
}

func (e *PipelineError) Unwrap() error { return e.Err }

// UnresolvedCustomCallError reports a custom call whose name is not registered.
type UnresolvedCustomCallError struct {
	Name string
	Loc  ir.Location
}

func (e *UnresolvedCustomCallError) Error() string {
	return fmt.Sprintf("%s: unresolved custom call %q", e.Loc, e.Name)
}
