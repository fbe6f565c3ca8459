// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package diagnostics accumulates the diagnostics (errors, warnings, notes) emitted while
// compiling a program.
//
// A process-wide engine is available with Default(). Scoped engines (see NewScopedEngine)
// capture the diagnostics of one compilation while forwarding them to their parent.
//
// Diagnostics are usually built in-flight, and then either reported or abandoned:
//
//	d := engine.Emitf(diagnostics.Error, loc, "failed to legalize operation '%s'", op.Name)
//	d.Append(": %s", reason)
//	d.Report()
package diagnostics

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
	Remark
)

var severityNames = [...]string{Note: "note", Warning: "warning", Error: "error", Remark: "remark"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Location of a diagnostic: an optional source name plus line and column.
// The zero value is an unknown location.
type Location struct {
	Name      string
	Line, Col int
}

// String returns "name:line:col", omitting the parts that are not known.
func (l Location) String() string {
	switch {
	case l.Line == 0 && l.Name == "":
		return "unknown"
	case l.Line == 0:
		return l.Name
	case l.Name == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d:%d", l.Name, l.Line, l.Col)
}

// Diagnostic is one message emitted by the compiler.
type Diagnostic struct {
	Severity Severity
	Location Location
	Message  string
}

// String formats the diagnostic as "loc: severity: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Location, d.Severity, d.Message)
}

// Handler is called for every diagnostic emitted to an engine.
type Handler func(Diagnostic)

// Engine accumulates diagnostics. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	log      []Diagnostic
	handlers []Handler
	parent   *Engine
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{}
}

// NewScopedEngine returns an engine that keeps its own log and also forwards every diagnostic
// to parent (if not nil).
func NewScopedEngine(parent *Engine) *Engine {
	return &Engine{parent: parent}
}

var defaultEngine = sync.OnceValue(NewEngine)

// Default returns the process-wide engine, created on first use. It is never reset.
func Default() *Engine {
	return defaultEngine()
}

// AddHandler registers a handler called (in emission order) for every future diagnostic.
func (e *Engine) AddHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Emit records the diagnostic and passes it to the handlers, and to the parent engine, if any.
func (e *Engine) Emit(d Diagnostic) {
	e.mu.Lock()
	e.log = append(e.log, d)
	handlers := e.handlers
	e.mu.Unlock()

	for _, h := range handlers {
		h(d)
	}
	if e.parent != nil {
		e.parent.Emit(d)
	}
}

// Emitf creates an in-flight diagnostic, to be reported (or abandoned) later.
func (e *Engine) Emitf(severity Severity, loc Location, format string, args ...any) *InFlightDiagnostic {
	return &InFlightDiagnostic{
		engine: e,
		diagnostic: &Diagnostic{
			Severity: severity,
			Location: loc,
			Message:  fmt.Sprintf(format, args...),
		},
	}
}

// Errorf emits an error diagnostic immediately.
func (e *Engine) Errorf(loc Location, format string, args ...any) {
	e.Emitf(Error, loc, format, args...).Report()
}

// Diagnostics returns a copy of all diagnostics emitted so far.
func (e *Engine) Diagnostics() []Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.log)
}

// Len returns the number of diagnostics emitted so far.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.log)
}

// HasErrors returns whether any diagnostic of Error severity was emitted.
func (e *Engine) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.ContainsFunc(e.log, func(d Diagnostic) bool { return d.Severity == Error })
}

// String returns all diagnostics, one per line.
func (e *Engine) String() string {
	return Format(e.Diagnostics())
}

// Format returns the diagnostics one per line.
func Format(diags []Diagnostic) string {
	lines := make([]string, len(diags))
	for ii, d := range diags {
		lines[ii] = d.String()
	}
	return strings.Join(lines, "\n")
}

// InFlightDiagnostic is a diagnostic under construction. It is emitted to its engine at most
// once, by Report; Abandon discards it.
//
// It is not safe for concurrent use.
type InFlightDiagnostic struct {
	engine     *Engine
	diagnostic *Diagnostic
}

// IsInFlight returns whether the diagnostic was neither reported nor abandoned yet.
func (d *InFlightDiagnostic) IsInFlight() bool {
	return d.diagnostic != nil
}

// Append formats more text at the end of the message. It's a no-op if the diagnostic is no
// longer in flight.
func (d *InFlightDiagnostic) Append(format string, args ...any) *InFlightDiagnostic {
	if d.diagnostic != nil {
		d.diagnostic.Message += fmt.Sprintf(format, args...)
	}
	return d
}

// Report emits the diagnostic to its engine. Only the first call emits, later calls are no-ops.
func (d *InFlightDiagnostic) Report() {
	if d.diagnostic == nil {
		return
	}
	diagnostic := *d.diagnostic
	d.diagnostic = nil
	d.engine.Emit(diagnostic)
}

// Abandon discards the diagnostic without emitting it.
func (d *InFlightDiagnostic) Abandon() {
	d.diagnostic = nil
}
