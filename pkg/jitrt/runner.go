package jitrt

// TaskRunner runs tasks, possibly concurrently. It's the provider of concurrent work for
// compilations and for asynchronous work started by custom calls: jitrt never starts goroutines
// itself.
//
// *workerspool.Pool implements it.
type TaskRunner interface {
	Run(task func())
}

// TaskRunnerFunc adapts a function to a TaskRunner.
type TaskRunnerFunc func(task func())

// Run implements TaskRunner.
func (f TaskRunnerFunc) Run(task func()) { f(task) }

// InlineTaskRunner runs tasks synchronously, in the calling goroutine.
type InlineTaskRunner struct{}

// Run implements TaskRunner.
func (InlineTaskRunner) Run(task func()) { task() }
