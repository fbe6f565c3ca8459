package diagnostics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlight(t *testing.T) {
	engine := NewEngine()
	var handled []Diagnostic
	engine.AddHandler(func(d Diagnostic) { handled = append(handled, d) })

	d := engine.Emitf(Error, Location{Line: 3, Col: 7}, "failed to legalize operation '%s'", "tosa.transpose")
	d.Append(": %s", "permutation must be a constant")
	assert.True(t, d.IsInFlight())
	assert.Equal(t, 0, engine.Len())

	d.Report()
	d.Report() // Idempotent.
	assert.False(t, d.IsInFlight())
	require.Equal(t, 1, engine.Len())
	assert.Equal(t, "3:7: error: failed to legalize operation 'tosa.transpose': permutation must be a constant",
		engine.Diagnostics()[0].String())
	assert.Equal(t, engine.Diagnostics(), handled)
	assert.True(t, engine.HasErrors())

	abandoned := engine.Emitf(Warning, Location{}, "never seen")
	abandoned.Abandon()
	abandoned.Report()
	abandoned.Append("more")
	assert.Equal(t, 1, engine.Len())
}

func TestScopedEngine(t *testing.T) {
	parent := NewEngine()
	scoped := NewScopedEngine(parent)
	scoped.Emitf(Note, Location{Name: "m.mlir", Line: 1, Col: 2}, "hello").Report()
	scoped.Errorf(Location{Name: "m.mlir"}, "bad")
	assert.Equal(t, 2, scoped.Len())
	assert.Equal(t, scoped.Diagnostics(), parent.Diagnostics())
	assert.Equal(t, "m.mlir:1:2: note: hello\nm.mlir: error: bad", scoped.String())

	other := NewScopedEngine(parent)
	assert.Equal(t, 0, other.Len())
	assert.False(t, other.HasErrors())
}

func TestConcurrentEmit(t *testing.T) {
	engine := NewEngine()
	var wg sync.WaitGroup
	for ii := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Emitf(Remark, Location{}, "%d", ii).Report()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, engine.Len())
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
	before := Default().Len()
	Default().Emitf(Note, Location{}, "default engine note").Report()
	assert.Equal(t, before+1, Default().Len())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "unknown", Location{}.String())
	assert.Equal(t, "3:4", Location{Line: 3, Col: 4}.String())
	assert.Equal(t, "remark", Remark.String())
	assert.Equal(t, "Severity(9)", fmt.Sprint(Severity(9)))
}
