package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/gomlx/jitrt/pkg/jitrt/diagnostics"
	"github.com/janpfeifer/must"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialects() *ir.DialectRegistry {
	r := ir.NewDialectRegistry()
	RegisterDefaultDialects(r)
	r.Insert("tosa")
	return r
}

func parse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.Parse(src, dialects())
	require.NoError(t, err)
	return m
}

func registry() *customcall.Registry {
	r := customcall.NewRegistry()
	r.Register(customcall.Bind("my.intrinsic").
		Attr("api_version", customcall.Int32).
		To(func(int32) error { return nil }))
	return r
}

func defaultPassManager(engine *diagnostics.Engine, resolver CustomCallResolver) *PassManager {
	pm := NewPassManager(Options{Diagnostics: engine, CustomCalls: resolver, Entry: "compute", SourceName: "test.mlir"})
	CreateDefaultPipeline(pm)
	return pm
}

func TestDefaultPipeline(t *testing.T) {
	src := string(must.M1(os.ReadFile(filepath.Join("testdata", "lower.mlir"))))
	m := parse(t, src)
	original := m.String()

	engine := diagnostics.NewEngine()
	pm := defaultPassManager(engine, registry())
	assert.Equal(t, DefaultPipeline, pm.Passes())
	lowered, err := pm.Run(m)
	require.NoError(t, err)
	assert.Equal(t, 0, engine.Len())
	assert.Equal(t, original, m.String(), "input module must not be modified")

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "lower", []byte(lowered.String()))
}

const transposeByArgument = `
func.func @compute(%input: tensor<2x2xf32>, %perm: tensor<2xi32>) -> tensor<2x2xf32> {
  %0 = "tosa.transpose"(%input, %perm) : (tensor<2x2xf32>, tensor<2xi32>) -> tensor<2x2xf32>
  func.return %0 : tensor<2x2xf32>
}`

func TestTransposeRequiresConstantPermutation(t *testing.T) {
	m := parse(t, transposeByArgument)
	original := m.String()
	engine := diagnostics.NewEngine()
	_, err := defaultPassManager(engine, registry()).Run(m)
	require.Error(t, err)

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, TosaToLinalgPassName, pipelineErr.Pass)
	require.Len(t, pipelineErr.Diagnostics, 1)
	d := pipelineErr.Diagnostics[0]
	assert.Equal(t, diagnostics.Error, d.Severity)
	assert.Equal(t, "failed to legalize operation 'tosa.transpose': permutation must be a constant", d.Message)
	assert.Equal(t, diagnostics.Location{Name: "test.mlir", Line: 3, Col: 3}, d.Location)
	assert.Contains(t, err.Error(), "permutation must be a constant")

	// Diagnostics are forwarded to the configured engine.
	assert.Equal(t, pipelineErr.Diagnostics, engine.Diagnostics())
	assert.Equal(t, original, m.String())
}

func TestInvalidPermutation(t *testing.T) {
	m := parse(t, `
func.func @compute(%input: tensor<2x2xf32>) -> tensor<2x2xf32> {
  %perm = "arith.constant"() {value = dense<[1, 1]> : tensor<2xi32>} : () -> tensor<2xi32>
  %0 = "tosa.transpose"(%input, %perm) : (tensor<2x2xf32>, tensor<2xi32>) -> tensor<2x2xf32>
  func.return %0 : tensor<2x2xf32>
}`)
	_, err := defaultPassManager(diagnostics.NewEngine(), registry()).Run(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid permutation [1 1]")
}

func TestUnresolvedCustomCall(t *testing.T) {
	src := string(must.M1(os.ReadFile(filepath.Join("testdata", "lower.mlir"))))
	_, err := defaultPassManager(diagnostics.NewEngine(), customcall.NewRegistry()).Run(parse(t, src))
	require.Error(t, err)

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, CustomCallsPassName, pipelineErr.Pass)
	var unresolved *UnresolvedCustomCallError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "my.intrinsic", unresolved.Name)
	assert.Equal(t, 6, unresolved.Loc.Line)
	require.Len(t, pipelineErr.Diagnostics, 1)
	assert.Equal(t, "custom call 'my.intrinsic' is not registered", pipelineErr.Diagnostics[0].Message)
}

func TestVerifyLowered(t *testing.T) {
	src := `
func.func @compute(%a: tensor<2xf32>) -> tensor<2xf32> {
  %0 = "tosa.add"(%a, %a) : (tensor<2xf32>, tensor<2xf32>) -> tensor<2xf32>
  func.return %0 : tensor<2xf32>
}`
	pm := NewPassManager(Options{Diagnostics: diagnostics.NewEngine(), Entry: "compute"})
	require.NoError(t, pm.AddPassByName(BufferizePassName))
	require.NoError(t, pm.AddPassByName(VerifyLoweredPassName))
	_, err := pm.Run(parse(t, src))
	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, VerifyLoweredPassName, pipelineErr.Pass)
	require.Len(t, pipelineErr.Diagnostics, 1)
	assert.Equal(t, "operation 'tosa.add' was not lowered", pipelineErr.Diagnostics[0].Message)

	// Missing entry function.
	pm = NewPassManager(Options{Diagnostics: diagnostics.NewEngine(), Entry: "other"})
	pm.AddPass(&verifyLoweredPass{})
	_, err = pm.Run(parse(t, src))
	require.ErrorAs(t, err, &pipelineErr)
	assert.Contains(t, err.Error(), "entry function @other not found")
}

type panickingPass struct{}

func (panickingPass) Name() string                        { return "panicking" }
func (panickingPass) Run(*ir.Module, *PassContext) error { panic("oops") }

func TestPassPanics(t *testing.T) {
	engine := diagnostics.NewEngine()
	pm := NewPassManager(Options{Diagnostics: engine})
	pm.AddPass(panickingPass{})
	_, err := pm.Run(parse(t, transposeByArgument))
	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, "panicking", pipelineErr.Pass)
	assert.Contains(t, err.Error(), "oops")
	assert.True(t, engine.HasErrors())
}

func TestPassRegistry(t *testing.T) {
	_, err := PassByName("no-such-pass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tosa-to-linalg")
	require.Panics(t, func() { RegisterPass(BufferizePassName, func() Pass { return &bufferizePass{} }) })
	for _, name := range DefaultPipeline {
		pass, err := PassByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, pass.Name())
	}
	assert.Subset(t, RegisteredPasses(), DefaultPipeline)

	r := ir.NewDialectRegistry()
	RegisterDefaultDialects(r)
	assert.Equal(t, []string{"arith", "async", "builtin", "func", "linalg", "memref", "rt"}, r.Names())
}

func TestBufferizeType(t *testing.T) {
	ft := must.M1(ir.Parse(`func.func private @f(tensor<2x?xf32>, tensor<*xi8>, !async.value<tensor<i32>>, i32)`, dialects())).Funcs[0].Type()
	var got []string
	for _, t := range ft.Inputs {
		got = append(got, BufferizeType(t).String())
	}
	assert.Equal(t, []string{"memref<2x?xf32>", "memref<*xi8>", "!async.value<memref<i32>>", "i32"}, got)
}
