package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/gomlx/jitrt/backends/simplego"
	"github.com/gomlx/jitrt/pkg/core/dtypes"
	"github.com/gomlx/jitrt/pkg/jitrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with the given arguments, and returns its standard output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"signature", "run", "bench"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "entry", "specialization", "backend", "parallelism", "max-specializations", "dialects", "pipeline", "v"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag --%s", flag)
	}
}

func TestParseArg(t *testing.T) {
	tensor, err := ParseArg("f32:2x2:1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, dtypes.F32, tensor.DType())
	assert.Equal(t, []float32{1, 2, 3, 4}, tensor.FlatAny())

	tensor, err = ParseArg("i64::7")
	require.NoError(t, err)
	assert.Equal(t, 0, tensor.Rank())
	assert.Equal(t, []int64{7}, tensor.FlatAny())

	tensor, err = ParseArg("i32:3:5")
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 5, 5}, tensor.FlatAny())

	tensor, err = ParseArg("bool:2:true,false")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, tensor.FlatAny())

	for _, invalid := range []string{"f32:2x2", "x32:2:1,2", "f32:2xa:1", "f32:2x2:1,2", "i8:1:abc", "f32:2:"} {
		_, err := ParseArg(invalid)
		assert.Error(t, err, "ParseArg(%q)", invalid)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entrypoint: compute
specialization: enabled
parallelism: 2
max_specializations: 8
`), 0o644))
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "compute", config.Entrypoint)
	assert.Equal(t, "enabled", config.Specialization)
	assert.Equal(t, []string{"tosa"}, config.Dialects)
	assert.Equal(t, 2, config.Parallelism)
	assert.Equal(t, 8, config.MaxSpecializations)

	opts, err := config.CompilationOptions()
	require.NoError(t, err)
	assert.Equal(t, jitrt.SpecializationEnabled, opts.Specialization)
	assert.Equal(t, 8, opts.MaxSpecializations)
	assert.NotNil(t, opts.TaskRunner)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	config, err = LoadConfig(empty)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)

	unknown := filepath.Join(t.TempDir(), "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("entry: main\n"), 0o644))
	_, err = LoadConfig(unknown)
	require.Error(t, err)

	config = DefaultConfig()
	config.Pipeline = []string{"no-such-pass"}
	_, err = config.CompilationOptions()
	require.Error(t, err)
	config = DefaultConfig()
	config.Specialization = "sometimes"
	_, err = config.CompilationOptions()
	require.Error(t, err)
}

func TestSignatureCommand(t *testing.T) {
	output, err := runCLI(t, "signature", filepath.Join("testdata", "transpose.mlir"))
	require.NoError(t, err)
	assert.Contains(t, output, "tensor<?x?xf32>")
	assert.Contains(t, output, "memref<2xi32>")
	assert.Contains(t, output, "value")
	assert.Contains(t, output, "not compiled, specialization required")

	_, err = runCLI(t, "signature", filepath.Join("testdata", "transpose.mlir"), "--entry", "missing")
	require.Error(t, err)
	_, err = runCLI(t, "signature", filepath.Join("testdata", "no-such-file.mlir"))
	require.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	output, err := runCLI(t, "run", filepath.Join("testdata", "transpose.mlir"),
		"--arg", "f32:2x2:1,2,3,4", "--arg", "i32:2:1,0")
	require.NoError(t, err)
	assert.Contains(t, output, "(specialized)")
	assert.Contains(t, output, "[[1, 3], [2, 4]]")

	// The identity permutation is a different specialization.
	output, err = runCLI(t, "run", filepath.Join("testdata", "transpose.mlir"),
		"--arg", "f32:2x2:1,2,3,4", "--arg", "i32:2:0,1")
	require.NoError(t, err)
	assert.Contains(t, output, "[[1, 2], [3, 4]]")

	// Wrong number of arguments.
	_, err = runCLI(t, "run", filepath.Join("testdata", "transpose.mlir"), "--arg", "f32:2x2:1,2,3,4")
	require.Error(t, err)
	var mismatch *jitrt.ArgumentMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestBenchCommand(t *testing.T) {
	output, err := runCLI(t, "bench", filepath.Join("testdata", "transpose.mlir"), "--no-progress",
		"--runs", "20", "--concurrency", "4", "--parallelism", "2",
		"--arg", "f32:2x3:1,2,3,4,5,6", "--arg", "i32:2:1,0")
	require.NoError(t, err)
	assert.Contains(t, output, "runs")
	assert.Contains(t, output, "cache hits")
	assert.Contains(t, output, "specializations")

	_, err = runCLI(t, "bench", filepath.Join("testdata", "transpose.mlir"), "--runs", "0")
	require.Error(t, err)
}
