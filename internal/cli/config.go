package cli

import (
	"bytes"
	"io"
	"os"
	"slices"

	"github.com/gomlx/jitrt/backends"
	"github.com/gomlx/jitrt/internal/workerspool"
	"github.com/gomlx/jitrt/pkg/compiler"
	"github.com/gomlx/jitrt/pkg/ir"
	"github.com/gomlx/jitrt/pkg/jitrt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config of the programs run by the CLI. It's read from the YAML file given with --config, and
// overridden by the command line flags.
type Config struct {
	Entrypoint         string   `yaml:"entrypoint"`
	Specialization     string   `yaml:"specialization"`
	Dialects           []string `yaml:"dialects"`
	Pipeline           []string `yaml:"pipeline,omitempty"`
	Parallelism        int      `yaml:"parallelism"`
	MaxSpecializations int      `yaml:"max_specializations"`
	Backend            string   `yaml:"backend,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Entrypoint:     "main",
		Specialization: jitrt.SpecializationDisabled.String(),
		Dialects:       []string{"tosa"},
	}
}

// LoadConfig reads the YAML file at path. Fields missing in the file keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "failed to read configuration")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, errors.Wrapf(err, "failed to parse configuration %q", path)
	}
	return config, nil
}

// resolveConfig loads the configuration file, if any, and applies the flags set in the command line.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (Config, error) {
	config := DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		config, err = LoadConfig(opts.ConfigPath)
		if err != nil {
			return config, err
		}
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("entry") {
		config.Entrypoint = opts.Entrypoint
	}
	if changed("specialization") {
		config.Specialization = opts.Specialization
	}
	if changed("backend") {
		config.Backend = opts.Backend
	}
	if changed("parallelism") {
		config.Parallelism = opts.Parallelism
	}
	if changed("max-specializations") {
		config.MaxSpecializations = opts.MaxSpecializations
	}
	if changed("dialects") {
		config.Dialects = opts.Dialects
	}
	if changed("pipeline") {
		config.Pipeline = opts.Pipeline
	}
	return config, nil
}

// CompilationOptions converts the configuration to jitrt options.
func (c Config) CompilationOptions() (jitrt.CompilationOptions, error) {
	opts := jitrt.DefaultCompilationOptions()
	var err error
	opts.Specialization, err = jitrt.ParseSpecialization(c.Specialization)
	if err != nil {
		return opts, err
	}
	dialects := slices.Clone(c.Dialects)
	opts.RegisterDialects = func(r *ir.DialectRegistry) {
		compiler.RegisterDefaultDialects(r)
		r.Insert(dialects...)
	}
	if len(c.Pipeline) > 0 {
		for _, name := range c.Pipeline {
			if _, err := compiler.PassByName(name); err != nil {
				return opts, err
			}
		}
		passes := slices.Clone(c.Pipeline)
		opts.CreateCompilationPipeline = func(pm *compiler.PassManager) {
			for _, name := range passes {
				// Names were validated above.
				_ = pm.AddPassByName(name)
			}
		}
	}
	if c.Parallelism != 0 {
		opts.TaskRunner = workerspool.NewWithParallelism(c.Parallelism)
	}
	opts.MaxSpecializations = c.MaxSpecializations
	if c.Backend != "" {
		opts.Backend, err = backends.NewWithConfig(c.Backend)
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}
