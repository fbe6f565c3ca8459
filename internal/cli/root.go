// Package cli implements the jitrt command line: it instantiates programs from IR files, runs
// them on arguments given in the command line and benchmarks them.
package cli

import (
	"flag"

	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// RootOptions holds the flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	NoColor    bool

	// Overrides of the configuration file.
	Entrypoint         string
	Specialization     string
	Backend            string
	Parallelism        int
	MaxSpecializations int
	Dialects           []string
	Pipeline           []string
}

// NewRootCommand creates the root command of the jitrt CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "jitrt",
		Short: "Compile and execute tensor programs",
		Long: `jitrt compiles programs written in IR (tosa, linalg, arith ...) and executes them,
specializing the compiled code to the arguments when the program requires it.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colors in the output")
	flags.StringVarP(&opts.Entrypoint, "entry", "e", "", "entry function (default \"main\")")
	flags.StringVar(&opts.Specialization, "specialization", "", "specialization mode: \"disabled\" or \"enabled\"")
	flags.StringVar(&opts.Backend, "backend", "", "backend configuration, \"name[:config]\"")
	flags.IntVar(&opts.Parallelism, "parallelism", 0, "parallel compilations: 0 compiles inline, -1 is unlimited")
	flags.IntVar(&opts.MaxSpecializations, "max-specializations", 0, "limit of specialized executables, 0 for no limit")
	flags.StringSliceVar(&opts.Dialects, "dialects", nil, "extra dialects accepted in the source (default [tosa])")
	flags.StringSliceVar(&opts.Pipeline, "pipeline", nil, "compilation passes, in order (default is the standard pipeline)")

	// klog flags, e.g. -v=1 to log compilations.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	flags.AddGoFlagSet(klogFlags)

	cmd.AddCommand(NewSignatureCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewBenchCommand(opts))
	return cmd
}

// LogCustomCall is the name of the custom call logging its "message" attribute, available to
// programs run by the CLI.
const LogCustomCall = "jitrt.log"

func init() {
	customcall.RegisterGlobal(func(r *customcall.Registry) {
		r.Register(customcall.Bind(LogCustomCall).
			Attr("message", customcall.String).
			To(func(message string) error {
				klog.Infof("%s", message)
				return nil
			}))
	})
}
