package cli

import (
	"fmt"
	"os"

	"github.com/gomlx/jitrt/pkg/jitrt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewSignatureCommand creates the signature command.
func NewSignatureCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signature <file>",
		Short: "Print the signature and the argument constraints of the entry function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			setupColors(cmd.OutOrStdout(), rootOpts.NoColor)
			jit, err := instantiate(args[0], config)
			if err != nil {
				return err
			}
			defer jit.Finalize()
			printSignature(cmd, jit)
			printDefaultStatus(cmd, jit)
			return nil
		},
	}
}

// instantiate reads and instantiates the program in path.
func instantiate(path string, config Config) (*jitrt.JitExecutable, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read program")
	}
	opts, err := config.CompilationOptions()
	if err != nil {
		return nil, err
	}
	return jitrt.Instantiate(string(source), config.Entrypoint, opts)
}

func printSignature(cmd *cobra.Command, jit *jitrt.JitExecutable) {
	w := cmd.OutOrStdout()
	printTitle(w, fmt.Sprintf("@%s", jit.Name()))
	signature := jit.Signature()
	runtimeSignature := jit.RuntimeSignature()
	constraints := jit.Constraints()
	table := newTable(true).Headers("", "Type", "Runtime type", "Constraint")
	for ii, t := range signature.Operands {
		table.Row(fmt.Sprintf("operand #%d", ii), t.String(), runtimeSignature.Operands[ii].String(), constraints[ii].String())
	}
	for ii, t := range signature.Results {
		table.Row(fmt.Sprintf("result #%d", ii), t.String(), runtimeSignature.Results[ii].String(), "")
	}
	printTable(w, table)
}

func printDefaultStatus(cmd *cobra.Command, jit *jitrt.JitExecutable) {
	w := cmd.OutOrStdout()
	if _, err := jit.DefaultExecutable().Await(); err != nil {
		_, _ = fmt.Fprintf(w, "Default executable: %s\n", errorStyle.Render("not compiled, specialization required"))
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		return
	}
	_, _ = fmt.Fprintln(w, "Default executable: compiled")
}
