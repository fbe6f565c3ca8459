package cli

import (
	"fmt"

	"github.com/gomlx/jitrt/pkg/core/tensors"
	"github.com/gomlx/jitrt/pkg/jitrt"
	"github.com/gomlx/jitrt/pkg/jitrt/customcall"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	*RootOptions
	Args []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute the entry function with the given arguments",
		Long: `Execute the entry function with the arguments given with --arg, in order, and print the results.

Arguments are given as "dtype:dims:values", e.g. --arg f32:2x2:1,2,3,4 --arg i32:2:1,0.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			setupColors(cmd.OutOrStdout(), rootOpts.NoColor)
			return runProgram(cmd, args[0], config, opts.Args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "argument as \"dtype:dims:values\", repeated for each argument")
	return cmd
}

// parseArgs parses the --arg values into tensors, and their memref descriptors.
func parseArgs(specs []string) ([]*tensors.Tensor, []jitrt.MemrefDesc, error) {
	inputs := make([]*tensors.Tensor, len(specs))
	descs := make([]jitrt.MemrefDesc, len(specs))
	for ii, spec := range specs {
		var err error
		inputs[ii], err = ParseArg(spec)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "--arg #%d", ii)
		}
		descs[ii] = jitrt.MemrefFromTensor(inputs[ii])
	}
	return inputs, descs, nil
}

// executeOnce gets the executable for the arguments, and executes it.
func executeOnce(jit *jitrt.JitExecutable, args []jitrt.MemrefDesc) (*jitrt.Executable, []any, error) {
	handle, err := jit.GetExecutable(args)
	if err != nil {
		return nil, nil, err
	}
	exe, err := handle.Await()
	if err != nil {
		return nil, nil, err
	}
	results := jitrt.NewResults(exe.NumResults())
	converter := jitrt.NewReturnValueConverter(results, struct{}{}).
		AddConversion(jitrt.MatchMemref, jitrt.ReturnMemrefAsTensor[struct{}]).
		AddConversion(jitrt.MatchAsyncToken, jitrt.ReturnAsyncToken[struct{}])
	if err := exe.Execute(args, converter, jitrt.ExecuteOpts{CustomCallData: customcall.NewUserData()}); err != nil {
		return exe, nil, err
	}
	values, err := results.AwaitAll()
	return exe, values, err
}

func runProgram(cmd *cobra.Command, path string, config Config, argSpecs []string) error {
	inputs, args, err := parseArgs(argSpecs)
	if err != nil {
		return err
	}
	jit, err := instantiate(path, config)
	if err != nil {
		return err
	}
	defer jit.Finalize()
	printDefaultStatus(cmd, jit)

	exe, values, err := executeOnce(jit, args)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	kind := "default"
	if exe.IsSpecialized() {
		kind = "specialized"
	}
	_, _ = fmt.Fprintf(w, "Executed %s (%s)\n", exe.Name(), kind)

	printTitle(w, "Arguments")
	table := newTable(true).Headers("#", "Value")
	for ii, input := range inputs {
		table.Row(fmt.Sprintf("%d", ii), input.String())
	}
	printTable(w, table)

	printTitle(w, "Results")
	table = newTable(true).Headers("#", "Type", "Value")
	for ii, value := range values {
		table.Row(fmt.Sprintf("%d", ii), exe.RuntimeSignature().Results[ii].String(), fmt.Sprintf("%v", value))
	}
	printTable(w, table)
	return nil
}
