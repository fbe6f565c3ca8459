package cli

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// BenchOptions holds the flags of the bench command.
type BenchOptions struct {
	*RootOptions
	Args        []string
	Runs        int
	Concurrency int
	NoProgress  bool
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "Execute the entry function repeatedly and concurrently, and report timings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := resolveConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			setupColors(cmd.OutOrStdout(), rootOpts.NoColor)
			return runBench(cmd, args[0], config, opts)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "argument as \"dtype:dims:values\", repeated for each argument")
	cmd.Flags().IntVarP(&opts.Runs, "runs", "n", 100, "number of executions")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "k", 4, "number of concurrent executions")
	cmd.Flags().BoolVar(&opts.NoProgress, "no-progress", false, "don't display the progress bar")
	return cmd
}

func runBench(cmd *cobra.Command, path string, config Config, opts *BenchOptions) error {
	if opts.Runs <= 0 || opts.Concurrency <= 0 {
		return errors.Errorf("--runs and --concurrency must be positive, got %d and %d", opts.Runs, opts.Concurrency)
	}
	_, args, err := parseArgs(opts.Args)
	if err != nil {
		return err
	}
	start := time.Now()
	jit, err := instantiate(path, config)
	if err != nil {
		return err
	}
	defer jit.Finalize()
	instantiation := time.Since(start)

	var bar *progressbar.ProgressBar
	if !opts.NoProgress {
		bar = progressbar.NewOptions(opts.Runs,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("executing"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish())
	}

	var mu sync.Mutex
	latencies := make([]time.Duration, 0, opts.Runs)
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	start = time.Now()
	for range opts.Runs {
		g.Go(func() error {
			runStart := time.Now()
			if _, _, err := executeOnce(jit, args); err != nil {
				return err
			}
			elapsed := time.Since(runStart)
			mu.Lock()
			defer mu.Unlock()
			latencies = append(latencies, elapsed)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	err = g.Wait()
	total := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	slices.Sort(latencies)
	stats := jit.Stats()
	w := cmd.OutOrStdout()
	printTitle(w, "Benchmark")
	table := newTable(false)
	table.Row("runs", humanize.Comma(int64(opts.Runs)))
	table.Row("concurrency", humanize.Comma(int64(opts.Concurrency)))
	table.Row("instantiation", instantiation.String())
	table.Row("total", total.String())
	table.Row("median latency", latencies[len(latencies)/2].String())
	table.Row("p90 latency", latencies[len(latencies)*9/10].String())
	table.Row("throughput", fmt.Sprintf("%s runs/s", humanize.CommafWithDigits(float64(opts.Runs)/total.Seconds(), 1)))
	table.Row("compilations", humanize.Comma(stats.Compilations))
	table.Row("cache hits", humanize.Comma(stats.CacheHits))
	table.Row("cache misses", humanize.Comma(stats.CacheMisses))
	table.Row("specializations", humanize.Comma(int64(stats.Specializations)))
	printTable(w, table)
	return nil
}
