package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fusego/fusego/bench"
	"github.com/fusego/fusego/testutil"
	"github.com/spf13/cobra"
)

var (
	flagBenchGrid        string
	flagBenchOutput      string
	flagBenchParallelism int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark index variants on a synthetic dataset",
	Long: `Bench generates a seeded synthetic dataset from the grid definition,
computes exact ground truth, and measures recall, latency percentiles and
throughput for every case in the grid. Failing cases are reported and do
not abort the run.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().StringVar(&flagBenchGrid, "grid", "", "Path to the YAML grid definition (required)")
	benchCmd.Flags().StringVar(&flagBenchOutput, "out", "table", "Output format: table or json")
	benchCmd.Flags().IntVar(&flagBenchParallelism, "parallelism", 1, "Concurrent cases; queries within a case stay sequential")
	_ = benchCmd.MarkFlagRequired("grid")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, _ []string) error {
	grid, err := bench.LoadGrid(flagBenchGrid)
	if err != nil {
		return err
	}

	// Query vectors draw from a different seed so they are not corpus
	// members.
	vectors := testutil.RandomUnitVectors(grid.Corpus, grid.Dimensions, grid.Seed)
	queries := testutil.RandomUnitVectors(grid.Queries, grid.Dimensions, grid.Seed+1)

	ctx := cmd.Context()

	harness, err := bench.New(ctx, vectors, queries, func(o *bench.Options) {
		o.Parallelism = flagBenchParallelism
	})
	if err != nil {
		return err
	}

	report, err := harness.Run(ctx, grid.Cases)
	if err != nil && !errors.Is(err, bench.ErrPartialFailure) {
		return err
	}

	switch flagBenchOutput {
	case "json":
		if err := printJSON(report); err != nil {
			return err
		}
	case "table":
		printTable(report)
	default:
		return fmt.Errorf("unknown output format %q", flagBenchOutput)
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d cases failed", len(report.Failures), len(grid.Cases))
	}

	return nil
}

func printJSON(report *bench.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(report)
}

func printTable(report *bench.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CASE\tBUILD\tRECALL@10\tRECALL@100\tP50\tP95\tP99\tQPS\tMEMORY")
	for _, r := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\t%s\t%s\t%.0f\t%s\n",
			r.Case.String(),
			r.BuildTime.Round(time.Millisecond),
			r.Recall10,
			r.Recall100,
			r.P50.Round(time.Microsecond),
			r.P95.Round(time.Microsecond),
			r.P99.Round(time.Microsecond),
			r.QPS,
			formatBytes(r.MemoryBytes),
		)
	}
	_ = w.Flush()

	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "FAILED %s: %s\n", f.Case.String(), f.Msg)
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
