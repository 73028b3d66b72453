// Package bench measures approximate vector indexes against exact ground
// truth: recall, latency percentiles, and throughput across a grid of
// build and query parameter combinations.
package bench

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/index/flat"
	"github.com/fusego/fusego/index/hnsw"
	"github.com/fusego/fusego/index/ivf"
	"golang.org/x/sync/errgroup"
)

// GroundTruthK is the depth of the exact neighbor lists the harness
// computes once per query and measures every case against.
const GroundTruthK = 100

// ErrPartialFailure is returned when at least one grid case failed. The
// report still carries every completed result; inspect Report.Failures
// for the broken cases.
var ErrPartialFailure = errors.New("some benchmark cases failed")

// Case is one grid combination: an index variant with its build and
// query parameters. Zero-valued parameters keep the variant defaults.
type Case struct {
	Name  string `yaml:"name"`
	Index string `yaml:"index"` // flat, hnsw or ivf

	// HNSW build and query parameters.
	M              int `yaml:"m,omitempty"`
	EFConstruction int `yaml:"ef_construction,omitempty"`
	EFSearch       int `yaml:"ef_search,omitempty"`

	// IVF build and query parameters.
	NLists int `yaml:"nlists,omitempty"`
	NProbe int `yaml:"nprobe,omitempty"`

	// Seed for the index build. Zero keeps the variant default.
	Seed int64 `yaml:"seed,omitempty"`
}

func (c Case) String() string {
	if c.Name != "" {
		return c.Name
	}

	switch c.Index {
	case "hnsw":
		return fmt.Sprintf("hnsw-m%d-efc%d-efs%d", c.M, c.EFConstruction, c.EFSearch)
	case "ivf":
		return fmt.Sprintf("ivf-nlists%d-nprobe%d", c.NLists, c.NProbe)
	default:
		return c.Index
	}
}

// Result is the immutable measurement record for one completed case.
type Result struct {
	Case      Case          `json:"case"`
	BuildTime time.Duration `json:"build_time"`
	Queries   int           `json:"queries"`

	Recall10  float64 `json:"recall_at_10"`
	Recall100 float64 `json:"recall_at_100"`

	Mean time.Duration `json:"mean_latency"`
	P50  time.Duration `json:"p50_latency"`
	P95  time.Duration `json:"p95_latency"`
	P99  time.Duration `json:"p99_latency"`

	// QPS is single-threaded throughput derived from the mean latency.
	QPS float64 `json:"qps"`

	MemoryBytes int64 `json:"memory_bytes"`
}

// Failure records a case that could not be measured.
type Failure struct {
	Case Case   `json:"case"`
	Err  error  `json:"-"`
	Msg  string `json:"error"`
}

// Report is the outcome of one harness run.
type Report struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
}

// Options represents the options for the harness.
type Options struct {
	// Parallelism bounds how many cases run concurrently. Each case
	// owns its index and runs its queries sequentially, so latency
	// percentiles are never skewed by in-case contention.
	Parallelism int
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	Parallelism: 1,
}

// Harness runs benchmark cases over a fixed dataset and query set.
type Harness struct {
	vectors [][]float32
	queries [][]float32
	truth   [][]uint32
	opts    Options
}

// New creates a harness. Ground truth for every query is computed once,
// by exact search, at depth GroundTruthK.
func New(ctx context.Context, vectors, queries [][]float32, optFns ...func(o *Options)) (*Harness, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	if len(vectors) == 0 {
		return nil, errors.New("empty dataset")
	}
	if len(queries) == 0 {
		return nil, errors.New("empty query set")
	}

	exact := flat.New()
	if err := exact.Build(ctx, vectors); err != nil {
		return nil, fmt.Errorf("build ground truth index: %w", err)
	}

	k := GroundTruthK
	if k > len(vectors) {
		k = len(vectors)
	}

	truth := make([][]uint32, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, q := range queries {
		g.Go(func() error {
			got, err := exact.Query(gctx, q, k, index.SearchParams{})
			if err != nil {
				return err
			}

			ids := make([]uint32, len(got))
			for j, c := range got {
				ids[j] = c.Index
			}
			truth[i] = ids

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute ground truth: %w", err)
	}

	return &Harness{
		vectors: vectors,
		queries: queries,
		truth:   truth,
		opts:    opts,
	}, nil
}

// Run measures every case, up to Parallelism cases at a time. A failing
// case is recorded and the run continues with the remaining ones; only
// context cancellation aborts the whole run. If any case failed, the
// returned error wraps ErrPartialFailure. Results and failures keep the
// order of cases.
func (h *Harness) Run(ctx context.Context, cases []Case) (*Report, error) {
	results := make([]*Result, len(cases))
	failures := make([]*Failure, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Parallelism)

	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := h.runCase(gctx, c)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}

				failures[i] = &Failure{Case: c, Err: err, Msg: err.Error()}

				return nil
			}

			results[i] = result

			return nil
		})
	}
	runErr := g.Wait()

	report := &Report{}
	for i := range cases {
		if results[i] != nil {
			report.Results = append(report.Results, *results[i])
		}
		if failures[i] != nil {
			report.Failures = append(report.Failures, *failures[i])
		}
	}

	if runErr != nil {
		return report, runErr
	}
	if len(report.Failures) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrPartialFailure, len(report.Failures), len(cases))
	}

	return report, nil
}

func (h *Harness) runCase(ctx context.Context, c Case) (*Result, error) {
	idx, err := buildable(c)
	if err != nil {
		return nil, err
	}

	buildStart := time.Now()
	if err := idx.Build(ctx, h.vectors); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	buildTime := time.Since(buildStart)

	params := index.SearchParams{EFSearch: c.EFSearch, NProbe: c.NProbe}
	k := len(h.truth[0])

	latencies := make([]time.Duration, len(h.queries))
	recall10 := make([]float64, len(h.queries))
	recall100 := make([]float64, len(h.queries))

	// Queries run one at a time so the measured latencies reflect the
	// index alone, not contention between in-flight queries.
	for i, q := range h.queries {
		queryStart := time.Now()
		got, err := idx.Query(ctx, q, k, params)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		latencies[i] = time.Since(queryStart)

		ids := make([]uint32, len(got))
		for j, cand := range got {
			ids[j] = cand.Index
		}

		recall10[i] = recallAt(10, ids, h.truth[i])
		recall100[i] = recallAt(100, ids, h.truth[i])
	}

	mean := meanDuration(latencies)
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	qps := 0.0
	if mean > 0 {
		qps = float64(time.Second) / float64(mean)
	}

	return &Result{
		Case:        c,
		BuildTime:   buildTime,
		Queries:     len(h.queries),
		Recall10:    meanFloat(recall10),
		Recall100:   meanFloat(recall100),
		Mean:        mean,
		P50:         percentile(sorted, 0.50),
		P95:         percentile(sorted, 0.95),
		P99:         percentile(sorted, 0.99),
		QPS:         qps,
		MemoryBytes: idx.MemoryEstimate(),
	}, nil
}

func buildable(c Case) (index.Index, error) {
	switch c.Index {
	case "flat":
		return flat.New(), nil
	case "hnsw":
		return hnsw.New(func(o *hnsw.Options) {
			if c.M > 0 {
				o.M = c.M
			}
			if c.EFConstruction > 0 {
				o.EFConstruction = c.EFConstruction
			}
			if c.Seed != 0 {
				o.Seed = c.Seed
			}
		}), nil
	case "ivf":
		return ivf.New(func(o *ivf.Options) {
			if c.NLists > 0 {
				o.NLists = c.NLists
			}
			if c.Seed != 0 {
				o.Seed = c.Seed
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown index variant %q", c.Index)
	}
}

// recallAt is the overlap between the first k returned ids and the first
// k exact neighbors, as a fraction of k (capped at the truth depth).
func recallAt(k int, got, truth []uint32) float64 {
	if k > len(truth) {
		k = len(truth)
	}
	if k == 0 {
		return 0
	}

	want := make(map[uint32]struct{}, k)
	for _, id := range truth[:k] {
		want[id] = struct{}{}
	}

	hits := 0
	limit := k
	if limit > len(got) {
		limit = len(got)
	}
	for _, id := range got[:limit] {
		if _, ok := want[id]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}

// percentile picks from a sorted sample using the nearest-rank method.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	rank := int(float64(len(sorted))*q+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}

	return sorted[rank]
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range ds {
		total += d
	}

	return total / time.Duration(len(ds))
}

func meanFloat(fs []float64) float64 {
	if len(fs) == 0 {
		return 0
	}

	total := 0.0
	for _, f := range fs {
		total += f
	}

	return total / float64(len(fs))
}
