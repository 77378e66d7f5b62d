package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/natal-cli/internal/chart"
)

var (
	batchCSV         string
	batchOutput      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Calculate charts for every row of a CSV file",
	Long: `Reads a CSV with a header row and the columns birth_date, birth_time and
birth_place (name, house_system and aspect_set are optional) and writes one
JSON line per row, in input order, to --output or stdout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		env, err := initEngine(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(batchCSV)
		if err != nil {
			return eris.Wrap(err, "batch: open csv")
		}
		defer f.Close() //nolint:errcheck

		reqs, err := readBatchCSV(f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batchOutput != "" {
			of, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "batch: create output")
			}
			defer of.Close() //nolint:errcheck
			out = of
		}

		sum, err := processBatch(ctx, reqs, cfg.Batch.Concurrency, env.Engine, out)
		if err != nil {
			return err
		}
		zap.L().Info("batch complete",
			zap.Int("rows", sum.Rows),
			zap.Int64("succeeded", sum.Succeeded),
			zap.Int64("failed", sum.Failed),
			zap.Int64("approximate", sum.Approximate),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "input CSV file")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output JSONL file (default stdout)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "charts calculated in parallel (default from config)")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// calculator computes one chart.
type calculator interface {
	Calculate(ctx context.Context, req chart.Request) (*chart.Chart, error)
}

// batchLine is one JSONL output row.
type batchLine struct {
	Row    int           `json:"row"`
	Chart  *chart.Record `json:"chart,omitempty"`
	Error  string        `json:"error,omitempty"`
	Status string        `json:"status"` // "ok" or "failed"
}

// batchSummary counts batch outcomes.
type batchSummary struct {
	Rows        int
	Succeeded   int64
	Failed      int64
	Approximate int64
}

// readBatchCSV parses rows into requests. Columns are matched by header
// name, case-insensitively.
func readBatchCSV(r io.Reader) ([]chart.Request, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"birth_date", "birth_time", "birth_place"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("batch: csv is missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var reqs []chart.Request
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read row %d", len(reqs)+1)
		}
		reqs = append(reqs, chart.Request{
			Name:        field(rec, "name"),
			BirthDate:   field(rec, "birth_date"),
			BirthTime:   field(rec, "birth_time"),
			BirthPlace:  field(rec, "birth_place"),
			HouseSystem: field(rec, "house_system"),
			AspectSet:   field(rec, "aspect_set"),
		})
	}
	return reqs, nil
}

// processBatch calculates every request with bounded concurrency and writes
// the results to w in input order. A failed row is reported in its line and
// does not stop the batch.
func processBatch(ctx context.Context, reqs []chart.Request, concurrency int, calc calculator, w io.Writer) (batchSummary, error) {
	sum := batchSummary{Rows: len(reqs)}
	if len(reqs) == 0 {
		zap.L().Info("batch: no rows")
		return sum, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	lines := make([]batchLine, len(reqs))
	var succeeded, failed, approximate atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			line := batchLine{Row: i + 1}
			c, err := calc.Calculate(gctx, req)
			if err != nil {
				failed.Add(1)
				line.Status = "failed"
				line.Error = err.Error()
				zap.L().Warn("batch: chart failed",
					zap.Int("row", i+1),
					zap.String("place", req.BirthPlace),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
				if c.Approximate {
					approximate.Add(1)
				}
				rec := c.Record()
				line.Status = "ok"
				line.Chart = &rec
			}
			lines[i] = line
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "batch: interrupted")
	}

	enc := json.NewEncoder(w)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return sum, eris.Wrap(err, "batch: write output")
		}
	}

	sum.Succeeded = succeeded.Load()
	sum.Failed = failed.Load()
	sum.Approximate = approximate.Load()
	return sum, nil
}
