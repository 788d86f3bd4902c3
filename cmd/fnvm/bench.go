package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sqlvibe/fnvm/internal/DS"
	"github.com/sqlvibe/fnvm/internal/QE"
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
	"github.com/sqlvibe/fnvm/internal/log"
	"github.com/sqlvibe/fnvm/internal/metrics"
)

const defaultBenchFilter = `{"call":"and","args":[{"call":"is_even","args":[{"col":"id"}]},{"call":"gt","args":[{"col":"score"},{"lit":50}]}]}`

type benchFlags struct {
	rows        int
	iterations  int
	filter      string
	metricsAddr string
}

func newBenchCmd(a *app) *cobra.Command {
	var f benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Scan a generated table and report throughput and call metrics",
		Long: `bench generates a table bench(id I64, name String, score F64) and scans it
with --filter. With --metrics-addr the Prometheus metrics stay served on
/metrics until the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.metricsAddr == "" {
				f.metricsAddr = a.cfg.Metrics.Addr
			}
			return a.bench(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.rows, "rows", 100000, "rows in the generated table")
	fl.IntVar(&f.iterations, "iterations", 3, "number of scans")
	fl.StringVar(&f.filter, "filter", defaultBenchFilter, "Bool plan selecting rows (JSON, or @file)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address after the run")
	return cmd
}

// benchSchema is the layout of the generated table.
var benchSchema = SATS.NewProductType(
	SATS.ProductField{Name: "id", Type: SATS.I64Type()},
	SATS.ProductField{Name: "name", Type: SATS.StringType()},
	SATS.ProductField{Name: "score", Type: SATS.F64Type()},
)

func benchTable(n int) (*DS.MemTable, error) {
	t := DS.NewMemTable("bench", benchSchema)
	for i := range n {
		row := []SATS.AlgebraicValue{
			SATS.I64(int64(i)),
			SATS.String(fmt.Sprintf("row%d", i)),
			SATS.F64(float64(i%1000) / 10),
		}
		if err := t.Insert(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (a *app) bench(cmd *cobra.Command, f benchFlags) error {
	if f.rows <= 0 || f.iterations <= 0 {
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "--rows and --iterations must be positive")
	}
	table, err := benchTable(f.rows)
	if err != nil {
		return err
	}
	filter, err := a.compile(table.Schema(), f.filter)
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := a.scanOptions(nil)
	opts.Eval = append(opts.Eval, VM.WithObserver(m))
	opts.Observer = m

	out := cmd.OutOrStdout()
	for i := range f.iterations {
		start := time.Now()
		rows, err := QE.Scan(cmd.Context(), a.reg, table, filter, nil, opts)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		fmt.Fprintf(out, "scan %d: %d/%d rows matched in %s (%.0f rows/s)\n",
			i+1, len(rows), table.Len(), elapsed.Round(time.Microsecond), float64(table.Len())/elapsed.Seconds())
	}

	if err := writeCounters(out, m.Registry); err != nil {
		return err
	}
	if f.metricsAddr != "" {
		return serveMetrics(cmd.Context(), f.metricsAddr, m)
	}
	return nil
}

// writeCounters prints every counter sample of reg, one per line, sorted.
func writeCounters(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return svdberr.Wrap(svdberr.SVDB_INTERNAL, err, "gather metrics")
	}
	var lines []string
	for _, mf := range families {
		for _, sample := range mf.GetMetric() {
			if sample.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(sample.GetLabel()))
			for _, lp := range sample.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, sample.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// serveMetrics serves m on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return svdberr.Wrap(svdberr.SVDB_ERROR, err, "metrics server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return svdberr.Wrap(svdberr.SVDB_ERROR, err, "metrics server shutdown")
	}
	return nil
}
