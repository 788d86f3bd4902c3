// Package QE runs compiled expressions over tables: a filter selects rows and
// a projection computes the output columns.
package QE

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/sqlvibe/fnvm/internal/DS"
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
	"github.com/sqlvibe/fnvm/internal/log"
)

// ScanObserver receives per-scan row counts.
type ScanObserver interface {
	ObserveScan(scanned, matched int)
}

type Options struct {
	// Workers bounds the goroutine pool. 1 scans on the calling goroutine;
	// 0 sizes the pool from the row count.
	Workers int
	// ChunkSize is the number of rows one pool task evaluates.
	ChunkSize int
	// Eval is applied to every evaluator the scan creates.
	Eval []VM.EvalOption
	// Vars and Tables are visible to callables through their ProgramRef.
	Vars   map[string]SATS.AlgebraicValue
	Tables []VM.Table
	// Observer, when set, receives the scan's row counts.
	Observer ScanObserver
}

func DefaultOptions() Options {
	return Options{Workers: runtime.GOMAXPROCS(0), ChunkSize: DS.MinPartitionSize}
}

// Scan evaluates filter on every row of table and returns projection applied
// to each matching row, in table order. A nil filter matches every row; a nil
// projection returns the row itself. Each pool task evaluates its chunk with
// its own Program and Evaluator over a clone of reg. ctx is checked between
// rows; the first failing chunk's error is returned.
func Scan(ctx context.Context, reg *VM.Registry, table VM.Table, filter VM.Code, projection []VM.Code, opts Options) ([][]SATS.AlgebraicValue, error) {
	runID := uuid.New()
	start := time.Now()
	spans := DS.Partition(table.Len(), opts.ChunkSize)
	logger := log.With("run", runID.String(), "table", table.Name())
	if opts.Workers <= 0 {
		opts.Workers = DS.NumWorkers(table.Len(), runtime.GOMAXPROCS(0))
	}
	logger.Debug("scan started", "rows", table.Len(), "chunks", len(spans), "workers", opts.Workers)

	s := &scan{reg: reg, table: table, filter: filter, projection: projection, opts: opts}
	var (
		out [][]SATS.AlgebraicValue
		err error
	)
	if opts.Workers <= 1 || len(spans) <= 1 {
		out, err = s.sequential(ctx, spans)
	} else {
		out, err = s.parallel(ctx, spans)
	}
	if err != nil {
		logger.Warn("scan failed", "err", err, "elapsed", time.Since(start))
		return nil, err
	}

	if opts.Observer != nil {
		opts.Observer.ObserveScan(table.Len(), len(out))
	}
	logger.Debug("scan finished", "matched", len(out), "elapsed", time.Since(start))
	return out, nil
}

type scan struct {
	reg        *VM.Registry
	table      VM.Table
	filter     VM.Code
	projection []VM.Code
	opts       Options
}

func (s *scan) sequential(ctx context.Context, spans []DS.Span) ([][]SATS.AlgebraicValue, error) {
	reg := s.reg.Clone()
	var out [][]SATS.AlgebraicValue
	for _, span := range spans {
		rows, err := s.chunk(ctx, reg, span)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *scan) parallel(ctx context.Context, spans []DS.Span) ([][]SATS.AlgebraicValue, error) {
	pool, err := ants.NewPool(min(s.opts.Workers, len(spans)))
	if err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_INTERNAL, err, "scan %s: worker pool", s.table.Name())
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][][]SATS.AlgebraicValue, len(spans))
	errs := make([]error, len(spans))
	var wg sync.WaitGroup
	for i, span := range spans {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = svdberr.Errorf(svdberr.SVDB_INTERNAL, "scan %s: chunk %d panicked: %v", s.table.Name(), i, r)
					cancel()
				}
			}()
			rows, err := s.chunk(ctx, s.reg.Clone(), span)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = rows
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = svdberr.Wrap(svdberr.SVDB_INTERNAL, submitErr, "scan %s: submit chunk %d", s.table.Name(), i)
			cancel()
			break
		}
	}
	wg.Wait()

	if err := firstError(errs); err != nil {
		return nil, err
	}
	n := 0
	for _, r := range results {
		n += len(r)
	}
	out := make([][]SATS.AlgebraicValue, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// firstError returns the error of the earliest failing chunk, preferring a
// real failure over the cancellations it caused in other chunks.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if canceled == nil {
			canceled = err
		}
	}
	return canceled
}

// chunk evaluates the rows of span with a fresh Program and Evaluator.
func (s *scan) chunk(ctx context.Context, reg *VM.Registry, span DS.Span) ([][]SATS.AlgebraicValue, error) {
	prog := VM.NewProgram(reg, VM.WithTable(s.table))
	for _, t := range s.opts.Tables {
		prog.AddTable(t)
	}
	for name, v := range s.opts.Vars {
		prog.SetVar(name, v)
	}
	e := VM.NewEvaluator(reg, prog, s.opts.Eval...)

	var out [][]SATS.AlgebraicValue
	for i := span.Start; i < span.End; i++ {
		if err := ctx.Err(); err != nil {
			return nil, interrupted(s.table.Name(), err)
		}
		row := s.table.Row(i)
		if s.filter != nil {
			ok, err := e.EvalBool(s.filter, row)
			if err != nil {
				return nil, svdberr.Wrap(svdberr.ErrorCodeOf(err), err, "%s row %d", s.table.Name(), i)
			}
			if !ok {
				continue
			}
		}
		if s.projection == nil {
			out = append(out, slices.Clone(row))
			continue
		}
		proj := make([]SATS.AlgebraicValue, len(s.projection))
		for j, p := range s.projection {
			v, err := e.Eval(p, row)
			if err != nil {
				return nil, svdberr.Wrap(svdberr.ErrorCodeOf(err), err, "%s row %d column %d", s.table.Name(), i, j)
			}
			proj[j] = v
		}
		out = append(out, proj)
	}
	return out, nil
}

func interrupted(table string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return svdberr.Wrap(svdberr.SVDB_QUERY_TIMEOUT, err, "scan %s", table)
	}
	return svdberr.Wrap(svdberr.SVDB_INTERRUPT, err, "scan %s", table)
}
