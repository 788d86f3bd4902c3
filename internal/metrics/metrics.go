// Package metrics exports evaluator activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

const namespace = "fnvm"

// Metrics is a set of collectors on a private registry. It implements
// VM.Observer and is safe for use by concurrent evaluators.
type Metrics struct {
	Registry *prometheus.Registry

	// CallsTotal counts function calls by function name and status.
	CallsTotal *prometheus.CounterVec
	// CallDuration is the latency of the callable alone; a returned lambda
	// body is reduced after it is observed.
	CallDuration *prometheus.HistogramVec
	// EvalsTotal counts top-level evaluations by status.
	EvalsTotal *prometheus.CounterVec
	// EvalDuration is the latency of one top-level evaluation.
	EvalDuration prometheus.Histogram
	// RowsScanned counts rows visited by scans.
	RowsScanned prometheus.Counter
	// RowsMatched counts rows that passed a scan filter.
	RowsMatched prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of function calls",
			},
			[]string{"function", "status"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Function call latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
			[]string{"function"},
		),
		EvalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evals_total",
				Help:      "Total number of expression evaluations",
			},
			[]string{"status"},
		),
		EvalDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "eval_duration_seconds",
				Help:      "Expression evaluation latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
		),
		RowsScanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_scanned_total",
			Help:      "Total number of rows visited by scans",
		}),
		RowsMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_matched_total",
			Help:      "Total number of rows that passed a scan filter",
		}),
	}
}

// status maps err to a bounded label: "ok" or the primary error code name.
func status(err error) string {
	if err == nil {
		return "ok"
	}
	return svdberr.ErrorCodeOf(err).Primary().String()
}

func (m *Metrics) ObserveCall(fn *VM.FunVm, d time.Duration, err error) {
	m.CallsTotal.WithLabelValues(fn.Name(), status(err)).Inc()
	m.CallDuration.WithLabelValues(fn.Name()).Observe(d.Seconds())
}

func (m *Metrics) ObserveEval(d time.Duration, err error) {
	m.EvalsTotal.WithLabelValues(status(err)).Inc()
	m.EvalDuration.Observe(d.Seconds())
}

// ObserveScan records one scan's row counts.
func (m *Metrics) ObserveScan(scanned, matched int) {
	m.RowsScanned.Add(float64(scanned))
	m.RowsMatched.Add(float64(matched))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

var _ VM.Observer = (*Metrics)(nil)
