// Package metrics instruments the scheduler, store and codec with
// OpenTelemetry counters and histograms, exported over Prometheus's
// text format. Grounded on the teacher's common/otel_metrics.go:
// per-metric-kind Meters, cached attribute.Sets to avoid rebuilding
// them on every call, and a single errors.Join at construction time.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// WorkKindKey annotates a work-item metric with its kind (SCAN,
	// SEARCH, SORT, ...).
	WorkKindKey = "work_kind"
	// ResultKey annotates an operation's outcome (ok, failed, busy,
	// cancelled).
	ResultKey = "result"
)

var (
	schedulerMeter = otel.Meter("scheduler")
	storeMeter     = otel.Meter("store")
	codecMeter     = otel.Meter("codec")

	workKindAttrs   sync.Map
	workResultAttrs sync.Map
)

func cachedOption(mp *sync.Map, key string, build func() attribute.Set) metric.MeasurementOption {
	if v, ok := mp.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	v, _ := mp.LoadOrStore(key, metric.WithAttributeSet(build()))
	return v.(metric.MeasurementOption)
}

func workKindOption(kind string) metric.MeasurementOption {
	return cachedOption(&workKindAttrs, kind, func() attribute.Set {
		return attribute.NewSet(attribute.String(WorkKindKey, kind))
	})
}

func resultOption(kind, result string) metric.MeasurementOption {
	return cachedOption(&workResultAttrs, kind+"|"+result, func() attribute.Set {
		return attribute.NewSet(attribute.String(WorkKindKey, kind), attribute.String(ResultKey, result))
	})
}

// Handle is the instrumentation surface the scheduler, store and codec
// call into. A Noop implementation is used when metrics are disabled.
type Handle interface {
	WorkItemCount(ctx context.Context, kind, result string)
	WorkItemLatency(ctx context.Context, kind string, d time.Duration)

	StoreNumFiles(ctx context.Context, n int64)
	StoreNumFolders(ctx context.Context, n int64)

	SearchLatency(ctx context.Context, d time.Duration)
	SearchResultCount(ctx context.Context, n int64)

	CodecSaveLatency(ctx context.Context, d time.Duration)
	CodecLoadLatency(ctx context.Context, d time.Duration)
}

type otelHandle struct {
	workItemCount    metric.Int64Counter
	workItemLatency  metric.Float64Histogram
	storeNumFiles    metric.Int64Gauge
	storeNumFolders  metric.Int64Gauge
	searchLatency    metric.Float64Histogram
	searchResultCnt  metric.Int64Counter
	codecSaveLatency metric.Float64Histogram
	codecLoadLatency metric.Float64Histogram
}

var _ Handle = (*otelHandle)(nil)

// New builds the OTel instrumentation and returns it alongside an
// http.Handler serving Prometheus's scrape format, backed by the
// exporters/prometheus bridge over the core SDK's MeterProvider.
func New() (Handle, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	h, err := newOTelHandle()
	if err != nil {
		return nil, nil, err
	}
	return h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func newOTelHandle() (*otelHandle, error) {
	workItemCount, err1 := schedulerMeter.Int64Counter("scheduler/work_item_count",
		metric.WithDescription("Work items dequeued and dispatched, by kind and result."))
	workItemLatency, err2 := schedulerMeter.Float64Histogram("scheduler/work_item_latency",
		metric.WithDescription("Time from dequeue to handler completion."), metric.WithUnit("ms"))

	storeNumFiles, err3 := storeMeter.Int64Gauge("store/num_files",
		metric.WithDescription("Current number of file entries aggregated by the store."))
	storeNumFolders, err4 := storeMeter.Int64Gauge("store/num_folders",
		metric.WithDescription("Current number of folder entries aggregated by the store."))

	searchLatency, err5 := storeMeter.Float64Histogram("store/search_latency",
		metric.WithDescription("Time to complete a search request."), metric.WithUnit("ms"))
	searchResultCnt, err6 := storeMeter.Int64Counter("store/search_result_count",
		metric.WithDescription("Cumulative number of entries returned by completed searches."))

	codecSaveLatency, err7 := codecMeter.Float64Histogram("codec/save_latency",
		metric.WithDescription("Time to write a snapshot to disk."), metric.WithUnit("ms"))
	codecLoadLatency, err8 := codecMeter.Float64Histogram("codec/load_latency",
		metric.WithDescription("Time to read a snapshot from disk."), metric.WithUnit("ms"))

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return nil, err
	}

	return &otelHandle{
		workItemCount:    workItemCount,
		workItemLatency:  workItemLatency,
		storeNumFiles:    storeNumFiles,
		storeNumFolders:  storeNumFolders,
		searchLatency:    searchLatency,
		searchResultCnt:  searchResultCnt,
		codecSaveLatency: codecSaveLatency,
		codecLoadLatency: codecLoadLatency,
	}, nil
}

func (h *otelHandle) WorkItemCount(ctx context.Context, kind, result string) {
	h.workItemCount.Add(ctx, 1, resultOption(kind, result))
}

func (h *otelHandle) WorkItemLatency(ctx context.Context, kind string, d time.Duration) {
	h.workItemLatency.Record(ctx, float64(d.Milliseconds()), workKindOption(kind))
}

func (h *otelHandle) StoreNumFiles(ctx context.Context, n int64)   { h.storeNumFiles.Record(ctx, n) }
func (h *otelHandle) StoreNumFolders(ctx context.Context, n int64) { h.storeNumFolders.Record(ctx, n) }

func (h *otelHandle) SearchLatency(ctx context.Context, d time.Duration) {
	h.searchLatency.Record(ctx, float64(d.Milliseconds()))
}
func (h *otelHandle) SearchResultCount(ctx context.Context, n int64) {
	h.searchResultCnt.Add(ctx, n)
}

func (h *otelHandle) CodecSaveLatency(ctx context.Context, d time.Duration) {
	h.codecSaveLatency.Record(ctx, float64(d.Milliseconds()))
}
func (h *otelHandle) CodecLoadLatency(ctx context.Context, d time.Duration) {
	h.codecLoadLatency.Record(ctx, float64(d.Milliseconds()))
}

// Noop implements Handle with no-ops, used when metrics are disabled.
type Noop struct{}

var _ Handle = Noop{}

func (Noop) WorkItemCount(context.Context, string, string)          {}
func (Noop) WorkItemLatency(context.Context, string, time.Duration) {}
func (Noop) StoreNumFiles(context.Context, int64)                   {}
func (Noop) StoreNumFolders(context.Context, int64)                 {}
func (Noop) SearchLatency(context.Context, time.Duration)           {}
func (Noop) SearchResultCount(context.Context, int64)               {}
func (Noop) CodecSaveLatency(context.Context, time.Duration)        {}
func (Noop) CodecLoadLatency(context.Context, time.Duration)        {}
