package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal       metric.Int64Counter
	AuthRequestsTotal       metric.Int64Counter
	PredictionsTotal        metric.Int64Counter
	PredictionDuration      metric.Float64Histogram
	PreprocessFailuresTotal metric.Int64Counter
	StoreFallbackGauge      metric.Int64Gauge
	ModelLoadedGauge        metric.Int64Gauge
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("retinagrade")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of login/register attempts"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.PredictionsTotal, err = meter.Int64Counter(
			"predictions_total",
			metric.WithDescription("Total number of classification requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create predictions_total: %v", err)
		}

		m.PredictionDuration, err = meter.Float64Histogram(
			"prediction_duration_seconds",
			metric.WithDescription("Duration of classification requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create prediction_duration_seconds: %v", err)
		}

		m.PreprocessFailuresTotal, err = meter.Int64Counter(
			"preprocess_failures_total",
			metric.WithDescription("Total number of undecodable or unresizable uploads"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create preprocess_failures_total: %v", err)
		}

		m.StoreFallbackGauge, err = meter.Int64Gauge(
			"store_fallback_mode",
			metric.WithDescription("1 when the user registry runs in fallback mode"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create store_fallback_mode: %v", err)
		}

		m.ModelLoadedGauge, err = meter.Int64Gauge(
			"model_loaded",
			metric.WithDescription("1 when the classifier model is loaded"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create model_loaded: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global metrics instance. InitAppMetrics must run first.
func Get() *AppMetrics {
	return appMetrics
}
