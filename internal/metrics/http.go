package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const eventStreamContentType = "text/event-stream"

type httpMetrics struct {
	requests      metric.Int64Counter
	latency       metric.Float64Histogram
	activeStreams metric.Int64UpDownCounter
}

// HTTPMetricsMiddleware returns a Gin middleware counting requests by method, route pattern and
// status code. Server-sent event streams are counted but kept out of the latency histogram, since
// they last as long as the UI stays connected; "<namespace>_http_active_streams" tracks them instead.
// If the instruments cannot be created the middleware only calls c.Next.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	instruments, err := newHTTPMetrics(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		route := sanitizePath(c.FullPath())

		streaming := strings.HasPrefix(c.GetHeader("Accept"), eventStreamContentType)
		if streaming {
			instruments.activeStreams.Add(ctx, 1, metric.WithAttributes(attribute.String("path", route)))
		}

		c.Next()

		if streaming {
			instruments.activeStreams.Add(ctx, -1, metric.WithAttributes(attribute.String("path", route)))
		}

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		instruments.requests.Add(ctx, 1, attrs)
		if !streaming && !strings.HasPrefix(c.Writer.Header().Get("Content-Type"), eventStreamContentType) {
			instruments.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}

func newHTTPMetrics(meter metric.Meter, namespace string) (*httpMetrics, error) {
	requests, err := meter.Int64Counter(
		namespace+"_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, event streams excluded"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeStreams, err := meter.Int64UpDownCounter(
		namespace+"_http_active_streams",
		metric.WithDescription("Open server-sent event streams"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{requests: requests, latency: latency, activeStreams: activeStreams}, nil
}

// sanitizePath returns the matched route pattern, or "unknown" when no route matched, so
// batch and operation IDs never become label values.
func sanitizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}
