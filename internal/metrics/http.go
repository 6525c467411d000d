package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// unmatchedRoute labels requests gin could not route, so scanners hitting random
// URLs share one series.
const unmatchedRoute = "unmatched"

// HTTPMiddleware records request counts, latency and in-flight requests for the
// health and metrics server. Requests are labelled by route template.
func HTTPMiddleware(p *Provider) gin.HandlerFunc {
	meter := p.meter()

	requests, reqErr := meter.Int64Counter(
		p.name("http_requests_total"),
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	durations, durErr := meter.Float64Histogram(
		p.name("http_request_duration_seconds"),
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	inFlight, flightErr := meter.Int64UpDownCounter(
		p.name("http_requests_in_flight"),
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if errors.Join(reqErr, durErr, flightErr) != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		inFlight.Add(ctx, 1)
		defer inFlight.Add(ctx, -1)

		c.Next()

		attrs := metric.WithAttributeSet(attribute.NewSet(
			attribute.String("method", c.Request.Method),
			attribute.String("route", routeOf(c.FullPath())),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		))
		requests.Add(ctx, 1, attrs)
		durations.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func routeOf(fullPath string) string {
	if fullPath == "" {
		return unmatchedRoute
	}
	return fullPath
}
