package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the service's own instruments
const MeterName = "github.com/dockmap/auth-service"

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}

// AuthMetrics holds the authentication counters.
// The Prometheus exporter appends the _total suffix to counter names.
type AuthMetrics struct {
	attempts         metric.Int64Counter
	codesIssued      metric.Int64Counter
	deliveryFailures metric.Int64Counter
}

// NewAuthMetrics registers the authentication counters on meter
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	attempts, err := meter.Int64Counter("auth_attempts",
		metric.WithDescription("Authentication attempts by provider and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_attempts counter: %w", err)
	}

	codesIssued, err := meter.Int64Counter("auth_codes_issued",
		metric.WithDescription("One-time codes issued by type"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_codes_issued counter: %w", err)
	}

	deliveryFailures, err := meter.Int64Counter("auth_delivery_failures",
		metric.WithDescription("Failed SMS and email delivery attempts by channel"))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_delivery_failures counter: %w", err)
	}

	return &AuthMetrics{
		attempts:         attempts,
		codesIssued:      codesIssued,
		deliveryFailures: deliveryFailures,
	}, nil
}

func (m *AuthMetrics) RecordAuthAttempt(ctx context.Context, provider, outcome string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (m *AuthMetrics) RecordCodeIssued(ctx context.Context, codeType string) {
	m.codesIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("type", codeType)))
}

func (m *AuthMetrics) RecordDeliveryFailure(ctx context.Context, channel string) {
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}
