package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/carepoints/internal/observability/context"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type MiddlewareConfig struct {
	// SkipPaths are served without a span, e.g. health checks and scrapes.
	SkipPaths []string
	// ErrorClassifier maps a handler error to its API error type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware opens a server span per request. The member id and role are
// read after the handler chain, since authentication runs per route group.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer("carepoints/http")
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)...)
		span.SetAttributes(memberAttributes(c)...)

		lastErr := c.Errors.Last()
		if lastErr != nil && cfg.ErrorClassifier != nil {
			errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
			span.SetAttributes(
				attribute.String("carepoints.error_type", errorType),
				attribute.String("carepoints.error_code", errorCode),
			)
		}
		if status >= http.StatusInternalServerError {
			if lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func memberAttributes(c *gin.Context) []attribute.KeyValue {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("enduser.id", userID.String()),
		attribute.String("enduser.role", usercontext.RoleFromContext(c.Request.Context())),
	}
}
