package context

import (
	stdcontext "context"
	"strings"

	"github.com/smallbiznis/carepoints/internal/usercontext"
)

type requestIDKey struct{}

type clientKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// ActorFromContext returns the caller's role and user id, empty when anonymous.
func ActorFromContext(ctx stdcontext.Context) (string, string) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return "", ""
	}
	return usercontext.RoleFromContext(ctx), userID.String()
}

// WithClient records the caller's address and user agent for audit entries.
func WithClient(ctx stdcontext.Context, ip, userAgent string) stdcontext.Context {
	return stdcontext.WithValue(ctx, clientKey{}, clientInfo{ip: strings.TrimSpace(ip), userAgent: strings.TrimSpace(userAgent)})
}

func ClientIPFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	info, _ := ctx.Value(clientKey{}).(clientInfo)
	return info.ip
}

func UserAgentFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	info, _ := ctx.Value(clientKey{}).(clientInfo)
	return info.userAgent
}
