package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const requestKey key = 0

// RequestContext identifies one GetDom call across both fetches and the
// mapping pass.
type RequestContext struct {
	RequestID string
	URL       string
	StartTime time.Time
}

// WithRequestContext attaches a fresh request id to ctx. An existing request
// context is kept so nested calls share one id.
func WithRequestContext(ctx context.Context, url string) context.Context {
	if rc, ok := ctx.Value(requestKey).(*RequestContext); ok && rc != nil {
		return ctx
	}
	return context.WithValue(ctx, requestKey, &RequestContext{
		RequestID: uuid.NewString(),
		URL:       url,
		StartTime: time.Now(),
	})
}

// GetRequestContext returns the request context of ctx, or a placeholder.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestKey).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{
		RequestID: "unknown",
		StartTime: time.Now(),
	}
}

// Elapsed returns the time since the request started.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

// RequestError wraps an error with request context
type RequestError struct {
	RequestID string
	Err       error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RequestID, e.Err)
}

// Unwrap returns the underlying error
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError from context
func NewRequestError(ctx context.Context, err error) error {
	rc := GetRequestContext(ctx)
	return &RequestError{
		RequestID: rc.RequestID,
		Err:       err,
	}
}
