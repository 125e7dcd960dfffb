package reqctx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestContextAssignsUUID(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "https://example.com")
	rc := GetRequestContext(ctx)

	_, err := uuid.Parse(rc.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", rc.URL)

	nested := WithRequestContext(ctx, "https://other.example")
	assert.Equal(t, rc.RequestID, GetRequestContext(nested).RequestID)
}

func TestGetRequestContextPlaceholder(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestContext(context.Background()).RequestID)
}

func TestRequestErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	ctx := WithRequestContext(context.Background(), "u")
	err := NewRequestError(ctx, base)

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), GetRequestContext(ctx).RequestID)
}
