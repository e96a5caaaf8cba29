package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestAndUserID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
}

func TestWithPrincipal(t *testing.T) {
	type principal struct{ id string }
	p := &principal{id: "u1"}

	ctx := WithPrincipal(context.Background(), p)
	got, ok := ctx.Value(PrincipalKey).(*principal)
	assert.True(t, ok)
	assert.Same(t, p, got)
}
