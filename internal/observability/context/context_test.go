package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	assert.Equal(t, "", RequestIDFromContext(WithRequestID(context.Background(), "  ")))
}

func TestActorFromEmptyContext(t *testing.T) {
	kind, id := ActorFromContext(context.Background())
	assert.Empty(t, kind)
	assert.Empty(t, id)

	kind, id = ActorFromContext(WithActor(context.Background(), "account", "alice_example_com"))
	assert.Equal(t, "account", kind)
	assert.Equal(t, "alice_example_com", id)
}

func TestClientRoundTrip(t *testing.T) {
	ip, ua := ClientFromContext(WithClient(context.Background(), "10.0.0.1", " curl/8 "))
	assert.Equal(t, "10.0.0.1", ip)
	assert.Equal(t, "curl/8", ua)
}
