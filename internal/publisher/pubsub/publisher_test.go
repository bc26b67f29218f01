package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Topic: "signals"})
	assert.Error(t, err)
}

func TestPublishUnconfigured(t *testing.T) {
	t.Parallel()

	var p *Publisher
	_, err := p.Publish(context.Background(), "signals", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.NoError(t, p.Close())
}
