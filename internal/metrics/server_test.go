package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartStop(t *testing.T) {
	collector := NewCollector()
	server := NewServer("127.0.0.1:0", "", collector.GetRegistry())
	assert.False(t, server.Ready())

	require.NoError(t, server.Start(context.Background()))
	assert.True(t, server.Ready())
	// Starting twice is a no-op
	require.NoError(t, server.Start(context.Background()))

	require.NoError(t, server.Stop(context.Background()))
	assert.False(t, server.Ready())
	require.NoError(t, server.Stop(context.Background()))
}
