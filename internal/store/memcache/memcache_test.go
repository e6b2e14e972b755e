package memcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	c := New()

	data, err := c.Load(ctx, "requests")
	require.NoError(t, err)
	assert.Nil(t, data)

	blob := []byte(`[{"id":"a"}]`)
	require.NoError(t, c.Store(ctx, "requests", blob))
	blob[0] = 'x'

	data, err = c.Load(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(data))

	data[0] = 'y'
	again, _ := c.Load(ctx, "requests")
	assert.Equal(t, `[{"id":"a"}]`, string(again))
}
