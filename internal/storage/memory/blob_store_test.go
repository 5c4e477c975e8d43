package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(ctx, "ios/17/iPhone 15/portrait/home.png", "image/png", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://ios/17/iPhone 15/portrait/home.png", uri)

	payload[0] = 'C'
	got, ok := store.Get("ios/17/iPhone 15/portrait/home.png")
	require.True(t, ok)
	assert.Equal(t, "content", string(got))

	exists, err := store.Exists(ctx, "ios/17/iPhone 15/portrait/home.png")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, store.Puts())
	assert.Equal(t, []string{"ios/17/iPhone 15/portrait/home.png"}, store.Paths())

	_, err = store.PutObject(ctx, "", "", nil)
	require.Error(t, err)
}
