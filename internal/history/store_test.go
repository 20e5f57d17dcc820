package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "extraction:abc", recordKey("abc"))
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	store := NewStore(nil, time.Minute)
	assert.Error(t, store.Save(context.Background(), nil))
	assert.Error(t, store.Save(context.Background(), &Record{}))
}

// REDIS_URL が設定されている場合のみ実行します。
func TestStoreRoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL is not set")
	}
	ctx := context.Background()

	store, client, err := Open(ctx, redisURL, time.Minute)
	require.NoError(t, err)
	defer client.Close()

	record := &Record{
		ID:          uuid.NewString(),
		SourceName:  "form.pdf",
		SourceSize:  1234,
		Pages:       1,
		TotalImages: 2,
		Images: []ImageEntry{
			{Filename: "user-img-1.png", Role: "user-image", Page: 1},
			{Filename: "sign-img-2.png", Role: "sign-image", Page: 1},
		},
	}
	require.NoError(t, store.Save(ctx, record))
	defer client.Del(ctx, recordKey(record.ID))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Images, got.Images)
	assert.False(t, got.ExpiresAt.IsZero())

	ttl, err := client.TTL(ctx, recordKey(record.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	missing, err := store.Get(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
