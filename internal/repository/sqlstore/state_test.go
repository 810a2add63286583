package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/repository/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStateStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "swift.db")

	store, err := sqlstore.OpenSQLite(ctx, path)
	require.NoError(t, err)

	_, err = store.Load(ctx, "sessions")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	require.NoError(t, store.Save(ctx, "sessions", []byte(`[{"id":"a"}]`)))
	require.NoError(t, store.Save(ctx, "sessions", []byte(`[{"id":"b"}]`)))
	require.NoError(t, store.Save(ctx, "other", []byte(`[]`)))

	got, err := store.Load(ctx, "sessions")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"b"}]`, string(got))

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())

	// Data survives reopening
	reopened, err := sqlstore.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err = reopened.Load(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestOpenMySQL_RequiresDSN(t *testing.T) {
	_, err := sqlstore.OpenMySQL(context.Background(), "")
	assert.Error(t, err)
}
