package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/repository/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")

	storage, err := file.NewStateStorage(dir)
	require.NoError(t, err)

	_, err = storage.Load(ctx, "swift_assistant_sessions")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	require.NoError(t, storage.Save(ctx, "swift_assistant_sessions", []byte(`[{"id":"a"}]`)))
	require.NoError(t, storage.Save(ctx, "swift_assistant_sessions", []byte(`[{"id":"b"}]`)))

	got, err := storage.Load(ctx, "swift_assistant_sessions")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b"}]`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	assert.NoError(t, storage.Ping(ctx))
}

func TestStateStorage_KeyIsSanitised(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	storage, err := file.NewStateStorage(dir)
	require.NoError(t, err)

	require.NoError(t, storage.Save(ctx, "../escape/key", []byte("[]")))

	_, err = os.Stat(filepath.Join(dir, ".._escape_key.json"))
	assert.NoError(t, err)
}
