package walk_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/walk"

	"github.com/stretchr/testify/require"
)

func tree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.jar"), make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "a.jar"), make([]byte, 20), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "nested", "b.jar"), make([]byte, 30), 0o644))
	return dir
}

func TestRoots(t *testing.T) {
	t.Parallel()
	dir := tree(t)
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	var paths []string
	for e, err := range walk.Roots(t.Context(), root) {
		require.NoError(t, err)
		paths = append(paths, e.Path())
	}
	require.ElementsMatch(t, []string{
		filepath.Join(dir, "app.jar"),
		filepath.Join(dir, "lib", "a.jar"),
		filepath.Join(dir, "lib", "nested", "b.jar"),
	}, paths)
}

func TestSize(t *testing.T) {
	t.Parallel()
	dir := tree(t)

	size, err := walk.Size(t.Context(), dir)
	require.NoError(t, err)
	require.Equal(t, int64(60), size)

	size, err = walk.Size(t.Context(), filepath.Join(dir, "lib", "a.jar"))
	require.NoError(t, err)
	require.Equal(t, int64(20), size)

	_, err = walk.Size(t.Context(), filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = walk.Size(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
}
