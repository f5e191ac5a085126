package publish_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/publish"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "run-1/scan_results/a_jar/results.json",
		publish.Key("run-1", "/w", "/w/scan_results/a_jar/results.json"))
	require.Equal(t, "run-1/results.json",
		publish.Key("run-1", "/w", "/elsewhere/results.json"))
}

type failing struct{}

func (failing) Publish(context.Context, string, string) (string, error) {
	return "", errors.New("bucket is gone")
}

func TestAll(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	src := filepath.Join(workdir, "scan_results", "a_jar", "results.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte(`{"findings":[]}`), 0o644))

	target := filepath.Join(t.TempDir(), "published")
	dirPub, err := publish.NewDirPublisher(target)
	require.NoError(t, err)
	publishers := []publish.Publisher{failing{}, dirPub}
	t.Cleanup(func() { require.NoError(t, publish.Close(publishers)) })

	files := []model.OutputFileRecord{{Kind: "results", Path: src}}
	published, err := publish.All(t.Context(), "run-1", workdir, files, publishers)
	require.ErrorContains(t, err, "bucket is gone")

	want := filepath.Join(target, "run-1", "scan_results", "a_jar", "results.json")
	require.Equal(t, []model.OutputFileRecord{{Kind: "results", Path: want}}, published)
	raw, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, `{"findings":[]}`, string(raw))
}

func TestDirPublisher_Escape(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	p, err := publish.NewDirPublisher(t.TempDir())
	require.NoError(t, err)
	_, err = p.Publish(t.Context(), "../outside.txt", src)
	require.Error(t, err)

	require.NoError(t, p.Close())
	_, err = p.Publish(t.Context(), "f.txt", src)
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	publishers, err := publish.FromConfig(t.Context(), model.Publish{})
	require.NoError(t, err)
	require.Empty(t, publishers)

	publishers, err = publish.FromConfig(t.Context(), model.Publish{Dir: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	require.NoError(t, publish.Close(publishers))
}
