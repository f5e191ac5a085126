package publish_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/publish"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "verascan"
	minioPassword = "verascan-secret"
)

func TestMinioPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipped in short mode, requires docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := t.Context()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	cfg := model.S3{
		Endpoint:  endpoint,
		Bucket:    "scan-results",
		AccessKey: minioUser,
		SecretKey: minioPassword,
		Prefix:    "ci",
	}
	p, err := publish.NewMinioPublisher(ctx, cfg)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"ok":true}`), 0o644))

	loc, err := p.Publish(ctx, "run-1/results.json", src)
	require.NoError(t, err)
	require.Equal(t, "s3://scan-results/ci/run-1/results.json", loc)

	// bucket exists now, second publisher must not fail
	_, err = publish.NewMinioPublisher(ctx, cfg)
	require.NoError(t, err)

	cli, err := minio.New(endpoint, &minio.Options{Creds: credentials.NewStaticV4(minioUser, minioPassword, "")})
	require.NoError(t, err)
	obj, err := cli.GetObject(ctx, "scan-results", "ci/run-1/results.json", minio.GetObjectOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obj.Close() })
	raw, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(raw))
	info, err := obj.Stat()
	require.NoError(t, err)
	require.Equal(t, "application/json", info.ContentType)
}
