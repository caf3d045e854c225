package local_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageadaptor "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage"
	storageconfig "github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/config"
	"github.com/tigerroll/cascade/pkg/pipeline/adaptor/storage/local"
)

func newAdapter(t *testing.T) (storageadaptor.StorageConnection, string) {
	t.Helper()
	baseDir := t.TempDir()
	c, err := local.NewLocalAdapter(storageconfig.StorageConfig{Type: local.ProviderType, BaseDir: baseDir}, "reports")
	require.NoError(t, err)
	return c, baseDir
}

func TestLocalAdapterRequiresBaseDir(t *testing.T) {
	_, err := local.NewLocalAdapter(storageconfig.StorageConfig{Type: local.ProviderType}, "reports")
	assert.Error(t, err)
}

func TestLocalAdapterUploadDownloadRoundTrip(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	err := a.Upload(ctx, "", "reports/rejected/dt=2025-04-01/job-1.parquet",
		strings.NewReader("payload"), "application/octet-stream")
	require.NoError(t, err)

	rc, err := a.Download(ctx, "", "reports/rejected/dt=2025-04-01/job-1.parquet")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalAdapterListsByPrefix(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	for _, name := range []string{"reports/a.parquet", "reports/b.parquet", "other/c.parquet"} {
		require.NoError(t, a.Upload(ctx, "", name, strings.NewReader("x"), ""))
	}

	var listed []string
	err := a.ListObjects(ctx, "", "reports/", func(objectName string) error {
		listed = append(listed, objectName)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(listed)
	assert.Equal(t, []string{"reports/a.parquet", "reports/b.parquet"}, listed)
}

func TestLocalAdapterDeleteIsIdempotent(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Upload(ctx, "", "reports/a.parquet", strings.NewReader("x"), ""))
	require.NoError(t, a.DeleteObject(ctx, "", "reports/a.parquet"))
	// Deleting a missing object is not an error.
	require.NoError(t, a.DeleteObject(ctx, "", "reports/a.parquet"))

	_, err := a.Download(ctx, "", "reports/a.parquet")
	assert.Error(t, err)
}

func TestLocalAdapterRejectsPathEscape(t *testing.T) {
	a, _ := newAdapter(t)

	err := a.Upload(context.Background(), "", "../outside.txt", strings.NewReader("x"), "")
	assert.Error(t, err)
}
