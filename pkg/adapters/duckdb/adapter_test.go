package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "default path",
			setupPath: func(_ *testing.T) string {
				return ""
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "scratch.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, adapter.Config{Path: dbPath}))
			defer func() { _ = adp.Close() }()

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.Error(t, adp.Exec(ctx, "SELECT 1"))
	_, err := adp.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	assert.NoError(t, adp.Close())
}

func TestAdapter_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	cfg := adapter.Config{
		Params: map[string]any{
			"settings": map[string]any{
				"preserve_insertion_order": "false",
				"threads":                  "2",
			},
		},
	}
	require.NoError(t, adp.Connect(ctx, cfg))
	defer func() { _ = adp.Close() }()

	assert.Equal(t, "true", currentSetting(t, adp, "preserve_insertion_order"))
	assert.Equal(t, "2", currentSetting(t, adp, "threads"))
}

func TestAdapter_InvalidParams(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), adapter.Config{
		Params: map[string]any{"settings": map[string]any{"no_such_setting": "1"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_setting")
	assert.False(t, adp.IsConnected())
}

func TestAdapter_Registered(t *testing.T) {
	assert.True(t, adapter.IsRegistered(Name))

	adp, err := adapter.NewAdapter(adapter.Config{Type: Name}, nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", adp.DialectName())
}

func currentSetting(t *testing.T, adp *Adapter, name string) string {
	t.Helper()
	rows, err := adp.Query(context.Background(), "SELECT current_setting('"+name+"')::VARCHAR")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var value string
	require.NoError(t, rows.Scan(&value))
	require.NoError(t, rows.Err())
	return value
}
