// internal/storage/storage_test.go
package storage_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/storage"
	gormstorage "github.com/OCAP2/simtools/internal/storage/gorm"
	"github.com/OCAP2/simtools/internal/storage/memory"
	"github.com/OCAP2/simtools/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.FileBacked = (*memory.Backend)(nil)
	_ storage.Backend    = (*gormstorage.Backend)(nil)
)

const oneFrame = `{"time_sec":0,"positions":[{"agent_id":"A_CMD","team_id":"A","role":"commander","lat_deg":1,"lon_deg":2}]}` + "\n"

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr string
	}{
		{
			name: "memory",
			cfg:  config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{OutputDir: filepath.Join(dir, "files")}},
		},
		{
			name: "empty type defaults to memory",
			cfg:  config.StorageConfig{Memory: config.MemoryConfig{OutputDir: filepath.Join(dir, "default")}},
		},
		{
			name: "sqlite",
			cfg:  config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "db", "archive.db")}},
		},
		{
			name:    "postgres without connection",
			cfg:     config.StorageConfig{Type: "postgres"},
			wantErr: "requires a database connection",
		},
		{
			name:    "unknown",
			cfg:     config.StorageConfig{Type: "s3"},
			wantErr: "unknown storage type: s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := storage.NewBackend(tt.cfg, nil, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, b.Init())
			defer b.Close()

			require.NoError(t, b.SaveScenario("s", core.ScenarioDocument{Teams: []core.Team{}}))
			n, err := b.SaveTrace("t", strings.NewReader(oneFrame))
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			scenarios, err := b.ListScenarios()
			require.NoError(t, err)
			assert.Equal(t, []string{"s"}, scenarios)

			_, err = b.LoadScenario("nope")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = b.OpenTrace("nope")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestFileBacked(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: t.TempDir(), CompressOutput: true},
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	_, err = b.SaveTrace("run", strings.NewReader(oneFrame))
	require.NoError(t, err)

	fb, ok := b.(storage.FileBacked)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(fb.LastWrittenPath(), "run.ndjson.gz"))
}
