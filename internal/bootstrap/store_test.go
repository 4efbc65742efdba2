package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/logger"
	"github.com/Domenick1991/ftms/internal/repository/memory"
	"github.com/Domenick1991/ftms/internal/repository/sqlitestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	testCases := []struct {
		name    string
		storage config.StorageConfig
		check   func(t *testing.T, opener any)
	}{
		{
			name:    "Memory",
			storage: config.StorageConfig{Driver: config.DriverMemory},
			check:   func(t *testing.T, opener any) { assert.IsType(t, &memory.Store{}, opener) },
		},
		{
			name:    "SQLite",
			storage: config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "ftms.db"), SQLitePoolSize: 2},
			check:   func(t *testing.T, opener any) { assert.IsType(t, &sqlitestore.Store{}, opener) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opener, closeStore, err := OpenStore(context.Background(), &config.Config{Storage: tc.storage}, logger.Discard())
			require.NoError(t, err)
			defer closeStore()
			tc.check(t, opener)

			h, err := opener.Open(context.Background())
			require.NoError(t, err)
			h.Close()
		})
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "mongo"}}, logger.Discard())

	assert.ErrorContains(t, err, `unknown storage driver "mongo"`)
}
