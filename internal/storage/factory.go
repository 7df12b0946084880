// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/database"
	gormstorage "github.com/OCAP2/simtools/internal/storage/gorm"
	"github.com/OCAP2/simtools/internal/storage/memory"
	"gorm.io/gorm"
)

// NewBackend creates a storage backend based on configuration.
// db is used by the sqlite and postgres backends; for sqlite a nil db opens
// the configured file and the backend closes it.
func NewBackend(cfg config.StorageConfig, db *gorm.DB, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("postgres backend requires a database connection")
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}), nil
	case "sqlite":
		owned := false
		if db == nil {
			var err error
			db, err = database.GetSqliteDB(cfg.SQLite.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
			}
			owned = true
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, OwnsDB: owned, Logger: logger}), nil
	case "memory", "":
		return memory.New(cfg.Memory, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
