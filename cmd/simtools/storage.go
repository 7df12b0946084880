package main

import (
	"fmt"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/OCAP2/simtools/internal/database"
	"github.com/OCAP2/simtools/internal/storage"
	"gorm.io/gorm"
)

// openBackend creates and initializes the configured archive backend. The
// backend is closed by shutdown.
func (a *app) openBackend() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	var db *gorm.DB
	if storageCfg.Type == "postgres" {
		manager := database.NewManager(a.zlog, storageCfg.SQLite.Path)
		if err := manager.Connect(config.GetDatabaseConfig()); err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		a.closers = append(a.closers, manager)
		if manager.ShouldSaveLocal {
			a.logger.Warn("Postgres unavailable, archiving to local SQLite", "path", storageCfg.SQLite.Path)
		}
		db = manager.DB
	}

	backend, err := storage.NewBackend(storageCfg, db, a.logger)
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		backend.Close()
		a.logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	a.closers = append(a.closers, backend)

	a.logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

// archivedPath returns where the backend put the last item, if it writes files.
func archivedPath(b storage.Backend) string {
	if fb, ok := b.(storage.FileBacked); ok {
		return fb.LastWrittenPath()
	}
	return ""
}
