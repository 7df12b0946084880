package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/simtools/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint `gorm:"primarykey"`
	Name string
}

func TestDSN(t *testing.T) {
	got := DSN(config.DatabaseConfig{
		Host:     "db.local",
		Port:     "5432",
		Username: "sim",
		Password: "secret",
		Database: "simtools",
	})
	assert.Equal(t, "host=db.local port=5432 user=sim password=secret dbname=simtools sslmode=disable", got)
}

func TestGetSqliteDB_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")

	db, err := GetSqliteDB(path)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestManager_ConnectSqliteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	m := NewManager(zerolog.Nop(), path)

	assert.ErrorIs(t, m.Migrate(&widget{}), ErrNotConnected)

	require.NoError(t, m.ConnectSqlite())
	defer m.Close()

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, "sqlite", m.Dialect())
	require.NoError(t, m.Migrate(&widget{}))
	assert.True(t, m.DB.Migrator().HasTable(&widget{}))
}

func TestManager_ConnectFallsBackToSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop(), path)

	err := m.Connect(config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "nothing",
		Database: "none",
	})
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.ShouldSaveLocal)
	assert.Equal(t, "sqlite", m.Dialect())
}

func TestManager_DumpToDisk(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(zerolog.Nop(), filepath.Join(dir, "live.db"))
	require.NoError(t, m.ConnectSqlite())
	defer m.Close()

	require.NoError(t, m.Migrate(&widget{}))
	require.NoError(t, m.DB.Create(&widget{Name: "dumped"}).Error)

	out := filepath.Join(dir, "copy.db")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0644))
	require.NoError(t, m.DumpToDisk(out))

	copyDB, err := GetSqliteDB(out)
	require.NoError(t, err)
	sqlDB, err := copyDB.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var w widget
	require.NoError(t, copyDB.First(&w).Error)
	assert.Equal(t, "dumped", w.Name)
}

func TestDumpSqliteToDisk_NoPath(t *testing.T) {
	assert.Error(t, DumpSqliteToDisk(nil, ""))
}

func TestManager_CloseWithoutConnect(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.NoError(t, m.Close())
	assert.Equal(t, "", m.Dialect())
}
