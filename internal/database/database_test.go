package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID  int `gorm:"primaryKey"`
	Tag int
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host: "db", Port: "5433", Username: "sim", Password: "pw", Database: "traffic",
	})
	assert.Equal(t, "host=db port=5433 user=sim password=pw dbname=traffic sslmode=disable", dsn)
}

func TestOpenSqlite_MemoryIsPrivate(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, a.AutoMigrate(&row{}))
	assert.True(t, a.Migrator().HasTable(&row{}))
	assert.False(t, b.Migrator().HasTable(&row{}))
}

func TestVacuumInto_ReplacesTarget(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	require.NoError(t, db.Create(&row{ID: 1, Tag: 20}).Error)

	path := filepath.Join(t.TempDir(), "run.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, VacuumInto(db, path))
	require.NoError(t, db.Create(&row{ID: 2, Tag: 21}).Error)
	require.NoError(t, VacuumInto(db, path))

	copied, err := OpenSqlite(path)
	require.NoError(t, err)
	var n int64
	require.NoError(t, copied.Model(&row{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file left behind")
}

func TestVacuumInto_NeedsPath(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	assert.Error(t, VacuumInto(db, ""))
}
