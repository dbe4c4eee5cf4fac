package migration

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/astrogeo/backend/internal/database"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.Open(&database.Config{
		Driver:       "sqlite",
		DatabaseURL:  "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		ForeignKeys:  true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunMigrations_CreatesSchema(t *testing.T) {
	db := openSQLite(t)
	runner := NewRunner(db, Files(), quietLogger())

	require.NoError(t, runner.RunMigrations(context.Background()))

	for _, table := range []string{"users", "query_logs", "api_usage", "feedback", "schema_migrations"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("users", "idx_users_username"))
	assert.True(t, db.Migrator().HasIndex("feedback", "idx_feedback_query_log_id"))
	assert.True(t, db.Migrator().HasConstraint("feedback", "chk_feedback_rating"))

	// Re-running is a no-op.
	require.NoError(t, runner.RunMigrations(context.Background()))
}

func TestRunMigrations_AppliesDialectFilesOnce(t *testing.T) {
	db := openSQLite(t)
	files := fstest.MapFS{
		"sqlite/001_views.sql": &fstest.MapFile{Data: []byte(`
-- open feedback; semicolons in 'quoted; text' must not split
CREATE VIEW open_feedback AS SELECT id, 'a;b' AS marker FROM feedback WHERE is_resolved = 0;
`)},
		"sqlite/README.md":       &fstest.MapFile{Data: []byte("not sql")},
		"postgres/001_other.sql": &fstest.MapFile{Data: []byte("THIS WOULD FAIL ON SQLITE;")},
	}
	runner := NewRunner(db, files, quietLogger())

	require.NoError(t, runner.RunMigrations(context.Background()))
	require.NoError(t, runner.RunMigrations(context.Background()))

	var names []string
	require.NoError(t, db.Model(&schemaMigration{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"sqlite/001_views.sql"}, names)

	var count int64
	require.NoError(t, db.Table("open_feedback").Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunMigrations_FailedFileIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	files := fstest.MapFS{
		"sqlite/001_bad.sql": &fstest.MapFile{Data: []byte("CREATE TABLE ok_table (id INTEGER); NOT VALID SQL;")},
	}
	runner := NewRunner(db, files, quietLogger())

	err := runner.RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite/001_bad.sql")

	var count int64
	require.NoError(t, db.Model(&schemaMigration{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.False(t, db.Migrator().HasTable("ok_table"))
}

func TestSplitSQLStatements(t *testing.T) {
	embeddedSQL, err := Files().Open("postgres/001_set_updated_at.sql")
	require.NoError(t, err)
	content, err := io.ReadAll(embeddedSQL)
	require.NoError(t, err)

	statements := splitSQLStatements(string(content))
	require.Len(t, statements, 5)
	assert.Contains(t, statements[0], "CREATE OR REPLACE FUNCTION set_updated_at()")
	assert.Contains(t, statements[0], "RETURN NEW;")
	assert.Contains(t, statements[0], "LANGUAGE plpgsql")
	assert.Contains(t, statements[2], "trg_users_updated_at")

	assert.Equal(t, []string{"SELECT 'x;y'", "SELECT 2"}, splitSQLStatements("SELECT 'x;y'; -- c;\nSELECT 2;"))
	assert.Empty(t, splitSQLStatements("-- only a comment\n"))
}
