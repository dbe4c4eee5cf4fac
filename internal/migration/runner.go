// Migration runner
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/astrogeo/backend/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed sql
var embedded embed.FS

// Files is the bundled SQL tree. It has one directory per gorm dialect
// ("postgres", "sqlite"); a dialect without a directory has no SQL steps.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Models lists every table the application owns, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.QueryLog{},
		&models.APIUsageRecord{},
		&models.Feedback{},
	}
}

// schemaMigration records a SQL file that has been applied.
type schemaMigration struct {
	Name      string    `gorm:"primaryKey;size:255"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

type Runner struct {
	db     *gorm.DB
	files  fs.FS
	logger *logrus.Logger
}

func NewRunner(db *gorm.DB, files fs.FS, logger *logrus.Logger) *Runner {
	return &Runner{
		db:     db,
		files:  files,
		logger: logger,
	}
}

// RunMigrations executes all pending migrations
func (r *Runner) RunMigrations(ctx context.Context) error {
	r.logger.Info("Starting database migrations...")

	db := r.db.WithContext(ctx)

	// First run GORM auto-migrations
	if err := db.AutoMigrate(append(Models(), &schemaMigration{})...); err != nil {
		return fmt.Errorf("GORM auto-migration failed: %w", err)
	}

	// Then run SQL migrations for this dialect
	if err := r.runSQLMigrations(db, r.db.Dialector.Name()); err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

func (r *Runner) runSQLMigrations(db *gorm.DB, dialect string) error {
	entries, err := fs.ReadDir(r.files, dialect)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.WithField("dialect", dialect).Debug("No SQL migrations for dialect")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// fs.ReadDir sorts by name, which is the run order.
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := path.Join(dialect, entry.Name())

		var applied int64
		if err := db.Model(&schemaMigration{}).Where("name = ?", name).Count(&applied).Error; err != nil {
			return err
		}
		if applied > 0 {
			r.logger.WithField("file", name).Debug("Migration already applied")
			continue
		}

		if err := r.runSQLFile(db, name); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", name, err)
		}
		r.logger.WithField("file", name).Info("Migration executed successfully")
	}

	return nil
}

// runSQLFile applies one file and records it in the same transaction.
func (r *Runner) runSQLFile(db *gorm.DB, name string) error {
	content, err := fs.ReadFile(r.files, name)
	if err != nil {
		return err
	}

	statements := splitSQLStatements(string(content))
	return db.Transaction(func(tx *gorm.DB) error {
		for i, stmt := range statements {
			r.logger.WithFields(logrus.Fields{
				"file":      name,
				"statement": i + 1,
			}).Debug("Executing SQL statement")

			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return tx.Create(&schemaMigration{Name: name, AppliedAt: tx.NowFunc()}).Error
	})
}

// splitSQLStatements splits on semicolons that are outside quotes,
// dollar-quoted bodies and -- comments. Comments are dropped.
func splitSQLStatements(sql string) []string {
	var (
		result   []string
		current  strings.Builder
		inQuote  bool
		inDollar bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			result = append(result, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case !inQuote && !inDollar && c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
		case !inQuote && c == '$' && i+1 < len(sql) && sql[i+1] == '$':
			inDollar = !inDollar
			current.WriteString("$$")
			i++
		case !inDollar && c == '\'':
			inQuote = !inQuote
			current.WriteByte(c)
		case !inQuote && !inDollar && c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return result
}
