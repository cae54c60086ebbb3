package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kinetrace/labeller/internal/model"
)

// Manager handles the label database connection and schema lifecycle.
// The connection is exclusively owned by one annotation session at a time.
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect establishes a database connection according to the configured
// driver. A failed Postgres connection falls back to the local SQLite file
// so annotation work is never blocked by a lab server being down.
func (m *Manager) Connect() error {
	var err error

	if viper.GetString("db.driver") == "postgres" {
		m.DB, err = GetPostgresDB()
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, falling back to SQLite")
		}
	}

	if m.DB == nil {
		m.DB, err = GetSqliteDB(viper.GetString("db.file"))
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to open local SQLite DB: %s", err)
		}
	}

	// test connection
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %s", err)
	}

	if err = m.SqlDB.Ping(); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to validate connection: %s", err)
	}

	// single-writer annotation tool
	m.SqlDB.SetMaxOpenConns(1)

	m.IsValid = true
	m.Logger.Info().Msg("Connected to database")
	return nil
}

// Close releases the underlying connection.
func (m *Manager) Close() error {
	m.IsValid = false
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// Setup migrates the schema and seeds the reference tables when empty.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return fmt.Errorf("database not connected")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %s", err)
	}

	if err := seedReferenceData(m.DB); err != nil {
		m.IsValid = false
		return err
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// seedReferenceData inserts the default landmark, event and camera rows.
// Tables that already hold rows are left alone so a site can customize the
// landmark set without it being overwritten on the next start.
func seedReferenceData(db *gorm.DB) error {
	var count int64

	if err := db.Model(&model.Landmark{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to inspect landmarks table: %s", err)
	}
	if count == 0 {
		if err := db.Create(&model.DefaultLandmarks).Error; err != nil {
			return fmt.Errorf("failed to seed landmarks: %s", err)
		}
	}

	if err := db.Model(&model.Event{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to inspect events table: %s", err)
	}
	if count == 0 {
		if err := db.Create(&model.DefaultEvents).Error; err != nil {
			return fmt.Errorf("failed to seed events: %s", err)
		}
	}

	if err := db.Model(&model.Camera{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to inspect cameras table: %s", err)
	}
	if count == 0 {
		if err := db.Create(&model.DefaultCameras).Error; err != nil {
			return fmt.Errorf("failed to seed cameras: %s", err)
		}
	}

	return nil
}

// GetPostgresDB returns a connection to the Postgres database using viper config.
func GetPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database file.
// If path is empty, an in-memory database is used (tests).
func GetSqliteDB(path string) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}
