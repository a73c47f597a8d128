package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/auvmap/analyzer/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotConnected is returned by operations that need an open database.
var ErrNotConnected = errors.New("database not connected")

// Manager handles database connections and operations.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger

	inMemory bool
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// PostgresDSN builds a DSN from the db.* config keys.
func PostgresDSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}

// ConnectPostgres opens and pings a Postgres connection.
func (m *Manager) ConnectPostgres(dsn string) error {
	m.Logger.Debug().Str("host", viper.GetString("db.host")).Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	m.SqlDB, err = db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = m.SqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.SqlDB.SetMaxOpenConns(10)
	m.DB = db

	m.Logger.Info().Msg("Connected to database")
	return nil
}

// ConnectSqlite opens a SQLite database at path. An empty path opens a
// private in-memory database that can be written out with DumpMemoryToDisk.
func (m *Manager) ConnectSqlite(path string) error {
	dsn := path
	if path == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		m.inMemory = true
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}

	m.SqlDB, err = db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	// one connection keeps the PRAGMAs and the in-memory database alive
	m.SqlDB.SetMaxOpenConns(1)

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	m.DB = db

	if m.inMemory {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return nil
}

// Migrate creates or updates the report schema.
func (m *Manager) Migrate() error {
	if m.DB == nil {
		return ErrNotConnected
	}
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the database into a file at path, replacing any
// existing file.
func (m *Manager) DumpMemoryToDisk(path string) error {
	if m.DB == nil {
		return ErrNotConnected
	}
	if path == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	// remove existing file if it exists
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	quoted := strings.ReplaceAll(path, "'", "''")
	if err := m.DB.Exec("VACUUM INTO 'file:" + quoted + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}

// InMemory reports whether the connection is a private in-memory database.
func (m *Manager) InMemory() bool {
	return m.inMemory
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.SqlDB = nil
	m.DB = nil
	return err
}
