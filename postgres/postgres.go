package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/SubhajL/online-trading-sub001/log"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var (
	// ErrNotConnected indicates use of the connection before Connect.
	ErrNotConnected = errors.New("postgres: not connected")

	dbOpenFn = sql.Open

	createResolverFn = func(primaryDB, replicaDB *sql.DB) (_ dbresolver.DB, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("failed to create resolver: %v", recovered)
			}
		}()

		resolved := dbresolver.New(
			dbresolver.WithPrimaryDBs(primaryDB),
			dbresolver.WithReplicaDBs(replicaDB),
			dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
		)

		if resolved == nil {
			return nil, errors.New("resolver returned nil connection")
		}

		return resolved, nil
	}

	runMigrationsFn = runMigrations

	credentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	passwordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
	dbNamePattern      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Connection manages the primary/replica PostgreSQL pair. The replica DSN
// may equal the primary's for single-node deployments; writes and
// transactions always go to the primary.
type Connection struct {
	PrimaryDSN           string
	ReplicaDSN           string
	DatabaseName         string
	MigrationsPath       string
	AllowMultiStatements bool
	Logger               log.Logger
	MaxOpenConnections   int
	MaxIdleConnections   int

	mu        sync.RWMutex
	resolver  dbresolver.DB
	primaryDB *sql.DB
	connected bool
}

func (c *Connection) initDefaults() {
	if c.Logger == nil {
		c.Logger = &log.NoneLogger{}
	}

	if c.ReplicaDSN == "" {
		c.ReplicaDSN = c.PrimaryDSN
	}

	if c.MaxOpenConnections <= 0 {
		c.MaxOpenConnections = defaultMaxOpenConns
	}

	if c.MaxIdleConnections <= 0 {
		c.MaxIdleConnections = defaultMaxIdleConns
	}
}

// Connect opens both native pools, runs migrations against the primary, and
// pings through the resolver. Safe to call again after a failure; a call on
// a live connection reconnects.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	c.initDefaults()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before database connection: %w", err)
	}

	if c.resolver != nil {
		if err := c.closeLocked(); err != nil {
			c.Logger.Warnf("failed to close previous connection before reconnect: %v", err)
		}
	}

	c.Logger.Info("Connecting to primary and replica databases...")

	primaryDB, err := dbOpenFn("pgx", c.PrimaryDSN)
	if err != nil {
		sanitized := sanitizeSensitiveError(err)
		c.Logger.Errorf("failed to connect to primary database: %s", sanitized)

		return fmt.Errorf("failed to connect to primary database: %s", sanitized)
	}

	var success bool

	defer func() {
		if !success {
			primaryDB.Close()
		}
	}()

	tunePool(primaryDB, c.MaxOpenConnections, c.MaxIdleConnections)

	replicaDB, err := dbOpenFn("pgx", c.ReplicaDSN)
	if err != nil {
		sanitized := sanitizeSensitiveError(err)
		c.Logger.Errorf("failed to connect to replica database: %s", sanitized)

		return fmt.Errorf("failed to connect to replica database: %s", sanitized)
	}

	defer func() {
		if !success {
			replicaDB.Close()
		}
	}()

	tunePool(replicaDB, c.MaxOpenConnections, c.MaxIdleConnections)

	resolver, err := createResolverFn(primaryDB, replicaDB)
	if err != nil {
		c.Logger.Errorf("failed to create resolver: %v", err)
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	if c.MigrationsPath != "" {
		migrationsPath, pathErr := sanitizePath(c.MigrationsPath)
		if pathErr != nil {
			c.Logger.Errorf("failed to resolve migrations path: %v", pathErr)
			return pathErr
		}

		if err := runMigrationsFn(primaryDB, migrationsPath, c.DatabaseName, c.AllowMultiStatements, c.Logger); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before ping: %w", err)
	}

	if err := resolver.PingContext(ctx); err != nil {
		c.Logger.Errorf("failed to ping database: %v", err)
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.resolver = resolver
	c.primaryDB = primaryDB
	c.connected = true
	success = true

	c.Logger.Info("Connected to postgres")

	return nil
}

// Resolver returns the primary/replica resolver, connecting lazily if
// needed.
func (c *Connection) Resolver(ctx context.Context) (dbresolver.DB, error) {
	c.mu.RLock()

	if c.resolver != nil {
		resolver := c.resolver
		c.mu.RUnlock()

		return resolver, nil
	}

	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if c.resolver != nil {
		return c.resolver, nil
	}

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	return c.resolver, nil
}

// PrimaryDB returns the primary's native pool. Writes and transactions must
// use it: the resolver would round-robin reads to replicas.
func (c *Connection) PrimaryDB() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.primaryDB == nil {
		return nil, ErrNotConnected
	}

	return c.primaryDB, nil
}

// IsConnected reports whether the resolver is initialized.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

// Close releases both native pools.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.resolver == nil {
		return nil
	}

	err := c.resolver.Close()
	c.resolver = nil
	c.primaryDB = nil
	c.connected = false

	return err
}

func tunePool(db *sql.DB, maxOpen, maxIdle int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

// sanitizeSensitiveError scrubs credentials from driver errors before they
// reach logs (connection strings embed passwords).
func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := credentialsPattern.ReplaceAllString(err.Error(), "://***@")
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}***")

	return sanitized
}

// sanitizePath rejects traversal segments and resolves to an absolute path.
func sanitizePath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("invalid migrations path: %q", path)
		}
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	return absPath, nil
}

func validateDBName(name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("invalid database name: %q", name)
	}

	return nil
}

func runMigrations(primaryDB *sql.DB, migrationsPath, databaseName string, allowMultiStatements bool, logger log.Logger) error {
	if err := validateDBName(databaseName); err != nil {
		logger.Errorf("invalid database name: %v", err)
		return err
	}

	sourceURL, err := url.Parse(filepath.ToSlash(migrationsPath))
	if err != nil {
		logger.Errorf("failed to parse migrations url: %v", err)
		return fmt.Errorf("failed to parse migrations url: %w", err)
	}

	sourceURL.Scheme = "file"

	driver, err := migratepg.WithInstance(primaryDB, &migratepg.Config{
		MultiStatementEnabled: allowMultiStatements,
		DatabaseName:          databaseName,
		SchemaName:            "public",
	})
	if err != nil {
		logger.Errorf("failed to create postgres driver instance: %v", err)
		return fmt.Errorf("failed to create postgres driver instance: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL.String(), databaseName, driver)
	if err != nil {
		logger.Errorf("failed to get migrations: %v", err)
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No new migrations found. Skipping...")
			return nil
		}

		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("No migration files found. Skipping migration step...")
			return nil
		}

		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			logger.Errorf("Migration failed with dirty version %d", dirtyErr.Version)
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}

		logger.Errorf("Migration failed: %v", err)

		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
