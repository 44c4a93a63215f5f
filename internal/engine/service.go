package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"dmastore/internal/observability"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// DriverName is the database/sql driver registered by duckdb-go
const DriverName = "duckdb"

var sqlOpen = sql.Open

// Service provides DuckDB operations over database/sql
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	logger    *observability.Logger
}

// Config holds engine connection configuration
type Config struct {
	Database    string // empty opens an in-memory database
	Threads     int
	MemoryLimit string
	Timeout     time.Duration
}

// Connector opens a ready-to-use engine. Callers own the returned Service
// and must Close it.
type Connector func(ctx context.Context) (*Service, error)

// ConfigFromModel converts the file configuration into an engine Config
func ConfigFromModel(m models.EngineConfig) (Config, error) {
	cfg := Config{
		Database:    m.Database,
		Threads:     m.Threads,
		MemoryLimit: m.MemoryLimit,
	}
	if strings.TrimSpace(m.Timeout) != "" {
		d, err := time.ParseDuration(m.Timeout)
		if err != nil {
			return Config{}, errors.ConfigError(fmt.Sprintf("engine.timeout %q is not a duration", m.Timeout), "engine.timeout")
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// NewService creates a new, unconnected engine service
func NewService(config Config) *Service {
	return &Service{
		config: config,
		logger: observability.GetDefaultLogger(),
	}
}

// NewFromDB wraps an already-open handle. Used for tests and embedding.
func NewFromDB(db *sql.DB, config Config) *Service {
	s := NewService(config)
	s.db = db
	s.connected = true
	return s
}

// NewConnector returns a Connector that opens a fresh Service per call
func NewConnector(config Config) Connector {
	return func(ctx context.Context) (*Service, error) {
		s := NewService(config)
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// WithLogger sets the logger used for statement tracing
func (s *Service) WithLogger(logger *observability.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Open opens the database and applies engine settings
func (s *Service) Open(ctx context.Context) error {
	if s.connected {
		return nil
	}

	db, err := sqlOpen(DriverName, s.config.Database)
	if err != nil {
		return errors.EngineError("Failed to open DuckDB", err).
			WithContext("database", s.databaseLabel())
	}

	// One connection keeps in-memory state and settings on a single session
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connCtx, cancel := s.getContext(ctx)
	defer cancel()

	if err := db.PingContext(connCtx); err != nil {
		db.Close()
		return errors.EngineError("Failed to connect to DuckDB", err).
			WithContext("database", s.databaseLabel())
	}

	for _, stmt := range s.settings() {
		if _, err := db.ExecContext(connCtx, stmt); err != nil {
			db.Close()
			return errors.EngineError("Failed to apply engine setting", err).
				WithContext("statement", stmt)
		}
	}

	s.db = db
	s.connected = true
	s.logger.DebugWithFields("engine opened", map[string]interface{}{
		"database": s.databaseLabel(),
		"threads":  s.config.Threads,
	})
	return nil
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}
	return nil
}

// Exec runs a single statement
func (s *Service) Exec(ctx context.Context, stmt string) error {
	if !s.connected {
		return notConnected()
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.SQLError("Failed to execute statement", stmt, err)
	}
	s.logger.DebugWithFields("statement executed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"statement":   firstLine(stmt),
	})
	return nil
}

// Query runs a query and returns its rows. The caller closes the rows.
func (s *Service) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if !s.connected {
		return nil, notConnected()
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute query", query, err)
	}
	return rows, nil
}

// QueryInt runs a query returning a single integer, e.g. a COUNT(*)
func (s *Service) QueryInt(ctx context.Context, query string) (int64, error) {
	if !s.connected {
		return 0, notConnected()
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, errors.SQLError("Failed to execute query", query, err)
	}
	return n.Int64, nil
}

// DB returns the underlying database handle
func (s *Service) DB() *sql.DB {
	return s.db
}

// Connected reports whether the service holds an open handle
func (s *Service) Connected() bool {
	return s.connected
}

// Helper methods

func (s *Service) getContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

func (s *Service) settings() []string {
	var stmts []string
	if s.config.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", s.config.Threads))
	}
	if limit := strings.TrimSpace(s.config.MemoryLimit); limit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = '%s'", strings.ReplaceAll(limit, "'", "''")))
	}
	return stmts
}

func (s *Service) databaseLabel() string {
	if s.config.Database == "" {
		return ":memory:"
	}
	return s.config.Database
}

func notConnected() error {
	return errors.New(errors.ErrCodeNotConnected, "Not connected to engine").
		WithSuggestions("Call Open() before executing statements")
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i] + " ..."
	}
	return stmt
}
