package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

type PostgresDB struct {
	Conn *sqlx.DB
}

func NewPostgresDB(host string, port int, user, password, dbname string, logger *zap.Logger) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("✅ Connected to PostgreSQL", zap.String("database", dbname))
	return &PostgresDB{Conn: conn}, nil
}

// Migrate applies the embedded goose migrations.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, db, "up")
}

// RunMigrations runs any goose command ("up", "down", "status", ...) against the embedded migrations.
func RunMigrations(ctx context.Context, db *PostgresDB, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db.Conn.DB, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	return db.Conn.Close()
}
