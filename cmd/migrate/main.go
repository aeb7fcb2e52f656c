// Command migrate applies or inspects the embedded schema migrations.
//
//	migrate up | down | status | version | redo | reset
package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/config"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/observability"
)

func main() {
	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	cfg := config.LoadFor("migrate", 0)
	logger := observability.NewLogger(cfg.ServiceName, cfg.LogLevel, false)
	defer func() { _ = logger.Sync() }()

	database, err := db.NewPostgresDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(context.Background(), database, command, args...); err != nil {
		logger.Error("❌ Migration failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("✅ Migration finished", zap.String("command", command))
}
