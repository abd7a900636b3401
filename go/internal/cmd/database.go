package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mcdev12/rankparty/go/internal/dbconfig"
	"github.com/mcdev12/rankparty/go/internal/schema"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	cfg.ApplyPool(database)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := schema.Apply(ctx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("database", cfg.Target()).Msg("connected to database")
	return database, nil
}
