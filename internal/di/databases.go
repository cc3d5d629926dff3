package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/config"
	"github.com/aristath/ecovest/internal/database"
)

// InitializeDatabases opens the ecovest database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileStandard,
		Name:    "ecovest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ecovest database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ecovest database: %w", err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized")
	return &Container{DB: db}, nil
}
