package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/ecovest/internal/modules/initiatives"
)

// InitializeRepositories creates the repositories on top of the database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.InitiativeRepo = initiatives.NewRepository(container.DB.Conn(), log)
	return nil
}
