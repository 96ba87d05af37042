package repositories

import (
	"context"

	"github.com/kangban/companion/domain/entities"
)

// SettingsStore holds the caregiver-editable configuration document.
type SettingsStore interface {
	// Snapshot returns a copy safe to use for one request while the
	// caregiver panel may be rewriting the live document.
	Snapshot() entities.Settings
	// Save replaces the document wholesale and persists it.
	Save(settings entities.Settings) error
}

// InteractionRepository defines data access for the conversation audit log.
type InteractionRepository interface {
	Create(ctx context.Context, interaction *entities.Interaction) error
	ListRecent(ctx context.Context, limit int) ([]*entities.Interaction, error)
}
