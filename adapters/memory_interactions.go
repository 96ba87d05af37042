package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kangban/companion/domain/entities"
	"github.com/kangban/companion/domain/repositories"
)

const memoryLogCapacity = 500

// MemoryInteractionRepository is an in-memory implementation of
// InteractionRepository, used when no Mongo URI is configured. It keeps a
// bounded window of recent interactions.
type MemoryInteractionRepository struct {
	mu  sync.RWMutex
	log []*entities.Interaction
}

var _ repositories.InteractionRepository = (*MemoryInteractionRepository)(nil)

// NewMemoryInteractionRepository creates an empty in-memory audit log.
func NewMemoryInteractionRepository() *MemoryInteractionRepository {
	return &MemoryInteractionRepository{}
}

func (m *MemoryInteractionRepository) Create(ctx context.Context, interaction *entities.Interaction) error {
	if err := interaction.Validate(); err != nil {
		return err
	}
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, interaction)
	if len(m.log) > memoryLogCapacity {
		m.log = m.log[len(m.log)-memoryLogCapacity:]
	}
	return nil
}

// ListRecent returns up to limit interactions, newest first.
func (m *MemoryInteractionRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.log) {
		limit = len(m.log)
	}

	out := make([]*entities.Interaction, 0, limit)
	for i := len(m.log) - 1; i >= len(m.log)-limit; i-- {
		out = append(out, m.log[i])
	}
	return out, nil
}
