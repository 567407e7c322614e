package database

import (
	"github.com/shadowdev/shadowbot/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	ticket        *models.TicketModel
	configuration *models.ConfigurationModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		ticket:        models.NewTicket(db, logger),
		configuration: models.NewConfiguration(db, logger),
	}
}

// Ticket returns the ticket model repository.
func (r *Repository) Ticket() *models.TicketModel {
	return r.ticket
}

// Configuration returns the configuration model repository.
func (r *Repository) Configuration() *models.ConfigurationModel {
	return r.configuration
}

// TicketStore combines the models the ticket system persists through.
type TicketStore struct {
	*models.TicketModel
	*models.ConfigurationModel
}

// TicketStore returns the ticket and configuration models as one store.
func (r *Repository) TicketStore() *TicketStore {
	return &TicketStore{
		TicketModel:        r.ticket,
		ConfigurationModel: r.configuration,
	}
}
