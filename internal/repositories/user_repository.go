package repositories

import (
	"context"

	"github.com/testing-system/testing-service/internal/models"
)

// UserRepository interface for the minimal account rows the core keeps.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
