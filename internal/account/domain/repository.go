package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *Account) error
	FindByName(ctx context.Context, name string) (*Account, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
}
