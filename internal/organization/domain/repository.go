package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// CreateIfAbsent inserts org unless its name is already taken.
	CreateIfAbsent(ctx context.Context, org Organization) error
	FindByName(ctx context.Context, name string) (*Organization, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	// UpsertMember inserts the membership row, ignoring an identical existing row.
	UpsertMember(ctx context.Context, member Member) error
	ListCapacities(ctx context.Context, orgID, accountID snowflake.ID) ([]string, error)
}
