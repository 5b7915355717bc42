package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SearchFilter struct {
	CreatorUserID *snowflake.ID
	OwnerOrg      *snowflake.ID
	Text          string
	// Viewer limits private datasets to those the account created or whose
	// organization it belongs to. Nil means no restriction.
	Viewer *snowflake.ID
	Limit  int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ds *Dataset) error
	Save(ctx context.Context, ds *Dataset) error
	ReplaceResources(ctx context.Context, datasetID snowflake.ID, resources []Resource) error
	FindByID(ctx context.Context, id snowflake.ID) (*Dataset, error)
	FindByName(ctx context.Context, name string) (*Dataset, error)
	SetState(ctx context.Context, id snowflake.ID, state string) error
	Purge(ctx context.Context, id snowflake.ID) error
	Search(ctx context.Context, filter SearchFilter) ([]Dataset, int64, error)
}
