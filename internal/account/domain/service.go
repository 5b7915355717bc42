package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
)

// Service resolves callers to staging accounts and creators to production users.
type Service interface {
	// ResolveLocal verifies the Authorization header and returns the matching
	// account, creating it on first sight.
	ResolveLocal(ctx context.Context, authorization string) (*Account, error)
	// ResolveRemote finds or creates the production user for a staging account.
	ResolveRemote(ctx context.Context, name, email, fullname string) (*remotecatalog.User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
}
