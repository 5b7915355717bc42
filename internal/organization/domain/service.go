package domain

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
)

type Service interface {
	// EnsureLocal finds or creates the organization named by titleOrSlug and
	// makes account an editor of it.
	EnsureLocal(ctx context.Context, account *accountdomain.Account, titleOrSlug string) (*Organization, error)
	// EnsureRemote mirrors org into the production catalog and grants user editor on it.
	EnsureRemote(ctx context.Context, user *remotecatalog.User, org *Organization) (*remotecatalog.Organization, error)
	FindByIDOrName(ctx context.Context, ref string) (*Organization, error)
	IsMember(ctx context.Context, orgID, accountID snowflake.ID) (bool, error)
	IsEditor(ctx context.Context, orgID, accountID snowflake.ID) (bool, error)
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrOrganizationNotFound = errors.New("organization_not_found")
)

const (
	maxNameLength = 100
	minNameLength = 2
)

var disallowedNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Slugify normalizes a title into an organization name.
// "Research Group" becomes "research-group".
func Slugify(title string) string {
	name := slug.Make(strings.TrimSpace(title))
	name = disallowedNameChars.ReplaceAllString(strings.ToLower(name), "")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "" {
		return ""
	}
	for len(name) < minNameLength {
		name += "_"
	}
	return name
}
