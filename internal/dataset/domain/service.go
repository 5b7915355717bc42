package domain

import (
	"context"

	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
)

const MaxRows = 1000

// ActionContext carries the acting account into catalog actions.
// IgnoreAuth skips every authorization check and is reserved for internal workflows.
type ActionContext struct {
	Account    *accountdomain.Account
	IgnoreAuth bool
}

type SearchRequest struct {
	// Q accepts "creator_user_id:<id>", "owner_org:<id or name>" or free text.
	Q    string
	Rows int
}

type SearchResult struct {
	Count   int64  `json:"count"`
	Results []Dict `json:"results"`
}

type Service interface {
	Create(ctx context.Context, actx ActionContext, data Dict) (Dict, error)
	Update(ctx context.Context, actx ActionContext, data Dict) (Dict, error)
	Delete(ctx context.Context, actx ActionContext, id string) error
	Purge(ctx context.Context, actx ActionContext, id string) error
	Show(ctx context.Context, actx ActionContext, id string) (Dict, error)
	Search(ctx context.Context, actx ActionContext, req SearchRequest) (*SearchResult, error)
}
