package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
)

func isSysadmin(actx domain.ActionContext) bool {
	return actx.Account != nil && actx.Account.Sysadmin
}

func isCreator(actx domain.ActionContext, ds *domain.Dataset) bool {
	return actx.Account != nil && actx.Account.ID == ds.CreatorUserID
}

func (s *service) canSeeDeleted(actx domain.ActionContext, ds *domain.Dataset) bool {
	return actx.IgnoreAuth || isSysadmin(actx) || isCreator(actx, ds)
}

// requireEditor checks that the actor may place datasets in orgID.
func (s *service) requireEditor(ctx context.Context, actx domain.ActionContext, orgID snowflake.ID) error {
	if actx.IgnoreAuth || isSysadmin(actx) {
		return nil
	}
	if actx.Account == nil {
		return domain.ErrNotAuthorized
	}
	ok, err := s.orgs.IsEditor(ctx, orgID, actx.Account.ID)
	if err != nil {
		return localErr(err)
	}
	if !ok {
		return domain.ErrNotAuthorized
	}
	return nil
}

// requireEdit allows the creator, an editor of the owning organization or a sysadmin.
func (s *service) requireEdit(ctx context.Context, actx domain.ActionContext, ds *domain.Dataset) error {
	if actx.IgnoreAuth || isSysadmin(actx) || isCreator(actx, ds) {
		return nil
	}
	if actx.Account == nil || ds.OwnerOrg == nil {
		return domain.ErrNotAuthorized
	}
	return s.requireEditor(ctx, actx, *ds.OwnerOrg)
}

func (s *service) canRead(ctx context.Context, actx domain.ActionContext, ds *domain.Dataset) (bool, error) {
	if actx.IgnoreAuth || isSysadmin(actx) || isCreator(actx, ds) {
		return true, nil
	}
	if actx.Account == nil || ds.OwnerOrg == nil {
		return false, nil
	}
	ok, err := s.orgs.IsMember(ctx, *ds.OwnerOrg, actx.Account.ID)
	if err != nil {
		return false, localErr(err)
	}
	return ok, nil
}
