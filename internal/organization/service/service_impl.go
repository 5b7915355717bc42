package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/ndpcatalog/internal/account/domain"
	obslogger "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	"github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/internal/remotecatalog"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
	Remote remotecatalog.API
	GenID  *snowflake.Node
}

type service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	remote remotecatalog.API
	genID  *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &service{
		db:     p.DB,
		log:    p.Log.Named("organization.service"),
		repo:   p.Repo,
		remote: p.Remote,
		genID:  p.GenID,
	}
}

func (s *service) EnsureLocal(ctx context.Context, account *accountdomain.Account, titleOrSlug string) (*domain.Organization, error) {
	if account == nil || account.ID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	title := strings.TrimSpace(titleOrSlug)
	name := domain.Slugify(title)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	// rendered datasets carry owner_org as an id; reuse that org as is
	existing, err := s.FindByIDOrName(ctx, title)
	switch {
	case errors.Is(err, domain.ErrOrganizationNotFound):
		existing = nil
	case err != nil:
		return nil, err
	}

	var org *domain.Organization
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now().UTC()
		if existing != nil {
			org = existing
			return repo.UpsertMember(ctx, domain.Member{
				ID:        s.genID.Generate(),
				OrgID:     existing.ID,
				AccountID: account.ID,
				Capacity:  domain.CapacityEditor,
				CreatedAt: now,
			})
		}

		if err := repo.CreateIfAbsent(ctx, domain.Organization{
			ID:             s.genID.Generate(),
			Name:           name,
			Title:          title,
			Description:    domain.AutoDescription,
			Type:           domain.TypeOrganization,
			IsOrganization: true,
			State:          domain.StateActive,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		found, err := repo.FindByName(ctx, name)
		if err != nil {
			return err
		}

		if err := repo.UpsertMember(ctx, domain.Member{
			ID:        s.genID.Generate(),
			OrgID:     found.ID,
			AccountID: account.ID,
			Capacity:  domain.CapacityEditor,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		org = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return org, nil
}

func (s *service) EnsureRemote(ctx context.Context, user *remotecatalog.User, org *domain.Organization) (*remotecatalog.Organization, error) {
	if user == nil || org == nil {
		return nil, domain.ErrInvalidName
	}
	log := obslogger.WithContext(ctx, s.log)

	remoteOrg, err := s.remote.ShowOrganization(ctx, org.Name)
	switch {
	case err == nil:
	case remotecatalog.IsNotFound(err):
		remoteOrg, err = s.remote.CreateOrganization(ctx, remotecatalog.CreateOrganizationRequest{
			Name:        org.Name,
			Title:       org.Title,
			Description: org.Description,
		})
		if err != nil {
			return nil, remotecatalog.Classify(remotecatalog.ErrRemoteCreate, err)
		}
		log.Info("provisioned remote organization",
			zap.String("name", org.Name),
			zap.String("remote_id", remoteOrg.ID),
		)
	default:
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteLookup, err)
	}

	if err := s.remote.AddMember(ctx, remoteOrg.ID, user.Name, remotecatalog.RoleEditor); err != nil {
		return nil, remotecatalog.Classify(remotecatalog.ErrRemoteMembership, err)
	}

	return remoteOrg, nil
}

// FindByIDOrName accepts either a snowflake id or an organization name.
func (s *service) FindByIDOrName(ctx context.Context, ref string) (*domain.Organization, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrOrganizationNotFound
	}
	if id, err := snowflake.ParseString(ref); err == nil && id > 0 {
		org, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, err
		}
	}
	return s.repo.FindByName(ctx, ref)
}

func (s *service) IsMember(ctx context.Context, orgID, accountID snowflake.ID) (bool, error) {
	capacities, err := s.repo.ListCapacities(ctx, orgID, accountID)
	if err != nil {
		return false, err
	}
	return len(capacities) > 0, nil
}

func (s *service) IsEditor(ctx context.Context, orgID, accountID snowflake.ID) (bool, error) {
	capacities, err := s.repo.ListCapacities(ctx, orgID, accountID)
	if err != nil {
		return false, err
	}
	for _, c := range capacities {
		if c == domain.CapacityEditor || c == domain.CapacityAdmin {
			return true, nil
		}
	}
	return false, nil
}
