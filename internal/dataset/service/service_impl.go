package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	obslogger "github.com/smallbiznis/ndpcatalog/internal/observability/logger"
	orgdomain "github.com/smallbiznis/ndpcatalog/internal/organization/domain"
	"github.com/smallbiznis/ndpcatalog/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRows = 10

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Orgs  orgdomain.Service
	GenID *snowflake.Node
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	orgs  orgdomain.Service
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("dataset.service"),
		repo:  p.Repo,
		orgs:  p.Orgs,
		genID: p.GenID,
	}
}

func (s *service) Create(ctx context.Context, actx domain.ActionContext, data domain.Dict) (domain.Dict, error) {
	if actx.Account == nil {
		return nil, domain.ErrNotAuthorized
	}

	name, err := datasetName(data, "")
	if err != nil {
		return nil, err
	}

	org, err := s.ownerOrg(ctx, data)
	if err != nil {
		return nil, err
	}
	if org != nil {
		if err := s.requireEditor(ctx, actx, org.ID); err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, domain.ErrNameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, localErr(err)
	}

	now := time.Now().UTC()
	extras, _ := extrasFrom(data)
	ds := &domain.Dataset{
		ID:               s.genID.Generate(),
		Name:             name,
		Title:            stringField(data, "title"),
		Notes:            stringField(data, "notes"),
		CreatorUserID:    actx.Account.ID,
		Private:          boolField(data, "private"),
		State:            domain.StateActive,
		Extras:           extras,
		CreatedAt:        now,
		MetadataModified: now,
	}
	if ds.Title == "" {
		ds.Title = name
	}
	if org != nil {
		ds.OwnerOrg = &org.ID
	}

	resources, _, err := resourcesFrom(data)
	if err != nil {
		return nil, err
	}
	ds.Resources = s.buildResources(ds.ID, resources, now)

	if err := s.repo.Create(ctx, ds); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, localErr(err)
	}

	obslogger.WithContext(ctx, s.log).Info("dataset created",
		zap.String("dataset_id", ds.ID.String()),
		zap.String("name", ds.Name),
	)
	return toDict(ds, org), nil
}

func (s *service) Update(ctx context.Context, actx domain.ActionContext, data domain.Dict) (domain.Dict, error) {
	ref := stringField(data, "id")
	if ref == "" {
		return nil, domain.ErrInvalidID
	}

	ds, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if ds.State == domain.StateDeleted && !s.canSeeDeleted(actx, ds) {
		return nil, domain.ErrNotFound
	}
	if err := s.requireEdit(ctx, actx, ds); err != nil {
		return nil, err
	}

	if hasKey(data, "name") {
		name, err := datasetName(data, ds.Name)
		if err != nil {
			return nil, err
		}
		if name != ds.Name {
			if _, err := s.repo.FindByName(ctx, name); err == nil {
				return nil, domain.ErrNameTaken
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, localErr(err)
			}
			ds.Name = name
		}
	}
	if hasKey(data, "title") {
		ds.Title = stringField(data, "title")
	}
	if hasKey(data, "notes") {
		ds.Notes = stringField(data, "notes")
	}
	if hasKey(data, "private") {
		ds.Private = boolField(data, "private")
	}
	if hasKey(data, "owner_org") {
		org, err := s.ownerOrg(ctx, data)
		if err != nil {
			return nil, err
		}
		if org == nil {
			ds.OwnerOrg = nil
		} else if ds.OwnerOrg == nil || *ds.OwnerOrg != org.ID {
			if err := s.requireEditor(ctx, actx, org.ID); err != nil {
				return nil, err
			}
			ds.OwnerOrg = &org.ID
		}
	}
	if extras, found := extrasFrom(data); found {
		ds.Extras = extras
	}

	resources, replace, err := resourcesFrom(data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ds.MetadataModified = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Save(ctx, ds); err != nil {
			return err
		}
		if replace {
			ds.Resources = s.buildResources(ds.ID, resources, now)
			if err := repo.ReplaceResources(ctx, ds.ID, ds.Resources); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, localErr(err)
	}

	return s.render(ctx, ds)
}

func (s *service) Delete(ctx context.Context, actx domain.ActionContext, id string) error {
	ds, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, actx, ds); err != nil {
		return err
	}
	if ds.State == domain.StateDeleted {
		return nil
	}
	if err := s.repo.SetState(ctx, ds.ID, domain.StateDeleted); err != nil {
		return localErr(err)
	}

	obslogger.WithContext(ctx, s.log).Info("dataset deleted", zap.String("dataset_id", ds.ID.String()))
	return nil
}

func (s *service) Purge(ctx context.Context, actx domain.ActionContext, id string) error {
	ds, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !actx.IgnoreAuth && !isSysadmin(actx) && !isCreator(actx, ds) {
		return domain.ErrNotAuthorized
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Purge(ctx, ds.ID)
	})
	if err != nil {
		return localErr(err)
	}

	obslogger.WithContext(ctx, s.log).Info("dataset purged", zap.String("dataset_id", ds.ID.String()))
	return nil
}

func (s *service) Show(ctx context.Context, actx domain.ActionContext, id string) (domain.Dict, error) {
	ds, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.State == domain.StateDeleted && !s.canSeeDeleted(actx, ds) {
		return nil, domain.ErrNotFound
	}
	if ds.Private {
		ok, err := s.canRead(ctx, actx, ds)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrNotAuthorized
		}
	}
	return s.render(ctx, ds)
}

func (s *service) Search(ctx context.Context, actx domain.ActionContext, req domain.SearchRequest) (*domain.SearchResult, error) {
	filter := domain.SearchFilter{Limit: req.Rows}
	if filter.Limit <= 0 {
		filter.Limit = defaultRows
	}
	if filter.Limit > domain.MaxRows {
		filter.Limit = domain.MaxRows
	}

	q := strings.TrimSpace(req.Q)
	switch {
	case strings.HasPrefix(q, "creator_user_id:"):
		id, err := snowflake.ParseString(strings.TrimSpace(strings.TrimPrefix(q, "creator_user_id:")))
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		filter.CreatorUserID = &id
	case strings.HasPrefix(q, "owner_org:"):
		org, err := s.orgs.FindByIDOrName(ctx, strings.TrimPrefix(q, "owner_org:"))
		if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
			return &domain.SearchResult{Results: []domain.Dict{}}, nil
		}
		if err != nil {
			return nil, localErr(err)
		}
		filter.OwnerOrg = &org.ID
	default:
		filter.Text = q
	}

	if !actx.IgnoreAuth && !isSysadmin(actx) {
		var viewer snowflake.ID
		if actx.Account != nil {
			viewer = actx.Account.ID
		}
		filter.Viewer = &viewer
	}

	items, count, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, localErr(err)
	}

	result := &domain.SearchResult{Count: count, Results: make([]domain.Dict, 0, len(items))}
	for i := range items {
		d, err := s.render(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, d)
	}
	return result, nil
}

// find resolves a dataset by snowflake id or name.
func (s *service) find(ctx context.Context, ref string) (*domain.Dataset, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidID
	}
	if id, err := snowflake.ParseString(ref); err == nil && id > 0 {
		ds, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return ds, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, localErr(err)
		}
	}
	ds, err := s.repo.FindByName(ctx, ref)
	if err != nil {
		return nil, localErr(err)
	}
	return ds, nil
}

func (s *service) render(ctx context.Context, ds *domain.Dataset) (domain.Dict, error) {
	if ds.OwnerOrg == nil {
		return toDict(ds, nil), nil
	}
	org, err := s.orgs.FindByIDOrName(ctx, ds.OwnerOrg.String())
	if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
		return toDict(ds, nil), nil
	}
	if err != nil {
		return nil, localErr(err)
	}
	return toDict(ds, org), nil
}

func (s *service) ownerOrg(ctx context.Context, data domain.Dict) (*orgdomain.Organization, error) {
	ref := stringField(data, "owner_org")
	if ref == "" {
		return nil, nil
	}
	org, err := s.orgs.FindByIDOrName(ctx, ref)
	if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
		return nil, domain.ErrInvalidOwnerOrg
	}
	if err != nil {
		return nil, localErr(err)
	}
	return org, nil
}

func (s *service) buildResources(datasetID snowflake.ID, input []map[string]any, now time.Time) []domain.Resource {
	out := make([]domain.Resource, 0, len(input))
	for i, rd := range input {
		out = append(out, domain.Resource{
			ID:          s.genID.Generate(),
			PackageID:   datasetID,
			Position:    i,
			Name:        stringField(rd, "name"),
			URL:         stringField(rd, "url"),
			Format:      stringField(rd, "format"),
			Description: stringField(rd, "description"),
			Extras:      resourceExtras(rd),
			CreatedAt:   now,
		})
	}
	return out
}

func datasetName(data domain.Dict, current string) (string, error) {
	name := strings.TrimSpace(stringField(data, "name"))
	if name == "" {
		name = orgdomain.Slugify(stringField(data, "title"))
	}
	if name == "" {
		name = current
	}
	if !validName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return name, nil
}

func localErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrLocalAction),
		domain.IsValidation(err):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLocalAction, err)
}
