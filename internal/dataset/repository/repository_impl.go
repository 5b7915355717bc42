package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ds *domain.Dataset) error {
	return r.db.WithContext(ctx).Create(ds).Error
}

// Save writes the dataset row only; resources go through ReplaceResources.
func (r *repository) Save(ctx context.Context, ds *domain.Dataset) error {
	return r.db.WithContext(ctx).Omit("Resources").Save(ds).Error
}

func (r *repository) ReplaceResources(ctx context.Context, datasetID snowflake.ID, resources []domain.Resource) error {
	if err := r.db.WithContext(ctx).Where("package_id = ?", datasetID).Delete(&domain.Resource{}).Error; err != nil {
		return err
	}
	if len(resources) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&resources).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Dataset, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByName(ctx context.Context, name string) (*domain.Dataset, error) {
	return r.findOne(ctx, "name = ?", name)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*domain.Dataset, error) {
	var ds domain.Dataset
	err := r.db.WithContext(ctx).
		Preload("Resources", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(query, arg).
		First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *repository) SetState(ctx context.Context, id snowflake.ID, state string) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Dataset{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": state, "metadata_modified": time.Now().UTC()})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Purge(ctx context.Context, id snowflake.ID) error {
	if err := r.db.WithContext(ctx).Where("package_id = ?", id).Delete(&domain.Resource{}).Error; err != nil {
		return err
	}
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Dataset{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) Search(ctx context.Context, filter domain.SearchFilter) ([]domain.Dataset, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Dataset{}).Where("state = ?", domain.StateActive)

	if filter.CreatorUserID != nil {
		query = query.Where("creator_user_id = ?", *filter.CreatorUserID)
	}
	if filter.OwnerOrg != nil {
		query = query.Where("owner_org = ?", *filter.OwnerOrg)
	}
	if text := strings.TrimSpace(filter.Text); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(title) LIKE ? OR LOWER(notes) LIKE ?)", like, like, like)
	}
	if filter.Viewer != nil {
		query = query.Where(
			"(private = ? OR creator_user_id = ? OR owner_org IN (SELECT org_id FROM organization_members WHERE account_id = ?))",
			false, *filter.Viewer, *filter.Viewer,
		)
	}

	query = query.Session(&gorm.Session{})

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Dataset
	err := query.
		Preload("Resources", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("metadata_modified DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}
