// Package domain contains the staging catalog dataset model and its action API.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StateActive  = "active"
	StateDeleted = "deleted"

	TypeDataset = "dataset"
)

// Dataset is a package in the staging catalog.
type Dataset struct {
	ID               snowflake.ID      `gorm:"primaryKey"`
	Name             string            `gorm:"type:text;not null;uniqueIndex:ux_datasets_name"`
	Title            string            `gorm:"type:text"`
	Notes            string            `gorm:"type:text"`
	OwnerOrg         *snowflake.ID     `gorm:"index"`
	CreatorUserID    snowflake.ID      `gorm:"not null;index"`
	Private          bool              `gorm:"not null;default:false"`
	State            string            `gorm:"type:text;not null;default:'active';index"`
	Extras           datatypes.JSONMap `gorm:"type:jsonb"`
	Resources        []Resource        `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	MetadataModified time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Dataset) TableName() string { return "datasets" }

// Resource is a file or link attached to a dataset.
type Resource struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	PackageID   snowflake.ID      `gorm:"not null;index"`
	Position    int               `gorm:"not null;default:0"`
	Name        string            `gorm:"type:text"`
	URL         string            `gorm:"type:text"`
	Format      string            `gorm:"type:text"`
	Description string            `gorm:"type:text"`
	Extras      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Resource) TableName() string { return "resources" }

// Dict is the wire form of a dataset as returned by Show.
type Dict = map[string]any
