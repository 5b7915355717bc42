// Package domain contains persistence models for staging organizations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	TypeOrganization = "organization"

	StateActive = "active"

	CapacityAdmin  = "admin"
	CapacityEditor = "editor"
	CapacityMember = "member"

	// AutoDescription is stored on organizations provisioned during dataset submission.
	AutoDescription = "Created by admin when creating a new dataset"
)

// Organization owns datasets in the staging catalog.
type Organization struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_name" json:"name"`
	Title          string       `gorm:"type:text;not null" json:"title"`
	Description    string       `gorm:"type:text" json:"description"`
	Type           string       `gorm:"type:text;not null;default:'organization'" json:"type"`
	IsOrganization bool         `gorm:"not null;default:true" json:"is_organization"`
	State          string       `gorm:"type:text;not null;default:'active'" json:"state"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Member grants an account a capacity on an organization.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_member,priority:1" json:"org_id"`
	AccountID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_member,priority:2" json:"account_id"`
	Capacity  string       `gorm:"type:text;not null;uniqueIndex:ux_org_member,priority:3" json:"capacity"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "organization_members" }
