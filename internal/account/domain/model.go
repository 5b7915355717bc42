// Package domain contains core types for staging catalog accounts.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StateActive  = "active"
	StateDeleted = "deleted"
)

// Account is a staging catalog user provisioned from a verified identity.
type Account struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null;uniqueIndex:ux_accounts_name" json:"name"`
	Email        string       `gorm:"type:text" json:"email"`
	Fullname     string       `gorm:"type:text" json:"fullname"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	State        string       `gorm:"type:text;not null;default:'active'" json:"state"`
	Sysadmin     bool         `gorm:"not null;default:false" json:"sysadmin"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

var handleReplacer = strings.NewReplacer(".", "_", "@", "_")

// DeriveHandle turns an identity username into an account name.
// "alice@example.com" becomes "alice_example_com".
func DeriveHandle(username string) string {
	return handleReplacer.Replace(strings.TrimSpace(username))
}
