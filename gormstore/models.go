package gormstore

import (
	"strings"
	"time"

	"github.com/MrEthical07/gateAuth/permission"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the principal row. Usernames are unique case-insensitively
// through NormalizedUserName.
type User struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	UserName             string `gorm:"not null"`
	NormalizedUserName   string `gorm:"uniqueIndex;not null"`
	Email                string
	PhoneNumber          string
	EmailConfirmed       bool `gorm:"not null;default:false"`
	PhoneNumberConfirmed bool `gorm:"not null;default:false"`
	PasswordHash         string `gorm:"column:password_hash;not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BeforeCreate assigns a random ID when none is set.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.NormalizedUserName = normalizeUserName(u.UserName)
	return nil
}

// Role is a named grant bundle.
type Role struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Name           string `gorm:"not null"`
	NormalizedName string `gorm:"uniqueIndex;not null"`
	CreatedAt      time.Time
}

func (r *Role) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.NormalizedName = permission.NormalizeRoleName(r.Name)
	return nil
}

// UserRole links principals to roles.
type UserRole struct {
	UserID string `gorm:"type:uuid;primaryKey"`
	RoleID string `gorm:"type:uuid;primaryKey"`
}

// Module is the top level of the transaction catalog.
type Module struct {
	Code string `gorm:"primaryKey"`
	Name string
}

// Application groups transactions inside a module.
type Application struct {
	Code       string `gorm:"primaryKey"`
	ModuleCode string `gorm:"index;not null"`
	Name       string
	SortOrder  int
}

// Transaction is one protected endpoint.
type Transaction struct {
	Code            string `gorm:"primaryKey"`
	ApplicationCode string `gorm:"index"`
	Name            string
	URL             string `gorm:"column:url;uniqueIndex;not null"`
	SortOrder       int
	ShowInMenu      bool
}

// RoleTransaction grants a transaction to a role.
type RoleTransaction struct {
	RoleID          string `gorm:"type:uuid;primaryKey"`
	TransactionCode string `gorm:"primaryKey"`
}

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&User{},
		&Role{},
		&UserRole{},
		&Module{},
		&Application{},
		&Transaction{},
		&RoleTransaction{},
	}
}

func normalizeUserName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (t Transaction) toPermission() permission.Transaction {
	return permission.Transaction{
		Code:        t.Code,
		Name:        t.Name,
		URL:         t.URL,
		Order:       t.SortOrder,
		ShowInMenu:  t.ShowInMenu,
		Application: t.ApplicationCode,
	}
}
