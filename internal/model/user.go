package model

import (
	"time"
)

const (
	RoleUser     = "user"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// User holds the account record and the cached points balance.
//
// Points is a cache over the ledger: it is only ever moved inside the same
// transaction that appends the matching ledger entry, so at any committed
// point Points == SUM(ledger_entry.amount) for the user. Version is the
// optimistic lock token for debits.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"` // public id handed to clients
	Name         string     `gorm:"type:varchar(128);not null" json:"name"`
	Email        string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Phone        string     `gorm:"type:varchar(32)" json:"phone"`
	PasswordHash string     `gorm:"type:varchar(128);not null" json:"-"`
	Role         string     `gorm:"type:varchar(20);not null;default:user" json:"role"`
	Points       int64      `gorm:"not null;default:0" json:"points"`
	Version      int        `gorm:"not null;default:0" json:"version"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "app_user"
}
