package model

import (
	"time"
)

const (
	EntryKindEarned  = "earned"
	EntryKindSpent   = "spent"
	EntryKindBonus   = "bonus"
	EntryKindPenalty = "penalty"
)

// LedgerEntry is one point-affecting event for a user.
//
// The ledger is append-only: rows are never updated or deleted, which keeps
// the trail auditable and lets the cached balance be reconciled against
// SUM(amount) at any time. BalanceBefore/BalanceAfter snapshot the cached
// balance around the entry for cheap consistency checks.
type LedgerEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // signed: credits positive, debits negative
	Kind          string    `gorm:"type:varchar(20);not null" json:"kind"`
	Description   string    `gorm:"type:varchar(256)" json:"description"`
	CodeID        *int64    `gorm:"index" json:"code_id"` // set when the entry came from a redemption
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "point_ledger"
}

// Redemption is the read model written alongside a successful code
// redemption, one row per credited scan. Feeds the scan history endpoint.
type Redemption struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ScanNo          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"scan_no"`
	CodeID          int64     `gorm:"index;not null" json:"code_id"`
	UserID          int64     `gorm:"index;not null" json:"user_id"`
	PointsEarned    int64     `gorm:"not null" json:"points_earned"`
	ProductName     string    `gorm:"type:varchar(128);not null" json:"product_name"`
	ProductCategory string    `gorm:"type:varchar(64);not null" json:"product_category"`
	Location        string    `gorm:"type:varchar(128)" json:"location"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Redemption) TableName() string {
	return "qr_scan"
}
