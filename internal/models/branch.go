package models

import "time"

type Branch struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Country   string    `json:"country" gorm:"size:100"`
	Timezone  string    `json:"timezone" gorm:"size:64;not null;default:'Europe/Istanbul'"`
	Currency  string    `json:"currency" gorm:"size:8;not null;default:'TRY'"`
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`

	BranchSettings
}

// BranchSettings are the per-branch display and operations knobs edited from the admin panel.
type BranchSettings struct {
	MenuDefaultStock         int     `json:"menuDefaultStock" gorm:"not null;default:20"`
	MenuDefaultPrice         float64 `json:"menuDefaultPrice" gorm:"type:decimal(10,2);not null;default:400"`
	StockWarnEnabled         bool    `json:"stockWarnEnabled" gorm:"not null;default:false"`
	StockWarnThreshold       int     `json:"stockWarnThreshold" gorm:"not null;default:5"`
	ShowInactiveMenuItems    bool    `json:"showInactiveMenuItems" gorm:"not null;default:false"`
	ShowOutOfStockItems      bool    `json:"showOutOfStockItems" gorm:"not null;default:false"`
	OrdersAutoRefreshEnabled bool    `json:"ordersAutoRefreshEnabled" gorm:"not null;default:false"`
	OrdersAutoRefreshSeconds int     `json:"ordersAutoRefreshSeconds" gorm:"not null;default:15"`
}

// DefaultBranchSettings mirrors the column defaults above.
func DefaultBranchSettings() BranchSettings {
	return BranchSettings{
		MenuDefaultStock:         20,
		MenuDefaultPrice:         400,
		StockWarnThreshold:       5,
		OrdersAutoRefreshSeconds: 15,
	}
}

// Location resolves the branch timezone, falling back to fallback when the zone is unknown.
func (b *Branch) Location(fallback *time.Location) *time.Location {
	if b == nil || b.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
