package models

import (
	"time"
)

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"column:password;size:255;not null"`
	Name         *string    `json:"name" gorm:"size:100"`
	Surname      *string    `json:"surname" gorm:"size:100"`
	Role         string     `json:"role" gorm:"size:20;not null;default:'customer'"`
	BranchID     *uint      `json:"branchId" gorm:"index"`
	Branch       *Branch    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Active       bool       `json:"active" gorm:"not null;default:true"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleStaff    UserRole = "staff"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may act on behalf of a branch (staff or admin).
func (r UserRole) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// PendingUser is an unverified registration waiting for its e-mail link to be opened.
type PendingUser struct {
	ID                uint      `gorm:"primaryKey"`
	Username          string    `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash      string    `gorm:"column:password;size:255;not null"`
	Name              *string   `gorm:"size:100"`
	Surname           *string   `gorm:"size:100"`
	VerificationToken string    `gorm:"size:255;uniqueIndex;not null"`
	TokenExpiry       time.Time `gorm:"index;not null"`
	CreatedAt         time.Time
}

func (p *PendingUser) Expired(now time.Time) bool {
	return now.After(p.TokenExpiry)
}
