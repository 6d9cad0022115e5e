package models

import "time"

type UserRole string

const (
	RoleManager UserRole = "manager"
	RoleCashier UserRole = "cashier"
	RoleDriver  UserRole = "driver"
	RoleServer  UserRole = "server"
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	BranchID     *uint
	Branch       *Branch
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	Active       bool     `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
