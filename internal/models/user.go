package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              string // "user" or "admin"
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PasswordChangedAt *time.Time // Last password change, used to invalidate refresh tokens
}
