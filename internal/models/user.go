package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	Role         UserRole
	CreatedAt    time.Time
}
