package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User is the minimal account row the core needs: enough identity for
// ownership of answers/results and a role for the acting-as permission
// checks. Authentication itself lives outside this service.
type User struct {
	ID       uint     `json:"id" gorm:"primaryKey"`
	Username string   `json:"username" gorm:"not null;size:150;uniqueIndex" validate:"required,min=1,max=150"`
	Role     UserRole `json:"role" gorm:"not null;size:20;default:student" validate:"omitempty,user_role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
