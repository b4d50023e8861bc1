package auth

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID              uint   `gorm:"primaryKey"`
	Email           string `gorm:"uniqueIndex;not null"`
	FirstName       string `gorm:"column:firstname;not null"`
	LastName        string `gorm:"column:lastname;not null"`
	Phone           string `gorm:"not null"`
	PasswordHash    string `gorm:"column:password_hash;not null"`
	PinKey          string `gorm:"column:pin_key;not null"`
	Role            Role   `gorm:"not null;default:user"`
	LastLoggedIn    *time.Time
	CurrentLoggedIn *time.Time
	CreatedAt       time.Time
}

func (User) TableName() string {
	return "users"
}

// UserView is what handlers may hand out; it never carries secrets.
type UserView struct {
	ID              uint       `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstname"`
	LastName        string     `json:"lastname"`
	Phone           string     `json:"phone"`
	Role            Role       `json:"role"`
	LastLoggedIn    *time.Time `json:"last_logged_in,omitempty"`
	CurrentLoggedIn *time.Time `json:"current_logged_in,omitempty"`
}

func (u *User) View() UserView {
	return UserView{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		Role:            u.Role,
		LastLoggedIn:    u.LastLoggedIn,
		CurrentLoggedIn: u.CurrentLoggedIn,
	}
}
