package domain

import "time"

// Role is the chat-level role a user holds.
type Role string

const (
	RoleUser     Role = "user"
	RoleITAdmin  Role = "it_admin"
	RoleAHOAdmin Role = "aho_admin"
)

// IsAdmin reports whether the role belongs to any admin group.
func (r Role) IsAdmin() bool {
	return r == RoleITAdmin || r == RoleAHOAdmin
}

// User is a chat participant, created on first contact.
type User struct {
	ID           int64
	FullName     string
	Phone        string
	Organization string
	OfficeNumber string
	Registered   bool
	Role         Role
	CreatedAt    time.Time
}

// DisplayName falls back to the id when registration has not happened yet.
func (u *User) DisplayName() string {
	if u == nil {
		return "неизвестно"
	}
	if u.FullName != "" {
		return u.FullName
	}
	return "Пользователь " + formatID(u.ID)
}

// IsAdmin reports whether the user acts as an admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role.IsAdmin()
}
