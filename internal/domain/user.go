package domain

import "time"

// Role groups users for authorization.
type Role struct {
	ID          string
	Name        RoleName
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is an account of the studio desk: admin, editor or client.
type User struct {
	ID           string
	RoleID       string
	RoleName     RoleName
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity triple used by authorization.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.RoleName, IsActive: u.IsActive}
}
