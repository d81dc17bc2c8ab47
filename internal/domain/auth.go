package domain

// RoleName identifies a role. The three seeded roles drive authorization;
// additional roles may exist but carry no ticket or file rights.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleEditor RoleName = "editor"
	RoleClient RoleName = "client"
)

// Actor is the resolved identity of an authenticated caller. It is passed to
// every service call instead of being re-derived.
type Actor struct {
	UserID   string
	Role     RoleName
	IsActive bool
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsEditor() bool { return a.Role == RoleEditor }
func (a Actor) IsClient() bool { return a.Role == RoleClient }
