package token

// Role is the coarse authorization level carried inside a token.
type Role string

// Roles recognized by the platform.
const (
	RoleUser             Role = "user"
	RoleContentManager   Role = "content_manager"
	RoleCommunityManager Role = "community_manager"
	RoleUserSupport      Role = "user_support"
	RoleAdmin            Role = "admin"
	RoleSuperAdmin       Role = "super_admin"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleContentManager, RoleCommunityManager,
		RoleUserSupport, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Claims is the identity/authorization payload carried inside a token.
//
// A Claims value is immutable once signed: renewal always produces a new
// value with a fresh IssuedAt/ExpiresAt, never a mutation of the old one.
// The payload shape is closed — Decode rejects tokens whose payload carries
// unknown fields rather than accessing known fields optimistically.
type Claims struct {
	SubjectID   string   `json:"sub"`
	Email       string   `json:"email"`
	DisplayName string   `json:"name,omitempty"`
	Role        Role     `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenID     string   `json:"jti,omitempty"`
	IssuedAt    int64    `json:"iat"`
	ExpiresAt   int64    `json:"exp"`
}

// HasPermission reports whether the claim set carries the given capability
// tag. Insertion order of the permission set is irrelevant.
func (c *Claims) HasPermission(tag string) bool {
	for _, p := range c.Permissions {
		if p == tag {
			return true
		}
	}
	return false
}
