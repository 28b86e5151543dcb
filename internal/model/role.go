package model

// Role is static reference data seeded at startup. The id doubles as the
// rank: lower ids are more privileged, and a user may only assign roles
// whose id is >= their own.
type Role struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Modifiable  bool     `json:"modifiable"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks membership in the role's permission set.
func (r *Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Permission names used by the route layer and the user services.
const (
	PermUsersCreate  = "users:create"
	PermUsersRead    = "users:read"
	PermUsersUpdate  = "users:update"
	PermUsersDelete  = "users:delete"
	PermRolesRead    = "roles:read"
	PermReportsRead  = "reports:read"
	PermReportsWrite = "reports:write"
	PermSiteManage   = "site:manage"
)

// SeedRoles returns the built-in role set. Rank ascends with the id.
func SeedRoles() []Role {
	return []Role{
		{
			ID:          1,
			Name:        "superintendent",
			Description: "Full administrative control over the system",
			Modifiable:  false,
			Permissions: []string{
				PermUsersCreate, PermUsersRead, PermUsersUpdate, PermUsersDelete,
				PermRolesRead, PermReportsRead, PermReportsWrite, PermSiteManage,
			},
		},
		{
			ID:          2,
			Name:        "administrator",
			Description: "Manages users and reviews submitted reports",
			Modifiable:  false,
			Permissions: []string{
				PermUsersCreate, PermUsersRead, PermUsersUpdate,
				PermRolesRead, PermReportsRead, PermReportsWrite,
			},
		},
		{
			ID:          3,
			Name:        "principal",
			Description: "Reviews and approves reports for their site",
			Modifiable:  true,
			Permissions: []string{PermUsersRead, PermRolesRead, PermReportsRead, PermReportsWrite},
		},
		{
			ID:          4,
			Name:        "canteen manager",
			Description: "Prepares and submits financial reports",
			Modifiable:  true,
			Permissions: []string{PermRolesRead, PermReportsRead, PermReportsWrite},
		},
	}
}
