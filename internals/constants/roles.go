package constants

import "fmt"

// Roles carried in the JWT `roles` / `roles_global` claims (lower-cased by the auth middleware).
const (
	RoleOwner = "owner" // platform operator
	RoleAdmin = "admin" // gym admin
)

// ==========================
// ✅ Grouped Role Slices
// ==========================
var (
	AdminAndAbove = []string{RoleAdmin, RoleOwner}
	OwnerOnly     = []string{RoleOwner}
)

// Template pesan error role
const errRoleRequired = "%s role required"

func RoleError(role string) string {
	return fmt.Sprintf(errRoleRequired, role)
}
