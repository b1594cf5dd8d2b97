// internal/models/role.go
package models

// Role is the caller's role, computed once per request and passed explicitly
// instead of re-derived from group membership at each call site.
type Role string

const (
	RoleCustomer        Role = "customer"
	RoleRestaurantOwner Role = "restaurant_owner"
	RoleManager         Role = "manager"
	RoleAdmin           Role = "admin"
)

// CanReview reports whether the role may approve, reject, suspend, or
// reactivate applications.
func (r Role) CanReview() bool {
	return r == RoleManager || r == RoleAdmin
}
