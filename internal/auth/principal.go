package auth

type Role string

const (
	RoleSuperAdmin       Role = "super_admin"
	RoleOwner            Role = "owner"
	RoleBranchManager    Role = "branch_manager"
	RoleOrderManager     Role = "order_manager"
	RoleKitchenStaff     Role = "kitchen_staff"
	RoleDriverPlatform   Role = "driver_platform"
	RoleDriverRestaurant Role = "driver_restaurant"
	RoleCustomer         Role = "customer"
)

// RoleBinding scopes a role to a restaurant and optionally one of its
// branches. A nil RestaurantID means the role is global (super_admin,
// customer, driver_platform).
type RoleBinding struct {
	Role         Role
	RestaurantID *int64
	BranchID     *int64
}

type Principal struct {
	UserID   int64
	IsActive bool
	Bindings []RoleBinding
}

func (p *Principal) HasRole(roles ...Role) bool {
	for _, b := range p.Bindings {
		for _, r := range roles {
			if b.Role == r {
				return true
			}
		}
	}
	return false
}

func (p *Principal) IsDriver() bool {
	return p.HasRole(RoleDriverPlatform, RoleDriverRestaurant)
}

// RestaurantIDs returns the restaurants the principal is bound to under any
// of the given roles.
func (p *Principal) RestaurantIDs(roles ...Role) []int64 {
	out := make([]int64, 0, len(p.Bindings))
	seen := make(map[int64]struct{})
	for _, b := range p.Bindings {
		if b.RestaurantID == nil {
			continue
		}
		for _, r := range roles {
			if b.Role == r {
				if _, ok := seen[*b.RestaurantID]; !ok {
					seen[*b.RestaurantID] = struct{}{}
					out = append(out, *b.RestaurantID)
				}
			}
		}
	}
	return out
}
