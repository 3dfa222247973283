package auth

// Operation tags every permission-gated action in the order lifecycle.
// Handlers resolve exactly one Operation per request and call Evaluate once.
type Operation string

const (
	OpCartManage Operation = "cart.manage"
	OpOrderPlace Operation = "order.place"

	OpOrderReadOwn   Operation = "order.read_own"
	OpOrderCancelOwn Operation = "order.cancel_own"

	OpOrderReadRestaurant   Operation = "order.read_restaurant"
	OpOrderConfirm          Operation = "order.confirm"
	OpOrderStartPreparing   Operation = "order.start_preparing"
	OpOrderMarkReady        Operation = "order.mark_ready"
	OpOrderCancelRestaurant Operation = "order.cancel_restaurant"
	OpOrderRefund           Operation = "order.refund"

	OpOrderClaim    Operation = "order.claim"
	OpOrderComplete Operation = "order.complete"
	OpDriverSelf    Operation = "driver.self"
)

// Target identifies the entity an operation acts on. Zero fields mean the
// dimension does not apply.
type Target struct {
	RestaurantID int64
	BranchID     int64
	CustomerID   int64
	DriverID     int64
}

// restaurantOps maps restaurant-scoped operations to the staff roles that may
// perform them. Owner scope requires a restaurant match; the manager and
// kitchen roles additionally require the binding's branch to be nil or equal
// to the target branch.
var restaurantOps = map[Operation][]Role{
	OpOrderReadRestaurant:   {RoleOwner, RoleBranchManager, RoleOrderManager, RoleKitchenStaff},
	OpOrderConfirm:          {RoleOwner, RoleBranchManager, RoleOrderManager},
	OpOrderStartPreparing:   {RoleOwner, RoleBranchManager, RoleOrderManager, RoleKitchenStaff},
	OpOrderMarkReady:        {RoleOwner, RoleBranchManager, RoleOrderManager, RoleKitchenStaff},
	OpOrderCancelRestaurant: {RoleOwner, RoleBranchManager, RoleOrderManager},
}

// Evaluate is the single authorization decision point: it maps
// (principal, operation, target) to allow/deny using the principal's scoped
// role bindings.
func Evaluate(p *Principal, op Operation, target Target) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.HasRole(RoleSuperAdmin) {
		return true
	}

	switch op {
	case OpCartManage, OpOrderPlace, OpOrderReadOwn, OpOrderCancelOwn:
		return p.HasRole(RoleCustomer) && target.CustomerID == p.UserID

	case OpOrderRefund:
		// super_admin only, handled above.
		return false

	case OpOrderClaim:
		// Eligibility (distance, restaurant binding, online status) is the
		// dispatch engine's concern and is evaluated at claim time.
		return p.IsDriver()

	case OpOrderComplete:
		return p.IsDriver() && target.DriverID == p.UserID

	case OpDriverSelf:
		return p.IsDriver() && target.DriverID == p.UserID
	}

	roles, ok := restaurantOps[op]
	if !ok {
		return false
	}
	for _, b := range p.Bindings {
		if !roleIn(b.Role, roles) {
			continue
		}
		if b.RestaurantID == nil || *b.RestaurantID != target.RestaurantID {
			continue
		}
		if b.Role == RoleOwner {
			return true
		}
		if b.BranchID == nil || target.BranchID == 0 || *b.BranchID == target.BranchID {
			return true
		}
	}
	return false
}

func roleIn(role Role, roles []Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
