package auth

import "testing"

func bindingFor(role Role, restaurantID, branchID int64) RoleBinding {
	b := RoleBinding{Role: role}
	if restaurantID != 0 {
		b.RestaurantID = &restaurantID
	}
	if branchID != 0 {
		b.BranchID = &branchID
	}
	return b
}

func principalWith(userID int64, bindings ...RoleBinding) *Principal {
	return &Principal{UserID: userID, IsActive: true, Bindings: bindings}
}

func TestEvaluateCustomerScope(t *testing.T) {
	customer := principalWith(7, bindingFor(RoleCustomer, 0, 0))

	if !Evaluate(customer, OpCartManage, Target{CustomerID: 7}) {
		t.Fatal("customer must manage their own cart")
	}
	if Evaluate(customer, OpCartManage, Target{CustomerID: 8}) {
		t.Fatal("customer must not touch another user's cart")
	}
	if Evaluate(customer, OpOrderConfirm, Target{RestaurantID: 1}) {
		t.Fatal("customer must not confirm orders")
	}
}

func TestEvaluateSuperAdmin(t *testing.T) {
	admin := principalWith(1, bindingFor(RoleSuperAdmin, 0, 0))

	for _, op := range []Operation{OpCartManage, OpOrderConfirm, OpOrderRefund, OpOrderClaim, OpOrderReadRestaurant} {
		if !Evaluate(admin, op, Target{RestaurantID: 5, CustomerID: 99, DriverID: 42}) {
			t.Fatalf("super_admin denied %s", op)
		}
	}
}

func TestEvaluateRefundIsSuperAdminOnly(t *testing.T) {
	owner := principalWith(3, bindingFor(RoleOwner, 2, 0))
	if Evaluate(owner, OpOrderRefund, Target{RestaurantID: 2}) {
		t.Fatal("owner must not refund")
	}
}

func TestEvaluateRestaurantScope(t *testing.T) {
	owner := principalWith(3, bindingFor(RoleOwner, 2, 0))

	if !Evaluate(owner, OpOrderConfirm, Target{RestaurantID: 2, BranchID: 9}) {
		t.Fatal("owner ignores branch scope within their restaurant")
	}
	if Evaluate(owner, OpOrderConfirm, Target{RestaurantID: 3}) {
		t.Fatal("owner of restaurant 2 must not confirm for restaurant 3")
	}
}

func TestEvaluateBranchScope(t *testing.T) {
	manager := principalWith(4, bindingFor(RoleBranchManager, 2, 10))

	if !Evaluate(manager, OpOrderConfirm, Target{RestaurantID: 2, BranchID: 10}) {
		t.Fatal("branch manager allowed on own branch")
	}
	if Evaluate(manager, OpOrderConfirm, Target{RestaurantID: 2, BranchID: 11}) {
		t.Fatal("branch manager denied on another branch")
	}

	unscoped := principalWith(5, bindingFor(RoleBranchManager, 2, 0))
	if !Evaluate(unscoped, OpOrderConfirm, Target{RestaurantID: 2, BranchID: 11}) {
		t.Fatal("restaurant-wide manager allowed on any branch")
	}
}

func TestEvaluateKitchenStaffSubset(t *testing.T) {
	kitchen := principalWith(6, bindingFor(RoleKitchenStaff, 2, 10))

	if !Evaluate(kitchen, OpOrderStartPreparing, Target{RestaurantID: 2, BranchID: 10}) {
		t.Fatal("kitchen staff starts preparing")
	}
	if !Evaluate(kitchen, OpOrderMarkReady, Target{RestaurantID: 2, BranchID: 10}) {
		t.Fatal("kitchen staff marks ready")
	}
	if Evaluate(kitchen, OpOrderConfirm, Target{RestaurantID: 2, BranchID: 10}) {
		t.Fatal("kitchen staff must not confirm")
	}
	if Evaluate(kitchen, OpOrderCancelRestaurant, Target{RestaurantID: 2, BranchID: 10}) {
		t.Fatal("kitchen staff must not cancel")
	}
}

func TestEvaluateDriverOps(t *testing.T) {
	driver := principalWith(11, bindingFor(RoleDriverPlatform, 0, 0))

	if !Evaluate(driver, OpOrderClaim, Target{}) {
		t.Fatal("driver may attempt a claim")
	}
	if !Evaluate(driver, OpOrderComplete, Target{DriverID: 11}) {
		t.Fatal("driver completes own delivery")
	}
	if Evaluate(driver, OpOrderComplete, Target{DriverID: 12}) {
		t.Fatal("driver must not complete another courier's delivery")
	}
	if Evaluate(driver, OpOrderReadRestaurant, Target{RestaurantID: 2}) {
		t.Fatal("driver must not read restaurant orders")
	}
}

func TestEvaluateInactivePrincipal(t *testing.T) {
	p := principalWith(7, bindingFor(RoleSuperAdmin, 0, 0))
	p.IsActive = false

	if Evaluate(p, OpCartManage, Target{CustomerID: 7}) {
		t.Fatal("inactive account must be denied")
	}
	if Evaluate(nil, OpCartManage, Target{CustomerID: 7}) {
		t.Fatal("nil principal must be denied")
	}
}
