package service

import "github.com/viajesandina/storefront-go/internal/domain"

// Access gate: pure predicates over the current role deciding which
// storefront actions and views are available. The zero Role (absent,
// anonymous session) denies everything. Presentation layers consult
// these instead of re-implementing role checks at call sites.

// CanUseCart reports whether the role may view and mutate the cart.
func CanUseCart(r domain.Role) bool {
	return r == domain.RoleCustomer
}

// CanViewOrderHistory reports whether the role may see its own orders.
func CanViewOrderHistory(r domain.Role) bool {
	return r == domain.RoleCustomer
}

// CanCheckout reports whether the role may start the checkout flow.
// The flow itself is an external collaborator.
func CanCheckout(r domain.Role) bool {
	return r == domain.RoleCustomer
}

// CanManageCatalog reports whether the role may use the catalog
// management views.
func CanManageCatalog(r domain.Role) bool {
	return r == domain.RoleSales || r == domain.RoleSalesManager
}

// CanManageOrders reports whether the role may use the order
// management views.
func CanManageOrders(r domain.Role) bool {
	return r == domain.RoleSales || r == domain.RoleSalesManager
}

// CanViewReports reports whether the role may use the reporting view.
func CanViewReports(r domain.Role) bool {
	return r == domain.RoleSalesManager
}
