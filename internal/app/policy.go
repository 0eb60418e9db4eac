package app

import "github.com/abhi5157/Store-Rating-App/pkg/domain"

// Action names an operation gated by the access policy.
type Action string

const (
	ActionListUsers          Action = "list-users"
	ActionCreateUser         Action = "create-user"
	ActionDeleteUser         Action = "delete-user"
	ActionSetUserRole        Action = "set-user-role"
	ActionViewDashboardStats Action = "view-dashboard-stats"
	ActionCreateStore        Action = "create-store"
	ActionUpdateStore        Action = "update-store"
	ActionDeleteStore        Action = "delete-store"
	ActionListStores         Action = "list-stores"
	ActionViewStore          Action = "view-store"
	ActionSubmitRating       Action = "submit-rating"
	ActionViewStoreRatings   Action = "view-store-ratings"
	ActionViewOwnerDashboard Action = "view-owner-dashboard"
)

// Allowed is the pure access policy decision: role x action -> allow/deny.
// It has no side effects and is evaluated before every gated operation.
func Allowed(role domain.UserRole, action Action) bool {
	switch action {
	case ActionListUsers, ActionCreateUser, ActionDeleteUser, ActionSetUserRole,
		ActionViewDashboardStats, ActionCreateStore, ActionUpdateStore, ActionDeleteStore:
		return role == domain.RoleAdmin
	case ActionListStores, ActionViewStore, ActionSubmitRating, ActionViewStoreRatings:
		// Any authenticated actor.
		return domain.ValidRole(role)
	case ActionViewOwnerDashboard:
		return role == domain.RoleStoreOwner
	}
	return false
}

// Authorize returns ErrForbidden when the role may not perform the action.
// Denial is an explicit error, never a silent no-op.
func Authorize(role domain.UserRole, action Action) error {
	if !Allowed(role, action) {
		return ErrForbidden
	}
	return nil
}
