// Package identity abstracts the external user directory. The gate-pass core
// trusts that callers are already authenticated; it only needs role and
// display information to enforce domain-specific authorization and to fan out
// notifications to the right actors.
package identity

import (
	"context"

	id "passgate/pkg/domain"
)

// User is the directory view of an account, resolved by id.
type User struct {
	ID          id.UserID
	Role        id.Role
	DisplayName string
}

// Directory resolves accounts and role-scoped listings. Implementations live
// outside this subsystem; the in-memory one below serves tests and dev.
type Directory interface {
	FindByID(ctx context.Context, userID id.UserID) (User, error)
	ListByRole(ctx context.Context, role id.Role) ([]User, error)
}
