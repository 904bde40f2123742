package services

import "restaurant_ordering/internal/models"

// Actor is whoever issued the request. The zero value is an anonymous QR customer.
type Actor struct {
	UserID   *uint
	Role     models.UserRole
	BranchID *uint
}

func (a Actor) IsAnonymous() bool {
	return a.UserID == nil
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsStaff() bool {
	return a.UserID != nil && a.Role.IsStaff()
}

// ScopeBranch resolves the branch a listing or report runs against.
// Admins may pick any branch or none (all branches); everyone else is pinned to their own.
func (a Actor) ScopeBranch(requested *uint) (*uint, error) {
	if a.IsAdmin() {
		return requested, nil
	}
	if a.BranchID == nil {
		return nil, validationError("branch is required")
	}
	if requested != nil && *requested != *a.BranchID {
		return nil, forbiddenError("access to this branch is not allowed")
	}
	return a.BranchID, nil
}

// TargetBranch picks the branch a catalog read or write applies to. Admins may name any
// branch; a branch carried by the token wins for everyone else; anonymous callers must name one.
func (a Actor) TargetBranch(requested *uint) (uint, error) {
	if a.IsAdmin() && requested != nil && *requested != 0 {
		return *requested, nil
	}
	if a.BranchID != nil && *a.BranchID != 0 {
		return *a.BranchID, nil
	}
	if requested != nil && *requested != 0 {
		return *requested, nil
	}
	return 0, validationError("branchId is required")
}
