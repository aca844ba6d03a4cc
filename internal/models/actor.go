package models

import "slices"

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN" // сотрудник филиала
	RoleSuperAdmin Role = "SUPERADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Actor is the pre-validated caller identity handed in by the access layer.
type Actor struct {
	ID       int64  `json:"id"`
	Role     Role   `json:"role"`
	BranchID *int64 `json:"branchId,omitempty"`
}

func (a Actor) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleSuperAdmin }

// BranchScope returns the branch the actor is restricted to; nil means global.
func (a Actor) BranchScope() *int64 {
	if a.Role == RoleSuperAdmin {
		return nil
	}
	return a.BranchID
}

// CanSetStatus answers whether the actor may set target through a manual update.
func (a Actor) CanSetStatus(target TrackingStatus) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return slices.Contains(BranchSettableStatuses, target)
	default:
		return false
	}
}
