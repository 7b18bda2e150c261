package workflow

import "github.com/spec-kit/repair-case-service/internal/domain"

// Actor is the caller an action is evaluated for.
type Actor struct {
	ID   string
	Role domain.StaffRole
}

// ActorFromStaff builds an Actor from an authenticated staff member.
func ActorFromStaff(staff *domain.StaffMember) Actor {
	if staff == nil {
		return Actor{}
	}
	return Actor{ID: staff.ID, Role: staff.Role}
}

func (a Actor) IsCS() bool {
	return a.Role == domain.StaffRoleCS
}

func (a Actor) IsTechnician() bool {
	return a.Role == domain.StaffRoleTechnician
}

func (a Actor) IsLeader() bool {
	return a.Role == domain.StaffRoleLeader
}

// isAssignedTechnician reports whether the actor is the technician of record.
func (a Actor) isAssignedTechnician(c domain.Case) bool {
	return a.IsTechnician() && c.IsAssignedTo(a.ID)
}
