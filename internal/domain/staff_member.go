package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleCS         StaffRole = "CS"
	StaffRoleTechnician StaffRole = "TECHNICIAN"
	StaffRoleLeader     StaffRole = "LEADER"
)

// StaffMember models a customer-service agent, technician or leader.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
