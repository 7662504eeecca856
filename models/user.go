package models

import (
	"github.com/google/uuid"
)

// UserRole represents the role carried by an authenticated caller
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleBusiness UserRole = "business"
	RoleCustomer UserRole = "customer"
)

// Valid reports whether r is a known role
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleBusiness, RoleCustomer:
		return true
	}
	return false
}

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID     uuid.UUID  `json:"user_id"`
	BusinessID *uuid.UUID `json:"business_id,omitempty"` // set for business users
	Role       UserRole   `json:"role"`
}

// IsAdmin returns true if the principal has the admin role
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanManagePolicies returns true if the principal can manage policies of its business
func (p *Principal) CanManagePolicies() bool {
	return p.Role == RoleAdmin || (p.Role == RoleBusiness && p.BusinessID != nil)
}

// CanAccessBusiness reports whether the principal may act on resources of businessID.
// Admins and customers pass; customers are scoped by order ownership instead.
func (p *Principal) CanAccessBusiness(businessID uuid.UUID) bool {
	switch p.Role {
	case RoleAdmin, RoleCustomer:
		return true
	case RoleBusiness:
		return p.BusinessID != nil && *p.BusinessID == businessID
	}
	return false
}

// CanAccessOrder reports whether the principal may file requests against order
func (p *Principal) CanAccessOrder(order *Order) bool {
	if p.Role == RoleCustomer {
		return order.CustomerID != nil && *order.CustomerID == p.UserID
	}
	return p.CanAccessBusiness(order.BusinessID)
}
