package domain

import (
	"context"
	"errors"
	"time"
)

// Operator is a console user allowed to submit and attest movements.
type Operator struct {
	ID             string
	Email          string
	Name           string
	HashedPassword string
	Role           Role
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Role represents an operator's access level
type Role string

const (
	// RoleAdmin can manage accounts and reconcile balances
	RoleAdmin Role = "admin"

	// RoleOperator can submit and confirm movements
	RoleOperator Role = "operator"

	// RoleViewer can only read balances and entries
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanWrite checks if the role can submit movements
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanManageAccounts checks if the role can create accounts and reconcile them
func (r Role) CanManageAccounts() bool {
	return r == RoleAdmin
}

// SystemOperatorID is recorded when no authenticated operator is attached.
const SystemOperatorID = "system"

type operatorContextKey struct{}

// WithOperator attaches op to ctx.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// OperatorFromContext returns the operator attached to ctx.
func OperatorFromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(operatorContextKey{}).(*Operator)
	return op, ok && op != nil
}

// OperatorID returns the id of the operator attached to ctx, or SystemOperatorID.
func OperatorID(ctx context.Context) string {
	if op, ok := OperatorFromContext(ctx); ok {
		return op.ID
	}
	return SystemOperatorID
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorExists   = errors.New("operator with this email already exists")
	ErrOperatorInactive = errors.New("operator is inactive")
)
