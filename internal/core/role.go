// Package core contains the room domain types shared by the store,
// the room aggregate and the signal adapter. No transport logic here.
package core

// Role distinguishes the two expected participants of a room.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

func (r Role) Valid() bool {
	return r == RolePrimary || r == RoleSecondary
}
