package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// Actor is the authenticated caller as resolved from the access token.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.ActorRole
	VendorID *uuid.UUID
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// OwnsVendor reports whether the actor is the given vendor.
func (a Actor) OwnsVendor(vendorID uuid.UUID) bool {
	return a.Role == enums.ActorRoleVendor && a.VendorID != nil && *a.VendorID == vendorID
}
