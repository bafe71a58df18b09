package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactKind distinguishes the two handle types. Values of the same kind are
// globally unique across all accounts.
type ContactKind string

const (
	ContactKindPhone ContactKind = "phone"
	ContactKindEmail ContactKind = "email"
)

// ContactHandle is a uniquely-valued phone number or email address owned by
// exactly one account. Ownership is by reference only.
type ContactHandle struct {
	ID        uuid.UUID   `json:"id"`
	Kind      ContactKind `json:"kind"`
	Value     string      `json:"value"`
	OwnerID   uuid.UUID   `json:"owner_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// ContactOp tags the three contact mutations. A request carries exactly one op
// and the payload for it; dispatch happens once, at the service boundary.
type ContactOp string

const (
	ContactOpAdd     ContactOp = "add"
	ContactOpReplace ContactOp = "replace"
	ContactOpRemove  ContactOp = "remove"
)

// ContactUpdate is the tagged request for a contact mutation. Phone/Email are
// the add and remove payloads; the Old/New pairs belong to replace. Nil fields
// are skipped.
type ContactUpdate struct {
	Op       ContactOp `json:"op"`
	Phone    *string   `json:"phone,omitempty"`
	Email    *string   `json:"email,omitempty"`
	OldPhone *string   `json:"old_phone,omitempty"`
	NewPhone *string   `json:"new_phone,omitempty"`
	OldEmail *string   `json:"old_email,omitempty"`
	NewEmail *string   `json:"new_email,omitempty"`
}
