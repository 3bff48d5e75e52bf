package invite

import (
	"context"
	"time"
)

// Store is the persistence boundary for invitations.
//
// Resolve moves a pending invitation to status and returns it with changed=true.
// For an invitation that is already terminal it changes nothing and returns the
// stored record with changed=false. Unknown ids yield ErrNotFound.
type Store interface {
	Create(ctx context.Context, inv Invitation) (Invitation, error)
	Get(ctx context.Context, id string) (Invitation, error)
	Resolve(ctx context.Context, id string, status Status, now time.Time) (inv Invitation, changed bool, err error)
	ListBySender(ctx context.Context, userID string) ([]Invitation, error)
	ListByReceiver(ctx context.Context, userID string) ([]Invitation, error)
}
