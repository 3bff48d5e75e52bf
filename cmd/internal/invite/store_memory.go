package invite

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps invitations in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Invitation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Invitation)}
}

func (s *MemoryStore) Create(ctx context.Context, inv Invitation) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}
	if err := validateRecord(inv); err != nil {
		return Invitation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[inv.ID]; dup {
		return Invitation{}, invalidf("duplicate id %s", inv.ID)
	}
	s.byID[inv.ID] = inv
	return inv, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.byID[id]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	return inv, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, id string, status Status, now time.Time) (Invitation, bool, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, false, err
	}
	if !status.Terminal() {
		return Invitation{}, false, invalidf("status %q is not terminal", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return Invitation{}, false, ErrNotFound
	}
	if inv.Status != StatusPending {
		return inv, false, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	inv.Status = status
	inv.UpdatedAt = now
	s.byID[id] = inv
	return inv, true, nil
}

func (s *MemoryStore) ListBySender(ctx context.Context, userID string) ([]Invitation, error) {
	return s.list(ctx, func(inv Invitation) bool { return inv.SenderID == userID })
}

func (s *MemoryStore) ListByReceiver(ctx context.Context, userID string) ([]Invitation, error) {
	return s.list(ctx, func(inv Invitation) bool { return inv.ReceiverID == userID })
}

func (s *MemoryStore) list(ctx context.Context, keep func(Invitation) bool) ([]Invitation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Invitation, 0)
	for _, inv := range s.byID {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, newestFirst)
	return out, nil
}

func newestFirst(a, b Invitation) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func validateRecord(inv Invitation) error {
	switch {
	case strings.TrimSpace(inv.ID) == "":
		return invalidf("missing id")
	case inv.SenderID == "" || inv.ReceiverID == "":
		return invalidf("missing party")
	case strings.TrimSpace(inv.Reason) == "":
		return invalidf("missing reason")
	case !inv.Status.Valid():
		return invalidf("bad status %q", inv.Status)
	}
	return nil
}
