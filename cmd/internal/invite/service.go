package invite

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"nearme/cmd/identity/ids"
)

// UsernameResolver maps user ids to usernames; identity.Store satisfies it.
type UsernameResolver interface {
	Usernames(ctx context.Context, ids []string) (map[string]string, error)
}

// Service manages sending, answering and listing invitations.
type Service struct {
	store Store
	names UsernameResolver
	now   func() time.Time
}

type Option func(*Service) error

func WithUsernames(r UsernameResolver) Option {
	return func(s *Service) error {
		if r == nil {
			return ErrInvalidInput
		}
		s.names = r
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Reason     string
}

// Send records a new pending invitation. The reason is trimmed and must be
// non-empty. Repeated invitations between the same pair are allowed.
func (s *Service) Send(ctx context.Context, in SendInput) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}

	sender := strings.TrimSpace(in.SenderID)
	receiver := strings.TrimSpace(in.ReceiverID)
	reason := strings.TrimSpace(in.Reason)

	switch {
	case sender == "":
		return Invitation{}, invalidf("senderId is required")
	case receiver == "":
		return Invitation{}, invalidf("receiverId is required")
	case sender == receiver:
		return Invitation{}, invalidf("cannot invite yourself")
	case reason == "":
		return Invitation{}, invalidf("reason is required")
	case utf8.RuneCountInString(reason) > MaxReasonLength:
		return Invitation{}, invalidf("reason exceeds %d characters", MaxReasonLength)
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Invitation{}, err
	}

	return s.store.Create(ctx, Invitation{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Reason:     reason,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// Respond applies action to a pending invitation. Repeating the action on an
// invitation already in that state returns it unchanged; trying to flip a
// terminal invitation yields a TransitionError (ErrNotPending).
func (s *Service) Respond(ctx context.Context, id string, action Action) (Invitation, error) {
	if err := ctx.Err(); err != nil {
		return Invitation{}, err
	}
	// Anything that is not a ULID was never issued.
	id = strings.TrimSpace(id)
	if !ids.IsULID(id) {
		return Invitation{}, ErrNotFound
	}
	if action != ActionAccept && action != ActionDecline {
		return Invitation{}, invalidf("unknown action %q", action)
	}

	want := action.target()
	inv, changed, err := s.store.Resolve(ctx, id, want, s.now())
	if err != nil {
		return Invitation{}, err
	}
	if !changed && inv.Status != want {
		return Invitation{}, TransitionError{ID: inv.ID, Current: inv.Status, Wanted: want}
	}
	return inv, nil
}

// ListSent returns the invitations userID sent, newest first.
func (s *Service) ListSent(ctx context.Context, userID string) ([]Entry, error) {
	invs, err := s.store.ListBySender(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	return s.withParties(ctx, invs)
}

// ListReceived returns the invitations addressed to userID, newest first.
func (s *Service) ListReceived(ctx context.Context, userID string) ([]Entry, error) {
	invs, err := s.store.ListByReceiver(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, err
	}
	return s.withParties(ctx, invs)
}

// Describe resolves the parties of a single invitation.
func (s *Service) Describe(ctx context.Context, inv Invitation) (Entry, error) {
	out, err := s.withParties(ctx, []Invitation{inv})
	if err != nil {
		return Entry{}, err
	}
	return out[0], nil
}

func (s *Service) withParties(ctx context.Context, invs []Invitation) ([]Entry, error) {
	names := map[string]string{}
	if s.names != nil && len(invs) > 0 {
		seen := make(map[string]struct{}, len(invs)*2)
		userIDs := make([]string, 0, len(invs)*2)
		for _, inv := range invs {
			for _, id := range []string{inv.SenderID, inv.ReceiverID} {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					userIDs = append(userIDs, id)
				}
			}
		}
		var err error
		if names, err = s.names.Usernames(ctx, userIDs); err != nil {
			return nil, err
		}
	}

	out := make([]Entry, 0, len(invs))
	for _, inv := range invs {
		out = append(out, Entry{
			Invitation: inv,
			Sender:     Party{ID: inv.SenderID, Username: names[inv.SenderID]},
			Receiver:   Party{ID: inv.ReceiverID, Username: names[inv.ReceiverID]},
		})
	}
	return out, nil
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
