package invite

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

func (s Status) Terminal() bool { return s == StatusAccepted || s == StatusDeclined }

func (s Status) Valid() bool { return s == StatusPending || s.Terminal() }

// Action is a receiver's response.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

func (a Action) target() Status {
	if a == ActionAccept {
		return StatusAccepted
	}
	return StatusDeclined
}

const MaxReasonLength = 500

type Invitation struct {
	ID         string
	SenderID   string
	ReceiverID string
	Reason     string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Party is one side of an invitation with its resolved username ("" if unknown).
type Party struct {
	ID       string
	Username string
}

// Entry is a listed invitation with both parties resolved.
type Entry struct {
	Invitation
	Sender   Party
	Receiver Party
}
