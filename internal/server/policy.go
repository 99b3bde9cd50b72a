package server

import "github.com/pkg/errors"

// UnreadPolicy decides whether appending a message grows the recipient's
// unread counter.
type UnreadPolicy int

const (
	// RecipientAbsent increments unless a connection of the recipient is joined to the room.
	RecipientAbsent UnreadPolicy = iota
	// SenderAlone increments when at most one connection is joined to the room.
	SenderAlone
)

var policyNames = map[UnreadPolicy]string{
	RecipientAbsent: "recipient-absent",
	SenderAlone:     "sender-alone",
}

// ParseUnreadPolicy maps a configured policy name to its UnreadPolicy. The
// empty name selects RecipientAbsent.
func ParseUnreadPolicy(name string) (UnreadPolicy, error) {
	if name == "" {
		return RecipientAbsent, nil
	}
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, errors.Errorf("unknown unread policy %q", name)
}

func (p UnreadPolicy) String() string {
	return policyNames[p]
}

func (p UnreadPolicy) ShouldIncrement(occupancy int, recipientJoined bool) bool {
	if p == SenderAlone {
		return occupancy <= 1
	}
	return !recipientJoined
}
