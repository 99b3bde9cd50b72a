package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnreadPolicy_ShouldIncrement(t *testing.T) {
	tcases := []struct {
		name      string
		policy    UnreadPolicy
		occupancy int
		joined    bool
		want      bool
	}{
		{"recipient absent, empty room", RecipientAbsent, 0, false, true},
		{"recipient absent, sender only", RecipientAbsent, 1, false, true},
		{"recipient absent, other viewer", RecipientAbsent, 2, false, true},
		{"recipient absent, recipient joined", RecipientAbsent, 2, true, false},
		{"recipient absent, recipient joined alone", RecipientAbsent, 1, true, false},
		{"sender alone, empty room", SenderAlone, 0, false, true},
		{"sender alone, one connection", SenderAlone, 1, false, true},
		{"sender alone, two connections", SenderAlone, 2, false, false},
		{"sender alone, recipient joined alone", SenderAlone, 1, true, true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.policy.ShouldIncrement(tc.occupancy, tc.joined))
		})
	}
}

func TestParseUnreadPolicy(t *testing.T) {
	p, err := ParseUnreadPolicy("sender-alone")
	assert.NoError(t, err)
	assert.Equal(t, SenderAlone, p)
	assert.Equal(t, "sender-alone", p.String())

	p, err = ParseUnreadPolicy("")
	assert.NoError(t, err)
	assert.Equal(t, RecipientAbsent, p)

	_, err = ParseUnreadPolicy("occupancy-one")
	assert.Error(t, err)
}
