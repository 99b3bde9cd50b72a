package database

import (
	"encoding/json"
	"testing"

	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "acme"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\x`, `c:\\x`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in))
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0, 20))
	assert.Equal(t, 20, clampLimit(-1, 20))
	assert.Equal(t, 7, clampLimit(7, 20))
	assert.Equal(t, maxPageLimit, clampLimit(1000, 20))
}

func TestPlaceholder(t *testing.T) {
	var args []any
	assert.Equal(t, "$1", placeholder(&args, 10))
	assert.Equal(t, "$2", placeholder(&args, "x"))
	assert.Equal(t, []any{10, "x"}, args)
}

func TestDecodeSettings(t *testing.T) {
	raw, err := json.Marshal(map[string]bool{
		"Job Closed":        false,
		"User Reported":     false,
		"Applicant Applied": false,
	})
	require.NoError(t, err)

	settings, err := decodeSettings(types.AccountJobSeeker, raw)
	require.NoError(t, err)

	assert.False(t, settings.Enabled(types.CaseJobClosed))
	assert.True(t, settings.Enabled(types.CaseMessageReceived))
	assert.True(t, settings.Enabled(types.CaseUserReported), "reports cannot be disabled")
	_, ok := settings[types.CaseApplicantApplied]
	assert.False(t, ok, "cases outside the vocabulary are dropped")
}

func TestTableNames(t *testing.T) {
	_, err := profileTable(types.AccountAdmin)
	assert.ErrorIs(t, err, ErrInvalidKind)

	table, err := notificationTable(types.AccountCompany)
	require.NoError(t, err)
	assert.Equal(t, "company_notifications", table)

	col, err := unreadColumn(types.AccountJobSeeker)
	require.NoError(t, err)
	assert.Equal(t, "user_unread", col)
}
