package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenKindTable(t *testing.T) {
	table, err := EmailVerification.Table()
	require.NoError(t, err)
	assert.Equal(t, "email_verification_tokens", table)

	table, err = PasswordReset.Table()
	require.NoError(t, err)
	assert.Equal(t, "password_reset_tokens", table)

	_, err = TokenKind(0).Table()
	assert.Error(t, err)
}

func TestRefreshSessionUsableNeedsActiveAndUnexpired(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		name   string
		s      RefreshSession
		usable bool
	}{
		{"active and unexpired", RefreshSession{IsActive: true, ExpiresAt: now.Add(time.Hour)}, true},
		{"active but expired", RefreshSession{IsActive: true, ExpiresAt: now.Add(-time.Second)}, false},
		{"inactive and unexpired", RefreshSession{IsActive: false, ExpiresAt: now.Add(time.Hour)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.usable, tc.s.Usable(now))
		})
	}
}

func TestParseRoleName(t *testing.T) {
	r, ok := ParseRoleName(" employee ")
	assert.True(t, ok)
	assert.Equal(t, RoleEmployee, r)

	_, ok = ParseRoleName("owner")
	assert.False(t, ok)

	assert.True(t, RoleAdmin.IsStaff())
	assert.False(t, RoleCustomer.IsStaff())
}
