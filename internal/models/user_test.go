package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserDefaults(t *testing.T) {
	user := NewUser("budi", "budi@example.com", "hash")

	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, PlanTrial, user.Plan)
	assert.Equal(t, PlanQuota(PlanTrial), user.MessageQuota)
	assert.True(t, user.Active)
	require.NotNil(t, user.PlanExpiresAt)
	assert.Greater(t, *user.PlanExpiresAt, time.Now().Unix())
}

func TestIsLocked(t *testing.T) {
	future := time.Now().Unix() + 3600
	past := time.Now().Unix() - 3600

	testCases := []struct {
		name        string
		lockedUntil *int64
		expected    bool
	}{
		{name: "never locked", lockedUntil: nil, expected: false},
		{name: "lock expired", lockedUntil: &past, expected: false},
		{name: "currently locked", lockedUntil: &future, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u := &User{Active: true, LockedUntil: tc.lockedUntil}
			assert.Equal(t, tc.expected, u.IsLocked())
			assert.Equal(t, !tc.expected, u.IsActive())
		})
	}

	assert.False(t, (&User{Active: false}).IsActive())
}

func TestPlanExpired(t *testing.T) {
	future := time.Now().Unix() + 3600
	past := time.Now().Unix() - 3600

	assert.False(t, (&User{}).PlanExpired())
	assert.False(t, (&User{PlanExpiresAt: &future}).PlanExpired())
	assert.True(t, (&User{PlanExpiresAt: &past}).PlanExpired())
}

func TestQuotaRemaining(t *testing.T) {
	assert.Equal(t, int64(30), (&User{MessageQuota: 100, MessagesUsed: 70}).QuotaRemaining())
	assert.Equal(t, int64(0), (&User{MessageQuota: 100, MessagesUsed: 100}).QuotaRemaining())
	assert.Equal(t, int64(0), (&User{MessageQuota: 100, MessagesUsed: 150}).QuotaRemaining())
}

func TestPermissionsByRole(t *testing.T) {
	owner := &User{Role: RoleOwner}
	assert.Contains(t, owner.Permissions(), "users:delete")
	assert.Contains(t, owner.Permissions(), "stats:read")

	admin := &User{Role: RoleAdmin}
	assert.Contains(t, admin.Permissions(), "users:read")
	assert.NotContains(t, admin.Permissions(), "users:delete")

	assert.Nil(t, (&User{Role: RoleUser}).Permissions())
}

func TestUserJSONOmitsSecrets(t *testing.T) {
	secret := "totp-secret"
	user := NewUser("budi", "budi@example.com", "bcrypt-hash")
	user.TOTPSecret = &secret

	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bcrypt-hash")
	assert.NotContains(t, string(data), "totp-secret")

	data, err = json.Marshal(user.ToResponse())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "bcrypt-hash")
	assert.Contains(t, string(data), "budi@example.com")
}

func TestPlanTables(t *testing.T) {
	assert.Equal(t, int64(100), PlanQuota(PlanTrial))
	assert.Equal(t, int64(10000), PlanQuota(PlanBasic))
	assert.Equal(t, int64(50000), PlanQuota(PlanPro))
	assert.Equal(t, int64(100), PlanQuota("unknown"))

	assert.Equal(t, 1, PlanDeviceSlots(PlanTrial))
	assert.Equal(t, 2, PlanDeviceSlots(PlanBasic))
	assert.Equal(t, 5, PlanDeviceSlots(PlanPro))
}
