// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/wqt-backend/models"
)

const testSecret = "test-secret-for-tokens"

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("4821")
	require.NoError(t, err)
	assert.NotEqual(t, "4821", hash)

	assert.NoError(t, VerifySecret("4821", hash))
	assert.ErrorIs(t, VerifySecret("4822", hash), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifySecret("4821", "not-a-bcrypt-hash"), ErrInvalidCredentials)
}

func TestHashSecretTooShort(t *testing.T) {
	_, err := HashSecret("123")
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"ipv4", "192.168.1.1", "salt"},
		{"ipv6", "2001:db8::1", "salt"},
		{"localhost", "127.0.0.1", "different-salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)
			assert.Len(t, hash, 16)
			assert.Equal(t, hash, HashIP(tt.ip, tt.salt))
			assert.NotEqual(t, hash, HashIP(tt.ip+"0", tt.salt))
			assert.NotEqual(t, hash, HashIP(tt.ip, tt.salt+"x"))
		})
	}

	assert.Empty(t, HashIP("10.0.0.1", ""))
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("user-1", "4821", models.RolePicker, testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "4821", claims.Username)
	assert.Equal(t, models.RolePicker, claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := IssueToken("user-1", "4821", models.RolePicker, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("user-1", "4821", models.RolePicker, testSecret, -time.Minute)
	require.NoError(t, err)
	badRole, err := IssueToken("user-1", "4821", "overlord", testSecret, time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken("", "4821", models.RolePicker, testSecret, time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             models.RolePicker,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role: models.RolePicker,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "another-secret"},
		{"expired", expired, testSecret},
		{"unknown role", badRole, testSecret},
		{"missing subject", noSubject, testSecret},
		{"missing expiry", noExpiry, testSecret},
		{"wrong algorithm", wrongAlg, testSecret},
		{"garbage", "not.a.token", testSecret},
		{"empty", "", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		role     string
		resource Resource
		action   Action
		want     bool
	}{
		{models.RolePicker, ResourceState, ActionWrite, true},
		{models.RolePicker, ResourceShift, ActionWrite, true},
		{models.RolePicker, ResourceShift, ActionWriteAny, false},
		{models.RoleOperative, ResourceShift, ActionReadAny, false},
		{models.RoleSupervisor, ResourceShift, ActionWriteAny, true},
		{models.RolePicker, ResourceHistory, ActionRead, true},
		{models.RolePicker, ResourceHistory, ActionReadAny, false},
		{models.RoleSupervisor, ResourceHistory, ActionReadAny, true},
		{models.RolePicker, ResourceAdmin, ActionRead, false},
		{models.RoleSupervisor, ResourceAdmin, ActionRead, true},
		{models.RoleAdmin, ResourceAdmin, ActionRead, true},
		{models.RolePicker, ResourceMessage, ActionWrite, false},
		{models.RolePicker, ResourceMessage, ActionRead, true},
		{models.RolePicker, ResourceLocation, ActionToggle, true},
		{models.RolePicker, ResourceLocation, ActionWrite, false},
		{models.RoleSupervisor, ResourceLocation, ActionWrite, true},
		{models.RoleSupervisor, ResourceUser, ActionCreatePrivileged, false},
		{models.RoleAdmin, ResourceUser, ActionCreatePrivileged, true},
		{"", ResourceState, ActionRead, false},
		{"overlord", ResourceAdmin, ActionRead, false},
		{models.RoleAdmin, ResourceOrder, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.resource)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.role, tt.resource, tt.action))
		})
	}
}

func TestCanUnlockRole(t *testing.T) {
	assert.True(t, CanUnlockRole(models.RoleOperative, models.RoleOperative))
	assert.False(t, CanUnlockRole(models.RolePicker, models.RoleOperative))
	assert.True(t, CanUnlockRole(models.RoleAdmin, models.RoleSupervisor))
	assert.False(t, CanUnlockRole(models.RoleAdmin, "overlord"))
}
