package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSONShape(t *testing.T) {
	user := User{
		ID:           7,
		Phone:        "9876543210",
		Username:     "player7",
		PasswordHash: "$2a$10$secret",
		KYCStatus:    KYCPending,
		ReferralCode: "ABCD1234",
		CreatedAt:    time.Now(),
	}

	raw, err := json.Marshal(user)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Contains(t, fields, "kyc_status")
	assert.Contains(t, fields, "referral_code")
	assert.Contains(t, fields, "total_deposited")

	// The hash must never leave the server, under any key.
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, string(raw), "secret")
}

func TestBattleJSONShape(t *testing.T) {
	raw, err := json.Marshal(Battle{ID: 1, Status: BattleChallenge, CommissionBps: 500})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Contains(t, fields, "creator_id")
	assert.Contains(t, fields, "commission_bps")
	assert.Contains(t, fields, "room_code")
	assert.NotContains(t, fields, "CreatorID")
}
