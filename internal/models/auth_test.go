package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenUsable(t *testing.T) {
	now := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Minute)}).Usable(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now}).Usable(now), "expiry instant is exclusive")
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), Revoked: true}).Usable(now))
}
