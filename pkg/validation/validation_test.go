package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-api/pkg/config"
)

type account struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,strongpassword"`
	CIN      string `json:"cin" validate:"required,cin"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

func TestCustomTags(t *testing.T) {
	v := New(DefaultPolicy)

	valid := account{Username: "amina.b", Password: "Secret123", CIN: "AB123456", Phone: "0612345678"}
	require.NoError(t, v.Struct(valid))

	err := v.Struct(account{Username: "a!", Password: "secret", CIN: "A1234567", Phone: "0812345678"})
	require.Error(t, err)

	fields := Fields(err)
	assert.Len(t, fields, 4)
	assert.Contains(t, fields["cin"], "2 letters followed by 6 digits")
	assert.Contains(t, fields["password"], "at least 8 characters")
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "phone")
}

func TestPolicyIsConfigurable(t *testing.T) {
	v := New(config.PolicyConfig{UsernameMin: 8, UsernameMax: 20, PasswordMin: 12})

	err := v.Struct(account{Username: "short", Password: "Secret123", CIN: "AB123456"})
	require.Error(t, err)
	fields := Fields(err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, StrongPassword("Passw0rd", 8))
	assert.False(t, StrongPassword("password1", 8))
	assert.False(t, StrongPassword("PASSWORD1", 8))
	assert.False(t, StrongPassword("Password", 8))
	assert.False(t, StrongPassword("Pa1", 8))
}

func TestFieldsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Fields(assert.AnError))
}
