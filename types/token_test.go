package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsUserID(t *testing.T) {
	id := uuid.New()

	got, err := Claims{Subject: id.String()}.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Claims{Subject: "42"}.UserID()
	assert.Error(t, err)
}

func TestLoginResponseJSON(t *testing.T) {
	body, err := json.Marshal(NewLoginResponse("abc.def.ghi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"abc.def.ghi","token_type":"bearer"}`, string(body))
}

func TestUserHidesPasswordHash(t *testing.T) {
	body, err := json.Marshal(User{ID: uuid.Nil, Username: "alice", PasswordHash: []byte("$2a$10$x")})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "2a$10")
}
