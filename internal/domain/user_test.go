package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserPublic(t *testing.T) {
	u := &User{ID: "u1", Name: "Ada", Email: "ada@example.com", Password: "$2a$12$hash"}

	pub := u.Public()
	assert.Empty(t, pub.Password)
	assert.Equal(t, "$2a$12$hash", u.Password)

	data, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
}
