package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("  tok-1  ", " user-1 ")

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token, "token must be trimmed")
	assert.Equal(t, "user-1", s.UserID())
	assert.True(t, s.SignedIn())

	s.Update("tok-2", "user-2")
	token, err = s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, "user-2", s.UserID())

	s.SignOut()
	assert.False(t, s.SignedIn())
	assert.Empty(t, s.UserID())
}

func TestSessionEmptyIsNotSignedIn(t *testing.T) {
	assert.False(t, NewSession("", "").SignedIn())
	assert.False(t, NewSession("tok", "").SignedIn())
	assert.False(t, NewSession("", "user").SignedIn())
}
