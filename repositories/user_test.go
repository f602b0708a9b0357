package repositories

import (
	"direct-chat/errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openBadger(t))

	// Given a freshly registered user
	created, err := repository.CreateUser("alice", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(created.ID)

	// Then it is reachable by username and by ID
	byName, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(created, byName)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(created, byID)
}

func TestUserRepository_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openBadger(t))

	first, err := repository.CreateUser("alice", "hash-1")
	req.NoError(err)

	// When the same username registers twice
	_, err = repository.CreateUser("alice", "hash-2")

	// Then the second attempt is rejected and the first account is untouched
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	stored, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(first, stored)
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openBadger(t))

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID("missing-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUserRepository_List_Sorted(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openBadger(t))

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := repository.CreateUser(name, "hash")
		req.NoError(err)
	}

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, lo.Map(users, func(u User, _ int) string { return u.Username }))
}
