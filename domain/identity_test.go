package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewOnlineSet_Deduplicates_And_Sorts(t *testing.T) {
	req := require.New(t)

	set := NewOnlineSet([]Identity{
		{UserID: "3", Username: "clara"},
		{UserID: "1", Username: "alice"},
		{UserID: "3", Username: "clara"},
		{UserID: "2", Username: "bob"},
	})

	req.Equal(OnlineSet{
		{UserID: "1", Username: "alice"},
		{UserID: "2", Username: "bob"},
		{UserID: "3", Username: "clara"},
	}, set)
	req.True(set.Contains("2"))
	req.False(set.Contains("4"))
}

func TestNewOnlineSet_Empty(t *testing.T) {
	req := require.New(t)
	set := NewOnlineSet(nil)
	req.NotNil(set)
	req.Empty(set)
}

func TestConversationKey_Is_Symmetric(t *testing.T) {
	req := require.New(t)
	req.Equal(ConversationKey("alice", "bob"), ConversationKey("bob", "alice"))
	req.NotEqual(ConversationKey("alice", "bob"), ConversationKey("alice", "clara"))
}

func TestConversationKey_Ids_Containing_The_Separator_Cannot_Collide(t *testing.T) {
	req := require.New(t)
	legit := ConversationKey("alice", "bob")

	// A crafted receiver embedding another pair must land somewhere else
	for _, crafted := range [][2]string{
		{"mallory", "alice:bob:0"},
		{"alice:bob", ""},
		{"alice", "bob:0"},
		{"alice:5", "bob"},
	} {
		key := ConversationKey(crafted[0], crafted[1])
		req.NotEqual(legit, key, crafted)
		req.False(strings.HasPrefix(key, legit+":"), crafted)
		req.False(strings.HasPrefix(legit, key+":"), crafted)
	}
}

func TestRouteCommand_IsEmpty(t *testing.T) {
	req := require.New(t)
	req.True(RouteCommand{ReceiverID: "bob"}.IsEmpty())
	req.False(RouteCommand{ReceiverID: "bob", Text: "hello"}.IsEmpty())
	req.False(RouteCommand{ReceiverID: "bob", File: &FileUpload{Name: "a.png"}}.IsEmpty())
}
