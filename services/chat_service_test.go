package services

import (
	"context"
	"direct-chat/domain"
	"direct-chat/mocks"
	"direct-chat/repositories"
	"fmt"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticOnline domain.OnlineSet

func (s staticOnline) Snapshot() domain.OnlineSet { return domain.OnlineSet(s) }

func setupStores(t *testing.T) (*repositories.MessageRepository, *repositories.SearchIndex) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	return repositories.NewMessageRepository(db, slog.Default(), nil), repositories.NewSearchIndex(writer, slog.Default())
}

func TestChatService_History_And_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	messages, index := setupStores(t)
	svc := NewChatService(messages, nil, index, staticOnline{})

	// Given a short conversation, indexed the way the router does it
	for _, m := range []domain.NewMessage{
		{SenderID: "alice", ReceiverID: "bob", Text: "Are you coming to the concert?"},
		{SenderID: "bob", ReceiverID: "alice", Text: "Yes, see you at the concert"},
		{SenderID: "bob", ReceiverID: "alice", Text: "bring the tickets"},
	} {
		created, err := messages.Create(ctx, m)
		req.NoError(err)
		req.NoError(index.Index(created))
	}

	// Then history is ordered oldest first from either side
	history, err := svc.History(ctx, "bob", "alice")
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("Are you coming to the concert?", history[0].Text)

	// And search only returns matching texts, newest first
	found, err := svc.Search(ctx, "alice", "bob", "concert")
	req.NoError(err)
	req.Equal([]string{"Yes, see you at the concert", "Are you coming to the concert?"},
		lo.Map(found, func(m domain.Message, _ int) string { return m.Text }))

	found, err = svc.Search(ctx, "alice", "bob", "  ")
	req.NoError(err)
	req.Empty(found)
}

func TestChatService_People(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)
	online := staticOnline{{UserID: "u-1", Username: "alice"}}
	svc := NewChatService(nil, users, nil, online)

	users.EXPECT().ListUsers().Return([]repositories.User{
		{ID: "u-1", Username: "alice", PasswordHash: "secret"},
		{ID: "u-2", Username: "bob", PasswordHash: "secret"},
	}, nil)

	people, err := svc.People()
	req.NoError(err)
	req.Equal([]domain.Identity{{UserID: "u-1", Username: "alice"}, {UserID: "u-2", Username: "bob"}}, people)
	req.Equal(domain.OnlineSet(online), svc.Online())

	users.EXPECT().ListUsers().Return(nil, fmt.Errorf("badger closed"))
	_, err = svc.People()
	req.Error(err)
}
