package repositories

import (
	"context"
	"direct-chat/domain"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openIndex(t *testing.T) *bluge.Writer {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return writer
}

func TestSearchIndex_Finds_Messages_Of_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	messages := NewMessageRepository(openBadger(t), slog.Default(), nil)
	index := NewSearchIndex(openIndex(t), slog.Default())

	// Given messages in two conversations mentioning the same word
	store := func(sender, receiver, text string) domain.Message {
		msg, err := messages.Create(ctx, domain.NewMessage{SenderID: sender, ReceiverID: receiver, Text: text})
		req.NoError(err)
		req.NoError(index.Index(msg))
		return msg
	}
	first := store("alice", "bob", "the database migration is done")
	store("bob", "alice", "great, lunch?")
	second := store("bob", "alice", "Database looks healthy")
	store("alice", "carol", "database for carol")

	// When alice searches her conversation with bob
	refs, err := index.Search(ctx, "bob", "alice", "database", 10)
	req.NoError(err)

	// Then only the matching messages of that conversation are returned, newest first
	found, err := messages.Get(ctx, "alice", "bob", refs)
	req.NoError(err)
	req.Equal([]string{second.ID.String(), first.ID.String()},
		lo.Map(found, func(m domain.Message, _ int) string { return m.ID.String() }))
}

func TestSearchIndex_Empty_Terms_And_Empty_Text(t *testing.T) {
	req := require.New(t)
	index := NewSearchIndex(openIndex(t), slog.Default())

	// A file-only message has nothing to index
	req.NoError(index.Index(domain.Message{SenderID: "alice", ReceiverID: "bob"}))

	refs, err := index.Search(context.Background(), "alice", "bob", "   ", 10)
	req.NoError(err)
	req.Empty(refs)

	refs, err = index.Search(context.Background(), "alice", "bob", "nothing", 10)
	req.NoError(err)
	req.Empty(refs)
}
